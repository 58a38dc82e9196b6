// Package discovery implements C7: a one-shot scan of a models root
// directory, classifying each subdirectory as available (with its loaded
// descriptor) or unavailable (with a reason), per §4.7.
package discovery

import (
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/vasplatform/modelcontainer/internal/descriptor"
)

// Reason codes for unavailable model directories.
const (
	ReasonMissingDescriptor = "missing_model_yaml"
	ReasonInvalidDescriptor = "invalid_model_yaml"
	ReasonMissingWeights    = "missing_weights"
)

// Registry is the frozen result of one discovery scan: available models
// keyed by model_id, plus unavailability reasons keyed by directory name.
type Registry struct {
	Available   map[string]*descriptor.ModelDescriptor
	Unavailable map[string]string
}

// result is one directory's classification, produced off the main
// goroutine and merged into the Registry afterward so map writes never race.
type result struct {
	dirName    string
	descriptor *descriptor.ModelDescriptor
	reason     string
}

// Scan walks the direct children of root, validating each candidate model
// directory concurrently via errgroup (descriptor parsing and two stat
// calls per directory are independent of every other directory). A missing
// root is not fatal and yields an empty registry (§4.7).
func Scan(root string) *Registry {
	reg := &Registry{
		Available:   make(map[string]*descriptor.ModelDescriptor),
		Unavailable: make(map[string]string),
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return reg
	}

	dirs := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		}
	}

	results := make([]result, len(dirs))
	var g errgroup.Group
	for i, dirName := range dirs {
		i, dirName := i, dirName
		g.Go(func() error {
			results[i] = classify(root, dirName)
			return nil
		})
	}
	_ = g.Wait() // classify never returns an error; only used for the wait barrier

	for _, r := range results {
		if r.descriptor != nil {
			reg.Available[r.descriptor.ModelID] = r.descriptor
		} else {
			reg.Unavailable[r.dirName] = r.reason
		}
	}

	return reg
}

// classify validates one candidate model directory.
func classify(root, dirName string) result {
	dirPath := filepath.Join(root, dirName)
	descriptorPath := filepath.Join(dirPath, "model.yaml")

	if _, statErr := os.Stat(descriptorPath); statErr != nil {
		return result{dirName: dirName, reason: ReasonMissingDescriptor}
	}

	d, reason := descriptor.Load(descriptorPath)
	if d == nil {
		_ = reason
		return result{dirName: dirName, reason: ReasonInvalidDescriptor}
	}

	if _, statErr := os.Stat(d.ModelWeights); statErr != nil {
		return result{dirName: dirName, reason: ReasonMissingWeights}
	}

	return result{dirName: dirName, descriptor: d}
}
