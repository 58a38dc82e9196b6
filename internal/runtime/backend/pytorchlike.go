// Package backend provides the concrete interfaces.ModelRuntime
// implementations selected by descriptor.ModelType: a tensor-framework-style
// runtime with exception-shaped Go errors (PyTorchLike) and a
// graph-execution-style runtime with status-return errors (ONNXLike). Both
// are grid-statistics detectors: deterministic, dependency-free stand-ins for
// an actual accelerator-bound framework, since loading real trained weights
// is outside what this process can exercise (§9 "Polymorphism over model
// runtimes").
package backend

import (
	"context"
	"fmt"
	"os"

	"github.com/vasplatform/modelcontainer/internal/interfaces"
)

// PyTorchLike models a tensor-framework runtime: Load/Infer can fail with Go
// errors representing what would be framework exceptions in the original
// material.
type PyTorchLike struct {
	weightsPath string
	device      interfaces.Device
	grid        GridDetector
}

// NewPyTorchLike constructs an unloaded runtime.
func NewPyTorchLike() *PyTorchLike {
	return &PyTorchLike{}
}

func (p *PyTorchLike) Load(ctx context.Context, weightsPath string, device interfaces.Device) error {
	info, err := os.Stat(weightsPath)
	if err != nil {
		return fmt.Errorf("pytorchlike: load weights: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("pytorchlike: weights path %q is a directory", weightsPath)
	}
	p.weightsPath = weightsPath
	p.device = device
	p.grid = GridDetector{Seed: fnvSeed(weightsPath)}
	return nil
}

func (p *PyTorchLike) Infer(ctx context.Context, input *interfaces.Tensor) (*interfaces.Tensor, error) {
	if p.weightsPath == "" {
		return nil, fmt.Errorf("pytorchlike: infer before load")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return p.grid.Detect(input)
}

func (p *PyTorchLike) Close() error {
	p.weightsPath = ""
	return nil
}

var _ interfaces.ModelRuntime = (*PyTorchLike)(nil)
