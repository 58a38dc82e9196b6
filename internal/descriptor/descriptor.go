// Package descriptor implements C6: parsing and validating a model.yaml
// descriptor into an immutable ModelDescriptor, the configuration consumed
// by the runtime and handler.
package descriptor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ModelDescriptor is the static, on-disk declaration of a model's identity,
// inputs, resources, and runtime, loaded once at startup and never mutated.
type ModelDescriptor struct {
	ModelID            string
	ModelName          string
	ModelVersion       string
	SupportedTasks     []string
	InputFormat        string
	ExpectedResolution [2]int // width, height

	GPURequired        bool
	GPUMemoryMB        int
	CPUFallbackAllowed bool

	ModelType          string // "pytorch-like" or "onnx-like"
	ModelWeights       string // relative paths are joined to the descriptor's directory
	ConfidenceThreshold float64
	NMSIoUThreshold     *float64

	OutputSchema map[string]any

	// ClassNames, if a sidecar classes.txt exists alongside model.yaml, maps
	// class_id (by line number) to a human-readable name. Optional metadata
	// per §9's open question on class-name resolution.
	ClassNames []string
}

// rawDescriptor mirrors the on-disk YAML shape before validation.
type rawDescriptor struct {
	ModelID         string           `yaml:"model_id"`
	ModelName       string           `yaml:"model_name"`
	ModelVersion    string           `yaml:"model_version"`
	SupportedTasks  []string         `yaml:"supported_tasks"`
	InputFormat     string           `yaml:"input_format"`
	ExpectedResolution []int         `yaml:"expected_resolution"`
	ResourceRequirements struct {
		GPURequired        *bool `yaml:"gpu_required"`
		GPUMemoryMB        int   `yaml:"gpu_memory_mb"`
		CPUFallbackAllowed *bool `yaml:"cpu_fallback_allowed"`
	} `yaml:"resource_requirements"`
	ModelType           string   `yaml:"model_type"`
	ModelWeights        string   `yaml:"model_weights"`
	ConfidenceThreshold *float64 `yaml:"confidence_threshold"`
	NMSIoUThreshold     *float64 `yaml:"nms_iou_threshold"`
	OutputSchema        map[string]any `yaml:"output_schema"`
}

var knownModelTypes = map[string]bool{
	"pytorch-like": true,
	"onnx-like":    true,
}

// Load parses and validates the descriptor at path. Any violation returns a
// nil descriptor and a non-empty reason string for logging; it never
// returns a Go error that would propagate past discovery (§4.6).
func Load(path string) (*ModelDescriptor, string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Sprintf("cannot read descriptor: %v", err)
	}

	var raw rawDescriptor
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Sprintf("cannot parse descriptor yaml: %v", err)
	}

	return validate(raw, filepath.Dir(path))
}

func validate(raw rawDescriptor, descriptorDir string) (*ModelDescriptor, string) {
	if raw.ModelID == "" {
		return nil, "missing model_id"
	}
	if raw.ModelName == "" {
		return nil, "missing model_name"
	}
	if raw.ModelVersion == "" {
		return nil, "missing model_version"
	}
	if len(raw.SupportedTasks) == 0 {
		return nil, "missing supported_tasks"
	}
	if raw.InputFormat == "" {
		return nil, "missing input_format"
	}
	if len(raw.ExpectedResolution) != 2 {
		return nil, "expected_resolution must contain exactly two integers"
	}
	if raw.ExpectedResolution[0] <= 0 || raw.ExpectedResolution[1] <= 0 {
		return nil, "expected_resolution dimensions must be positive"
	}

	if raw.ResourceRequirements.GPURequired == nil {
		return nil, "missing resource_requirements.gpu_required"
	}
	if raw.ResourceRequirements.CPUFallbackAllowed == nil {
		return nil, "missing resource_requirements.cpu_fallback_allowed"
	}
	gpuRequired := *raw.ResourceRequirements.GPURequired
	cpuFallbackAllowed := *raw.ResourceRequirements.CPUFallbackAllowed
	if gpuRequired && cpuFallbackAllowed {
		return nil, "gpu_required and cpu_fallback_allowed cannot both be true"
	}

	modelType := strings.ToLower(strings.TrimSpace(raw.ModelType))
	if !knownModelTypes[modelType] {
		return nil, fmt.Sprintf("unknown model_type %q", raw.ModelType)
	}

	if raw.ModelWeights == "" {
		return nil, "missing model_weights"
	}
	weightsPath := raw.ModelWeights
	if !filepath.IsAbs(weightsPath) {
		weightsPath = filepath.Join(descriptorDir, weightsPath)
	}
	if _, err := os.Stat(weightsPath); err != nil {
		return nil, fmt.Sprintf("model_weights does not exist: %v", err)
	}

	if raw.ConfidenceThreshold == nil {
		return nil, "missing confidence_threshold"
	}
	if *raw.ConfidenceThreshold < 0 || *raw.ConfidenceThreshold > 1 {
		return nil, "confidence_threshold must be in [0,1]"
	}
	if raw.NMSIoUThreshold != nil && (*raw.NMSIoUThreshold < 0 || *raw.NMSIoUThreshold > 1) {
		return nil, "nms_iou_threshold must be in [0,1]"
	}

	classNames := loadClassNames(descriptorDir)

	return &ModelDescriptor{
		ModelID:             raw.ModelID,
		ModelName:           raw.ModelName,
		ModelVersion:        raw.ModelVersion,
		SupportedTasks:      raw.SupportedTasks,
		InputFormat:         raw.InputFormat,
		ExpectedResolution:  [2]int{raw.ExpectedResolution[0], raw.ExpectedResolution[1]},
		GPURequired:         gpuRequired,
		GPUMemoryMB:         raw.ResourceRequirements.GPUMemoryMB,
		CPUFallbackAllowed:  cpuFallbackAllowed,
		ModelType:           modelType,
		ModelWeights:        weightsPath,
		ConfidenceThreshold: *raw.ConfidenceThreshold,
		NMSIoUThreshold:     raw.NMSIoUThreshold,
		OutputSchema:        raw.OutputSchema,
		ClassNames:          classNames,
	}, ""
}

// loadClassNames reads an optional classes.txt sidecar, one class name per
// line, indexed by line number. Absence is not an error (§9).
func loadClassNames(descriptorDir string) []string {
	data, err := os.ReadFile(filepath.Join(descriptorDir, "classes.txt"))
	if err != nil {
		return nil
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	names := make([]string, 0, len(lines))
	for _, line := range lines {
		names = append(names, strings.TrimSpace(line))
	}
	return names
}

// ClassName resolves a class_id to a name using the optional sidecar,
// falling back to a numeric placeholder when unavailable.
func (d *ModelDescriptor) ClassName(classID int) string {
	if classID >= 0 && classID < len(d.ClassNames) && d.ClassNames[classID] != "" {
		return d.ClassNames[classID]
	}
	return fmt.Sprintf("class_%d", classID)
}
