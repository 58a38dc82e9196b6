package discovery

import (
	"os"
	"path/filepath"
	"testing"
)

func writeModelDir(t *testing.T, root, name, yamlBody string, withWeights bool) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if withWeights {
		weightsDir := filepath.Join(dir, "weights")
		if err := os.MkdirAll(weightsDir, 0o755); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
		if err := os.WriteFile(filepath.Join(weightsDir, "model.bin"), []byte("w"), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}
	if yamlBody != "" {
		if err := os.WriteFile(filepath.Join(dir, "model.yaml"), []byte(yamlBody), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}
}

const sampleYAML = `
model_id: yolov8n
model_name: YOLOv8 Nano
model_version: "1.0"
supported_tasks: ["detection"]
input_format: NV12
expected_resolution: [640, 640]
resource_requirements:
  gpu_required: false
  cpu_fallback_allowed: true
model_type: pytorch-like
model_weights: weights/model.bin
confidence_threshold: 0.5
`

func TestScanClassifiesEachCase(t *testing.T) {
	root := t.TempDir()
	writeModelDir(t, root, "good", sampleYAML, true)
	writeModelDir(t, root, "no-yaml", "", true)
	writeModelDir(t, root, "bad-yaml", "not: [valid", true)

	reg := Scan(root)

	if _, ok := reg.Available["yolov8n"]; !ok {
		t.Error("expected yolov8n to be available")
	}
	if reason := reg.Unavailable["no-yaml"]; reason != ReasonMissingDescriptor {
		t.Errorf("no-yaml reason = %q, want %q", reason, ReasonMissingDescriptor)
	}
	if reason := reg.Unavailable["bad-yaml"]; reason != ReasonInvalidDescriptor {
		t.Errorf("bad-yaml reason = %q, want %q", reason, ReasonInvalidDescriptor)
	}
}

func TestScanMissingRootIsNotFatal(t *testing.T) {
	reg := Scan(filepath.Join(t.TempDir(), "does-not-exist"))
	if len(reg.Available) != 0 || len(reg.Unavailable) != 0 {
		t.Errorf("expected empty registry for missing root, got %+v", reg)
	}
}

func TestScanIsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeModelDir(t, root, "good", sampleYAML, true)

	reg1 := Scan(root)
	reg2 := Scan(root)

	if len(reg1.Available) != len(reg2.Available) || len(reg1.Unavailable) != len(reg2.Unavailable) {
		t.Fatalf("Scan not idempotent: %+v vs %+v", reg1, reg2)
	}
}

func TestScanContradictoryPolicyMarksInvalid(t *testing.T) {
	root := t.TempDir()
	body := `
model_id: m
model_name: M
model_version: "1.0"
supported_tasks: ["detection"]
input_format: NV12
expected_resolution: [640, 640]
resource_requirements:
  gpu_required: true
  cpu_fallback_allowed: true
model_type: pytorch-like
model_weights: weights/model.bin
confidence_threshold: 0.5
`
	writeModelDir(t, root, "contradiction", body, true)

	reg := Scan(root)
	if reason := reg.Unavailable["contradiction"]; reason != ReasonInvalidDescriptor {
		t.Errorf("reason = %q, want %q", reason, ReasonInvalidDescriptor)
	}
	if len(reg.Available) != 0 {
		t.Errorf("expected no available models, got %+v", reg.Available)
	}
}
