package handler_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	modelcontainer "github.com/vasplatform/modelcontainer"
	"github.com/vasplatform/modelcontainer/internal/descriptor"
	"github.com/vasplatform/modelcontainer/internal/handler"
	"github.com/vasplatform/modelcontainer/internal/interfaces"
	"github.com/vasplatform/modelcontainer/internal/logging"
)

func nv12Frame(width, height int) []byte {
	size := width*height + width*height/2
	data := make([]byte, size)
	for i := 0; i < width*height; i++ {
		data[i] = 128
	}
	for i := width * height; i < size; i++ {
		data[i] = 128
	}
	return data
}

func testDescriptor(modelID string) *descriptor.ModelDescriptor {
	nms := 0.45
	return &descriptor.ModelDescriptor{
		ModelID:             modelID,
		ModelName:           "Test Model",
		ModelVersion:        "1.0",
		ExpectedResolution:  [2]int{4, 4},
		ModelType:           "pytorch-like",
		ConfidenceThreshold: 0.5,
		NMSIoUThreshold:     &nms,
	}
}

func detectionTensor(detections [][6]float32) *interfaces.Tensor {
	data := make([]float32, 0, len(detections)*6)
	for _, d := range detections {
		data = append(data, d[:]...)
	}
	return &interfaces.Tensor{Data: data, Shape: []int{len(detections), 6}}
}

func requestJSON(t *testing.T, modelID, cameraID, frameRef string, width, height int, frameID int64) []byte {
	t.Helper()
	body := map[string]any{
		"frame_reference": frameRef,
		"frame_metadata": map[string]any{
			"frame_id":  frameID,
			"width":     width,
			"height":    height,
			"format":    "NV12",
			"timestamp": 0.0,
		},
		"camera_id": cameraID,
		"model_id":  modelID,
		"timestamp": 0.0,
	}
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	return b
}

func newTestHandler(t *testing.T, rt *modelcontainer.MockModelRuntime, frameRef string, width, height int) *handler.Handler {
	t.Helper()
	frames := modelcontainer.NewMockFrameSource(map[string][]byte{
		frameRef: nv12Frame(width, height),
	})
	return handler.New(testDescriptor("yolov8n"), rt, frames, modelcontainer.NoOpObserver{}, logging.Default(), interfaces.DeviceCPU)
}

func decodeResponse(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	return out
}

func TestHandleHappyPath(t *testing.T) {
	rt := &modelcontainer.MockModelRuntime{
		InferFunc: func(*interfaces.Tensor) (*interfaces.Tensor, error) {
			return detectionTensor([][6]float32{{0, 0.9, 0, 0, 2, 2}}), nil
		},
	}
	h := newTestHandler(t, rt, "/dev/shm/cam1", 4, 4)

	reqBytes := requestJSON(t, "yolov8n", "cam1", "/dev/shm/cam1", 4, 4, 42)
	respBytes, err := h.Handle(context.Background(), reqBytes)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	resp := decodeResponse(t, respBytes)
	if resp["error"] != nil {
		t.Fatalf("error = %v, want nil", resp["error"])
	}
	if resp["camera_id"] != "cam1" || resp["model_id"] != "yolov8n" {
		t.Errorf("identity not echoed: %+v", resp)
	}
	if frameID, _ := resp["frame_id"].(float64); int64(frameID) != 42 {
		t.Errorf("frame_id = %v, want 42", resp["frame_id"])
	}
	detections, _ := resp["detections"].([]any)
	if len(detections) != 1 {
		t.Fatalf("detections = %v, want 1 entry", detections)
	}
}

func TestHandleModelMismatch(t *testing.T) {
	rt := &modelcontainer.MockModelRuntime{}
	h := newTestHandler(t, rt, "/dev/shm/cam1", 4, 4)

	reqBytes := requestJSON(t, "resnet50", "cam1", "/dev/shm/cam1", 4, 4, 42)
	respBytes, err := h.Handle(context.Background(), reqBytes)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	resp := decodeResponse(t, respBytes)
	if resp["error"] == nil {
		t.Fatal("expected error for model_id mismatch")
	}
	detections, _ := resp["detections"].([]any)
	if len(detections) != 0 {
		t.Errorf("detections = %v, want empty", detections)
	}
	load, infer, _ := rt.CallCounts()
	if infer != 0 || load != 0 {
		t.Errorf("load=%d infer=%d, want 0,0 (mismatch should skip inference)", load, infer)
	}
}

func TestHandleMissingFrameReference(t *testing.T) {
	rt := &modelcontainer.MockModelRuntime{}
	h := newTestHandler(t, rt, "/dev/shm/cam1", 4, 4)

	reqBytes := requestJSON(t, "yolov8n", "cam1", "/dev/shm/does-not-exist", 4, 4, 42)
	respBytes, err := h.Handle(context.Background(), reqBytes)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	resp := decodeResponse(t, respBytes)
	if resp["error"] == nil {
		t.Fatal("expected error for missing frame reference")
	}
}

func TestHandleMalformedJSONReturnsProtocolError(t *testing.T) {
	rt := &modelcontainer.MockModelRuntime{}
	h := newTestHandler(t, rt, "/dev/shm/cam1", 4, 4)

	_, err := h.Handle(context.Background(), []byte(`not json`))
	if err == nil {
		t.Fatal("Handle() expected a protocol error for malformed JSON")
	}
	var protoErr *handler.ProtocolError
	if !isProtocolError(err, &protoErr) {
		t.Errorf("err = %v, want *handler.ProtocolError", err)
	}
}

func isProtocolError(err error, target **handler.ProtocolError) bool {
	pe, ok := err.(*handler.ProtocolError)
	if ok {
		*target = pe
	}
	return ok
}

func TestHandleInferenceErrorIsInBand(t *testing.T) {
	rt := &modelcontainer.MockModelRuntime{
		InferFunc: func(*interfaces.Tensor) (*interfaces.Tensor, error) {
			return nil, os.ErrClosed
		},
	}
	h := newTestHandler(t, rt, "/dev/shm/cam1", 4, 4)

	reqBytes := requestJSON(t, "yolov8n", "cam1", "/dev/shm/cam1", 4, 4, 42)
	respBytes, err := h.Handle(context.Background(), reqBytes)
	if err != nil {
		t.Fatalf("Handle() error = %v, want in-band response", err)
	}
	resp := decodeResponse(t, respBytes)
	if resp["error"] == nil {
		t.Fatal("expected error in response")
	}
}

func TestHandleConfidenceOverride(t *testing.T) {
	rt := &modelcontainer.MockModelRuntime{
		InferFunc: func(*interfaces.Tensor) (*interfaces.Tensor, error) {
			return detectionTensor([][6]float32{{0, 0.6, 0, 0, 2, 2}}), nil
		},
	}
	frames := modelcontainer.NewMockFrameSource(map[string][]byte{
		"/dev/shm/cam1": nv12Frame(4, 4),
	})
	h := handler.New(testDescriptor("yolov8n"), rt, frames, modelcontainer.NoOpObserver{}, logging.Default(), interfaces.DeviceCPU)

	body := map[string]any{
		"frame_reference": "/dev/shm/cam1",
		"frame_metadata": map[string]any{
			"frame_id": 1, "width": 4, "height": 4, "format": "NV12", "timestamp": 0.0,
		},
		"camera_id": "cam1",
		"model_id":  "yolov8n",
		"timestamp": 0.0,
		"config":    map[string]any{"confidence_threshold": 0.9},
	}
	b, _ := json.Marshal(body)

	respBytes, err := h.Handle(context.Background(), b)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	resp := decodeResponse(t, respBytes)
	detections, _ := resp["detections"].([]any)
	if len(detections) != 0 {
		t.Errorf("detections = %v, want empty (0.6 confidence below overridden 0.9 threshold)", detections)
	}
}

func TestHandleZeroDetectionOutput(t *testing.T) {
	dir := t.TempDir()
	_ = filepath.Join(dir, "unused")
	// Ensure decodeDetections/postprocess don't panic on a zero-detection
	// output tensor.
	rt := &modelcontainer.MockModelRuntime{
		InferFunc: func(*interfaces.Tensor) (*interfaces.Tensor, error) {
			return &interfaces.Tensor{Shape: []int{0, 6}}, nil
		},
	}
	h := newTestHandler(t, rt, "/dev/shm/cam1", 4, 4)
	reqBytes := requestJSON(t, "yolov8n", "cam1", "/dev/shm/cam1", 4, 4, 7)
	respBytes, err := h.Handle(context.Background(), reqBytes)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	resp := decodeResponse(t, respBytes)
	detections, _ := resp["detections"].([]any)
	if len(detections) != 0 {
		t.Errorf("detections = %v, want empty", detections)
	}
}
