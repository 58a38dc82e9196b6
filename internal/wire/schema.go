package wire

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// ErrMalformedJSON marks a request payload that failed to parse as JSON at
// all — a protocol error (§7 kind 1): the connection closes with no
// response, because there is no reliable identity to echo. Missing fields
// and type mismatches in otherwise well-formed JSON are validation errors
// instead and do not wrap this sentinel.
var ErrMalformedJSON = errors.New("wire: malformed request JSON")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// InferenceRequest is the wire-level input (§3, §6).
type InferenceRequest struct {
	FrameReference string         `json:"frame_reference"`
	FrameMetadata  FrameMetadata  `json:"frame_metadata"`
	CameraID       string         `json:"camera_id"`
	ModelID        string         `json:"model_id"`
	Timestamp      float64        `json:"timestamp"`
	Config         map[string]any `json:"config,omitempty"`
}

// FrameMetadata describes the bytes at FrameReference.
type FrameMetadata struct {
	FrameID   int64   `json:"frame_id"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Format    string  `json:"format"`
	Timestamp float64 `json:"timestamp"`
}

// Detection is one structured inference result (§3).
type Detection struct {
	ClassID    int        `json:"class_id"`
	ClassName  string     `json:"class_name"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
	TrackID    *int64     `json:"track_id,omitempty"`
}

// InferenceResponse is the wire-level output (§3, §6).
type InferenceResponse struct {
	ModelID    string         `json:"model_id"`
	CameraID   string         `json:"camera_id"`
	FrameID    int64          `json:"frame_id"`
	Detections []Detection    `json:"detections"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Error      *string        `json:"error"`
}

var requestRequiredFields = []string{
	"frame_reference", "frame_metadata", "camera_id", "model_id", "timestamp",
}

var frameMetadataRequiredFields = []string{
	"width", "height", "format", "frame_id", "timestamp",
}

// DecodeRequest parses payload into an InferenceRequest, enforcing that the
// five non-optional top-level fields and the five required frame_metadata
// keys are present (§3 invariants) before attempting the strongly-typed
// decode, which separately enforces that each field is correctly typed.
func DecodeRequest(payload []byte) (*InferenceRequest, error) {
	var top map[string]jsoniter.RawMessage
	if err := json.Unmarshal(payload, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	for _, field := range requestRequiredFields {
		if _, ok := top[field]; !ok {
			return nil, fmt.Errorf("wire: missing required field %q", field)
		}
	}

	var meta map[string]jsoniter.RawMessage
	if err := json.Unmarshal(top["frame_metadata"], &meta); err != nil {
		return nil, fmt.Errorf("wire: malformed frame_metadata: %w", err)
	}
	for _, field := range frameMetadataRequiredFields {
		if _, ok := meta[field]; !ok {
			return nil, fmt.Errorf("wire: missing required frame_metadata field %q", field)
		}
	}

	var req InferenceRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("wire: field type mismatch: %w", err)
	}
	return &req, nil
}

// EncodeResponse serializes resp to its wire JSON form.
func EncodeResponse(resp *InferenceResponse) ([]byte, error) {
	return json.Marshal(resp)
}

// ErrorResponse builds a response with the given identity fields echoed,
// empty detections, and the error string set — the shape every validation,
// frame, and inference error (§7 kinds 2-4) must produce.
func ErrorResponse(modelID, cameraID string, frameID int64, errMsg string) *InferenceResponse {
	return &InferenceResponse{
		ModelID:    modelID,
		CameraID:   cameraID,
		FrameID:    frameID,
		Detections: []Detection{},
		Error:      &errMsg,
	}
}
