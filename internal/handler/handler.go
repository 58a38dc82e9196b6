// Package handler implements C4: the stateless per-request pipeline that
// decodes a request, reads and preprocesses the referenced frame, runs
// inference, post-processes raw output, and builds a response.
package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vasplatform/modelcontainer/internal/constants"
	"github.com/vasplatform/modelcontainer/internal/descriptor"
	"github.com/vasplatform/modelcontainer/internal/interfaces"
	"github.com/vasplatform/modelcontainer/internal/postprocess"
	"github.com/vasplatform/modelcontainer/internal/preprocess"
	"github.com/vasplatform/modelcontainer/internal/wire"
)

const detectionStride = 6

// ProtocolError marks a request whose bytes could not be safely answered at
// all; the caller (C5) must close the connection with no response.
type ProtocolError struct {
	Inner error
}

func (e *ProtocolError) Error() string { return fmt.Sprintf("handler: protocol error: %v", e.Inner) }
func (e *ProtocolError) Unwrap() error { return e.Inner }

// Handler runs the §4.2 pipeline for exactly one loaded model. It holds no
// per-request state: the only shared dependency across concurrent
// invocations is the immutable descriptor and the mutex-serialized runtime.
type Handler struct {
	descriptor *descriptor.ModelDescriptor
	runtime    interfaces.ModelRuntime
	frames     interfaces.FrameSource
	observer   interfaces.Observer
	logger     interfaces.Logger
	device     interfaces.Device
}

// New builds a handler bound to one loaded model.
func New(d *descriptor.ModelDescriptor, rt interfaces.ModelRuntime, frames interfaces.FrameSource, observer interfaces.Observer, logger interfaces.Logger, device interfaces.Device) *Handler {
	return &Handler{
		descriptor: d,
		runtime:    rt,
		frames:     frames,
		observer:   observer,
		logger:     logger,
		device:     device,
	}
}

// Handle runs the full pipeline over one framed request payload and returns
// the framed response payload. It never returns a non-nil response alongside
// a non-nil error: a *ProtocolError means the caller must close the
// connection without writing anything; any other returned error never
// happens — every other failure mode is translated into an in-band
// response with Error set.
func (h *Handler) Handle(ctx context.Context, requestBytes []byte) ([]byte, error) {
	req, err := wire.DecodeRequest(requestBytes)
	if err != nil {
		if errors.Is(err, wire.ErrMalformedJSON) {
			return nil, &ProtocolError{Inner: err}
		}
		// Validation error: DecodeRequest returns no request to echo
		// identity from, so model_id and camera_id are left empty and
		// frame_id is 0 in this response.
		return h.encodeError("", "", 0, err), nil
	}

	if req.ModelID != h.descriptor.ModelID {
		return h.encodeError(req.ModelID, req.CameraID, req.FrameMetadata.FrameID,
			fmt.Errorf("model_id mismatch: container serves %q, request asked for %q", h.descriptor.ModelID, req.ModelID)), nil
	}

	meta := interfaces.FrameMetadata{
		FrameID:   req.FrameMetadata.FrameID,
		Width:     req.FrameMetadata.Width,
		Height:    req.FrameMetadata.Height,
		Format:    req.FrameMetadata.Format,
		Timestamp: req.FrameMetadata.Timestamp,
	}

	readStart := time.Now()
	frame, err := h.frames.ReadFrame(req.FrameReference, meta)
	readLatency := time.Since(readStart)
	if err != nil {
		h.observer.ObserveFrameRead(0, uint64(readLatency.Nanoseconds()), false)
		return h.encodeError(req.ModelID, req.CameraID, req.FrameMetadata.FrameID, fmt.Errorf("frame read failed: %w", err)), nil
	}
	h.observer.ObserveFrameRead(uint64(len(frame)), uint64(readLatency.Nanoseconds()), true)

	targetWidth, targetHeight := h.descriptor.ExpectedResolution[0], h.descriptor.ExpectedResolution[1]
	tensor, err := preprocess.ToTensor(frame, meta.Width, meta.Height, targetWidth, targetHeight)
	if err != nil {
		return h.encodeError(req.ModelID, req.CameraID, req.FrameMetadata.FrameID, fmt.Errorf("preprocess failed: %w", err)), nil
	}

	inferStart := time.Now()
	output, err := h.runtime.Infer(ctx, tensor)
	inferLatency := time.Since(inferStart)
	if err != nil {
		h.observer.ObserveInference(uint64(inferLatency.Nanoseconds()), 0, false)
		return h.encodeError(req.ModelID, req.CameraID, req.FrameMetadata.FrameID, fmt.Errorf("inference failed: %w", err)), nil
	}

	confidenceThreshold := h.descriptor.ConfidenceThreshold
	if override, ok := req.Config["confidence_threshold"]; ok {
		if v, ok := override.(float64); ok {
			confidenceThreshold = v
		}
	}

	applyNMS := h.descriptor.NMSIoUThreshold != nil
	var iouThreshold float64
	if applyNMS {
		iouThreshold = *h.descriptor.NMSIoUThreshold
	}

	raw := decodeDetections(output, h.descriptor)
	detections := postprocess.Process(raw, postprocess.Options{
		ConfidenceThreshold: confidenceThreshold,
		ModelWidth:          targetWidth,
		ModelHeight:         targetHeight,
		ApplyNMS:            applyNMS,
		NMSIoUThreshold:     iouThreshold,
		MaxDetections:       constants.MaxDetectionsPerResponse,
	})
	h.observer.ObserveInference(uint64(inferLatency.Nanoseconds()), len(detections), true)

	resp := &wire.InferenceResponse{
		ModelID:    req.ModelID,
		CameraID:   req.CameraID,
		FrameID:    req.FrameMetadata.FrameID,
		Detections: detections,
		Metadata: map[string]any{
			"inference_time_ms": float64(inferLatency.Microseconds()) / 1000.0,
			"device":             string(h.device),
		},
	}
	return wire.EncodeResponse(resp)
}

// decodeDetections interprets a runtime's flat [N, detectionStride] output
// tensor as raw detections, looking up class names from the descriptor's
// optional sidecar.
func decodeDetections(output *interfaces.Tensor, d *descriptor.ModelDescriptor) []postprocess.RawDetection {
	if output == nil || len(output.Shape) != 2 || output.Shape[1] != detectionStride {
		return nil
	}
	n := output.Shape[0]
	raw := make([]postprocess.RawDetection, 0, n)
	for i := 0; i < n; i++ {
		base := i * detectionStride
		classID := int(output.Data[base])
		raw = append(raw, postprocess.RawDetection{
			ClassID:    classID,
			ClassName:  d.ClassName(classID),
			Confidence: float64(output.Data[base+1]),
			BBox: [4]float64{
				float64(output.Data[base+2]),
				float64(output.Data[base+3]),
				float64(output.Data[base+4]),
				float64(output.Data[base+5]),
			},
		})
	}
	return raw
}

func (h *Handler) encodeError(modelID, cameraID string, frameID int64, err error) []byte {
	h.logger.Warn("request failed", "error", err.Error())
	resp := wire.ErrorResponse(modelID, cameraID, frameID, err.Error())
	b, encErr := wire.EncodeResponse(resp)
	if encErr != nil {
		// EncodeResponse on a well-formed InferenceResponse cannot
		// realistically fail; fall back to a minimal static payload rather
		// than propagate an encoding error through an error path.
		return []byte(`{"model_id":"","camera_id":"","frame_id":0,"detections":[],"error":"internal encoding error"}`)
	}
	return b
}
