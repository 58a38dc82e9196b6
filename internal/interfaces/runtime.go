// Package interfaces provides internal interface definitions for the model
// container. These are separate from the root package's exported types to
// avoid circular imports between the root package and the internal packages
// that implement each pipeline stage.
package interfaces

import "context"

// ModelRuntime is the capability every model runtime family (pytorch-like,
// onnx-like) must implement: load weights once, then run forward passes on
// prepared tensors. The handler depends on this single capability and is
// agnostic to which concrete runtime backs it (selected once at startup).
type ModelRuntime interface {
	// Load resolves weights onto the selected device. Called exactly once,
	// at container startup.
	Load(ctx context.Context, weightsPath string, device Device) error

	// Infer runs one forward pass on a prepared input tensor and returns the
	// raw, model-family-specific output. Callers are expected to serialize
	// access externally if the concrete runtime is not thread-safe for
	// parallel forward passes (see runtime.Runtime).
	Infer(ctx context.Context, input *Tensor) (*Tensor, error)

	// Close releases device-resident memory. Called once at shutdown.
	Close() error
}

// Device identifies where a model's weights are resident.
type Device string

const (
	DeviceCPU         Device = "cpu"
	DeviceAccelerator Device = "cuda"
)

// Tensor is a minimal, framework-agnostic tensor: a flat float32 buffer plus
// its shape. Preprocessing produces one, inference consumes and produces
// them, post-processing reads the output one.
type Tensor struct {
	Data  []float32
	Shape []int
}

// FrameSource reads one frame's bytes from wherever the video kernel placed
// them and hands back a private, container-owned copy. Implementations must
// never retain a reference to the underlying region past the call.
type FrameSource interface {
	ReadFrame(reference string, meta FrameMetadata) ([]byte, error)
}

// FrameMetadata describes the bytes a FrameSource is asked to read. It
// mirrors the wire-level frame_metadata object.
type FrameMetadata struct {
	FrameID   int64
	Width     int
	Height    int
	Format    string
	Timestamp float64
}

// Logger is the narrow logging capability internal packages depend on, kept
// distinct from *logging.Logger so a package under test can supply a stub.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Observer collects per-request metrics. Implementations must be
// thread-safe: methods are called from concurrent connection handlers.
type Observer interface {
	ObserveInference(latencyNs uint64, detectionCount int, success bool)
	ObserveFrameRead(bytes uint64, latencyNs uint64, success bool)
	ObserveConnection(active int64)
}
