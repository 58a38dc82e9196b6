// Package runtime implements C3: device selection, one-time weight loading,
// and a mutex-serialized forward pass over the model-family-specific
// interfaces.ModelRuntime implementations in backend/.
package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/vasplatform/modelcontainer/internal/interfaces"
)

// SelectDevice implements the §4.5 device-selection table. acceleratorPresent
// is the host-observed fact; gpuRequired and cpuFallbackAllowed come from the
// model descriptor. ok is false only for the startup-fatal case: required but
// absent.
func SelectDevice(gpuRequired, acceleratorPresent, cpuFallbackAllowed bool) (device interfaces.Device, ok bool) {
	if gpuRequired {
		if acceleratorPresent {
			return interfaces.DeviceAccelerator, true
		}
		return "", false
	}
	if acceleratorPresent {
		return interfaces.DeviceAccelerator, true
	}
	// !gpuRequired && !acceleratorPresent: CPU either way, cpuFallbackAllowed
	// only changes whether a warning is logged by the caller.
	_ = cpuFallbackAllowed
	return interfaces.DeviceCPU, true
}

// Runtime owns one loaded model and serializes forward passes behind a
// single mutex, honoring framework thread-safety requirements while letting
// preprocessing and I/O run concurrently outside the lock (§5).
type Runtime struct {
	mu     sync.Mutex
	model  interfaces.ModelRuntime
	device interfaces.Device
	loaded bool
}

// New wraps a concrete model runtime implementation. The runtime is not
// usable until Load succeeds.
func New(model interfaces.ModelRuntime) *Runtime {
	return &Runtime{model: model}
}

// Load resolves weights onto device exactly once. A second call returns an
// error; weights are resident for the container's lifetime (§4.5, invariant 7).
func (r *Runtime) Load(ctx context.Context, weightsPath string, device interfaces.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return fmt.Errorf("runtime: model already loaded")
	}
	if err := r.model.Load(ctx, weightsPath, device); err != nil {
		return err
	}
	r.device = device
	r.loaded = true
	return nil
}

// Device returns the device the model was loaded onto.
func (r *Runtime) Device() interfaces.Device {
	return r.device
}

// Infer runs one forward pass. The mutex is held only for the duration of
// the call into the concrete runtime, not across preprocessing or I/O.
func (r *Runtime) Infer(ctx context.Context, input *interfaces.Tensor) (*interfaces.Tensor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.loaded {
		return nil, fmt.Errorf("runtime: model not loaded")
	}
	return r.model.Infer(ctx, input)
}

// Close releases device-resident memory. Safe to call once at shutdown.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.loaded {
		return nil
	}
	r.loaded = false
	return r.model.Close()
}
