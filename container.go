package modelcontainer

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/vasplatform/modelcontainer/internal/constants"
	"github.com/vasplatform/modelcontainer/internal/descriptor"
	"github.com/vasplatform/modelcontainer/internal/discovery"
	"github.com/vasplatform/modelcontainer/internal/frame"
	"github.com/vasplatform/modelcontainer/internal/handler"
	"github.com/vasplatform/modelcontainer/internal/interfaces"
	"github.com/vasplatform/modelcontainer/internal/ipc"
	"github.com/vasplatform/modelcontainer/internal/logging"
	"github.com/vasplatform/modelcontainer/internal/runtime"
	"github.com/vasplatform/modelcontainer/internal/runtime/accelerator"
	"github.com/vasplatform/modelcontainer/internal/runtime/backend"
)

// State is the container's lifecycle state. Transitions are strictly
// forward-only (§4.8).
type State string

const (
	StateInit        State = "init"
	StateDiscovering State = "discovering"
	StateLoading     State = "loading"
	StateServing     State = "serving"
	StateDraining    State = "draining"
	StateStopped     State = "stopped"
)

var forwardTransitions = map[State]State{
	StateInit:        StateDiscovering,
	StateDiscovering: StateLoading,
	StateLoading:     StateServing,
	StateServing:     StateDraining,
	StateDraining:    StateStopped,
}

// Config configures one container process: which model to serve, where to
// find it, and where to listen.
type Config struct {
	ModelsRoot string
	SocketDir  string
	ModelID    string // which discovered model this process serves
	DrainGrace time.Duration
}

// Container drives the full process lifecycle: discovery (C7) -> load (C3)
// -> serve (C5) -> drain on signal (§4.8).
type Container struct {
	config Config
	logger *logging.Logger
	metrics *Metrics

	mu    sync.Mutex
	state State

	descriptor *descriptor.ModelDescriptor
	runtime    *runtime.Runtime
	server     *ipc.Server
}

// New creates a container in the init state.
func New(config Config, logger *logging.Logger) *Container {
	if logger == nil {
		logger = logging.Default()
	}
	return &Container{
		config:  config,
		logger:  logger,
		metrics: NewMetrics(),
		state:   StateInit,
	}
}

// State returns the container's current lifecycle state.
func (c *Container) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Metrics returns the container's metrics for status reporting.
func (c *Container) Metrics() *Metrics {
	return c.metrics
}

func (c *Container) transition(next State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	want, ok := forwardTransitions[c.state]
	if !ok || want != next {
		return fmt.Errorf("container: illegal transition %s -> %s", c.state, next)
	}
	c.state = next
	return nil
}

// Start runs discovery, loads this process's model, and serves until ctx is
// canceled, at which point it drains and returns. Start returns a non-nil
// error when the configured model is not among the available discovered
// models, when gpu_required is set and no accelerator is present (§7 kind 6,
// §8 invariant 8), when the model_type has no runtime, or when loading the
// weights or binding the socket fails.
func (c *Container) Start(ctx context.Context) error {
	if err := c.transition(StateDiscovering); err != nil {
		return err
	}
	registry := discovery.Scan(c.config.ModelsRoot)
	for dir, reason := range registry.Unavailable {
		c.logger.Warn("model unavailable", "dir", dir, "reason", reason)
	}

	d, ok := registry.Available[c.config.ModelID]
	if !ok {
		return NewError("discover", ErrCodeDescriptor, fmt.Sprintf("model %q not found or invalid under %s", c.config.ModelID, c.config.ModelsRoot))
	}
	c.descriptor = d

	if err := c.transition(StateLoading); err != nil {
		return err
	}

	acceleratorPresent := accelerator.Present()
	device, ok := runtime.SelectDevice(d.GPURequired, acceleratorPresent, d.CPUFallbackAllowed)
	if !ok {
		return NewError("select_device", ErrCodeResource, fmt.Sprintf("model %q requires an accelerator but none is present", d.ModelID))
	}
	if device == interfaces.DeviceCPU && !acceleratorPresent && d.CPUFallbackAllowed {
		c.logger.Warn("no accelerator present, falling back to cpu", "model", d.ModelID)
	}

	model := newRuntimeForModelType(d.ModelType)
	if model == nil {
		return NewError("select_runtime", ErrCodeDescriptor, fmt.Sprintf("unknown model_type %q", d.ModelType))
	}
	rt := runtime.New(model)
	if err := rt.Load(ctx, d.ModelWeights, device); err != nil {
		return WrapError("load_model", ErrCodeResource, err)
	}
	c.runtime = rt
	c.logger.Info("model loaded", "model", d.ModelID, "device", device)

	if err := c.transition(StateServing); err != nil {
		return err
	}

	frameReader := frame.NewReader(c.logger)
	h := handler.New(d, rt, frameReader, c.metrics, c.logger, device)

	sockPath := filepath.Join(c.config.SocketDir, fmt.Sprintf("vas_model_%s.sock", d.ModelID))
	server := ipc.NewServer(sockPath, h, c.logger, c.metrics)
	if err := server.Listen(); err != nil {
		return WrapError("listen", ErrCodeResource, err)
	}
	c.server = server
	c.logger.Info("serving", "socket", sockPath)

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(ctx) }()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			c.logger.Error("serve loop exited", "error", err.Error())
		}
	}

	return c.drain()
}

func (c *Container) drain() error {
	if err := c.transition(StateDraining); err != nil {
		return err
	}
	c.logger.Info("draining", "grace", c.config.DrainGrace)

	grace := c.config.DrainGrace
	if grace <= 0 {
		grace = constants.DrainGracePeriod
	}
	if c.server != nil {
		if err := c.server.Shutdown(grace); err != nil {
			c.logger.Warn("shutdown error", "error", err.Error())
		}
	}
	if c.runtime != nil {
		if err := c.runtime.Close(); err != nil {
			c.logger.Warn("runtime close error", "error", err.Error())
		}
	}
	c.metrics.Stop()

	return c.transition(StateStopped)
}

func newRuntimeForModelType(modelType string) interfaces.ModelRuntime {
	switch modelType {
	case "pytorch-like":
		return backend.NewPyTorchLike()
	case "onnx-like":
		return backend.NewONNXLike()
	default:
		return nil
	}
}
