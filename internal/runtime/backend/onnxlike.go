package backend

import (
	"context"
	"fmt"
	"os"

	"github.com/vasplatform/modelcontainer/internal/interfaces"
)

// ONNXLike models a graph-execution runtime: Load/Infer report failure via a
// returned status rather than an exception-shaped error, but implements the
// same interfaces.ModelRuntime capability the handler depends on.
type ONNXLike struct {
	weightsPath string
	device      interfaces.Device
	grid        GridDetector
	status      onnxStatus
}

type onnxStatus struct {
	ok  bool
	msg string
}

func okStatus() onnxStatus       { return onnxStatus{ok: true} }
func failStatus(msg string) onnxStatus { return onnxStatus{ok: false, msg: msg} }

func (s onnxStatus) err(op string) error {
	if s.ok {
		return nil
	}
	return fmt.Errorf("onnxlike: %s: %s", op, s.msg)
}

// NewONNXLike constructs an unloaded runtime.
func NewONNXLike() *ONNXLike {
	return &ONNXLike{status: okStatus()}
}

func (o *ONNXLike) Load(ctx context.Context, weightsPath string, device interfaces.Device) error {
	info, statErr := os.Stat(weightsPath)
	if statErr != nil {
		o.status = failStatus(statErr.Error())
		return o.status.err("load")
	}
	if info.IsDir() {
		o.status = failStatus(fmt.Sprintf("weights path %q is a directory", weightsPath))
		return o.status.err("load")
	}
	o.weightsPath = weightsPath
	o.device = device
	o.grid = GridDetector{Seed: fnvSeed(weightsPath)}
	o.status = okStatus()
	return nil
}

func (o *ONNXLike) Infer(ctx context.Context, input *interfaces.Tensor) (*interfaces.Tensor, error) {
	if !o.status.ok {
		return nil, o.status.err("infer")
	}
	if o.weightsPath == "" {
		o.status = failStatus("infer before load")
		return nil, o.status.err("infer")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	out, err := o.grid.Detect(input)
	if err != nil {
		o.status = failStatus(err.Error())
		return nil, o.status.err("infer")
	}
	return out, nil
}

func (o *ONNXLike) Close() error {
	o.weightsPath = ""
	o.status = okStatus()
	return nil
}

var _ interfaces.ModelRuntime = (*ONNXLike)(nil)
