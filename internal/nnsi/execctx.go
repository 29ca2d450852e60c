package nnsi

import (
	"fmt"
	"strings"

	onnx "github.com/yalue/onnxruntime_go"

	"github.com/scriptmaster/wasinn-gateway/internal/registry"
)

// ExecutionContext is a mutable handle derived from a Graph (spec §3); it
// carries input/output bindings and intermediate state for one inference
// pass. It is owned by the sandbox.Store that created it and is destroyed
// with that Store (via Resources.Release, see resources.go).
type ExecutionContext struct {
	graph  *registry.Graph
	inputs map[string]Tensor
	// last output byte/dims, kept so get_output can be called any number
	// of times after compute() without re-running the graph.
	outputs map[string]OutputTensor
}

// OutputTensor is what get_output(name) returns: raw bytes plus the
// dimensions the backend produced them with (spec §4.2).
type OutputTensor struct {
	Dims []int64
	Data []byte
}

// NewExecutionContext derives a fresh context from a Graph. Equivalent to
// spec's Graph::init_execution_context().
func NewExecutionContext(g *registry.Graph) *ExecutionContext {
	return &ExecutionContext{
		graph:  g,
		inputs: make(map[string]Tensor),
	}
}

// SetInput binds name -> Tensor (spec: "data" for images; "input_ids" |
// "position_ids" | "attention_mask" for LLMs). The host copies the bytes
// out immediately and must not retain any guest-memory reference past this
// call returning.
func (ec *ExecutionContext) SetInput(name string, t Tensor) error {
	if _, ok := ec.graph.InputInfo()[name]; !ok {
		return fmt.Errorf("nnsi: set_input: unknown input %q for graph %q", name, ec.graph.Name())
	}
	cp := make([]byte, len(t.Bytes))
	copy(cp, t.Bytes)
	ec.inputs[name] = Tensor{Dims: append([]int64(nil), t.Dims...), ElemType: t.ElemType, Bytes: cp}
	return nil
}

// Compute runs the bound inputs through the graph's ONNX session
// synchronously, returning after the backend produces all outputs
// (spec §4.2: "Synchronous; returns after the backend produces all
// outputs"). Any input the graph declares but the guest did not bind is
// filled with a zero tensor of the declared shape/dtype, mirroring the
// teacher's zeroTensorForInput fallback for optional cache-style inputs.
func (ec *ExecutionContext) Compute() error {
	session := ec.graph.Session()
	names := ec.graph.InputNames()

	values := make([]onnx.Value, len(names))
	var toDestroy []onnx.Value
	defer func() {
		for _, v := range toDestroy {
			_ = v.Destroy()
		}
	}()

	for i, name := range names {
		t, bound := ec.inputs[name]
		if !bound {
			v, err := ec.zeroTensorForInput(name)
			if err != nil {
				return fmt.Errorf("nnsi: compute: %w", err)
			}
			values[i] = v
			toDestroy = append(toDestroy, v)
			continue
		}
		v, err := toONNXValue(t)
		if err != nil {
			return fmt.Errorf("nnsi: compute: bind %q: %w", name, err)
		}
		values[i] = v
		toDestroy = append(toDestroy, v)
	}

	outNames := ec.graph.OutputNames()
	outValues := make([]onnx.Value, len(outNames))
	if err := session.Run(values, outValues); err != nil {
		return fmt.Errorf("nnsi: compute: onnx run: %w", err)
	}

	outputs := make(map[string]OutputTensor, len(outNames))
	for i, name := range outNames {
		val := outValues[i]
		if val == nil {
			continue
		}
		dims, data, err := extractOutput(val)
		_ = val.Destroy()
		if err != nil {
			return fmt.Errorf("nnsi: compute: read output %q: %w", name, err)
		}
		outputs[name] = OutputTensor{Dims: dims, Data: data}
	}
	ec.outputs = outputs
	return nil
}

// GetOutput returns the named output tensor produced by the last Compute.
func (ec *ExecutionContext) GetOutput(name string) (OutputTensor, error) {
	if ec.outputs == nil {
		return OutputTensor{}, fmt.Errorf("nnsi: get_output: compute() has not run")
	}
	out, ok := ec.outputs[name]
	if !ok {
		return OutputTensor{}, fmt.Errorf("nnsi: get_output: unknown output %q", name)
	}
	return out, nil
}

func toONNXValue(t Tensor) (onnx.Value, error) {
	switch t.ElemType {
	case ElementTypeI64:
		return onnxInt64Tensor(t)
	case ElementTypeF32:
		return onnxFloat32Tensor(t)
	default:
		return nil, fmt.Errorf("unsupported element type %v", t.ElemType)
	}
}

func extractOutput(v onnx.Value) (dims []int64, data []byte, err error) {
	switch t := v.(type) {
	case *onnx.Tensor[float32]:
		return t.GetShape(), EncodeFloat32s(t.GetData()), nil
	case *onnx.Tensor[int64]:
		return t.GetShape(), EncodeInt64s(t.GetData()), nil
	default:
		return nil, nil, fmt.Errorf("unsupported output value type %T", v)
	}
}

// zeroTensorForInput builds a zero-filled tensor of the declared shape for
// an input the guest did not bind (adapted from the teacher's
// model.go:zeroTensorForInput).
func (ec *ExecutionContext) zeroTensorForInput(name string) (onnx.Value, error) {
	info, ok := ec.graph.InputInfo()[name]
	if !ok {
		return nil, fmt.Errorf("unsupported input name %q", name)
	}
	isCache := strings.Contains(name, "past") || strings.Contains(name, "cache")
	shape := make([]int64, len(info.Dimensions))
	for i, d := range info.Dimensions {
		switch {
		case d > 0:
			shape[i] = d
		case i == 0:
			shape[i] = 1
		case isCache:
			shape[i] = 0
		default:
			shape[i] = 1
		}
	}

	switch info.DataType {
	case onnx.TensorElementDataTypeInt64:
		count := product(shape)
		return onnx.NewTensor(onnx.NewShape(shape...), make([]int64, count))
	default:
		count := product(shape)
		return onnx.NewTensor(onnx.NewShape(shape...), make([]float32, count))
	}
}

func product(shape []int64) int64 {
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}
