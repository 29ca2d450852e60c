// Package nnsi implements the host side of the NN-SI guest/host ABI
// (spec §4.2, §6): load_by_name, init_execution_context, set_input,
// compute, get_output, exposed to the sandboxed guest as a wazero host
// module named "nn-si".
package nnsi

import (
	"encoding/binary"
	"fmt"
	"math"

	onnx "github.com/yalue/onnxruntime_go"
)

// ElementType is the tensor element type in use, per spec §6: F32 and I64
// only, little-endian, IEEE 754 binary32 / two's-complement 8-byte.
type ElementType uint8

const (
	ElementTypeF32 ElementType = iota
	ElementTypeI64
)

// Tensor is a view over a byte buffer with dimensions and an element type
// (spec §3 "Tensor"). The host never materializes tensors on its own
// initiative — a Tensor always originates from bytes the guest wrote into
// its own linear memory and handed across the ABI.
type Tensor struct {
	Dims     []int64
	ElemType ElementType
	Bytes    []byte
}

// Int64s decodes Bytes as little-endian int64 values.
func (t Tensor) Int64s() ([]int64, error) {
	if t.ElemType != ElementTypeI64 {
		return nil, fmt.Errorf("nnsi: tensor is not I64")
	}
	if len(t.Bytes)%8 != 0 {
		return nil, fmt.Errorf("nnsi: I64 tensor byte length %d not a multiple of 8", len(t.Bytes))
	}
	out := make([]int64, len(t.Bytes)/8)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(t.Bytes[i*8:]))
	}
	return out, nil
}

// Float32s decodes Bytes as little-endian float32 values.
func (t Tensor) Float32s() ([]float32, error) {
	if t.ElemType != ElementTypeF32 {
		return nil, fmt.Errorf("nnsi: tensor is not F32")
	}
	if len(t.Bytes)%4 != 0 {
		return nil, fmt.Errorf("nnsi: F32 tensor byte length %d not a multiple of 4", len(t.Bytes))
	}
	out := make([]float32, len(t.Bytes)/4)
	for i := range out {
		bits := binary.LittleEndian.Uint32(t.Bytes[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}

// EncodeInt64s is the inverse of Int64s, used when building a Tensor to
// hand back to the guest via get_output.
func EncodeInt64s(xs []int64) []byte {
	buf := make([]byte, len(xs)*8)
	for i, v := range xs {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(v))
	}
	return buf
}

// EncodeFloat32s is the inverse of Float32s.
func EncodeFloat32s(xs []float32) []byte {
	buf := make([]byte, len(xs)*4)
	for i, v := range xs {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// onnxInt64Tensor wraps a Tensor's bytes into an onnxruntime_go tensor,
// adapted from the teacher's tensorFromInt64s (transformers/tensor_helpers.go).
func onnxInt64Tensor(t Tensor) (*onnx.Tensor[int64], error) {
	data, err := t.Int64s()
	if err != nil {
		return nil, err
	}
	shape := onnx.NewShape(t.Dims...)
	return onnx.NewTensor(shape, data)
}

// onnxFloat32Tensor wraps a Tensor's bytes into an onnxruntime_go tensor,
// adapted from the teacher's tensorFromFloat32s.
func onnxFloat32Tensor(t Tensor) (*onnx.Tensor[float32], error) {
	data, err := t.Float32s()
	if err != nil {
		return nil, err
	}
	shape := onnx.NewShape(t.Dims...)
	return onnx.NewTensor(shape, data)
}
