package nnsi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTensor_Int64RoundTrip(t *testing.T) {
	ids := []int64{1, 2, 3, 128009, -5}
	buf := EncodeInt64s(ids)
	tensor := Tensor{Dims: []int64{1, int64(len(ids))}, ElemType: ElementTypeI64, Bytes: buf}

	out, err := tensor.Int64s()
	require.NoError(t, err)
	require.Equal(t, ids, out)
}

func TestTensor_Float32RoundTrip(t *testing.T) {
	xs := []float32{0.1, -2.5, 3.0, 0}
	buf := EncodeFloat32s(xs)
	tensor := Tensor{Dims: []int64{int64(len(xs))}, ElemType: ElementTypeF32, Bytes: buf}

	out, err := tensor.Float32s()
	require.NoError(t, err)
	require.Equal(t, xs, out)
}

func TestTensor_WrongElementType(t *testing.T) {
	tensor := Tensor{ElemType: ElementTypeF32, Bytes: EncodeFloat32s([]float32{1})}
	_, err := tensor.Int64s()
	require.Error(t, err)
}

func TestTensor_MisalignedBytes(t *testing.T) {
	tensor := Tensor{ElemType: ElementTypeI64, Bytes: []byte{1, 2, 3}}
	_, err := tensor.Int64s()
	require.Error(t, err)
}
