package worker

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func packTestImageResult(label uint32, prob float32, topk []ScoredClass) []byte {
	buf := make([]byte, 0, 32)
	put32 := func(v uint32) {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		buf = append(buf, b...)
	}
	putF32 := func(v float32) { put32(math.Float32bits(v)) }

	put32(label)
	putF32(prob)
	put32(uint32(len(topk)))
	for _, s := range topk {
		put32(s.Label)
		putF32(s.Probability)
	}
	return buf
}

func TestDecodeImageResult_RoundTrip(t *testing.T) {
	packed := packTestImageResult(207, 0.87, []ScoredClass{
		{Label: 207, Probability: 0.87},
		{Label: 208, Probability: 0.05},
	})

	res, err := decodeImageResult(packed, "squeezenet0_flatten0_reshape0")
	require.NoError(t, err)
	require.Equal(t, uint32(207), res.Label)
	require.InDelta(t, 0.87, res.Probability, 0.0001)
	require.Len(t, res.TopK, 2)
	require.Equal(t, uint32(208), res.TopK[1].Label)
	require.Equal(t, "squeezenet0_flatten0_reshape0", res.OutputName)
}

func TestDecodeImageResult_TruncatedBufferErrors(t *testing.T) {
	_, err := decodeImageResult([]byte{1, 2, 3}, "logits")
	require.Error(t, err)
}

func TestStopReasonFromStatus(t *testing.T) {
	require.Equal(t, "eos", stopReasonFromStatus(2))
	require.Equal(t, "max_token", stopReasonFromStatus(3))
	require.Equal(t, "host_stop", stopReasonFromStatus(4))
	require.Equal(t, "eos", stopReasonFromStatus(99))
}
