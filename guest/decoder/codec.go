package decoder

import (
	"encoding/binary"
	"math"
)

func encodeInt64s(xs []int64) []byte {
	buf := make([]byte, len(xs)*8)
	for i, v := range xs {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(v))
	}
	return buf
}

func decodeFloat32sInto(dst []float32, src []byte) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
}

// softmaxInPlace is the numerically stable softmax the decode loop applies
// before sampling: subtract the max, exponentiate, divide by the sum.
func softmaxInPlace(xs []float32) {
	if len(xs) == 0 {
		return
	}
	max := xs[0]
	for _, v := range xs[1:] {
		if v > max {
			max = v
		}
	}
	var sum float64
	for i, v := range xs {
		e := math.Exp(float64(v - max))
		xs[i] = float32(e)
		sum += e
	}
	if sum == 0 {
		return
	}
	for i := range xs {
		xs[i] = float32(float64(xs[i]) / sum)
	}
}

// argmaxStable returns the index of the largest value under a total
// ordering where NaN sorts lowest, so a logits vector containing NaNs
// never panics or produces an arbitrary winner.
func argmaxStable(xs []float32) int {
	return argmaxStableRange(xs, 0, len(xs))
}

func argmaxStableRange(xs []float32, lo, hi int) int {
	best := lo
	for i := lo + 1; i < hi; i++ {
		if totalOrderLess(xs[best], xs[i]) {
			best = i
		}
	}
	return best
}

func totalOrderLess(a, b float32) bool {
	an, bn := math.IsNaN(float64(a)), math.IsNaN(float64(b))
	switch {
	case an && bn:
		return false
	case an:
		return true
	case bn:
		return false
	default:
		return a < b
	}
}
