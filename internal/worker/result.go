package worker

import (
	"encoding/binary"
	"fmt"
	"math"
)

// decodeImageResult unpacks the guest's classify_result buffer:
//
//	[u32 topLabel][f32 topProbability]
//	[u32 topkCount]
//	  { [u32 label][f32 probability] } * topkCount
//
// outputTag is carried through verbatim for callers that want to tag which
// output tensor (e.g. "squeezenet0_flatten0_reshape0" vs "logits") produced
// the score (spec §6 "Output names").
func decodeImageResult(packed []byte, outputTag string) (*ImageResult, error) {
	r := &byteReader{buf: packed}

	label, err := r.u32()
	if err != nil {
		return nil, fmt.Errorf("worker: decode image result: %w", err)
	}
	prob, err := r.f32()
	if err != nil {
		return nil, fmt.Errorf("worker: decode image result: %w", err)
	}

	topkCount, err := r.u32()
	if err != nil {
		return nil, fmt.Errorf("worker: decode image result: %w", err)
	}
	topk := make([]ScoredClass, 0, topkCount)
	for i := uint32(0); i < topkCount; i++ {
		l, err := r.u32()
		if err != nil {
			return nil, fmt.Errorf("worker: decode image result: %w", err)
		}
		p, err := r.f32()
		if err != nil {
			return nil, fmt.Errorf("worker: decode image result: %w", err)
		}
		topk = append(topk, ScoredClass{Label: l, Probability: p})
	}

	return &ImageResult{
		Label:       label,
		Probability: prob,
		TopK:        topk,
		OutputName:  outputTag,
	}, nil
}

type byteReader struct {
	buf []byte
	off int
}

func (r *byteReader) u32() (uint32, error) {
	if r.off+4 > len(r.buf) {
		return 0, fmt.Errorf("truncated buffer reading u32 at offset %d", r.off)
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *byteReader) f32() (float32, error) {
	v, err := r.u32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}
