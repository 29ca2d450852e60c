package decoder

import (
	"encoding/binary"
	"math"
	"testing"
)

func encodeFloat32sForTest(xs []float32) []byte {
	buf := make([]byte, len(xs)*4)
	for i, v := range xs {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// fakeNNSI drives the decode loop's nn-si calls without a wasm runtime: it
// always reports seq_len 1 (last-position logits only) and dominates the
// argmax at whatever token index the test schedules for the Nth compute.
type fakeNNSI struct {
	vocab       int
	tokens      []int64
	computeFail bool
	computes    int
	bound       []boundInput
}

type boundInput struct {
	name string
	dims []int64
	data []byte
}

func (f *fakeNNSI) SetInput(name string, dims []int64, elemType ElementType, data []byte) bool {
	f.bound = append(f.bound, boundInput{name, append([]int64(nil), dims...), append([]byte(nil), data...)})
	return true
}

func (f *fakeNNSI) Compute() bool {
	return !f.computeFail
}

func (f *fakeNNSI) Output(name string) ([]int64, []byte, bool) {
	if name != "logits" {
		return nil, nil, false
	}
	idx := f.computes
	if idx >= len(f.tokens) {
		idx = len(f.tokens) - 1
	}
	logits := make([]float32, f.vocab)
	logits[f.tokens[idx]] = 100
	f.computes++
	return []int64{1, 1, int64(f.vocab)}, encodeFloat32sForTest(logits), true
}

type fakeCallback struct {
	received  []uint32
	stopAfter int
}

func (f *fakeCallback) Generate(sessionID uint64, token uint32) uint32 {
	f.received = append(f.received, token)
	if f.stopAfter > 0 && len(f.received) >= f.stopAfter {
		return 0
	}
	return 1
}

const eotToken int64 = 128009 // Llama-3 end-of-turn token, within the special range

func TestTextGenerator_EmitsTokensUntilEOS(t *testing.T) {
	nn := &fakeNNSI{vocab: 128256, tokens: []int64{10, 20, eotToken}}
	cb := &fakeCallback{}
	g := NewTextGenerator(1, 10, []int64{1, 2, 3}, nn, cb)

	final := g.Run()

	if final != StateEOS {
		t.Fatalf("state = %v, want StateEOS", final)
	}
	if final.StopStatus() != 2 {
		t.Fatalf("StopStatus() = %d, want 2", final.StopStatus())
	}
	// The EOS token itself must never reach the callback (spec: "If next in
	// the special range, break" happens before the generate() call).
	if got := cb.received; len(got) != 2 || got[0] != 10 || got[1] != 20 {
		t.Fatalf("received = %v, want [10 20]", got)
	}
}

func TestTextGenerator_StopsAtMaxToken(t *testing.T) {
	nn := &fakeNNSI{vocab: 100, tokens: []int64{10, 20, 30, 40}}
	cb := &fakeCallback{}
	g := NewTextGenerator(1, 2, nil, nn, cb)

	final := g.Run()

	if final != StateMaxToken {
		t.Fatalf("state = %v, want StateMaxToken", final)
	}
	if len(cb.received) != 2 {
		t.Fatalf("received %d tokens, want 2", len(cb.received))
	}
}

func TestTextGenerator_HostStopHaltsLoop(t *testing.T) {
	nn := &fakeNNSI{vocab: 100, tokens: []int64{10, 20, 30}}
	cb := &fakeCallback{stopAfter: 1}
	g := NewTextGenerator(7, 10, []int64{5}, nn, cb)

	final := g.Run()

	if final != StateHostStop {
		t.Fatalf("state = %v, want StateHostStop", final)
	}
	if final.StopStatus() != 4 {
		t.Fatalf("StopStatus() = %d, want 4", final.StopStatus())
	}
	if len(cb.received) != 1 {
		t.Fatalf("received %d tokens, want 1", len(cb.received))
	}
}

func TestTextGenerator_EmptyPromptRunsOneIterationWithoutPanic(t *testing.T) {
	nn := &fakeNNSI{vocab: 128256, tokens: []int64{eotToken}}
	cb := &fakeCallback{}
	g := NewTextGenerator(1, 10, nil, nn, cb)

	final := g.Run()

	if final != StateEOS {
		t.Fatalf("state = %v, want StateEOS", final)
	}
	if len(cb.received) != 0 {
		t.Fatalf("received %v, want no tokens for an immediate EOS", cb.received)
	}
}

func TestTextGenerator_PositionAndAttentionInvariants(t *testing.T) {
	nn := &fakeNNSI{vocab: 128256, tokens: []int64{10, eotToken}}
	cb := &fakeCallback{}
	g := NewTextGenerator(1, 10, []int64{7, eotToken - 1}, nn, cb)

	g.Run()

	for i, pos := range g.positionIDs {
		if pos != int64(i) {
			t.Fatalf("positionIDs[%d] = %d, want %d", i, pos, i)
		}
	}
	for i, id := range g.inputIDs {
		want := int64(1)
		if isSpecialToken(id) {
			want = 0
		}
		if g.attentionMask[i] != want {
			t.Fatalf("attentionMask[%d] = %d for token %d, want %d", i, g.attentionMask[i], id, want)
		}
	}
}

func TestTextGenerator_ComputeFailureHaltsAsHostStop(t *testing.T) {
	nn := &fakeNNSI{vocab: 100, tokens: []int64{10}, computeFail: true}
	cb := &fakeCallback{}
	g := NewTextGenerator(1, 10, []int64{1}, nn, cb)

	final := g.Run()

	if final != StateHostStop {
		t.Fatalf("state = %v, want StateHostStop on a failed compute", final)
	}
}

func TestSoftmaxInPlace_SumsToOneAndNonNegative(t *testing.T) {
	xs := []float32{1, 2, 3, -5, 0.5}
	softmaxInPlace(xs)

	var sum float64
	for _, v := range xs {
		if v < 0 {
			t.Fatalf("softmax produced a negative probability: %v", xs)
		}
		sum += float64(v)
	}
	if sum < 1-1e-5 || sum > 1+1e-5 {
		t.Fatalf("softmax sum = %v, want ~1", sum)
	}
}

func TestArgmaxStable_NaNSortsLowest(t *testing.T) {
	xs := []float32{float32(math.NaN()), 0.1, float32(math.NaN())}
	if idx := argmaxStable(xs); idx != 1 {
		t.Fatalf("argmaxStable = %d, want 1 (the only non-NaN entry)", idx)
	}
}
