// Package decoder implements the guest-side inference loops that run
// inside the sandbox: ImageNet softmax+argmax and the LLM autoregressive
// decode loop. It has no dependency on wazero, ONNX, or any host package —
// everything it needs from the NN-SI and token-callback imports is
// expressed as the NNSI and Callback interfaces below, so the core logic
// can be driven deterministically from host-side tests with a fake, and
// wired to the real //go:wasmimport calls only in the wasip1 build.
package decoder

// ElementType mirrors the element type tag NN-SI's set_input/get_output
// carry alongside tensor bytes.
type ElementType uint8

const (
	ElementTypeF32 ElementType = iota
	ElementTypeI64
)

// OutputLayout resolves the image-classifier output-shape split between
// model families: SqueezeNet emits [1,1000,1,1], MobileNet emits [1001]
// with a background class at index 0 that must be skipped.
type OutputLayout uint32

const (
	LayoutFlatten1000x1x1 OutputLayout = iota
	LayoutVector1001
)

// NNSI is the subset of the "nn-si" host import surface the decode loops
// drive, already bound to one ExecutionContext. Output hides the
// get_output_size/get_output_read two-call protocol behind a single call
// so the loop logic stays ABI-agnostic.
type NNSI interface {
	SetInput(name string, dims []int64, elemType ElementType, data []byte) bool
	Compute() bool
	Output(name string) (dims []int64, data []byte, ok bool)
}

// Callback is the "chatbot" host import: generate(session_id, token) ->
// continue(1)/stop(0).
type Callback interface {
	Generate(sessionID uint64, token uint32) uint32
}

// Special-token range treated both as end-of-sequence candidates and as
// zero-attention positions.
const (
	eosRangeLo int64 = 128000
	eosRangeHi int64 = 128255
)

func isSpecialToken(id int64) bool {
	return id >= eosRangeLo && id <= eosRangeHi
}

func attentionFor(id int64) int64 {
	if isSpecialToken(id) {
		return 0
	}
	return 1
}
