package decoder

// State is one step of the cooperative autoregressive loop. The loop only
// calls into the host during BindInputs (nn-si set_input), Compute (nn-si
// compute), SliceLogits (nn-si get_output) and Emit (the chatbot generate
// callback); every other transition is guest-local.
type State int

const (
	StateInit State = iota
	StateCheck
	StateBindInputs
	StateCompute
	StateSliceLogits
	StateSample
	StateEmit
	StateGrowBuffers
	StateEOS
	StateMaxToken
	StateHostStop
)

// Terminal reports whether s ends the loop.
func (s State) Terminal() bool {
	switch s {
	case StateEOS, StateMaxToken, StateHostStop:
		return true
	default:
		return false
	}
}

// StopStatus is the wire status infer_text returns to the host once the
// loop reaches a terminal state: 2 = end-of-sequence, 3 = max_token
// reached, 4 = the loop stopped early: either the host callback asked to
// stop, or binding inputs, compute, or reading the logits output failed.
// The status does not distinguish these cases.
// Non-terminal states have no stop status and return 0.
func (s State) StopStatus() uint32 {
	switch s {
	case StateEOS:
		return 2
	case StateMaxToken:
		return 3
	case StateHostStop:
		return 4
	default:
		return 0
	}
}

// TextGenerator drives the LLM autoregressive loop: pack
// input_ids/position_ids/attention_mask, compute, slice the last-position
// logits, sample, emit via the chatbot callback, grow the sequence, and
// repeat until end-of-sequence, max_token, or a host stop signal. Exposed
// as an explicit Step function (rather than one monolithic loop) so it can
// be driven deterministically from tests without a wasm runtime.
//
// The NN-SI in this generation does not expose a KV cache, so every
// iteration re-binds and re-feeds the full sequence; this keeps the guest
// stateless between calls and lets the host swap in a KV-aware backend
// without changing the ABI.
type TextGenerator struct {
	NNSI      NNSI
	Callback  Callback
	SessionID uint64
	MaxToken  uint32

	inputIDs      []int64
	positionIDs   []int64
	attentionMask []int64
	count         uint32
	state         State
	lastToken     int64

	// logits is allocated once it first learns vocab_size from a compute
	// pass and reused across iterations instead of reallocating per step.
	logits []float32
}

// NewTextGenerator seeds the loop from a tokenized prompt. promptIDs may be
// empty: the loop still runs one iteration, which produces end-of-sequence
// immediately on most models.
func NewTextGenerator(sessionID uint64, maxToken uint32, promptIDs []int64, nn NNSI, cb Callback) *TextGenerator {
	g := &TextGenerator{
		NNSI:      nn,
		Callback:  cb,
		SessionID: sessionID,
		MaxToken:  maxToken,
		state:     StateInit,
	}
	g.inputIDs = append([]int64(nil), promptIDs...)
	g.positionIDs = make([]int64, len(promptIDs))
	g.attentionMask = make([]int64, len(promptIDs))
	for i, id := range g.inputIDs {
		g.positionIDs[i] = int64(i)
		g.attentionMask[i] = attentionFor(id)
	}
	return g
}

// State reports the generator's current state.
func (g *TextGenerator) State() State { return g.state }

// Run drives Step until a terminal state is reached and returns it.
func (g *TextGenerator) Run() State {
	for !g.state.Terminal() {
		g.Step()
	}
	return g.state
}

// Step advances the loop by exactly one state transition.
func (g *TextGenerator) Step() State {
	switch g.state {
	case StateInit:
		g.state = StateCheck
	case StateCheck:
		// MaxToken is always a host-resolved, concrete cap (spec §8: "max_token
		// = 0 -> no iterations; terminal response only") — there is no
		// "unbounded" sentinel value to special-case here.
		if g.count >= g.MaxToken {
			g.state = StateMaxToken
			break
		}
		g.state = StateBindInputs
	case StateBindInputs:
		if !g.bindInputs() {
			g.state = StateHostStop
			break
		}
		g.state = StateCompute
	case StateCompute:
		if !g.NNSI.Compute() {
			g.state = StateHostStop
			break
		}
		g.state = StateSliceLogits
	case StateSliceLogits:
		if !g.sliceLogits() {
			g.state = StateHostStop
			break
		}
		g.state = StateSample
	case StateSample:
		g.lastToken = int64(argmaxStable(g.logits))
		if isSpecialToken(g.lastToken) {
			g.state = StateEOS
			break
		}
		g.state = StateEmit
	case StateEmit:
		if g.Callback.Generate(g.SessionID, uint32(g.lastToken)) == 0 {
			g.state = StateHostStop
			break
		}
		g.state = StateGrowBuffers
	case StateGrowBuffers:
		g.growBuffers()
		g.state = StateCheck
	}
	return g.state
}

func (g *TextGenerator) dims() []int64 {
	return []int64{1, int64(len(g.inputIDs))}
}

func (g *TextGenerator) bindInputs() bool {
	d := g.dims()
	if !g.NNSI.SetInput("input_ids", d, ElementTypeI64, encodeInt64s(g.inputIDs)) {
		return false
	}
	if !g.NNSI.SetInput("position_ids", d, ElementTypeI64, encodeInt64s(g.positionIDs)) {
		return false
	}
	if !g.NNSI.SetInput("attention_mask", d, ElementTypeI64, encodeInt64s(g.attentionMask)) {
		return false
	}
	return true
}

func (g *TextGenerator) sliceLogits() bool {
	dims, data, ok := g.NNSI.Output("logits")
	if !ok || len(dims) != 3 {
		return false
	}
	seqLen := int(dims[1])
	vocabSize := int(dims[2])
	if seqLen == 0 || vocabSize == 0 {
		return false
	}
	start := (seqLen - 1) * vocabSize * 4
	end := seqLen * vocabSize * 4
	if start < 0 || end > len(data) {
		return false
	}
	if cap(g.logits) < vocabSize {
		g.logits = make([]float32, vocabSize)
	}
	g.logits = g.logits[:vocabSize]
	decodeFloat32sInto(g.logits, data[start:end])
	softmaxInPlace(g.logits)
	return true
}

func (g *TextGenerator) growBuffers() {
	g.inputIDs = append(g.inputIDs, g.lastToken)
	g.positionIDs = append(g.positionIDs, int64(len(g.positionIDs)))
	g.attentionMask = append(g.attentionMask, attentionFor(g.lastToken))
	g.count++
}
