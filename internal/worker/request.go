// Package worker runs submitted requests under a bounded number of
// concurrent slots: for each one it instantiates a sandbox.Store for the
// target model, drives the guest through its exported entry point, and
// reports back a Result. There is no request queue; Submit blocks the
// caller until a slot is free.
package worker

import (
	"github.com/scriptmaster/wasinn-gateway/internal/session"
)

// Request is the tagged variant the HTTP layer submits: exactly one of
// Image or Text is non-nil (spec §2: requests route by payload shape, not
// by a separate endpoint per model kind).
type Request struct {
	ID string // google/uuid correlation id, assigned by httpapi

	Image *ImageRequest
	Text  *TextRequest
}

// ImageRequest classifies a single JPEG through an ImageNet-style model.
type ImageRequest struct {
	RegistryID string
	JPEGBytes  []byte
}

// TextRequest drives one autoregressive chat completion. Sink receives
// decoded tokens as the guest streams them out through the chatbot
// callback import; it is the only place the generated text appears, since
// TextResult.Completion is left empty by the current chat guest.
type TextRequest struct {
	RegistryID string
	Messages   []ChatMessage
	// MaxToken distinguishes "absent" (nil, use Config.DefaultMaxToken)
	// from an explicit value the caller supplied, including an explicit
	// 0 (spec §8 boundary: "max_token = 0 -> no iterations; terminal
	// response only").
	MaxToken *int
	Sink     *session.Sink
}

// ChatMessage mirrors the wire shape the spec's /infer text payload uses.
type ChatMessage struct {
	Role    string
	Content string
}

// Result is the tagged variant workers produce; exactly one field is set,
// matching whichever side of Request was populated.
type Result struct {
	Image *ImageResult
	Text  *TextResult
}

// ImageResult is the top classification produced by the image guest
// (spec §6 "Wire — HTTP": `{ "label": u32, "probability": f32 }`).
type ImageResult struct {
	Label       uint32
	Probability float32
	TopK        []ScoredClass
	OutputName  string
}

// ScoredClass is one entry of an ImageResult's top-k list.
type ScoredClass struct {
	Label       uint32
	Probability float32
}

// TextResult summarizes one generation. Completion carries whatever the
// guest's completion_size/completion_read exports report, which for the
// current chat guest is always empty: the generated tokens are only
// observable through TextRequest.Sink. TokenCount counts the tokens that
// passed through the chatbot callback.
type TextResult struct {
	Completion string
	TokenCount int
	StopReason string // "eos" | "max_token" | "host_stop"
}
