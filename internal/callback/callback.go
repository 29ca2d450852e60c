// Package callback implements the "chatbot" host module the text-generation
// guest imports to stream decoded tokens back out through the host, one
// token-callback at a time (spec §4.3 "Token callback import").
package callback

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/scriptmaster/wasinn-gateway/internal/session"
)

// HostModuleName is the wazero host module name the guest imports
// generate() from.
const HostModuleName = "chatbot"

const (
	continueSignal uint32 = 1
	stopSignal     uint32 = 0
)

// TokenDecoder turns a raw token id plus the owning session's model id into
// text. The worker supplies this from its tokenizerx.Pool so callback stays
// independent of any one tokenizer implementation.
type TokenDecoder func(modelID string, token uint32) (string, error)

// Generate implements the generate(session_id, token) -> u32 semantics
// without any wasm plumbing, so it can be exercised directly by tests.
// arena resolves session_id to the broadcast Sink; decode renders the
// token to text before it is broadcast. Returning 0 tells the guest to
// stop generating (spec §4.3: "If the session is absent or cancelled,
// return 0").
func Generate(arena *session.Arena, decode TokenDecoder, sessionID uint64, token uint32) uint32 {
	s, ok := arena.Lookup(sessionID)
	if !ok {
		return stopSignal
	}
	if s.Cancelled() {
		return stopSignal
	}
	text, err := decode(s.Config.ModelID, token)
	if err != nil {
		return stopSignal
	}
	if s.Sink != nil {
		s.Sink.Broadcast(text)
	}
	return continueSignal
}

// Link registers generate(session_id, token) -> u32 against builder,
// delegating to Generate for every call.
func Link(ctx context.Context, builder wazero.HostModuleBuilder, arena *session.Arena, decode TokenDecoder) error {
	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, sessionID uint64, token uint32) uint32 {
			return Generate(arena, decode, sessionID, token)
		}).
		Export("generate")

	_, err := builder.Instantiate(ctx)
	return err
}
