package callback

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scriptmaster/wasinn-gateway/internal/session"
)

func TestGenerate_RoutesDecodedTokenToSink(t *testing.T) {
	arena := session.NewArena()
	sink := session.NewSink()
	arena.Register(42, session.Config{ModelID: "llama-3-chat"}, sink)

	ch, unsub := sink.Subscribe(4)
	defer unsub()

	decode := func(modelID string, token uint32) (string, error) {
		require.Equal(t, "llama-3-chat", modelID)
		require.Equal(t, uint32(7), token)
		return "hi", nil
	}

	got := Generate(arena, decode, 42, 7)
	require.Equal(t, continueSignal, got)
	require.Equal(t, "hi", <-ch)
}

func TestGenerate_UnknownSessionStops(t *testing.T) {
	arena := session.NewArena()
	got := Generate(arena, func(string, uint32) (string, error) { return "", nil }, 99, 1)
	require.Equal(t, stopSignal, got)
}

func TestGenerate_CancelledSessionStops(t *testing.T) {
	arena := session.NewArena()
	s := arena.Register(1, session.Config{}, session.NewSink())
	s.Cancel()

	got := Generate(arena, func(string, uint32) (string, error) { return "x", nil }, 1, 3)
	require.Equal(t, stopSignal, got)
}

func TestGenerate_DecodeErrorStops(t *testing.T) {
	arena := session.NewArena()
	arena.Register(1, session.Config{}, session.NewSink())

	got := Generate(arena, func(string, uint32) (string, error) { return "", errors.New("bad token") }, 1, 3)
	require.Equal(t, stopSignal, got)
}
