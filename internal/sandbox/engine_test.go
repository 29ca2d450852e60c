package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scriptmaster/wasinn-gateway/internal/callback"
	"github.com/scriptmaster/wasinn-gateway/internal/registry"
)

func TestEngine_NewStoreWithoutGuestErrors(t *testing.T) {
	e := NewEngine(registry.New())
	defer e.Close(context.Background())

	_, err := e.NewStore(context.Background(), GuestChat, t.TempDir(), noopDecode)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no guest loaded")
}

func TestEngine_LoadGuestReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chat.wasm")
	require.NoError(t, os.WriteFile(path, []byte("\x00asm\x01\x00\x00\x00"), 0o644))

	e := NewEngine(registry.New())
	defer e.Close(context.Background())

	require.NoError(t, e.LoadGuest(GuestChat, path))
	b, ok := e.guestBytes(GuestChat)
	require.True(t, ok)
	require.NotEmpty(t, b)
}

func noopDecode(modelID string, token uint32) (string, error) {
	return "", nil
}

var _ = callback.TokenDecoder(noopDecode)
