package tokenizerx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_MissingTokenizerFile(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
}

func TestSanitizeTokenizerJSON_RewritesLookahead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokenizer.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"pattern":"\\s+(?!\\S)"}`), 0o644))

	sanitized, err := sanitizeTokenizerJSON(path)
	require.NoError(t, err)

	out, err := os.ReadFile(sanitized)
	require.NoError(t, err)
	require.NotContains(t, string(out), "(?!")
}

func TestPool_GetErrorsWithoutCaching(t *testing.T) {
	p := NewPool()
	dir := t.TempDir()
	_, err := p.Get(dir)
	require.Error(t, err)
	require.Empty(t, p.byDir)
}
