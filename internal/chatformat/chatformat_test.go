package chatformat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRender_DefaultTemplateFramesEachTurn(t *testing.T) {
	r, err := Load(t.TempDir())
	require.NoError(t, err)

	out, err := r.Render([]ChatMessage{
		{Role: RoleSystem, Content: "be terse"},
		{Role: RoleUser, Content: "hello"},
	})
	require.NoError(t, err)
	require.True(t, strings.Contains(out, "<|start_header_id|>system<|end_header_id|>"))
	require.True(t, strings.Contains(out, "be terse"))
	require.True(t, strings.Contains(out, "<|start_header_id|>user<|end_header_id|>"))
	require.True(t, strings.HasSuffix(out, "<|start_header_id|>assistant<|end_header_id|>\n\n"))
}

func TestLoad_PrefersModelDirTemplate(t *testing.T) {
	dir := t.TempDir()
	custom := "{{ messages.0.content }}"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chat_template.jinja"), []byte(custom), 0o644))

	r, err := Load(dir)
	require.NoError(t, err)
	out, err := r.Render([]ChatMessage{{Role: RoleUser, Content: "ping"}})
	require.NoError(t, err)
	require.Equal(t, "ping", out)
}
