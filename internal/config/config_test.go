package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithNoConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, Default().ListenAddr, cfg.ListenAddr)
	require.Equal(t, []string{"cuda", "cpu"}, cfg.ExecutionProviders)
}

func TestLoad_ConfigFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := "listen_addr: \":9090\"\nworker_pool_size: 8\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.ListenAddr)
	require.Equal(t, 8, cfg.WorkerPoolSize)
}

func TestLoad_EnvOverridesConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "listen_addr: \":9090\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("WASINN_LISTEN_ADDR", ":7070")
	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, ":7070", cfg.ListenAddr)
}

func TestLoad_RejectsInvalidMaxTokenOrdering(t *testing.T) {
	dir := t.TempDir()
	yaml := "default_max_token: 1000\nmax_token_ceiling: 512\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
}
