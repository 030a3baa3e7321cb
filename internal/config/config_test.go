package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadFromFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "helix.yaml")
	yaml := "hnsw:\n  m: 32\n  ef_search: 50\nppr:\n  default_max_depth: 5\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg := DefaultConfig()
	require.NoError(t, LoadFromFile(path, cfg))

	require.Equal(t, 32, cfg.HNSW.M)
	require.Equal(t, 50, cfg.HNSW.EfSearch)
	require.Equal(t, 5, cfg.PPR.DefaultMaxDepth)
	// Untouched by the file, so it keeps the default.
	require.Equal(t, 200, cfg.HNSW.EfConstruction)
}

func TestLoadLayersFileBeneathEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "helix.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hnsw:\n  m: 32\n"), 0o644))

	t.Setenv("HELIX_HNSW_M", "64")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 64, cfg.HNSW.M)
}

func TestLoadWithEmptyPathSkipsFileLayer(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, DefaultConfig().HNSW.M, cfg.HNSW.M)
}

func TestLoadFromFileRejectsMissingFile(t *testing.T) {
	cfg := DefaultConfig()
	err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"), cfg)
	require.Error(t, err)
}
