package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Chunking.Size)
	assert.Equal(t, 200, cfg.Chunking.Overlap)
	assert.Equal(t, 1536, cfg.Embedding.Dimension)
	assert.Equal(t, int64(10<<20), cfg.App.MaxUploadBytes)
	assert.Equal(t, "hybrid", cfg.Retrieval.DefaultMode)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.ChatEnabled())
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[app]
env = "production"
port = 9090

[chunking]
size = 800
overlap = 100

[embedding]
backend = "local"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("CHUNK_OVERLAP", "150")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/rag")
	t.Setenv("CHAT_API_KEY", "sk-test")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "12")
	t.Setenv("AUTH_ENABLED", "not-a-bool")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, 800, cfg.Chunking.Size)
	assert.Equal(t, 150, cfg.Chunking.Overlap)
	assert.Equal(t, "local", cfg.Embedding.Backend)
	assert.Equal(t, "postgres://u:p@db:5432/rag", cfg.Database.URL)
	assert.Equal(t, "12s", cfg.RequestTimeout().String())
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.ChatEnabled())
	assert.False(t, cfg.Auth.Enabled)
}

func TestValidateRejectsOverlapNotSmallerThanSize(t *testing.T) {
	cfg := defaultConfig()
	cfg.Chunking.Overlap = cfg.Chunking.Size

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunking.overlap")
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := defaultConfig()
	cfg.Embedding.Backend = "gpu"
	cfg.Retrieval.HybridStrategy = "magic"
	cfg.Auth.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding.backend")
	assert.Contains(t, err.Error(), "hybrid_strategy")
	assert.Contains(t, err.Error(), "jwt_secret")
}
