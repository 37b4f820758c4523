package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/notegraph/internal/config"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewDefaultConfig(t *testing.T) {
	cfg := config.NewDefaultConfig()

	assert.Equal(t, "openai", cfg.Embeddings.Provider)
	assert.Equal(t, 100, cfg.Embeddings.BatchSize)
	assert.Equal(t, 50, cfg.VectorStore.ChunkSizeMin)
	assert.Equal(t, 1500, cfg.VectorStore.ChunkSizeMax)
	assert.Greater(t, cfg.VectorStore.SemanticLinkThreshold, cfg.VectorStore.SuggestionThreshold,
		"semantic link threshold must be tighter than suggestion threshold")
	assert.Less(t, cfg.VectorStore.SemanticLinkLimit, cfg.VectorStore.SuggestionLimit)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfigFile(t, `
notes:
  root_dir: /tmp/notes
vector_store:
  path: /tmp/notes/.vector_store
  chunk_size_min: 25
  chunk_size_max: 800
embeddings:
  provider: tei
  model: BAAI/bge-small-en-v1.5
  base_url: http://localhost:8080
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/notes", cfg.Notes.RootDir)
	assert.Equal(t, 25, cfg.VectorStore.ChunkSizeMin)
	assert.Equal(t, 800, cfg.VectorStore.ChunkSizeMax)
	assert.Equal(t, "tei", cfg.Embeddings.Provider)
	// Unset fields keep defaults.
	assert.Equal(t, 100, cfg.Embeddings.BatchSize)
	assert.Equal(t, 0.5, cfg.VectorStore.SuggestionThreshold)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfigFile(t, `
embeddings:
  model: text-embedding-3-small
`)
	t.Setenv("NOTEGRAPH_EMBEDDINGS_MODEL", "text-embedding-3-large")
	t.Setenv("NOTEGRAPH_VECTOR_STORE_CHUNK_SIZE_MAX", "900")
	t.Setenv("NOTEGRAPH_VECTOR_STORE_SEARCH_THRESHOLD", "0.45")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "text-embedding-3-large", cfg.Embeddings.Model)
	assert.Equal(t, 900, cfg.VectorStore.ChunkSizeMax)
	assert.Equal(t, 0.45, cfg.VectorStore.SearchThreshold)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.NewDefaultConfig().VectorStore.ChunkSizeMax, cfg.VectorStore.ChunkSizeMax)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{
			name:   "valid defaults",
			mutate: func(c *config.Config) {},
		},
		{
			name:    "chunk max below min",
			mutate:  func(c *config.Config) { c.VectorStore.ChunkSizeMax = 10 },
			wantErr: true,
		},
		{
			name:    "threshold out of range",
			mutate:  func(c *config.Config) { c.VectorStore.SuggestionThreshold = 1.5 },
			wantErr: true,
		},
		{
			name:    "unknown provider",
			mutate:  func(c *config.Config) { c.Embeddings.Provider = "cohere" },
			wantErr: true,
		},
		{
			name:    "missing store path",
			mutate:  func(c *config.Config) { c.VectorStore.Path = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
