package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"INDEX_PATH", "CHROMA_URL", "OLLAMA_URL", "RAG_PORT", "RAG_LOG_LEVEL", "RAG_LLM_ENABLED"} {
		t.Setenv(key, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "paragraph", cfg.Chunker.Strategy)
	assert.Equal(t, 512, cfg.Chunker.ChunkSize)
	assert.Equal(t, 50, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, "ollama", cfg.Embedder.Type)
	assert.Equal(t, "badger", cfg.VectorStore.Type)
	assert.Equal(t, "engineering_docs", cfg.VectorStore.Collection)
	assert.Equal(t, 100, cfg.VectorStore.BatchSize)
	assert.False(t, cfg.LLM.Enabled)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.7, cfg.Retrieval.SimilarityThreshold, 1e-9)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		clearEnv(t)
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.NoError(t, err)

		assert.Equal(t, Default().VectorStore, cfg.VectorStore)
		assert.Equal(t, "", cfg.Embedder.APIKeyEnv)
		assert.Equal(t, "OPENAI_API_KEY", cfg.LLM.APIKeyEnv)
	})

	t.Run("yaml overrides defaults", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
data_dir: docs
chunker:
  strategy: recursive
  chunk_size: 256
vector_store:
  type: memory
retrieval:
  top_k: 3
  similarity_threshold: 0.5
`), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "docs", cfg.DataDir)
		assert.Equal(t, "recursive", cfg.Chunker.Strategy)
		assert.Equal(t, 256, cfg.Chunker.ChunkSize)
		assert.Equal(t, 50, cfg.Chunker.ChunkOverlap)
		assert.Equal(t, "memory", cfg.VectorStore.Type)
		assert.Equal(t, "engineering_docs", cfg.VectorStore.Collection)
		assert.Equal(t, 3, cfg.Retrieval.TopK)
		assert.InDelta(t, 0.5, cfg.Retrieval.SimilarityThreshold, 1e-9)
	})

	t.Run("environment overrides yaml", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("INDEX_PATH", "/srv/docs")
		t.Setenv("CHROMA_URL", "http://chroma:8000")
		t.Setenv("OLLAMA_URL", "http://ollama:11434")
		t.Setenv("RAG_PORT", "9090")
		t.Setenv("RAG_LOG_LEVEL", "debug")

		cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "/srv/docs", cfg.DataDir)
		assert.Equal(t, "http://chroma:8000", cfg.VectorStore.URL)
		assert.Equal(t, "http://ollama:11434", cfg.Embedder.BaseURL)
		assert.Equal(t, "", cfg.LLM.BaseURL)
		assert.Equal(t, "9090", cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Log.Level)
	})

	t.Run("invalid boolean", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RAG_LLM_ENABLED", "maybe")

		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("chunker: [unclosed"), 0o644))

		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"unknown strategy", func(c *AppConfig) { c.Chunker.Strategy = "semantic" }},
		{"overlap too large", func(c *AppConfig) { c.Chunker.ChunkOverlap = c.Chunker.ChunkSize }},
		{"unknown embedder", func(c *AppConfig) { c.Embedder.Type = "cohere" }},
		{"unknown vector store", func(c *AppConfig) { c.VectorStore.Type = "pinecone" }},
		{"empty collection", func(c *AppConfig) { c.VectorStore.Collection = " " }},
		{"zero top_k", func(c *AppConfig) { c.Retrieval.TopK = 0 }},
		{"threshold out of range", func(c *AppConfig) { c.Retrieval.SimilarityThreshold = 1.5 }},
		{"unknown log level", func(c *AppConfig) { c.Log.Level = "verbose" }},
		{"negative llm timeout", func(c *AppConfig) { c.LLM.TimeoutSecs = -1 }},
		{"enabled llm without key", func(c *AppConfig) {
			c.LLM.Enabled = true
			c.LLM.APIKeyEnv = "RAG_TEST_UNSET_KEY"
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("enabled llm with key", func(t *testing.T) {
		t.Setenv("RAG_TEST_KEY", "secret")
		cfg := Default()
		cfg.LLM.Enabled = true
		cfg.LLM.APIKeyEnv = "RAG_TEST_KEY"
		assert.NoError(t, cfg.Validate())
	})
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Retrieval.TopK = 9

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, loaded.Retrieval.TopK)
}
