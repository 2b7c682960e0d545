package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides_Embedding(t *testing.T) {
	t.Run("GEMINI_API_KEY sets provider if empty", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "gem-key")
		t.Setenv("PBJ_EMBEDDING_PROVIDER", "")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "gem-key", cfg.Embedding.GenAIAPIKey)
		assert.Equal(t, "genai", cfg.Embedding.Provider)
	})

	t.Run("GEMINI_API_KEY does not override existing provider", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "gem-key")
		t.Setenv("PBJ_EMBEDDING_PROVIDER", "")

		cfg := &Config{Embedding: EmbeddingConfig{Provider: "ollama"}}
		cfg.applyEnvOverrides()

		assert.Equal(t, "gem-key", cfg.Embedding.GenAIAPIKey)
		assert.Equal(t, "ollama", cfg.Embedding.Provider)
	})

	t.Run("PBJ_EMBEDDING_PROVIDER wins", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "gem-key")
		t.Setenv("PBJ_EMBEDDING_PROVIDER", "hash")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "hash", cfg.Embedding.Provider)
	})

	t.Run("OLLAMA_HOST gains a scheme", func(t *testing.T) {
		t.Setenv("OLLAMA_HOST", "gpu-box:11434")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "http://gpu-box:11434", cfg.Embedding.OllamaEndpoint)
	})
}

func TestEnvOverrides_AnalysisAndStore(t *testing.T) {
	t.Setenv("PBJ_FIELD_DIM", "12")
	t.Setenv("PBJ_WORKERS", "3")
	t.Setenv("PBJ_STORE_PATH", "/tmp/x.db")
	t.Setenv("PBJ_INDEXING", "yes")
	t.Setenv("PBJ_DEBUG", "on")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, 12, cfg.Analysis.FieldDim)
	assert.Equal(t, 3, cfg.Analysis.Workers)
	assert.Equal(t, "/tmp/x.db", cfg.Store.DatabasePath)
	assert.True(t, cfg.Store.Enabled)
	assert.True(t, cfg.Logging.DebugMode)
}

func TestEnvOverrides_IgnoresGarbage(t *testing.T) {
	t.Setenv("PBJ_FIELD_DIM", "eight")
	t.Setenv("PBJ_INDEXING", "maybe")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, 8, cfg.Analysis.FieldDim)
	assert.False(t, cfg.Store.Enabled)
}
