package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8, cfg.Analysis.FieldDim)
	assert.GreaterOrEqual(t, cfg.Analysis.Workers, 2)
	assert.LessOrEqual(t, cfg.Analysis.Workers, 16)
	assert.False(t, cfg.IsIndexingEnabled())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("PBJ_FIELD_DIM", "")
	t.Setenv("PBJ_WORKERS", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	if diff := cmp.Diff(DefaultConfig().Analysis, cfg.Analysis); diff != "" {
		t.Errorf("analysis defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".pbj", "config.yaml")

	cfg := DefaultConfig()
	cfg.Analysis.FieldDim = 10
	cfg.Store.Enabled = true
	cfg.Embedding.Provider = "ollama"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, loaded.Analysis.FieldDim)
	assert.True(t, loaded.Store.Enabled)
	assert.Equal(t, "ollama", loaded.Embedding.Provider)
	assert.True(t, loaded.IsIndexingEnabled())
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysis:\n  field_dim: 6\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Analysis.FieldDim)
	assert.Equal(t, "hash", cfg.Embedding.Provider)
	assert.Len(t, cfg.Weights.Entropic, 7)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysis: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"dim too small", func(c *Config) { c.Analysis.FieldDim = 2 }},
		{"no workers", func(c *Config) { c.Analysis.Workers = 0 }},
		{"bad provider", func(c *Config) { c.Embedding.Provider = "word2vec" }},
		{"genai without key", func(c *Config) { c.Embedding.Provider = "genai"; c.Embedding.GenAIAPIKey = "" }},
		{"short weights", func(c *Config) { c.Weights.Rhythmic = []float64{0.5, 0.5} }},
		{"weights not summing", func(c *Config) { c.Weights.Entropic = []float64{0.3, 0.3, 0.3, 0.3, 0, 0, 0} }},
		{"negative weight", func(c *Config) { c.Weights.Emergent = []float64{1.2, -0.2, 0, 0, 0, 0, 0} }},
		{"store without path", func(c *Config) { c.Store.Enabled = true; c.Store.DatabasePath = "" }},
		{"store zero batch", func(c *Config) { c.Store.Enabled = true; c.Store.BatchSize = 0 }},
		{"compost age too short", func(c *Config) { c.Analysis.CompostMaxAge = "1ms" }},
		{"compost age unparsable", func(c *Config) { c.Analysis.CompostMaxAge = "soon" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDurationGetters(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, time.Duration(0), cfg.GetFileTimeout())
	assert.Equal(t, 168*time.Hour, cfg.GetCompostMaxAge())
	assert.Equal(t, 30*time.Second, cfg.GetEmbeddingTimeout())

	cfg.Analysis.FileTimeout = "2s"
	cfg.Analysis.CompostMaxAge = "bogus"
	cfg.Embedding.Timeout = ""
	assert.Equal(t, 2*time.Second, cfg.GetFileTimeout())
	assert.Equal(t, 7*24*time.Hour, cfg.GetCompostMaxAge())
	assert.Equal(t, 30*time.Second, cfg.GetEmbeddingTimeout())
}

func TestLoggingSettings(t *testing.T) {
	lc := LoggingConfig{Level: "debug", Format: "json", DebugMode: true}
	s := lc.Settings()
	assert.True(t, s.DebugMode)
	assert.True(t, s.JSONFormat)
	assert.Equal(t, "debug", s.Level)
}
