package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pbjrag/internal/config"
)

func TestNewEngine(t *testing.T) {
	e, err := NewEngine(Config{Provider: "hash", Dimensions: 32})
	require.NoError(t, err)
	assert.Equal(t, "hash:32", e.Name())
	assert.Equal(t, 32, e.Dimensions())

	e, err = NewEngine(Config{Provider: "ollama", OllamaModel: "nomic-embed-text"})
	require.NoError(t, err)
	assert.Equal(t, "ollama:nomic-embed-text", e.Name())

	_, err = NewEngine(Config{Provider: "none"})
	assert.True(t, errors.Is(err, ErrDisabled))

	_, err = NewEngine(Config{Provider: "genai"})
	assert.Error(t, err, "missing API key")

	_, err = NewEngine(Config{Provider: "word2vec"})
	assert.ErrorContains(t, err, "unsupported embedding provider")
}

func TestConfigFrom(t *testing.T) {
	c := config.DefaultEmbeddingConfig()
	got := ConfigFrom(c)
	assert.Equal(t, "hash", got.Provider)
	assert.Equal(t, 768, got.Dimensions)
	assert.Equal(t, 30*time.Second, got.Timeout)

	c.Timeout = "nonsense"
	assert.Equal(t, 30*time.Second, ConfigFrom(c).Timeout)
	c.Timeout = "5s"
	assert.Equal(t, 5*time.Second, ConfigFrom(c).Timeout)
}

func TestCosineSimilarity(t *testing.T) {
	sim, err := CosineSimilarity([]float32{1, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)

	sim, err = CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-9)

	sim, err = CosineSimilarity([]float32{1, 1}, []float32{-1, -1})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, sim, 1e-9)

	sim, err = CosineSimilarity([]float32{0, 0}, []float32{1, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim, "zero vector")

	_, err = CosineSimilarity([]float32{1}, []float32{1, 2})
	assert.Error(t, err)
}

func TestFindTopK(t *testing.T) {
	corpus := [][]float32{
		{0, 1},
		{1, 0},
		{1, 2, 3}, // wrong dimension
		{1, 0},
		{1, 1},
	}
	got := FindTopK([]float32{1, 0}, corpus, 3)
	require.Len(t, got, 3)
	assert.Equal(t, 1, got[0].Index)
	assert.Equal(t, 3, got[1].Index, "ties keep corpus order")
	assert.Equal(t, 4, got[2].Index)

	assert.Len(t, FindTopK([]float32{1, 0}, corpus, 0), 4, "k<=0 defaults to 10")
}

func TestHashEngineDeterministic(t *testing.T) {
	ctx := context.Background()
	e := NewHashEngine(64)

	a, err := e.Embed(ctx, "def add_numbers(a, b): return a + b")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "def add_numbers(a, b): return a + b")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	norm := 0.0
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-5)

	empty, err := e.Embed(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 64), empty)
}

func TestHashEngineSimilarity(t *testing.T) {
	ctx := context.Background()
	e := NewHashEngine(DefaultHashDimensions)

	vecs, err := e.EmbedBatch(ctx, []string{
		"def add_numbers(a, b): return a + b",
		"def add_numbers(x, y): return x + y",
		"class HttpServer: listen socket bind",
	})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	near, err := CosineSimilarity(vecs[0], vecs[1])
	require.NoError(t, err)
	far, err := CosineSimilarity(vecs[0], vecs[2])
	require.NoError(t, err)
	assert.Greater(t, near, far)
	assert.Greater(t, near, 0.3)
}

func TestHashEngineCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHashEngine(8).Embed(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"parse", "httprequest", "snake", "case", "v2"}, tokenize("parseHTTPRequest snake_case v2"))
	assert.Empty(t, tokenize("  +-*/ "))
}
