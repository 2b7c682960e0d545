package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOllamaServer(t *testing.T, vec []float32) (*httptest.Server, func() []ollamaEmbedRequest) {
	t.Helper()
	var mu sync.Mutex
	var seen []ollamaEmbedRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/api/embeddings", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		seen = append(seen, req)
		mu.Unlock()
		if req.Prompt == "boom" {
			http.Error(w, "model not loaded", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: vec})
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, func() []ollamaEmbedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]ollamaEmbedRequest(nil), seen...)
	}
}

func TestOllamaEmbed(t *testing.T) {
	srv, seen := newOllamaServer(t, []float32{0.1, 0.2, 0.3})
	e, err := NewOllamaEngine(srv.URL+"/", "embeddinggemma", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 768, e.Dimensions(), "default before first call")

	v, err := e.Embed(context.Background(), "def f(): pass")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, v)
	assert.Equal(t, 3, e.Dimensions(), "learned from response")
	reqs := seen()
	require.Len(t, reqs, 1)
	assert.Equal(t, "embeddinggemma", reqs[0].Model)
	assert.Equal(t, "def f(): pass", reqs[0].Prompt)

	batch, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, batch, 2)
	assert.Len(t, seen(), 3)

	require.NoError(t, e.HealthCheck(context.Background()))
}

func TestOllamaErrors(t *testing.T) {
	srv, _ := newOllamaServer(t, []float32{1})
	e, err := NewOllamaEngine(srv.URL, "", 0)
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "boom")
	assert.ErrorContains(t, err, "status 500")

	_, err = e.EmbedBatch(context.Background(), []string{"ok", "boom"})
	assert.ErrorContains(t, err, "failed to embed text 1")

	empty, _ := newOllamaServer(t, nil)
	e2, err := NewOllamaEngine(empty.URL, "", 0)
	require.NoError(t, err)
	_, err = e2.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmptyEmbedding)
}

func TestOllamaUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	e, err := NewOllamaEngine(url, "", 200*time.Millisecond)
	require.NoError(t, err)
	assert.Error(t, e.HealthCheck(context.Background()))
	_, err = e.Embed(context.Background(), "x")
	assert.ErrorContains(t, err, "ollama request failed")
}
