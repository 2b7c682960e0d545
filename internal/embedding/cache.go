package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"pbjrag/internal/logging"
)

// ErrBatchSize is returned when an engine answers a batch with the wrong
// number of embeddings.
var ErrBatchSize = errors.New("embedding batch size mismatch")

// CachedEngine memoizes an engine by content hash. Concurrent misses for the
// same text share one provider call.
type CachedEngine struct {
	inner EmbeddingEngine

	mu    sync.RWMutex
	cache map[string][]float32
	group singleflight.Group

	hits, misses int
}

// NewCachedEngine wraps inner. Wrapping a CachedEngine returns it unchanged.
func NewCachedEngine(inner EmbeddingEngine) *CachedEngine {
	if c, ok := inner.(*CachedEngine); ok {
		return c
	}
	return &CachedEngine{inner: inner, cache: make(map[string][]float32)}
}

func contentKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (c *CachedEngine) lookup(key string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.cache[key]
	return v, ok
}

func (c *CachedEngine) store(key string, v []float32) {
	c.mu.Lock()
	c.cache[key] = v
	c.mu.Unlock()
}

func (c *CachedEngine) count(hit bool) {
	c.mu.Lock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()
}

// Embed returns the cached vector for text or computes it once. Callers get
// their own copy.
func (c *CachedEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	key := contentKey(text)
	if v, ok := c.lookup(key); ok {
		c.count(true)
		return slices.Clone(v), nil
	}

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		c.count(false)
		emb, err := c.inner.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		c.store(key, emb)
		return emb, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logging.EmbeddingDebug("collapsed concurrent embed for %s", key[:12])
	}
	return slices.Clone(v.([]float32)), nil
}

// EmbedBatch serves cached texts directly and sends the distinct misses to
// the inner engine in one batch.
func (c *CachedEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	pending := make(map[string][]int)
	var missTexts, missKeys []string

	for i, t := range texts {
		keys[i] = contentKey(t)
		if v, ok := c.lookup(keys[i]); ok {
			c.count(true)
			out[i] = slices.Clone(v)
			continue
		}
		if _, seen := pending[keys[i]]; !seen {
			missTexts = append(missTexts, t)
			missKeys = append(missKeys, keys[i])
		}
		pending[keys[i]] = append(pending[keys[i]], i)
	}

	if len(missTexts) > 0 {
		embs, err := c.inner.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		if len(embs) != len(missTexts) {
			return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrBatchSize, len(embs), len(missTexts))
		}
		for j, key := range missKeys {
			c.count(false)
			c.store(key, embs[j])
			for _, i := range pending[key] {
				out[i] = slices.Clone(embs[j])
			}
		}
	}
	return out, nil
}

// EmbedQuery passes through to the inner engine's query path when it has one.
// Query embeddings are not cached.
func (c *CachedEngine) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if q, ok := c.inner.(QueryEmbedder); ok {
		return q.EmbedQuery(ctx, text)
	}
	return c.Embed(ctx, text)
}

// HealthCheck passes through when the inner engine supports it.
func (c *CachedEngine) HealthCheck(ctx context.Context) error {
	if h, ok := c.inner.(HealthChecker); ok {
		return h.HealthCheck(ctx)
	}
	return nil
}

// Dimensions returns the inner engine's dimensions.
func (c *CachedEngine) Dimensions() int { return c.inner.Dimensions() }

// Name returns the inner engine's name.
func (c *CachedEngine) Name() string { return c.inner.Name() }

// Stats returns hit and miss counts.
func (c *CachedEngine) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// Len returns the number of cached vectors.
func (c *CachedEngine) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}
