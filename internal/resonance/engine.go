// Package resonance scores how strongly two fragments resonate: their shared
// quality weighted by the similarity of their content.
package resonance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"pbjrag/internal/blessing"
	"pbjrag/internal/embedding"
	"pbjrag/internal/logging"
	"pbjrag/internal/types"
)

// ErrNoEmbedder is returned by embedding-based operations on an engine built
// without an embedder.
var ErrNoEmbedder = errors.New("resonance engine has no embedder")

const (
	defaultBatchSize = 32
	maxInflight      = 4
)

// Match is one corpus member that resonates with the target.
type Match struct {
	Fragment   types.Fragment `json:"fragment"`
	Resonance  float64        `json:"resonance"`
	Similarity float64        `json:"similarity"`
}

// Engine computes pairwise resonance. Embeddings are memoized by content.
type Engine struct {
	embedder  *embedding.CachedEngine
	batchSize int
}

// Option configures an Engine.
type Option func(*Engine)

// WithBatchSize sets how many texts go to the embedder per call.
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// New returns an engine. A nil embedder leaves only the field-vector
// operations available.
func New(embedder embedding.EmbeddingEngine, opts ...Option) *Engine {
	e := &Engine{batchSize: defaultBatchSize}
	if embedder != nil {
		e.embedder = embedding.NewCachedEngine(embedder)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Weight is the mean EPC of the pair.
func Weight(a, b types.Fragment) float64 {
	return (a.Blessing.EPC + b.Blessing.EPC) / 2
}

// Resonance is Weight(a, b) times the cosine similarity of the two contents'
// embeddings. It is symmetric.
func (e *Engine) Resonance(ctx context.Context, a, b types.Fragment) (float64, error) {
	if e.embedder == nil {
		return 0, ErrNoEmbedder
	}
	va, err := e.embedder.Embed(ctx, a.Chunk.Content)
	if err != nil {
		return 0, fmt.Errorf("embed %s: %w", a.ID(), err)
	}
	vb, err := e.embedder.Embed(ctx, b.Chunk.Content)
	if err != nil {
		return 0, fmt.Errorf("embed %s: %w", b.ID(), err)
	}
	sim, err := embedding.CosineSimilarity(va, vb)
	if err != nil {
		return 0, err
	}
	return blessing.Quantize(Weight(a, b) * sim), nil
}

// FindResonant returns corpus members whose resonance with target is at
// least threshold, sorted by resonance descending and ID ascending. Members
// sharing the target's ID are skipped.
func (e *Engine) FindResonant(ctx context.Context, target types.Fragment, corpus []types.Fragment, threshold float64) ([]Match, error) {
	if e.embedder == nil {
		return nil, ErrNoEmbedder
	}
	timer := logging.StartTimer(logging.CategoryResonance, "FindResonant")
	defer timer.Stop()

	tv, err := e.embedder.Embed(ctx, target.Chunk.Content)
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", target.ID(), err)
	}

	members := make([]types.Fragment, 0, len(corpus))
	for _, f := range corpus {
		if f.ID() != target.ID() {
			members = append(members, f)
		}
	}

	vecs, err := e.embedAll(ctx, members)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0)
	for i, f := range members {
		sim, err := embedding.CosineSimilarity(tv, vecs[i])
		if err != nil {
			return nil, fmt.Errorf("compare %s: %w", f.ID(), err)
		}
		r := blessing.Quantize(Weight(target, f) * sim)
		if r >= threshold {
			matches = append(matches, Match{Fragment: f, Resonance: r, Similarity: sim})
		}
	}
	sortMatches(matches)
	logging.ResonanceDebug("%s: %d of %d members at or above %.2f", target.ID(), len(matches), len(members), threshold)
	return matches, nil
}

// embedAll embeds fragment contents in batches, a few batches at a time.
func (e *Engine) embedAll(ctx context.Context, frags []types.Fragment) ([][]float32, error) {
	out := make([][]float32, len(frags))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInflight)
	for start := 0; start < len(frags); start += e.batchSize {
		end := min(start+e.batchSize, len(frags))
		g.Go(func() error {
			texts := make([]string, end-start)
			for i := range texts {
				texts[i] = frags[start+i].Chunk.Content
			}
			vecs, err := e.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed batch %d-%d: %w", start, end, err)
			}
			if len(vecs) != len(texts) {
				return fmt.Errorf("embed batch %d-%d: got %d vectors", start, end, len(vecs))
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// FIELD RESONANCE
// =============================================================================

// FieldResonance weights the cosine similarity of the fragments' flattened
// field vectors. It works without an embedder.
func FieldResonance(a, b types.Fragment) float64 {
	return blessing.Quantize(Weight(a, b) * cosine(a.Fields.Flatten(), b.Fields.Flatten()))
}

// FindFieldResonant is FindResonant over field vectors.
func FindFieldResonant(target types.Fragment, corpus []types.Fragment, threshold float64) []Match {
	tv := target.Fields.Flatten()
	matches := make([]Match, 0)
	for _, f := range corpus {
		if f.ID() == target.ID() {
			continue
		}
		sim := cosine(tv, f.Fields.Flatten())
		r := blessing.Quantize(Weight(target, f) * sim)
		if r >= threshold {
			matches = append(matches, Match{Fragment: f, Resonance: r, Similarity: sim})
		}
	}
	sortMatches(matches)
	return matches
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func sortMatches(m []Match) {
	sort.Slice(m, func(i, j int) bool {
		if m[i].Resonance != m[j].Resonance {
			return m[i].Resonance > m[j].Resonance
		}
		return m[i].Fragment.ID() < m[j].Fragment.ID()
	})
}
