package resonance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pbjrag/internal/blessing"
	"pbjrag/internal/chunk"
	"pbjrag/internal/embedding"
	"pbjrag/internal/fields"
	"pbjrag/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func frag(id, content string, epc float64) types.Fragment {
	return types.Fragment{
		Chunk:    chunk.Chunk{ID: id, Content: content},
		Fields:   fields.Neutral(4),
		Blessing: blessing.Record{EPC: epc},
	}
}

type failingEngine struct{ *embedding.HashEngine }

func (failingEngine) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("provider down")
}

func (failingEngine) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("provider down")
}

func TestResonanceIsSymmetricAndWeighted(t *testing.T) {
	ctx := context.Background()
	e := New(embedding.NewHashEngine(128))

	a := frag("a", "def add(a, b): return a + b", 0.9)
	b := frag("b", "def add(x, y): return x + y", 0.5)

	ab, err := e.Resonance(ctx, a, b)
	require.NoError(t, err)
	ba, err := e.Resonance(ctx, b, a)
	require.NoError(t, err)
	assert.Equal(t, ab, ba)
	assert.Greater(t, ab, 0.0)
	assert.LessOrEqual(t, ab, 0.7, "bounded by the mean EPC")

	same, err := e.Resonance(ctx, a, frag("c", a.Chunk.Content, 0.7))
	require.NoError(t, err)
	assert.InDelta(t, 0.8, same, 1e-4, "identical content resonates at the blessing weight")
}

func TestFindResonant(t *testing.T) {
	ctx := context.Background()
	e := New(embedding.NewHashEngine(128), WithBatchSize(2))

	target := frag("t", "def parse(path): return open(path).read()", 0.8)
	corpus := []types.Fragment{
		target,
		frag("z", target.Chunk.Content, 0.8),
		frag("m", target.Chunk.Content, 0.8),
		frag("low", target.Chunk.Content, 0.0),
		frag("far", "class Matrix: rows columns determinant", 0.8),
		frag("b", target.Chunk.Content, 0.4),
	}

	got, err := e.FindResonant(ctx, target, corpus, 0.5)
	require.NoError(t, err)
	var ids []string
	for _, m := range got {
		ids = append(ids, m.Fragment.ID())
		assert.GreaterOrEqual(t, m.Resonance, 0.5)
	}
	assert.Equal(t, []string{"m", "z", "b"}, ids, "ties by ID, target excluded")
	assert.InDelta(t, 0.8, got[0].Resonance, 1e-4)
	assert.InDelta(t, 0.6, got[2].Resonance, 1e-4)

	none, err := e.FindResonant(ctx, target, corpus, 0.95)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestWithoutEmbedder(t *testing.T) {
	e := New(nil)
	_, err := e.Resonance(context.Background(), frag("a", "x", 1), frag("b", "x", 1))
	assert.ErrorIs(t, err, ErrNoEmbedder)
	_, err = e.FindResonant(context.Background(), frag("a", "x", 1), nil, 0)
	assert.ErrorIs(t, err, ErrNoEmbedder)
}

func TestEmbedderErrorsPropagate(t *testing.T) {
	e := New(failingEngine{embedding.NewHashEngine(8)})
	_, err := e.FindResonant(context.Background(), frag("a", "x", 1), []types.Fragment{frag("b", "y", 1)}, 0)
	assert.ErrorContains(t, err, "provider down")
}

func TestFieldResonance(t *testing.T) {
	a := frag("a", "", 0.6)
	b := frag("b", "", 1.0)
	assert.InDelta(t, 0.8, FieldResonance(a, b), 1e-4)
	assert.Equal(t, FieldResonance(a, b), FieldResonance(b, a))

	b.Fields = fields.Neutral(8)
	assert.Equal(t, 0.0, FieldResonance(a, b), "mismatched lengths")

	got := FindFieldResonant(a, []types.Fragment{a, frag("y", "", 0.2), frag("x", "", 0.2), frag("w", "", 0)}, 0.35)
	require.Len(t, got, 2)
	assert.Equal(t, "x", got[0].Fragment.ID())
	assert.Equal(t, "y", got[1].Fragment.ID())
}
