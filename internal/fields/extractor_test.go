package fields

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pbjrag/internal/chunk"
	"pbjrag/internal/syntax"
)

var corpus = strings.Join([]string{
	`"""Inventory helpers."""`,
	"import logging",
	"from typing import Optional",
	"",
	"log = logging.getLogger(__name__)",
	"",
	"",
	"def calculate_total(items: list, tax: float = 0.2) -> float:",
	`    """Sum items.`,
	"",
	"    :param items: priced things",
	"    :return: the total",
	`    """`,
	"    if not items:",
	"        raise ValueError(\"no items\")",
	"    total = 0.0",
	"    for item in items:",
	"        if item.price > 0 and item.qty > 0:",
	"            total += item.price * item.qty",
	"        elif item.price < 0 or item.broken:",
	"            log.warning(\"bad item %s\", item)",
	"    try:",
	"        return round(total * (1 + tax), 2)",
	"    except OverflowError:",
	"        pass",
	"",
	"",
	"@property",
	"def fetchName(self):",
	"    # TODO: fixme hack",
	"    return eval(self.raw)",
	"",
	"",
	"class Cart:",
	"    def __init__(self, items=None):",
	"        self.items = items or []",
	"",
	"    def __len__(self):",
	"        return len([i for i in self.items if i])",
	"",
	"    async def sync(self, client):",
	"        async with client.session() as s:",
	"            await s.push(map(lambda i: i.id, self.items))",
	"",
	"    def total(self):",
	"        return calculate_total(self.items)",
	"",
}, "\n")

func extractCorpus(t *testing.T, cfg Config) ([]chunk.Chunk, []Vector) {
	t.Helper()
	res := chunk.New().Chunk(context.Background(), "inventory.py", []byte(corpus))
	require.NoError(t, res.Err)
	require.NotEmpty(t, res.Chunks)
	return res.Chunks, NewExtractor(cfg).ExtractAll(res.Chunks, res.Tree)
}

func find(t *testing.T, chunks []chunk.Chunk, vecs []Vector, qual string) Vector {
	t.Helper()
	for i, c := range chunks {
		if c.QualifiedName == qual {
			return vecs[i]
		}
	}
	t.Fatalf("chunk %s not found", qual)
	return Vector{}
}

func TestAllValuesInUnitRange(t *testing.T) {
	chunks, vecs := extractCorpus(t, DefaultConfig())
	for i, v := range vecs {
		assert.True(t, v.Valid(), "chunk %s has out-of-range values", chunks[i].ID)
		for _, d := range Dimensions {
			assert.Len(t, v.Get(d), 8, "%s/%s", chunks[i].ID, d)
		}
	}
}

func TestExtractionIsDeterministic(t *testing.T) {
	_, a := extractCorpus(t, DefaultConfig())
	_, b := extractCorpus(t, DefaultConfig())
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("extraction not deterministic (-first +second):\n%s", diff)
	}
}

func TestExtractMatchesExtractAll(t *testing.T) {
	res := chunk.New().Chunk(context.Background(), "inventory.py", []byte(corpus))
	require.NoError(t, res.Err)
	ex := NewExtractor(DefaultConfig())
	all := ex.ExtractAll(res.Chunks, res.Tree)
	for i, c := range res.Chunks {
		if diff := cmp.Diff(all[i], ex.Extract(c, res.Tree)); diff != "" {
			t.Errorf("%s differs (-all +single):\n%s", c.ID, diff)
		}
	}
}

func TestPanickingDimensionIsNeutral(t *testing.T) {
	res := chunk.New().Chunk(context.Background(), "inventory.py", []byte(corpus))
	require.NoError(t, res.Err)

	ex := NewExtractor(DefaultConfig())
	ex.funcs[Entropic] = func(*input, Weights) []float64 { panic("boom") }
	ex.funcs[Temporal] = func(*input, Weights) []float64 { return []float64{math.NaN()} }
	ex.funcs[Emotional] = func(*input, Weights) []float64 { return nil }

	v := ex.Extract(res.Chunks[0], res.Tree)
	assert.Equal(t, neutral(8), v.Entropic)
	assert.Equal(t, neutral(8), v.Temporal)
	assert.Equal(t, neutral(8), v.Emotional)
	assert.True(t, v.Valid())
	assert.NotEqual(t, neutral(8), v.Semantic, "other dimensions are unaffected")
}

func TestDimensionResizing(t *testing.T) {
	_, eight := extractCorpus(t, DefaultConfig())

	wide := DefaultConfig()
	wide.Dim = 12
	chunks, twelve := extractCorpus(t, wide)

	narrow := DefaultConfig()
	narrow.Dim = 4
	_, four := extractCorpus(t, narrow)

	for i := range chunks {
		for _, d := range Dimensions {
			require.Len(t, twelve[i].Get(d), 12)
			require.Len(t, four[i].Get(d), 4)
			assert.InDelta(t, eight[i].Mean(d), twelve[i].Mean(d), 1e-9, "padding preserves the mean of %s", d)
			assert.Equal(t, eight[i].Get(d)[:4], four[i].Get(d))
		}
	}
}

func TestHeuristicsRankAsExpected(t *testing.T) {
	chunks, vecs := extractCorpus(t, DefaultConfig())
	calc := find(t, chunks, vecs, "calculate_total")
	fetch := find(t, chunks, vecs, "fetchName")
	sync := find(t, chunks, vecs, "Cart.sync")

	// documented, validated, typed
	assert.Equal(t, 1.0, calc.Semantic[3], "param docs")
	assert.Equal(t, 1.0, calc.Semantic[4], "return docs")
	assert.Equal(t, 1.0, calc.Ethical[6], "docstring")
	assert.Greater(t, calc.Ethical[2], 0.0, "type hints")
	assert.Greater(t, calc.Mean(Ethical), fetch.Mean(Ethical))

	// branching raises entropy and contradiction
	assert.Greater(t, calc.Mean(Entropic), fetch.Mean(Entropic))
	assert.Greater(t, calc.Contradiction[0], fetch.Contradiction[0])
	assert.Greater(t, calc.Contradiction[6], 0.0, "except: pass is swallowed")

	// eval is dangerous, TODO/FIXME are churn
	assert.Less(t, fetch.Ethical[5], 1.0)
	assert.Greater(t, fetch.Emotional[3], 0.0)
	assert.Greater(t, fetch.Emotional[4], 0.0)
	assert.Greater(t, fetch.Temporal[1], 0.0)
	assert.Greater(t, fetch.Emergent[0], 0.0, "decorator")

	// async, context managers and lambdas are emergent; modern imports are file-wide
	assert.Equal(t, 1.0, sync.Temporal[4])
	assert.Greater(t, sync.Emergent[1], 0.0)
	assert.Greater(t, sync.Emergent[4], 0.0)
	assert.InDelta(t, 0.25, sync.Temporal[3], 1e-9, "typing is the only modern import")
}

func TestRelationalCoupling(t *testing.T) {
	chunks, vecs := extractCorpus(t, DefaultConfig())
	calc := find(t, chunks, vecs, "calculate_total")
	total := find(t, chunks, vecs, "Cart.total")

	assert.Greater(t, calc.Relational[1], 0.0, "called from Cart.total")
	assert.Greater(t, total.Relational[0], 0.0, "calls calculate_total")
	assert.Greater(t, total.Relational[3], 0.0, "has dependencies")
}

func TestModuleChunkIsExtracted(t *testing.T) {
	chunks, vecs := extractCorpus(t, DefaultConfig())
	mod := find(t, chunks, vecs, chunk.ModuleName)
	assert.True(t, mod.Valid())
	assert.Equal(t, 0.0, mod.Relational[1], "module chunks have no incoming calls")
	assert.Equal(t, 1.0, mod.Ethical[6], "module docstring")
}

func TestEmptyNodesStillValid(t *testing.T) {
	c := chunk.Chunk{ID: "synthetic", Kind: chunk.KindFunction, Content: ""}
	v := NewExtractor(DefaultConfig()).Extract(c, &syntax.Tree{Root: &syntax.Node{Type: "module"}})
	assert.True(t, v.Valid())
}

func TestUnquote(t *testing.T) {
	tests := map[string]string{
		`"""Doc."""`:  "Doc.",
		`'''  x  '''`: "x",
		`r"raw"`:      "raw",
		`'s'`:         "s",
		`f"{x}"`:      "{x}",
	}
	for in, want := range tests {
		assert.Equal(t, want, unquote(in), in)
	}
}

func TestStyle(t *testing.T) {
	assert.Equal(t, styleSnake, style("load_items"))
	assert.Equal(t, styleSnake, style("_private"))
	assert.Equal(t, styleCamel, style("loadItems"))
	assert.Equal(t, styleOther, style("LoadItems"))
	assert.Equal(t, styleOther, style("__"))
}
