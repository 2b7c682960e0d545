package fields

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"pbjrag/internal/chunk"
	"pbjrag/internal/logging"
	"pbjrag/internal/syntax"
)

// Weights are the composite-slot weights of the weighted dimensions.
type Weights struct {
	Entropic []float64
	Rhythmic []float64
	Emergent []float64
}

// DefaultWeights returns the stock weights.
func DefaultWeights() Weights {
	return Weights{
		Entropic: []float64{0.30, 0.20, 0.15, 0.15, 0.10, 0.05, 0.05},
		Rhythmic: []float64{0.25, 0.20, 0.15, 0.15, 0.10, 0.15},
		Emergent: []float64{0.20, 0.20, 0.15, 0.15, 0.10, 0.10, 0.10},
	}
}

// Config configures an Extractor.
type Config struct {
	Dim     int
	Weights Weights
}

// DefaultConfig returns an 8-slot config with default weights.
func DefaultConfig() Config {
	return Config{Dim: 8, Weights: DefaultWeights()}
}

type dimFunc func(in *input, w Weights) []float64

// Extractor computes field vectors. It holds no mutable state and is safe for
// concurrent use.
type Extractor struct {
	cfg   Config
	funcs map[Dimension]dimFunc
}

// NewExtractor creates an Extractor. A non-positive Dim falls back to 8 and
// missing weights fall back to the defaults.
func NewExtractor(cfg Config) *Extractor {
	if cfg.Dim <= 0 {
		cfg.Dim = 8
	}
	def := DefaultWeights()
	if len(cfg.Weights.Entropic) != len(def.Entropic) {
		cfg.Weights.Entropic = def.Entropic
	}
	if len(cfg.Weights.Rhythmic) != len(def.Rhythmic) {
		cfg.Weights.Rhythmic = def.Rhythmic
	}
	if len(cfg.Weights.Emergent) != len(def.Emergent) {
		cfg.Weights.Emergent = def.Emergent
	}
	return &Extractor{
		cfg: cfg,
		funcs: map[Dimension]dimFunc{
			Semantic:      semantic,
			Emotional:     emotional,
			Ethical:       ethical,
			Temporal:      temporal,
			Entropic:      entropic,
			Rhythmic:      rhythmic,
			Contradiction: contradiction,
			Relational:    relational,
			Emergent:      emergent,
		},
	}
}

// Dim returns the configured vector length.
func (e *Extractor) Dim() int { return e.cfg.Dim }

// Extract computes the nine vectors of a single chunk.
func (e *Extractor) Extract(c chunk.Chunk, tree *syntax.Tree) Vector {
	return e.extract(c, newFileContext(tree))
}

// ExtractAll computes vectors for every chunk of one file, sharing the
// file-level index between chunks.
func (e *Extractor) ExtractAll(chunks []chunk.Chunk, tree *syntax.Tree) []Vector {
	fc := newFileContext(tree)
	out := make([]Vector, len(chunks))
	for i, c := range chunks {
		out[i] = e.extract(c, fc)
	}
	return out
}

func (e *Extractor) extract(c chunk.Chunk, fc *fileContext) Vector {
	timer := logging.StartTimer(logging.CategoryFields, "extract "+c.ID)
	defer timer.Stop()

	in := newInput(c, fc)
	var v Vector
	for _, d := range Dimensions {
		v.set(d, e.run(d, in))
	}
	return v
}

// run evaluates one dimension under a recover guard.
func (e *Extractor) run(d Dimension, in *input) (out []float64) {
	defer func() {
		if r := recover(); r != nil {
			logging.FieldsWarn("%s extraction failed for %s: %v", d, in.chunk.ID, r)
			out = neutral(e.cfg.Dim)
		}
	}()

	fn, ok := e.funcs[d]
	if !ok {
		return neutral(e.cfg.Dim)
	}
	raw := fn(in, e.cfg.Weights)
	if len(raw) == 0 {
		panic(fmt.Sprintf("%s returned no values", d))
	}
	for _, x := range raw {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			logging.FieldsWarn("%s produced non-finite value for %s", d, in.chunk.ID)
			return neutral(e.cfg.Dim)
		}
	}
	return fit(raw, e.cfg.Dim)
}

// fit clips raw and sizes it to dim. Short vectors are padded with their own
// mean so the dimension mean is preserved.
func fit(raw []float64, dim int) []float64 {
	out := make([]float64, dim)
	clipped := make([]float64, len(raw))
	for i, x := range raw {
		clipped[i] = Clip(x)
	}
	pad := Mean(clipped)
	for i := range out {
		if i < len(clipped) {
			out[i] = clipped[i]
		} else {
			out[i] = pad
		}
	}
	return out
}

// =============================================================================
// INPUT - per-chunk view shared by all dimensions
// =============================================================================

var wordRe = regexp.MustCompile(`\w+`)

type input struct {
	chunk   chunk.Chunk
	nodes   []*syntax.Node
	def     *syntax.Node
	tree    *syntax.Tree
	file    *fileContext
	content string
	lower   string
	lines   []string
	words   []string
	doc     string
}

func newInput(c chunk.Chunk, fc *fileContext) *input {
	in := &input{
		chunk:   c,
		nodes:   c.Nodes,
		tree:    fc.tree,
		file:    fc,
		content: c.Content,
		lower:   strings.ToLower(c.Content),
		lines:   strings.Split(c.Content, "\n"),
		words:   wordRe.FindAllString(c.Content, -1),
	}
	if c.Kind != chunk.KindModule && len(c.Nodes) > 0 {
		in.def = syntax.Unwrap(c.Nodes[0])
		in.doc = docstring(fc.tree, in.def.ChildByField("body"))
	} else if fc.tree != nil {
		in.doc = docstring(fc.tree, fc.tree.Root)
	}
	return in
}

func (in *input) count(types ...string) int {
	return syntax.Count(in.nodes, types...)
}

func (in *input) find(types ...string) []*syntax.Node {
	return syntax.Find(in.nodes, types...)
}

func (in *input) nonBlankLines() []string {
	var out []string
	for _, l := range in.lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

// presence counts how many of words occur anywhere in the lowered content.
func (in *input) presence(words ...string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(in.lower, w) {
			n++
		}
	}
	return n
}

func (in *input) occurrences(word string) int {
	return strings.Count(in.lower, word)
}

// docstring returns the unquoted leading string literal of a block or module.
func docstring(tree *syntax.Tree, block *syntax.Node) string {
	if tree == nil || block == nil {
		return ""
	}
	for _, stmt := range block.NamedChildren() {
		if stmt.Type == "comment" {
			continue
		}
		if stmt.Type != "expression_statement" {
			return ""
		}
		named := stmt.NamedChildren()
		if len(named) != 1 || named[0].Type != "string" {
			return ""
		}
		return unquote(tree.Text(named[0]))
	}
	return ""
}

func unquote(s string) string {
	s = strings.TrimLeft(s, "rRbBuUfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return strings.TrimSpace(s[len(q) : len(s)-len(q)])
		}
	}
	return strings.TrimSpace(s)
}

// =============================================================================
// FILE CONTEXT - per-file index reused across chunks
// =============================================================================

type fileContext struct {
	tree        *syntax.Tree
	callCounts  map[string][]*syntax.Node
	defDeps     map[*syntax.Node]map[string]bool
	importNames map[string]bool
	modernHits  int
}

var modernModules = []string{"typing", "dataclasses", "pathlib", "enum"}

func newFileContext(tree *syntax.Tree) *fileContext {
	fc := &fileContext{
		tree:        tree,
		callCounts:  make(map[string][]*syntax.Node),
		defDeps:     make(map[*syntax.Node]map[string]bool),
		importNames: make(map[string]bool),
	}
	if tree == nil || tree.Root == nil {
		return fc
	}

	roots := []*syntax.Node{tree.Root}
	for _, call := range syntax.Find(roots, "call") {
		if name := calleeName(tree, call); name != "" {
			fc.callCounts[name] = append(fc.callCounts[name], call)
		}
	}
	for _, def := range syntax.Find(roots, "function_definition", "class_definition") {
		deps := make(map[string]bool)
		for _, d := range chunk.DependsOn(tree, []*syntax.Node{def}) {
			deps[d] = true
		}
		fc.defDeps[def] = deps
	}

	seenModern := make(map[string]bool)
	for _, stmt := range tree.Root.NamedChildren() {
		if stmt.Type != "import_statement" && stmt.Type != "import_from_statement" {
			continue
		}
		text := tree.Text(stmt)
		for _, m := range modernModules {
			if !seenModern[m] && containsWord(text, m) {
				seenModern[m] = true
				fc.modernHits++
			}
		}
		for _, name := range chunk.Bindings(tree, []*syntax.Node{stmt}) {
			fc.importNames[name] = true
		}
	}
	return fc
}

// calleeName returns the simple name a call targets: f() -> f, a.b.c() -> c.
func calleeName(tree *syntax.Tree, call *syntax.Node) string {
	fn := call.ChildByField("function")
	if fn == nil {
		return ""
	}
	switch fn.Type {
	case "identifier":
		return tree.Text(fn)
	case "attribute":
		if attr := fn.ChildByField("attribute"); attr != nil {
			return tree.Text(attr)
		}
	}
	return ""
}

func containsWord(text, word string) bool {
	for _, w := range wordRe.FindAllString(text, -1) {
		if w == word {
			return true
		}
	}
	return false
}

// within reports whether n lies inside any of roots.
func within(n *syntax.Node, roots []*syntax.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		for _, r := range roots {
			if cur == r {
				return true
			}
		}
	}
	return false
}

func ratio(n, d float64) float64 {
	if d <= 0 {
		return 0
	}
	return n / d
}

func weighted(vals, weights []float64) float64 {
	sum := 0.0
	for i, w := range weights {
		if i < len(vals) {
			sum += Clip(vals[i]) * w
		}
	}
	return sum
}
