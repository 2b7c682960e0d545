// Package chunk partitions Python source into semantic units at function,
// class and module boundaries and records what each unit provides and needs.
package chunk

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"pbjrag/internal/logging"
	"pbjrag/internal/syntax"
)

// Kind classifies a chunk.
type Kind string

const (
	KindModule        Kind = "module"
	KindFunction      Kind = "function"
	KindAsyncFunction Kind = "async-function"
	KindClass         Kind = "class"
	KindMethod        Kind = "method"
)

// ModuleName is the qualified name of a file's module-level chunk.
const ModuleName = "__module__"

// ErrTooLarge is returned for sources above the configured byte limit.
var ErrTooLarge = errors.New("source exceeds size limit")

// Chunk is a contiguous syntactic unit. It is never mutated after Chunk returns.
type Chunk struct {
	ID            string
	File          string
	Name          string
	QualifiedName string
	Kind          Kind
	Async         bool
	Content       string
	StartLine     int
	EndLine       int
	Provides      []string
	DependsOn     []string

	// Nodes holds the definition node, or the top-level statements of a module chunk.
	Nodes []*syntax.Node `json:"-"`
}

// LineCount returns the number of source lines the chunk spans.
func (c Chunk) LineCount() int {
	if c.EndLine < c.StartLine {
		return 0
	}
	return c.EndLine - c.StartLine + 1
}

// Result is the outcome of chunking one file. Err is a diagnostic; when it is
// set Chunks is empty.
type Result struct {
	File   string
	Chunks []Chunk
	Tree   *syntax.Tree
	Err    error
}

// Chunker turns source files into chunks. It is safe for concurrent use.
type Chunker struct {
	maxBytes int64
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithMaxBytes rejects sources larger than n bytes (0 disables the limit).
func WithMaxBytes(n int64) Option {
	return func(c *Chunker) { c.maxBytes = n }
}

// New creates a Chunker.
func New(opts ...Option) *Chunker {
	c := &Chunker{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chunk parses src and returns its chunks. It never panics: parse failures and
// internal faults come back as Result.Err with no chunks.
func (c *Chunker) Chunk(ctx context.Context, file string, src []byte) (res Result) {
	res.File = file
	defer func() {
		if r := recover(); r != nil {
			logging.ChunkerWarn("chunker panic on %s: %v", file, r)
			res = Result{File: file, Err: fmt.Errorf("chunk %s: internal error: %v", file, r)}
		}
	}()

	if c.maxBytes > 0 && int64(len(src)) > c.maxBytes {
		res.Err = fmt.Errorf("chunk %s: %w (%d > %d bytes)", file, ErrTooLarge, len(src), c.maxBytes)
		return res
	}

	tree, err := syntax.Parse(ctx, src)
	if err != nil {
		res.Err = fmt.Errorf("chunk %s: %w", file, err)
		return res
	}
	res.Tree = tree

	w := &walker{tree: tree, file: filepath.ToSlash(file)}
	w.collect(tree.Root, nil, false)
	if mod, ok := w.moduleChunk(); ok {
		w.chunks = append(w.chunks, mod)
	}
	res.Chunks = w.chunks

	logging.ChunkerDebug("%s: %d chunks", file, len(res.Chunks))
	return res
}

type walker struct {
	tree    *syntax.Tree
	file    string
	chunks  []Chunk
	covered [][2]int
	seenIDs map[string]int
}

// collect emits definitions found under n. classBody is true when n is the
// block of a class, so direct function children are methods.
func (w *walker) collect(n *syntax.Node, scope []string, classBody bool) {
	for _, child := range n.Children {
		def := syntax.Unwrap(child)
		if syntax.IsDefinition(def) {
			w.emit(child, def, scope, classBody)
			continue
		}
		if child.Type == "lambda" {
			continue
		}
		w.collect(child, scope, false)
	}
}

func (w *walker) emit(outer, def *syntax.Node, scope []string, method bool) {
	nameNode := def.ChildByField("name")
	if nameNode == nil {
		return
	}
	name := w.tree.Text(nameNode)
	qual := qualify(scope, name)

	c := Chunk{
		File:          w.file,
		Name:          name,
		QualifiedName: qual,
		StartLine:     outer.StartLine,
		EndLine:       outer.EndLine,
		Nodes:         []*syntax.Node{outer},
	}
	c.Content = w.tree.LineRange(c.StartLine, c.EndLine)

	provided := name
	if len(scope) > 0 {
		provided = qual
	}

	inner := append(append([]string(nil), scope...), name)
	switch def.Type {
	case "class_definition":
		c.Kind = KindClass
		c.Provides = append([]string{provided}, w.methodNames(def, qual)...)
	default:
		c.Async = def.HasToken("async")
		switch {
		case method:
			c.Kind = KindMethod
		case c.Async:
			c.Kind = KindAsyncFunction
		default:
			c.Kind = KindFunction
		}
		c.Provides = []string{provided}
	}
	c.Provides = dedupe(c.Provides)
	c.DependsOn = DependsOn(w.tree, c.Nodes)
	c.ID = w.id(qual, c.StartLine)

	w.chunks = append(w.chunks, c)
	w.covered = append(w.covered, [2]int{c.StartLine, c.EndLine})

	if body := def.ChildByField("body"); body != nil {
		w.collect(body, inner, def.Type == "class_definition")
	}
}

// methodNames returns Class.method for every function directly in the class body.
func (w *walker) methodNames(class *syntax.Node, qual string) []string {
	body := class.ChildByField("body")
	if body == nil {
		return nil
	}
	var out []string
	for _, child := range body.Children {
		def := syntax.Unwrap(child)
		if def.Type != "function_definition" {
			continue
		}
		if n := def.ChildByField("name"); n != nil {
			out = append(out, qual+"."+w.tree.Text(n))
		}
	}
	return out
}

func (w *walker) id(qual string, line int) string {
	id := fmt.Sprintf("py:%s:%s#L%d", w.file, qual, line)
	if w.seenIDs == nil {
		w.seenIDs = make(map[string]int)
	}
	w.seenIDs[id]++
	if n := w.seenIDs[id]; n > 1 {
		id = fmt.Sprintf("%s~%d", id, n)
	}
	return id
}

// moduleChunk gathers the non-blank lines not covered by any definition.
func (w *walker) moduleChunk() (Chunk, bool) {
	covered := make([]bool, len(w.tree.Lines)+2)
	for _, r := range w.covered {
		for l := r[0]; l <= r[1] && l < len(covered); l++ {
			covered[l] = true
		}
	}

	var lines []string
	first, last := 0, 0
	for i, line := range w.tree.Lines {
		ln := i + 1
		if covered[ln] || strings.TrimSpace(line) == "" {
			continue
		}
		if first == 0 {
			first = ln
		}
		last = ln
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return Chunk{}, false
	}

	var stmts []*syntax.Node
	for _, child := range w.tree.Root.NamedChildren() {
		if !syntax.IsDefinition(syntax.Unwrap(child)) {
			stmts = append(stmts, child)
		}
	}

	defined := make(map[string]bool)
	for _, c := range w.chunks {
		for _, p := range c.Provides {
			defined[p] = true
		}
	}
	var provides []string
	for _, name := range TopLevelAssignments(w.tree) {
		if !defined[name] {
			provides = append(provides, name)
		}
	}

	return Chunk{
		ID:            w.id(ModuleName, first),
		File:          w.file,
		Name:          ModuleName,
		QualifiedName: ModuleName,
		Kind:          KindModule,
		Content:       strings.Join(lines, "\n"),
		StartLine:     first,
		EndLine:       last,
		Provides:      dedupe(provides),
		DependsOn:     DependsOn(w.tree, stmts),
		Nodes:         stmts,
	}, true
}

func qualify(scope []string, name string) string {
	if len(scope) == 0 {
		return name
	}
	return strings.Join(scope, ".") + "." + name
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok || s == "" {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
