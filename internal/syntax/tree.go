// Package syntax parses Python source with tree-sitter and converts the result
// into an immutable pure-Go tree. The C-backed tree never leaves Parse, so the
// returned Tree can be shared freely between goroutines.
package syntax

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"pbjrag/internal/logging"
)

// ErrSyntax marks source that tree-sitter could not parse cleanly.
var ErrSyntax = errors.New("syntax error")

// ParseError locates the first ERROR or MISSING node of a failed parse.
type ParseError struct {
	Line   int
	Column int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("syntax error at line %d col %d: %s", e.Line, e.Column, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrSyntax }

// Node is a copied tree-sitter node. Lines are 1-based and inclusive.
type Node struct {
	Type      string
	Field     string
	Named     bool
	Missing   bool
	StartByte int
	EndByte   int
	StartLine int
	EndLine   int
	StartCol  int
	Children  []*Node
	Parent    *Node
}

// Tree is a parsed source file.
type Tree struct {
	Root   *Node
	Source []byte
	Lines  []string
}

// Parse parses Python source. Empty input yields a tree with an empty module root.
func Parse(ctx context.Context, src []byte) (*Tree, error) {
	if len(bytes.TrimSpace(src)) == 0 {
		root := &Node{Type: "module", Named: true, EndByte: len(src), StartLine: 1, EndLine: 1}
		return &Tree{Root: root, Source: src, Lines: splitLines(src)}, nil
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	ts, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse: %w", err)
	}
	defer ts.Close()

	rootTS := ts.RootNode()
	root := convert(rootTS, "", nil)
	tree := &Tree{Root: root, Source: src, Lines: splitLines(src)}

	if rootTS.HasError() {
		perr := firstError(root)
		logging.SyntaxDebug("parse error: %v", perr)
		return tree, perr
	}
	return tree, nil
}

func convert(n *sitter.Node, field string, parent *Node) *Node {
	out := &Node{
		Type:      n.Type(),
		Field:     field,
		Named:     n.IsNamed(),
		Missing:   n.IsMissing(),
		StartByte: int(n.StartByte()),
		EndByte:   int(n.EndByte()),
		StartLine: int(n.StartPoint().Row) + 1,
		EndLine:   int(n.EndPoint().Row) + 1,
		StartCol:  int(n.StartPoint().Column),
		Parent:    parent,
	}
	count := int(n.ChildCount())
	if count == 0 {
		return out
	}
	out.Children = make([]*Node, 0, count)
	for i := 0; i < count; i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		out.Children = append(out.Children, convert(child, n.FieldNameForChild(i), out))
	}
	return out
}

func firstError(root *Node) *ParseError {
	var found *Node
	Walk(root, func(n *Node) bool {
		if found != nil {
			return false
		}
		if n.Type == "ERROR" || n.Missing {
			found = n
			return false
		}
		return true
	})
	if found == nil {
		return &ParseError{Line: 1, Reason: "unparseable source"}
	}
	reason := "unexpected token"
	if found.Missing {
		reason = fmt.Sprintf("missing %q", found.Type)
	}
	return &ParseError{Line: found.StartLine, Column: found.StartCol + 1, Reason: reason}
}

func splitLines(src []byte) []string {
	if len(src) == 0 {
		return nil
	}
	lines := strings.Split(string(src), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// Text returns the exact source slice of n.
func (t *Tree) Text(n *Node) string {
	if n == nil || n.StartByte < 0 || n.EndByte > len(t.Source) || n.StartByte > n.EndByte {
		return ""
	}
	return string(t.Source[n.StartByte:n.EndByte])
}

// LineRange returns the source lines start..end (1-based, inclusive) joined by newlines.
func (t *Tree) LineRange(start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(t.Lines) {
		end = len(t.Lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(t.Lines[start-1:end], "\n")
}

// ChildByField returns the first child attached under the given field name.
func (n *Node) ChildByField(name string) *Node {
	for _, c := range n.Children {
		if c.Field == name {
			return c
		}
	}
	return nil
}

// NamedChildren returns the named children in order.
func (n *Node) NamedChildren() []*Node {
	out := make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		if c.Named {
			out = append(out, c)
		}
	}
	return out
}

// HasToken reports whether an anonymous child token of the given type exists,
// e.g. "async" on a function_definition.
func (n *Node) HasToken(tok string) bool {
	for _, c := range n.Children {
		if !c.Named && c.Type == tok {
			return true
		}
	}
	return false
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the node's children.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// WalkAll visits every node of every root.
func WalkAll(roots []*Node, fn func(*Node) bool) {
	for _, r := range roots {
		Walk(r, fn)
	}
}

// Count returns the number of descendants (n included) whose type is one of types.
func Count(roots []*Node, types ...string) int {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	total := 0
	WalkAll(roots, func(n *Node) bool {
		if _, ok := set[n.Type]; ok {
			total++
		}
		return true
	})
	return total
}

// Find collects descendants of the given types in pre-order.
func Find(roots []*Node, types ...string) []*Node {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	var out []*Node
	WalkAll(roots, func(n *Node) bool {
		if _, ok := set[n.Type]; ok {
			out = append(out, n)
		}
		return true
	})
	return out
}

// IsDefinition reports whether n is a function or class definition.
func IsDefinition(n *Node) bool {
	return n.Type == "function_definition" || n.Type == "class_definition"
}

// Unwrap returns the definition inside a decorated_definition, or n itself.
func Unwrap(n *Node) *Node {
	if n.Type != "decorated_definition" {
		return n
	}
	if def := n.ChildByField("definition"); def != nil {
		return def
	}
	for _, c := range n.NamedChildren() {
		if IsDefinition(c) {
			return c
		}
	}
	return n
}
