package chunk

import (
	"pbjrag/internal/syntax"
)

// reserved names never count as external dependencies.
var reserved = map[string]bool{
	"True":  true,
	"False": true,
	"None":  true,
	"self":  true,
	"cls":   true,
}

// targetContainers are pattern nodes that pass a write context down to their
// identifiers (a, *rest = ...; (x, y) = ...).
var targetContainers = map[string]bool{
	"pattern_list":             true,
	"tuple_pattern":            true,
	"list_pattern":             true,
	"list_splat_pattern":       true,
	"parenthesized_expression": true,
}

// DependsOn returns the names read within roots minus names bound there.
func DependsOn(tree *syntax.Tree, roots []*syntax.Node) []string {
	reads := make(map[string]bool)
	writes := make(map[string]bool)

	syntax.WalkAll(roots, func(n *syntax.Node) bool {
		switch n.Type {
		case "global_statement", "nonlocal_statement":
			return false
		case "identifier":
		default:
			return true
		}
		name := tree.Text(n)
		switch classifyIdentifier(n) {
		case ctxRead:
			reads[name] = true
		case ctxWrite:
			writes[name] = true
		}
		return false
	})

	var out []string
	for name := range reads {
		if writes[name] || reserved[name] {
			continue
		}
		out = append(out, name)
	}
	return dedupe(out)
}

// Bindings returns the names bound within roots (assignments, parameters,
// imports, definitions).
func Bindings(tree *syntax.Tree, roots []*syntax.Node) []string {
	var out []string
	syntax.WalkAll(roots, func(n *syntax.Node) bool {
		if n.Type != "identifier" {
			return true
		}
		if classifyIdentifier(n) == ctxWrite {
			out = append(out, tree.Text(n))
		}
		return false
	})
	return dedupe(out)
}

type nameContext int

const (
	ctxRead nameContext = iota
	ctxWrite
	ctxIgnore
)

func classifyIdentifier(n *syntax.Node) nameContext {
	p := n.Parent
	if p == nil {
		return ctxRead
	}

	switch p.Type {
	case "attribute":
		if n.Field == "attribute" {
			return ctxIgnore
		}
	case "keyword_argument":
		if n.Field == "name" {
			return ctxIgnore
		}
	case "function_definition", "class_definition":
		if n.Field == "name" {
			return ctxWrite
		}
	case "parameters", "lambda_parameters", "list_splat_pattern", "dictionary_splat_pattern":
		return ctxWrite
	case "default_parameter", "typed_default_parameter":
		if n.Field == "name" {
			return ctxWrite
		}
	case "typed_parameter":
		if n.Field == "" {
			return ctxWrite
		}
	case "as_pattern_target":
		return ctxWrite
	case "as_pattern":
		if n.Field == "alias" || afterAs(p, n) {
			return ctxWrite
		}
	case "with_item":
		if n.Field == "alias" {
			return ctxWrite
		}
	case "case_pattern", "splat_pattern":
		return ctxWrite
	case "keyword_pattern":
		if isFirstNamed(p, n) {
			return ctxIgnore
		}
	case "except_clause":
		if afterAs(p, n) {
			return ctxWrite
		}
	case "aliased_import":
		if n.Field == "alias" {
			return ctxWrite
		}
		return ctxIgnore
	case "dotted_name":
		if ctx, ok := importContext(p, n); ok {
			return ctx
		}
		if ctx, ok := matchPatternContext(p, n); ok {
			return ctx
		}
	}

	if isAssignTarget(n) {
		return ctxWrite
	}
	return ctxRead
}

// isAssignTarget climbs through destructuring patterns and checks whether the
// outermost pattern sits in a binding position.
func isAssignTarget(n *syntax.Node) bool {
	cur := n
	for cur.Parent != nil && targetContainers[cur.Parent.Type] {
		cur = cur.Parent
	}
	p := cur.Parent
	if p == nil {
		return false
	}
	switch p.Type {
	case "assignment", "augmented_assignment", "for_statement", "for_in_clause":
		return cur.Field == "left"
	case "named_expression":
		return cur.Field == "name"
	}
	return false
}

func afterAs(p, n *syntax.Node) bool {
	seenAs := false
	for _, c := range p.Children {
		if c == n {
			return seenAs
		}
		if !c.Named && c.Type == "as" {
			seenAs = true
		}
	}
	return false
}

// importContext handles identifiers inside the dotted names of import
// statements: `import a.b` binds a, `from m import x` binds x, module paths bind nothing.
func importContext(dotted, n *syntax.Node) (nameContext, bool) {
	stmt := dotted.Parent
	if stmt == nil {
		return ctxRead, false
	}
	switch stmt.Type {
	case "aliased_import", "relative_import":
		return ctxIgnore, true
	case "import_statement", "import_from_statement", "future_import_statement":
	default:
		return ctxRead, false
	}
	if dotted.Field == "module_name" {
		return ctxIgnore, true
	}
	named := dotted.NamedChildren()
	if len(named) > 0 && named[0] == n {
		return ctxWrite, true
	}
	return ctxIgnore, true
}

// patternParents hold dotted names that are match patterns rather than
// expressions. Class names in class patterns and mapping keys are not listed.
var patternParents = map[string]bool{
	"case_pattern":    true,
	"keyword_pattern": true,
	"union_pattern":   true,
}

// matchPatternContext handles dotted names inside case patterns. A bare name
// is a capture and binds it; a dotted value pattern such as Color.RED reads
// its first segment only.
func matchPatternContext(dotted, n *syntax.Node) (nameContext, bool) {
	if dotted.Parent == nil || !patternParents[dotted.Parent.Type] {
		return ctxRead, false
	}
	named := dotted.NamedChildren()
	if len(named) == 1 {
		return ctxWrite, true
	}
	if named[0] == n {
		return ctxRead, true
	}
	return ctxIgnore, true
}

func isFirstNamed(p, n *syntax.Node) bool {
	named := p.NamedChildren()
	return len(named) > 0 && named[0] == n
}

// TopLevelAssignments returns names bound by assignments directly at module level.
func TopLevelAssignments(tree *syntax.Tree) []string {
	var out []string
	for _, stmt := range tree.Root.NamedChildren() {
		if stmt.Type != "expression_statement" {
			continue
		}
		for _, expr := range stmt.NamedChildren() {
			if expr.Type != "assignment" {
				continue
			}
			left := expr.ChildByField("left")
			syntax.Walk(left, func(n *syntax.Node) bool {
				if n.Type == "identifier" && isAssignTarget(n) {
					out = append(out, tree.Text(n))
					return false
				}
				return targetContainers[n.Type] || n == left
			})
		}
	}
	return out
}
