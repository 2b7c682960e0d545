package fields

import (
	"math"

	"pbjrag/internal/syntax"
)

var (
	decisionTypes = []string{
		"if_statement", "elif_clause", "for_statement", "while_statement",
		"try_statement", "except_clause", "with_statement", "conditional_expression",
		"boolean_operator",
	}
	loopTypes    = []string{"for_statement", "while_statement"}
	controlTypes = map[string]bool{
		"if_statement":    true,
		"for_statement":   true,
		"while_statement": true,
		"try_statement":   true,
		"with_statement":  true,
		"match_statement": true,
	}
	complexityTypes = []string{
		"if_statement", "elif_clause", "for_statement", "while_statement",
		"try_statement", "except_clause", "boolean_operator", "conditional_expression",
	}
)

// entropic scores branching, failure handling and disorder.
func entropic(in *input, w Weights) []float64 {
	out := make([]float64, 8)

	decisions := float64(in.count(decisionTypes...))
	lines := float64(len(in.nonBlankLines()))

	out[0] = (1 + decisions) / 10
	out[1] = float64(in.count("except_clause")) / 5
	out[2] = ratio(decisions, lines) * 10
	out[3] = float64(in.count(loopTypes...)) / 5
	out[4] = float64(in.count("boolean_operator")) / 8
	out[5] = float64(maxDepth(in.nodes, map[string]bool{"try_statement": true})) / 3
	out[6] = float64(in.count("raise_statement")) / 5
	out[7] = weighted(out[:7], w.Entropic)
	return out
}

// contradiction scores internal tension: tangled control flow and
// inconsistent conventions within one unit.
func contradiction(in *input, _ Weights) []float64 {
	out := make([]float64, 8)

	complexity := float64(in.count(complexityTypes...))
	depth := float64(maxDepth(in.nodes, controlTypes))
	cx := math.Min(1, complexity/10)
	dp := Clip((depth - 1) / 10)
	base := 0.6*cx + 0.4*dp

	out[0] = base
	out[1] = cx
	out[2] = dp

	snake, camel := namingStyles(in)
	if total := snake + camel; total > 0 {
		out[3] = 2 * math.Min(float64(snake), float64(camel)) / float64(total)
	}

	typed := in.count("typed_parameter", "typed_default_parameter")
	untyped := untypedParams(in)
	if total := typed + untyped; total > 0 {
		out[4] = 2 * math.Min(float64(typed), float64(untyped)) / float64(total)
	}

	if in.def != nil && in.def.Type == "function_definition" && in.doc != "" {
		mentions := containsFold(in.doc, "return")
		returns := in.count("return_statement") > 0
		if mentions != returns {
			out[5] = 0.5
		}
	}

	out[6] = float64(swallowedErrors(in)) / 3
	out[7] = base
	return out
}

// maxDepth returns the deepest nesting of nodes whose type is in types.
func maxDepth(roots []*syntax.Node, types map[string]bool) int {
	var depth func(n *syntax.Node) int
	depth = func(n *syntax.Node) int {
		best := 0
		for _, c := range n.Children {
			if d := depth(c); d > best {
				best = d
			}
		}
		if types[n.Type] {
			best++
		}
		return best
	}
	best := 0
	for _, r := range roots {
		if d := depth(r); d > best {
			best = d
		}
	}
	return best
}

func untypedParams(in *input) int {
	n := 0
	for _, params := range in.find("parameters") {
		for _, p := range params.NamedChildren() {
			switch p.Type {
			case "identifier":
				if name := in.tree.Text(p); name != "self" && name != "cls" {
					n++
				}
			case "default_parameter":
				n++
			}
		}
	}
	return n
}

// swallowedErrors counts bare excepts and handlers whose body is only pass.
func swallowedErrors(in *input) int {
	n := 0
	for _, ex := range in.find("except_clause") {
		bare := true
		for _, c := range ex.NamedChildren() {
			if c.Type != "block" && c.Type != "comment" {
				bare = false
				break
			}
		}
		if bare {
			n++
			continue
		}
		for _, c := range ex.NamedChildren() {
			if c.Type != "block" {
				continue
			}
			stmts := c.NamedChildren()
			if len(stmts) == 1 && stmts[0].Type == "pass_statement" {
				n++
			}
		}
	}
	return n
}
