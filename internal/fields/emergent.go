package fields

import (
	"strings"

	"pbjrag/internal/syntax"
)

var (
	metaWords       = []string{"__dict__", "__class__", "getattr", "setattr", "hasattr", "type(", "metaclass", "__new__", "__init_subclass__"}
	functionalWords = []string{"map(", "filter(", "reduce(", "lambda", "partial"}
	lifecycleDunder = map[string]bool{"__init__": true, "__new__": true, "__del__": true}
)

// emergent scores use of advanced and expressive language features.
func emergent(in *input, w Weights) []float64 {
	out := make([]float64, 8)

	out[0] = float64(in.count("decorator")) / 3

	asyncTokens := 0
	syntax.WalkAll(in.nodes, func(n *syntax.Node) bool {
		if !n.Named && n.Type == "async" {
			asyncTokens++
		}
		return true
	})
	advanced := in.count("named_expression", "match_statement", "with_statement", "await") + asyncTokens
	out[1] = float64(advanced) / 5

	out[2] = float64(in.presence(metaWords...)) / float64(len(metaWords))
	out[3] = float64(in.count("list_comprehension", "set_comprehension", "dictionary_comprehension", "generator_expression", "yield")) / 5

	lambdas := in.count("lambda")
	nested := in.count("function_definition")
	if in.def != nil && in.def.Type == "function_definition" {
		nested--
	}
	out[4] = (float64(lambdas+max(0, nested))/10 + float64(in.presence(functionalWords...))/float64(len(functionalWords))) / 2

	types := make(map[string]struct{})
	syntax.WalkAll(in.nodes, func(n *syntax.Node) bool {
		if n.Named {
			types[n.Type] = struct{}{}
		}
		return true
	})
	out[5] = float64(len(types)) / 30

	dunders := 0
	for _, def := range in.find("function_definition") {
		name := def.ChildByField("name")
		if name == nil {
			continue
		}
		text := in.tree.Text(name)
		if strings.HasPrefix(text, "__") && strings.HasSuffix(text, "__") && !lifecycleDunder[text] {
			dunders++
		}
	}
	out[6] = float64(dunders) / 3
	out[7] = weighted(out[:7], w.Emergent)
	return out
}
