package fields

import (
	"pbjrag/internal/chunk"
	"pbjrag/internal/syntax"
)

// relational scores how the chunk couples to the rest of its file.
func relational(in *input, _ Weights) []float64 {
	out := make([]float64, 8)

	outgoing := make(map[string]struct{})
	for _, call := range in.find("call") {
		if name := calleeName(in.tree, call); name != "" {
			outgoing[name] = struct{}{}
		}
	}
	out[0] = float64(len(outgoing)) / 10

	if in.chunk.Kind != chunk.KindModule {
		incoming := 0
		for _, call := range in.file.callCounts[in.chunk.Name] {
			if !within(call, in.nodes) {
				incoming++
			}
		}
		out[1] = float64(incoming) / 10
	}

	out[2] = float64(sharedDeps(in)) / 20
	out[3] = float64(len(in.chunk.DependsOn)) / 15
	out[4] = float64(len(in.chunk.Provides)) / 10

	attrs := make(map[string]struct{})
	for _, a := range in.find("attribute") {
		if attr := a.ChildByField("attribute"); attr != nil {
			attrs[in.tree.Text(attr)] = struct{}{}
		}
	}
	out[5] = float64(len(attrs)) / 15

	imported := 0
	for _, d := range in.chunk.DependsOn {
		if in.file.importNames[d] {
			imported++
		}
	}
	out[6] = float64(imported) / 5
	out[7] = Mean(clipAll(out[:7]))
	return out
}

// sharedDeps counts this chunk's dependencies that some other definition in
// the file also depends on.
func sharedDeps(in *input) int {
	if len(in.chunk.DependsOn) == 0 {
		return 0
	}
	var own *syntax.Node
	if in.def != nil {
		own = in.def
	}
	shared := 0
	for _, dep := range in.chunk.DependsOn {
		for def, deps := range in.file.defDeps {
			if def == own || within(def, in.nodes) || (own != nil && within(own, []*syntax.Node{def})) {
				continue
			}
			if deps[dep] {
				shared++
				break
			}
		}
	}
	return shared
}
