package fields

import (
	"math"
	"strings"

	"pbjrag/internal/syntax"
)

// semantic scores naming and documentation quality.
func semantic(in *input, _ Weights) []float64 {
	out := make([]float64, 8)

	if len(in.words) > 0 {
		unique := make(map[string]struct{}, len(in.words))
		for _, w := range in.words {
			unique[w] = struct{}{}
		}
		out[0] = float64(len(unique)) / float64(len(in.words))
	}

	named := 0
	syntax.WalkAll(in.nodes, func(n *syntax.Node) bool {
		if n.Named {
			named++
		}
		return true
	})
	out[1] = 1 - math.Exp(-float64(named)/50)
	out[2] = math.Min(1, float64(len(in.doc))/200)

	docLower := strings.ToLower(in.doc)
	out[3] = 0.5
	if strings.Contains(docLower, "param") || strings.Contains(docLower, "args:") {
		out[3] = 1
	}
	out[4] = 0.5
	if strings.Contains(docLower, "return") {
		out[4] = 1
	}

	name := in.chunk.Name
	out[5] = 0.5
	if strings.Contains(name, "_") {
		out[5] = 1
	}
	out[6] = math.Min(1, float64(len(name))/20)
	out[7] = 0.7
	if strings.ToLower(name) != name {
		out[7] = 1
	}
	return out
}

var (
	positiveWords = []string{"create", "build", "init", "setup", "helper", "util", "calculate", "validate", "clean"}
	negativeWords = []string{"delete", "remove", "fail", "error", "broken", "hack"}
	uneasyWords   = []string{"sorry", "workaround", "temporary", "xxx"}
)

// emotional scores comment tone and the author's expressed intent.
func emotional(in *input, _ Weights) []float64 {
	out := make([]float64, 8)

	total := len(in.lines)
	docLines := 0
	if in.doc != "" {
		docLines = strings.Count(in.doc, "\n") + 1
	}
	out[0] = ratio(float64(in.count("comment")+docLines), float64(total))

	pos := float64(in.presence(positiveWords...)) / float64(len(positiveWords))
	neg := float64(in.presence(negativeWords...)) / float64(len(negativeWords))
	out[1] = pos
	out[2] = neg
	out[3] = float64(in.occurrences("todo")) / 5
	out[4] = float64(in.occurrences("fixme")) / 5
	out[5] = float64(in.count("assert_statement")) / 10
	out[6] = float64(in.presence(uneasyWords...)) / float64(len(uneasyWords))
	out[7] = 0.5 + (pos-neg)/2
	return out
}
