package fields

import (
	"math"
	"strings"
	"unicode"

	"pbjrag/internal/syntax"
)

// rhythmic scores the regularity of naming, indentation and layout.
func rhythmic(in *input, w Weights) []float64 {
	out := make([]float64, 8)

	snake, camel := namingStyles(in)
	if total := snake + camel; total > 0 {
		out[0] = float64(max(snake, camel)) / float64(total)
	} else {
		out[0] = 0.5
	}

	lines := in.nonBlankLines()
	out[1] = indentConsistency(lines)
	out[2] = lineLengthRegularity(lines)

	funcs := in.count("function_definition")
	perFunc := float64(in.chunk.LineCount()) / float64(max(1, funcs))
	switch {
	case perFunc >= 10 && perFunc <= 20:
		out[3] = 1
	case perFunc < 10:
		out[3] = 0.8
	default:
		out[3] = 1 - (perFunc-20)/100
	}

	out[4] = blankRhythm(in.lines)

	density := ratio(float64(statementCount(in.nodes)), float64(len(lines)))
	if density >= 0.8 && density <= 1.2 {
		out[5] = 1
	} else {
		out[5] = 1 - math.Abs(density-1)
	}

	out[6] = Mean(clipAll(out[:6]))
	out[7] = weighted(out[:6], w.Rhythmic)
	return out
}

// namingStyles counts snake_case and camelCase names bound in the chunk.
func namingStyles(in *input) (snake, camel int) {
	for _, n := range in.find("identifier") {
		p := n.Parent
		if p == nil {
			continue
		}
		binding := (p.Type == "function_definition" && n.Field == "name") ||
			p.Type == "parameters" ||
			((p.Type == "default_parameter" || p.Type == "typed_default_parameter") && n.Field == "name") ||
			((p.Type == "assignment" || p.Type == "augmented_assignment") && n.Field == "left")
		if !binding {
			continue
		}
		switch style(in.tree.Text(n)) {
		case styleSnake:
			snake++
		case styleCamel:
			camel++
		}
	}
	return snake, camel
}

type nameStyle int

const (
	styleOther nameStyle = iota
	styleSnake
	styleCamel
)

func style(name string) nameStyle {
	trimmed := strings.Trim(name, "_")
	if trimmed == "" {
		return styleOther
	}
	hasUpper, hasLower := false, false
	for _, r := range trimmed {
		if unicode.IsUpper(r) {
			hasUpper = true
		}
		if unicode.IsLower(r) {
			hasLower = true
		}
	}
	switch {
	case hasLower && !hasUpper:
		return styleSnake
	case hasLower && hasUpper && unicode.IsLower(rune(trimmed[0])) && !strings.Contains(trimmed, "_"):
		return styleCamel
	}
	return styleOther
}

func indentWidth(line string) int {
	w := 0
	for _, r := range line {
		switch r {
		case ' ':
			w++
		case '\t':
			w += 4
		default:
			return w
		}
	}
	return w
}

func indentConsistency(lines []string) float64 {
	levels := make(map[int]struct{})
	for _, l := range lines {
		levels[indentWidth(l)] = struct{}{}
	}
	if len(levels) <= 1 {
		return 0.8
	}
	aligned := 0
	for lvl := range levels {
		if lvl%4 == 0 {
			aligned++
		}
	}
	return float64(aligned) / float64(len(levels))
}

func lineLengthRegularity(lines []string) float64 {
	if len(lines) < 2 {
		return 0.5
	}
	lengths := make([]float64, len(lines))
	for i, l := range lines {
		lengths[i] = float64(len(strings.TrimRight(l, " \t")))
	}
	mean := Mean(lengths)
	if mean == 0 {
		return 0.5
	}
	variance := 0.0
	for _, x := range lengths {
		variance += (x - mean) * (x - mean)
	}
	variance /= float64(len(lengths))
	return 1 - math.Sqrt(variance)/mean
}

func blankRhythm(lines []string) float64 {
	var runs []int
	run := 0
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			run++
			continue
		}
		if run > 0 {
			runs = append(runs, run)
			run = 0
		}
	}
	if len(runs) == 0 {
		return 0.7
	}
	good := 0
	for _, r := range runs {
		if r >= 1 && r <= 2 {
			good++
		}
	}
	return float64(good) / float64(len(runs))
}

// statementCount counts simple and compound statements.
func statementCount(roots []*syntax.Node) int {
	n := 0
	syntax.WalkAll(roots, func(node *syntax.Node) bool {
		if strings.HasSuffix(node.Type, "_statement") || node.Type == "function_definition" || node.Type == "class_definition" {
			n++
		}
		return true
	})
	return n
}

func clipAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = Clip(x)
	}
	return out
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
