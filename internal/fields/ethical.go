package fields

import (
	"math"
	"strings"
)

var (
	validationWords = []string{"assert", "raise", "check", "validate", "verify"}
	testWords       = []string{"test_", "assert", "mock", "fixture"}
	dangerWords     = []string{"exec(", "eval(", "global ", "__dict__"}
)

// branchTypes are the statements that open a new control-flow path.
var branchTypes = []string{"if_statement", "for_statement", "while_statement", "try_statement", "with_statement"}

// ethical scores validation, error handling and defensive habits.
func ethical(in *input, _ Weights) []float64 {
	out := make([]float64, 8)

	out[0] = float64(in.count("try_statement")) / 5
	out[1] = float64(in.presence(validationWords...)) / float64(len(validationWords))
	out[2] = float64(typeHints(in)) / 5
	if strings.Contains(in.lower, "log") {
		out[3] = 1
	}
	out[4] = float64(in.presence(testWords...)) / float64(len(testWords))
	out[5] = 1 - float64(in.presence(dangerWords...))/float64(len(dangerWords))
	if in.doc != "" {
		out[6] = 1
	}
	out[7] = 1 / (1 + float64(in.count(branchTypes...))/10)
	return out
}

// typeHints counts parameter annotations and return annotations.
func typeHints(in *input) int {
	n := in.count("typed_parameter", "typed_default_parameter")
	for _, def := range in.find("function_definition") {
		if def.ChildByField("return_type") != nil {
			n++
		}
	}
	return n
}

var (
	versionWords = []string{"v1", "v2", "version", "deprecated", "legacy", "new"}
	churnWords   = []string{"todo", "fixme", "hack", "refactor", "optimize"}
	stableWords  = []string{"stable", "final", "production", "tested"}
)

// temporal scores signs of age, churn and modernity.
func temporal(in *input, _ Weights) []float64 {
	out := make([]float64, 8)

	out[0] = float64(in.presence(versionWords...)) / float64(len(versionWords))
	out[1] = float64(in.presence(churnWords...)) / float64(len(churnWords))
	out[2] = float64(in.presence(stableWords...)) / float64(len(stableWords))
	out[3] = float64(in.file.modernHits) / float64(len(modernModules))
	if in.chunk.Async || len(in.find("await")) > 0 {
		out[4] = 1
	}
	out[5] = math.Min(1, float64(fStrings(in))/3)
	if in.count("named_expression", "match_statement") > 0 {
		out[6] = 1
	}
	out[7] = 1
	if strings.Contains(in.lower, "deprecated") || strings.Contains(in.lower, "legacy") {
		out[7] = 0
	}
	return out
}

func fStrings(in *input) int {
	n := 0
	for _, s := range in.find("string") {
		text := in.tree.Text(s)
		prefix := strings.ToLower(text[:len(text)-len(strings.TrimLeft(text, "rRbBuUfF"))])
		if strings.Contains(prefix, "f") {
			n++
		}
	}
	return n
}
