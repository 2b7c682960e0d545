package orchestrator

import (
	"fmt"
	"strings"

	"pbjrag/internal/fields"
	"pbjrag/internal/types"
)

// IndexText is the text embedded for a fragment: its source followed by
// semantic, ethical, relational and phase summary lines.
func IndexText(f types.Fragment) string {
	var b strings.Builder
	b.WriteString(f.Chunk.Content)
	if !strings.HasSuffix(f.Chunk.Content, "\n") {
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "\nname: %s (%s)\n", f.Chunk.QualifiedName, f.Chunk.Kind)
	fmt.Fprintf(&b, "semantic: %s\n", levels(f.Fields.Semantic))
	fmt.Fprintf(&b, "ethical: %s\n", levels(f.Fields.Ethical))
	fmt.Fprintf(&b, "relational: %s", levels(f.Fields.Relational))
	if len(f.Chunk.DependsOn) > 0 {
		fmt.Fprintf(&b, " depends on %s", strings.Join(f.Chunk.DependsOn, ", "))
	}
	b.WriteByte('\n')
	fmt.Fprintf(&b, "phase: %s tier: %s epc: %.4f\n", f.Blessing.Phase, f.Blessing.Tier, f.Blessing.EPC)
	return b.String()
}

// levels renders a vector mean as a coarse word and the value.
func levels(v []float64) string {
	m := fields.Mean(v)
	word := "low"
	switch {
	case m >= 0.66:
		word = "high"
	case m >= 0.33:
		word = "medium"
	}
	return fmt.Sprintf("%s %.2f", word, m)
}
