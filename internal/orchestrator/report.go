package orchestrator

import (
	"fmt"
	"io"
	"strings"
	"time"

	"pbjrag/internal/blessing"
	"pbjrag/internal/field"
	"pbjrag/internal/pattern"
	"pbjrag/internal/phase"
	"pbjrag/internal/types"
)

// FileFailure records a file that produced no fragments.
type FileFailure struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// Report is the outcome of one run.
type Report struct {
	RunID        string                `json:"run_id"`
	StartedAt    time.Time             `json:"started_at"`
	Duration     time.Duration         `json:"duration"`
	Files        int                   `json:"files"`
	Fragments    int                   `json:"fragments"`
	Failures     []FileFailure         `json:"failures,omitempty"`
	Patterns     []types.Pattern       `json:"patterns"`
	Combinations []pattern.Combination `json:"combinations,omitempty"`
	Coherence    float64               `json:"coherence"`
	Pulse        field.Pulse           `json:"pulse"`
	Phases       []phase.Transition    `json:"phases"`
	Indexed      int                   `json:"indexed"`
	IndexError   string                `json:"index_error,omitempty"`

	// Container holds the analyzed population for follow-up queries.
	Container *field.Container `json:"-"`
}

const reportListLimit = 10

// WriteMarkdown renders a human-readable summary of the run.
func (r *Report) WriteMarkdown(w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Analysis report\n\n")
	fmt.Fprintf(&b, "- Run: `%s`\n", r.RunID)
	fmt.Fprintf(&b, "- Started: %s\n", r.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Duration: %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "- Files: %d (%d failed)\n", r.Files, len(r.Failures))
	fmt.Fprintf(&b, "- Fragments: %d\n", r.Fragments)
	fmt.Fprintf(&b, "- Field coherence: %.4f\n", r.Coherence)
	fmt.Fprintf(&b, "- Mean EPC: %.4f\n", r.Pulse.MeanEPC)
	if r.Indexed > 0 || r.IndexError != "" {
		fmt.Fprintf(&b, "- Indexed: %d\n", r.Indexed)
	}
	if r.IndexError != "" {
		fmt.Fprintf(&b, "- Index error: %s\n", r.IndexError)
	}

	b.WriteString("\n## Blessing tiers\n\n| Tier | Count |\n|---|---|\n")
	for _, t := range []blessing.Tier{blessing.Positive, blessing.Neutral, blessing.Negative} {
		fmt.Fprintf(&b, "| %s %s | %d |\n", t.Symbol(), t, r.Pulse.Tiers[t])
	}

	b.WriteString("\n## Phases\n\n| Phase | Count |\n|---|---|\n")
	for _, p := range blessing.Phases {
		fmt.Fprintf(&b, "| %s | %d |\n", p, r.Pulse.Phases[p])
	}

	if len(r.Patterns) > 0 {
		b.WriteString("\n## Patterns\n\n| Kind | Frequency | Avg EPC | Group tier | Members |\n|---|---|---|---|---|\n")
		for i, p := range r.Patterns {
			if i == reportListLimit {
				fmt.Fprintf(&b, "\n_%d more patterns omitted._\n", len(r.Patterns)-reportListLimit)
				break
			}
			fmt.Fprintf(&b, "| %s | %d | %.4f | %s | %s |\n",
				p.Kind, p.Frequency, p.AvgBlessing, p.Coherence.Tier, strings.Join(p.Members, ", "))
		}
	}

	if len(r.Combinations) > 0 {
		fmt.Fprintf(&b, "\n## Suggested combinations (%s)\n\n| Score | EPC | Members |\n|---|---|---|\n", r.Combinations[0].Purpose)
		for _, c := range r.Combinations {
			fmt.Fprintf(&b, "| %.4f | %.4f | %s |\n", c.Score, c.EPC, strings.Join(c.Members, ", "))
		}
	}

	if r.Container != nil {
		if compost := r.Container.Compost(nil); len(compost) > 0 {
			b.WriteString("\n## Compost\n\n")
			for i, f := range compost {
				if i == reportListLimit {
					fmt.Fprintf(&b, "\n_%d more composted fragments omitted._\n", len(compost)-reportListLimit)
					break
				}
				advice := blessing.Recommend(f.Blessing)
				fmt.Fprintf(&b, "- `%s` (EPC %.4f, %s priority): %s\n", f.ID(), f.Blessing.EPC, advice.Priority, advice.Guidance)
				for _, rec := range advice.Recommendations {
					fmt.Fprintf(&b, "  - %s\n", rec)
				}
			}
		}
	}

	if len(r.Failures) > 0 {
		b.WriteString("\n## Failures\n\n")
		for _, f := range r.Failures {
			fmt.Fprintf(&b, "- `%s`: %s\n", f.File, f.Reason)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
