// Package pattern finds structural shapes that recur across fragments and
// suggests fragment combinations for a stated purpose.
package pattern

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"pbjrag/internal/blessing"
	"pbjrag/internal/chunk"
	"pbjrag/internal/logging"
	"pbjrag/internal/syntax"
	"pbjrag/internal/types"
)

// DefaultMinFrequency is the smallest group reported as a pattern.
const DefaultMinFrequency = 2

// Signature hashes the pre-order sequence of named node types of a chunk,
// prefixed by its kind. Identifier text never contributes, so renamed copies
// of the same code share a signature.
func Signature(c chunk.Chunk) string {
	h := sha256.New()
	h.Write([]byte(c.Kind))
	syntax.WalkAll(c.Nodes, func(n *syntax.Node) bool {
		if n.Named {
			h.Write([]byte{' '})
			h.Write([]byte(n.Type))
		}
		return true
	})
	return hex.EncodeToString(h.Sum(nil))
}

// Analyzer groups fragments by structural signature.
type Analyzer struct {
	minFrequency int
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithMinFrequency sets the minimum group size (at least 2).
func WithMinFrequency(n int) Option {
	return func(a *Analyzer) { a.minFrequency = max(DefaultMinFrequency, n) }
}

// New returns an Analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{minFrequency: DefaultMinFrequency}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Detect returns one pattern per signature shared by at least the minimum
// number of fragments. Module chunks are not considered. Members are sorted
// by ID; patterns by frequency descending, then signature.
func (a *Analyzer) Detect(fragments []types.Fragment) []types.Pattern {
	timer := logging.StartTimer(logging.CategoryPattern, "Detect")
	defer timer.Stop()

	groups := make(map[string][]types.Fragment)
	for _, f := range fragments {
		if f.Chunk.Kind == chunk.KindModule || len(f.Chunk.Nodes) == 0 {
			continue
		}
		sig := Signature(f.Chunk)
		groups[sig] = append(groups[sig], f)
	}

	patterns := make([]types.Pattern, 0)
	for sig, members := range groups {
		if len(members) < a.minFrequency {
			continue
		}
		patterns = append(patterns, buildPattern(sig, members))
	}
	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Frequency != patterns[j].Frequency {
			return patterns[i].Frequency > patterns[j].Frequency
		}
		return patterns[i].Signature < patterns[j].Signature
	})

	logging.Pattern("detected %d patterns across %d fragments", len(patterns), len(fragments))
	return patterns
}

func buildPattern(sig string, members []types.Fragment) types.Pattern {
	sort.Slice(members, func(i, j int) bool { return members[i].ID() < members[j].ID() })

	ids := make([]string, len(members))
	records := make([]blessing.Record, len(members))
	sum := 0.0
	for i, m := range members {
		ids[i] = m.ID()
		records[i] = m.Blessing
		sum += m.Blessing.EPC
	}
	return types.Pattern{
		Type:        types.PatternStructural,
		Signature:   sig,
		Kind:        members[0].Chunk.Kind,
		Members:     ids,
		Frequency:   len(members),
		AvgBlessing: blessing.Quantize(sum / float64(len(members))),
		Coherence:   blessing.GroupCoherence(records),
	}
}
