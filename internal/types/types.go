// Package types provides the records shared between the analysis stages.
// It exists to break import cycles between field, pattern, resonance and
// orchestrator; it depends only on the leaf packages.
package types

import (
	"time"

	"pbjrag/internal/blessing"
	"pbjrag/internal/chunk"
	"pbjrag/internal/fields"
)

// =============================================================================
// FRAGMENTS
// =============================================================================

// Fragment bundles a chunk with its field vectors and blessing record.
type Fragment struct {
	Chunk    chunk.Chunk     `json:"chunk"`
	Fields   fields.Vector   `json:"fields"`
	Blessing blessing.Record `json:"blessing"`
	AddedAt  time.Time       `json:"added_at"`
}

// ID returns the chunk ID.
func (f Fragment) ID() string { return f.Chunk.ID }

// Clone returns a deep copy. Syntax nodes are shared; they are immutable.
func (f Fragment) Clone() Fragment {
	out := f
	out.Chunk.Provides = append([]string(nil), f.Chunk.Provides...)
	out.Chunk.DependsOn = append([]string(nil), f.Chunk.DependsOn...)
	out.Chunk.Nodes = append(out.Chunk.Nodes[:0:0], f.Chunk.Nodes...)
	out.Fields = f.Fields.Clone()
	return out
}

// FragmentFilter selects fragments. It receives a copy and cannot change
// the caller's state.
type FragmentFilter func(Fragment) bool

// ByTier matches fragments of the given tier.
func ByTier(t blessing.Tier) FragmentFilter {
	return func(f Fragment) bool { return f.Blessing.Tier == t }
}

// ByPhase matches fragments in the given phase.
func ByPhase(p blessing.Phase) FragmentFilter {
	return func(f Fragment) bool { return f.Blessing.Phase == p }
}

// ByFile matches fragments from the given file.
func ByFile(file string) FragmentFilter {
	return func(f Fragment) bool { return f.Chunk.File == file }
}

// MinEPC matches fragments whose EPC is at least threshold.
func MinEPC(threshold float64) FragmentFilter {
	return func(f Fragment) bool { return f.Blessing.EPC >= threshold }
}

// All matches when every filter matches. A nil filter matches everything.
func All(filters ...FragmentFilter) FragmentFilter {
	return func(f Fragment) bool {
		for _, fn := range filters {
			if fn != nil && !fn(f) {
				return false
			}
		}
		return true
	}
}

// =============================================================================
// PATTERNS
// =============================================================================

// PatternType names the kind of recurring shape.
type PatternType string

const (
	// PatternStructural groups chunks with identical syntax shape.
	PatternStructural PatternType = "structural"
)

// Pattern is a structural shape shared by two or more fragments.
type Pattern struct {
	Type        PatternType         `json:"type"`
	Signature   string              `json:"signature"`
	Kind        chunk.Kind          `json:"kind"`
	Members     []string            `json:"members"`
	Frequency   int                 `json:"frequency"`
	AvgBlessing float64             `json:"avg_blessing"`
	Coherence   blessing.GroupStats `json:"coherence"`
}

// Clone returns a deep copy.
func (p Pattern) Clone() Pattern {
	out := p
	out.Members = append([]string(nil), p.Members...)
	return out
}

// PatternFilter selects patterns from a copy.
type PatternFilter func(Pattern) bool

// MinFrequency matches patterns seen at least n times.
func MinFrequency(n int) PatternFilter {
	return func(p Pattern) bool { return p.Frequency >= n }
}
