// Package field holds the analyzed fragment population of one run and
// answers corpus-level questions about it.
package field

import (
	"sync"
	"time"

	"pbjrag/internal/blessing"
	"pbjrag/internal/fields"
	"pbjrag/internal/logging"
	"pbjrag/internal/types"
)

// maxVariance is the largest population variance of values in [0,1].
const maxVariance = 0.25

// CompostEntry is a low-quality fragment kept for later review.
type CompostEntry struct {
	Fragment types.Fragment `json:"fragment"`
	Reason   string         `json:"reason"`
	At       time.Time      `json:"at"`
}

// Container stores fragments in insertion order together with detected
// patterns and the compost list. Reads may run concurrently; callers keep a
// single writer.
type Container struct {
	mu        sync.RWMutex
	fragments []types.Fragment
	patterns  []types.Pattern
	compost   []CompostEntry

	coherence float64
	dirty     bool

	now func() time.Time
}

// Option configures a Container.
type Option func(*Container)

// WithClock overrides the time source for AddedAt and compost timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Container) { c.now = now }
}

// NewContainer returns an empty container.
func NewContainer(opts ...Option) *Container {
	c := &Container{dirty: true, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddFragment appends f. Negative fragments are also composted.
func (c *Container) AddFragment(f types.Fragment) {
	c.mu.Lock()
	defer c.mu.Unlock()

	at := c.now()
	if f.AddedAt.IsZero() {
		f.AddedAt = at
	}
	c.fragments = append(c.fragments, f)
	if f.Blessing.Tier == blessing.Negative {
		c.compost = append(c.compost, CompostEntry{Fragment: f, Reason: "negative tier", At: at})
	}
	c.dirty = true
	logging.FieldDebug("added fragment %s tier=%s", f.ID(), f.Blessing.Tier)
}

// SetPatterns replaces the detected patterns.
func (c *Container) SetPatterns(p []types.Pattern) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.patterns = make([]types.Pattern, len(p))
	for i := range p {
		c.patterns[i] = p[i].Clone()
	}
	c.dirty = true
}

// Len returns the number of fragments.
func (c *Container) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.fragments)
}

// CalculateFieldCoherence measures cross-fragment agreement: for every
// dimension the variance of per-fragment means, normalized to [0,1];
// coherence is one minus their average. Empty containers score 0.
func (c *Container) CalculateFieldCoherence() float64 {
	c.mu.RLock()
	if !c.dirty {
		v := c.coherence
		c.mu.RUnlock()
		return v
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dirty {
		c.coherence = coherence(c.fragments)
		c.dirty = false
	}
	return c.coherence
}

func coherence(frags []types.Fragment) float64 {
	switch len(frags) {
	case 0:
		return 0
	case 1:
		return 1
	}
	n := float64(len(frags))
	total := 0.0
	for _, d := range fields.Dimensions {
		sum := 0.0
		means := make([]float64, len(frags))
		for i, f := range frags {
			means[i] = f.Fields.Mean(d)
			sum += means[i]
		}
		mean := sum / n
		variance := 0.0
		for _, m := range means {
			variance += (m - mean) * (m - mean)
		}
		total += fields.Clip(variance / n / maxVariance)
	}
	return blessing.Quantize(fields.Clip(1 - total/float64(len(fields.Dimensions))))
}

// Fragments returns copies of the fragments accepted by filter, in
// insertion order. A nil filter accepts all.
func (c *Container) Fragments(filter types.FragmentFilter) []types.Fragment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.Fragment, 0, len(c.fragments))
	for _, f := range c.fragments {
		if filter == nil || filter(f.Clone()) {
			out = append(out, f.Clone())
		}
	}
	return out
}

// Patterns returns copies of the patterns accepted by filter.
func (c *Container) Patterns(filter types.PatternFilter) []types.Pattern {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.Pattern, 0, len(c.patterns))
	for _, p := range c.patterns {
		if filter == nil || filter(p.Clone()) {
			out = append(out, p.Clone())
		}
	}
	return out
}

// Compost returns copies of composted fragments accepted by filter.
func (c *Container) Compost(filter types.FragmentFilter) []types.Fragment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.Fragment, 0, len(c.compost))
	for _, e := range c.compost {
		if filter == nil || filter(e.Fragment.Clone()) {
			out = append(out, e.Fragment.Clone())
		}
	}
	return out
}

// CompostEntries returns the compost list with reasons and timestamps.
func (c *Container) CompostEntries() []CompostEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]CompostEntry, len(c.compost))
	for i, e := range c.compost {
		out[i] = CompostEntry{Fragment: e.Fragment.Clone(), Reason: e.Reason, At: e.At}
	}
	return out
}

// DecayCompost drops compost entries older than maxAge and returns how many
// were removed. Fragments are unaffected.
func (c *Container) DecayCompost(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-maxAge)
	kept := c.compost[:0]
	removed := 0
	for _, e := range c.compost {
		if e.At.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	c.compost = kept
	if removed > 0 {
		logging.FieldDebug("decayed %d compost entries older than %s", removed, maxAge)
	}
	return removed
}
