package pattern

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"pbjrag/internal/blessing"
	"pbjrag/internal/types"
)

// Purpose steers which qualities a combination should maximize.
type Purpose string

const (
	PurposeStability  Purpose = "stability"
	PurposeEmergence  Purpose = "emergence"
	PurposeCoherence  Purpose = "coherence"
	PurposeInnovation Purpose = "innovation"
)

// ParsePurpose validates a purpose name.
func ParsePurpose(s string) (Purpose, error) {
	switch p := Purpose(strings.ToLower(strings.TrimSpace(s))); p {
	case PurposeStability, PurposeEmergence, PurposeCoherence, PurposeInnovation:
		return p, nil
	}
	return "", fmt.Errorf("unknown purpose %q", s)
}

type scalar int

const (
	scalarEthics scalar = iota
	scalarPresence
	scalarContradiction
	scalarEntropy
	scalarCadence
)

func (s scalar) of(r blessing.Record) float64 {
	switch s {
	case scalarEthics:
		return r.Ethics
	case scalarPresence:
		return r.Presence
	case scalarContradiction:
		return r.Contradiction
	case scalarEntropy:
		return r.Entropy
	case scalarCadence:
		return r.Cadence
	}
	return 0.5
}

type weight struct {
	s scalar
	w float64
}

// Negative weights reward low values.
var purposeWeights = map[Purpose][]weight{
	PurposeStability:  {{scalarContradiction, -0.4}, {scalarEthics, 0.4}, {scalarCadence, 0.2}},
	PurposeEmergence:  {{scalarEntropy, 0.4}, {scalarContradiction, 0.2}, {scalarPresence, 0.4}},
	PurposeCoherence:  {{scalarContradiction, -0.5}, {scalarCadence, 0.5}},
	PurposeInnovation: {{scalarEntropy, 0.5}, {scalarContradiction, 0.3}, {scalarEthics, 0.2}},
}

// CombineOptions bounds the combination search.
type CombineOptions struct {
	Purpose      Purpose
	TopN         int
	MaxGroupSize int
	MinEPC       float64
	// Candidates caps how many fragments, ranked by resonance, are combined.
	Candidates int
}

// DefaultCombineOptions returns the stability search with the standard limits.
func DefaultCombineOptions() CombineOptions {
	return CombineOptions{
		Purpose:      PurposeStability,
		TopN:         10,
		MaxGroupSize: 3,
		MinEPC:       0.4,
		Candidates:   24,
	}
}

// Combination is a scored group of fragments.
type Combination struct {
	Members          []string            `json:"members"`
	Purpose          Purpose             `json:"purpose"`
	PurposeAlignment float64             `json:"purpose_alignment"`
	EmergenceScore   float64             `json:"emergence_score"`
	GroupResonance   float64             `json:"group_resonance"`
	EPC              float64             `json:"epc"`
	Score            float64             `json:"score"`
	Group            blessing.GroupStats `json:"group"`
}

// SuggestCombinations scores every group of 2..MaxGroupSize candidates and
// returns the best TopN whose mean EPC reaches MinEPC.
func SuggestCombinations(fragments []types.Fragment, opts CombineOptions) []Combination {
	def := DefaultCombineOptions()
	if opts.Purpose == "" {
		opts.Purpose = def.Purpose
	}
	if opts.TopN <= 0 {
		opts.TopN = def.TopN
	}
	if opts.MaxGroupSize < 2 {
		opts.MaxGroupSize = def.MaxGroupSize
	}
	if opts.Candidates <= 0 {
		opts.Candidates = def.Candidates
	}
	weights, ok := purposeWeights[opts.Purpose]
	if !ok {
		weights = purposeWeights[PurposeStability]
	}

	pool := candidates(fragments, opts.Candidates)
	var out []Combination
	combinations(len(pool), opts.MaxGroupSize, func(idx []int) {
		group := make([]types.Fragment, len(idx))
		records := make([]blessing.Record, len(idx))
		for i, j := range idx {
			group[i] = pool[j]
			records[i] = pool[j].Blessing
		}
		stats := blessing.GroupCoherence(records)
		if stats.MeanEPC < opts.MinEPC {
			return
		}
		alignment := purposeAlignment(records, weights)
		emergence := emergenceScore(records)

		ids := make([]string, len(group))
		for i, f := range group {
			ids[i] = f.ID()
		}
		sort.Strings(ids)
		out = append(out, Combination{
			Members:          ids,
			Purpose:          opts.Purpose,
			PurposeAlignment: blessing.Quantize(alignment),
			EmergenceScore:   blessing.Quantize(emergence),
			GroupResonance:   stats.GroupCoherence,
			EPC:              stats.MeanEPC,
			Score:            blessing.Quantize(stats.MeanEPC*0.3 + alignment*0.3 + emergence*0.2 + stats.GroupCoherence*0.2),
			Group:            stats,
		})
	})

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return strings.Join(out[i].Members, "\x00") < strings.Join(out[j].Members, "\x00")
	})
	if len(out) > opts.TopN {
		out = out[:opts.TopN]
	}
	return out
}

// candidates keeps the n fragments with the highest resonance, ties by ID.
func candidates(fragments []types.Fragment, n int) []types.Fragment {
	pool := append([]types.Fragment(nil), fragments...)
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].Blessing.Resonance != pool[j].Blessing.Resonance {
			return pool[i].Blessing.Resonance > pool[j].Blessing.Resonance
		}
		return pool[i].ID() < pool[j].ID()
	})
	if len(pool) > n {
		pool = pool[:n]
	}
	return pool
}

// combinations calls fn with every index set of size 2..k drawn from [0,n).
func combinations(n, k int, fn func([]int)) {
	idx := make([]int, 0, k)
	var rec func(start int)
	rec = func(start int) {
		if len(idx) >= 2 {
			fn(append([]int(nil), idx...))
		}
		if len(idx) == k {
			return
		}
		for i := start; i < n; i++ {
			idx = append(idx, i)
			rec(i + 1)
			idx = idx[:len(idx)-1]
		}
	}
	rec(0)
}

func purposeAlignment(records []blessing.Record, weights []weight) float64 {
	total := 0.0
	for _, w := range weights {
		total += math.Abs(w.w)
	}
	if total == 0 || len(records) == 0 {
		return 0.5
	}
	sum := 0.0
	for _, r := range records {
		for _, w := range weights {
			v, k := w.s.of(r), w.w
			if k < 0 {
				v, k = 1-v, -k
			}
			sum += v * k
		}
	}
	return sum / (total * float64(len(records)))
}

func emergenceScore(records []blessing.Record) float64 {
	if len(records) == 0 {
		return 0
	}
	n := float64(len(records))
	var entropy, contradiction, ethics, presence float64
	for _, r := range records {
		entropy += r.Entropy
		contradiction += r.Contradiction
		ethics += r.Ethics
		presence += r.Presence
	}
	entropyMean := entropy / n
	variance := 0.0
	for _, r := range records {
		variance += (r.Entropy - entropyMean) * (r.Entropy - entropyMean)
	}
	diversity := math.Min(1, variance/n*5)
	balance := 1 - math.Abs(contradiction/n-0.5)*2
	return diversity*0.3 + balance*0.3 + (ethics/n)*0.2 + (presence/n)*0.2
}
