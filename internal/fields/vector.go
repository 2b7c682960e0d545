// Package fields computes the nine heuristic field vectors of a chunk.
//
// Every dimension is a deterministic function of the chunk's syntax nodes, its
// source text and the surrounding file tree. Values are clipped to [0,1]; a
// dimension that fails internally is replaced by a neutral 0.5 vector.
package fields

import (
	"fmt"
	"math"
)

// Dimension names one of the nine field vectors.
type Dimension int

const (
	Semantic Dimension = iota
	Emotional
	Ethical
	Temporal
	Entropic
	Rhythmic
	Contradiction
	Relational
	Emergent
)

// Dimensions lists all nine dimensions in canonical order.
var Dimensions = []Dimension{
	Semantic, Emotional, Ethical, Temporal, Entropic,
	Rhythmic, Contradiction, Relational, Emergent,
}

var dimensionNames = [...]string{
	"semantic", "emotional", "ethical", "temporal", "entropic",
	"rhythmic", "contradiction", "relational", "emergent",
}

func (d Dimension) String() string {
	if d < 0 || int(d) >= len(dimensionNames) {
		return fmt.Sprintf("dimension(%d)", int(d))
	}
	return dimensionNames[d]
}

// NeutralValue fills a vector whose computation failed.
const NeutralValue = 0.5

// Vector bundles the nine field vectors of one chunk. All slices have the
// same length and every value lies in [0,1].
type Vector struct {
	Semantic      []float64 `json:"semantic"`
	Emotional     []float64 `json:"emotional"`
	Ethical       []float64 `json:"ethical"`
	Temporal      []float64 `json:"temporal"`
	Entropic      []float64 `json:"entropic"`
	Rhythmic      []float64 `json:"rhythmic"`
	Contradiction []float64 `json:"contradiction"`
	Relational    []float64 `json:"relational"`
	Emergent      []float64 `json:"emergent"`
}

// Get returns the vector of dimension d.
func (v Vector) Get(d Dimension) []float64 {
	switch d {
	case Semantic:
		return v.Semantic
	case Emotional:
		return v.Emotional
	case Ethical:
		return v.Ethical
	case Temporal:
		return v.Temporal
	case Entropic:
		return v.Entropic
	case Rhythmic:
		return v.Rhythmic
	case Contradiction:
		return v.Contradiction
	case Relational:
		return v.Relational
	case Emergent:
		return v.Emergent
	}
	return nil
}

func (v *Vector) set(d Dimension, vals []float64) {
	switch d {
	case Semantic:
		v.Semantic = vals
	case Emotional:
		v.Emotional = vals
	case Ethical:
		v.Ethical = vals
	case Temporal:
		v.Temporal = vals
	case Entropic:
		v.Entropic = vals
	case Rhythmic:
		v.Rhythmic = vals
	case Contradiction:
		v.Contradiction = vals
	case Relational:
		v.Relational = vals
	case Emergent:
		v.Emergent = vals
	}
}

// Mean returns the mean of dimension d, or 0 for an empty vector.
func (v Vector) Mean(d Dimension) float64 {
	return Mean(v.Get(d))
}

// Means returns the mean of every dimension in canonical order.
func (v Vector) Means() []float64 {
	out := make([]float64, len(Dimensions))
	for i, d := range Dimensions {
		out[i] = v.Mean(d)
	}
	return out
}

// Flatten concatenates all dimensions in canonical order.
func (v Vector) Flatten() []float64 {
	var out []float64
	for _, d := range Dimensions {
		out = append(out, v.Get(d)...)
	}
	return out
}

// Clone returns a deep copy.
func (v Vector) Clone() Vector {
	var out Vector
	for _, d := range Dimensions {
		src := v.Get(d)
		if src == nil {
			continue
		}
		out.set(d, append([]float64(nil), src...))
	}
	return out
}

// Valid reports whether every value is finite and inside [0,1].
func (v Vector) Valid() bool {
	for _, d := range Dimensions {
		for _, x := range v.Get(d) {
			if math.IsNaN(x) || x < 0 || x > 1 {
				return false
			}
		}
	}
	return true
}

// Neutral returns a vector set whose every value is NeutralValue.
func Neutral(dim int) Vector {
	var v Vector
	for _, d := range Dimensions {
		v.set(d, neutral(dim))
	}
	return v
}

func neutral(dim int) []float64 {
	out := make([]float64, dim)
	for i := range out {
		out[i] = NeutralValue
	}
	return out
}

// Mean returns the arithmetic mean of xs, or 0 when empty.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Clip bounds x to [0,1]; NaN becomes NeutralValue.
func Clip(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return NeutralValue
	case x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
