package config

import (
	"fmt"
	"math"
	"runtime"
	"time"
)

// Field vector length bounds.
const (
	MinFieldDim = 4
	MaxFieldDim = 64
)

// MinCompostMaxAge is the shortest accepted analysis.compost_max_age.
const MinCompostMaxAge = time.Hour

// AnalysisConfig controls chunking, field extraction and the worker pool.
type AnalysisConfig struct {
	// FieldDim is the length of every field vector.
	FieldDim int `yaml:"field_dim" json:"field_dim,omitempty"`
	// Workers caps concurrent per-file parse+extract workers.
	Workers int `yaml:"workers" json:"workers,omitempty"`
	// IgnorePatterns skips matching directories and files during discovery.
	IgnorePatterns []string `yaml:"ignore_patterns" json:"ignore_patterns,omitempty"`
	// MaxFileBytes rejects larger files as a file-level failure.
	MaxFileBytes int64 `yaml:"max_file_bytes" json:"max_file_bytes,omitempty"`
	// FileTimeout bounds the work spent on a single file ("" = unbounded).
	FileTimeout string `yaml:"file_timeout" json:"file_timeout,omitempty"`
	// CompostMaxAge is how long negative-tier entries stay in compost.
	CompostMaxAge string `yaml:"compost_max_age" json:"compost_max_age,omitempty"`
	// Purpose selects combination weights: stability, emergence, coherence, innovation.
	Purpose string `yaml:"purpose" json:"purpose,omitempty"`
}

// DefaultAnalysisConfig returns analysis defaults.
func DefaultAnalysisConfig() AnalysisConfig {
	workers := runtime.NumCPU()
	if workers > 16 {
		workers = 16
	}
	if workers < 2 {
		workers = 2
	}
	return AnalysisConfig{
		FieldDim: 8,
		Workers:  workers,
		IgnorePatterns: []string{
			".git",
			".pbj",
			"__pycache__",
			".venv",
			"venv",
			"node_modules",
			"build",
			"dist",
			".tox",
			".mypy_cache",
			".pytest_cache",
		},
		MaxFileBytes:  2 * 1024 * 1024,
		CompostMaxAge: "168h",
		Purpose:       "coherence",
	}
}

// WeightsConfig holds the composite-slot weights of the three weighted dimensions.
type WeightsConfig struct {
	Entropic []float64 `yaml:"entropic" json:"entropic,omitempty"`
	Rhythmic []float64 `yaml:"rhythmic" json:"rhythmic,omitempty"`
	Emergent []float64 `yaml:"emergent" json:"emergent,omitempty"`
}

// DefaultWeightsConfig returns the stock weights.
func DefaultWeightsConfig() WeightsConfig {
	return WeightsConfig{
		Entropic: []float64{0.30, 0.20, 0.15, 0.15, 0.10, 0.05, 0.05},
		Rhythmic: []float64{0.25, 0.20, 0.15, 0.15, 0.10, 0.15},
		Emergent: []float64{0.20, 0.20, 0.15, 0.15, 0.10, 0.10, 0.10},
	}
}

// Validate checks lengths, signs and that each set sums to 1.
func (w WeightsConfig) Validate() error {
	sets := []struct {
		name string
		ws   []float64
		n    int
	}{
		{"entropic", w.Entropic, 7},
		{"rhythmic", w.Rhythmic, 6},
		{"emergent", w.Emergent, 7},
	}
	for _, s := range sets {
		if len(s.ws) != s.n {
			return fmt.Errorf("weights.%s must have %d entries, got %d", s.name, s.n, len(s.ws))
		}
		sum := 0.0
		for _, v := range s.ws {
			if v < 0 || math.IsNaN(v) {
				return fmt.Errorf("weights.%s contains invalid weight %v", s.name, v)
			}
			sum += v
		}
		if math.Abs(sum-1) > 1e-6 {
			return fmt.Errorf("weights.%s must sum to 1, got %.4f", s.name, sum)
		}
	}
	return nil
}
