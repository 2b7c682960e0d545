package blessing

import "pbjrag/internal/fields"

// Cadence classifies the rhythm of a chunk.
type Cadence string

const (
	CadenceStaccato Cadence = "staccato"
	CadenceAndante  Cadence = "andante"
	CadenceLegato   Cadence = "legato"
	CadenceFlow     Cadence = "flow"
)

// CadenceOf buckets a rhythm score.
func CadenceOf(x float64) Cadence {
	switch x = fields.Clip(x); {
	case x < 0.3:
		return CadenceStaccato
	case x < 0.6:
		return CadenceAndante
	case x < 0.85:
		return CadenceLegato
	}
	return CadenceFlow
}

// Tone summarizes the balance of ethics, entropy and contradiction.
type Tone string

const (
	ToneDissonant   Tone = "dissonant"
	ToneHarmonic    Tone = "harmonic"
	ToneNeutral     Tone = "neutral"
	ToneEntropic    Tone = "entropic"
	ToneCrystalline Tone = "crystalline"
	ToneMixed       Tone = "mixed"
)

// ToneOf returns the first matching tone, or ToneMixed.
func ToneOf(ethics, entropy, contradiction float64) Tone {
	switch {
	case contradiction > 0.7:
		return ToneDissonant
	case ethics > 0.7 && contradiction < 0.3:
		return ToneHarmonic
	case ethics >= 0.4 && ethics <= 0.6 && contradiction >= 0.4 && contradiction <= 0.6:
		return ToneNeutral
	case entropy > 0.7:
		return ToneEntropic
	case entropy < 0.3 && ethics > 0.5:
		return ToneCrystalline
	}
	return ToneMixed
}

// ChunkResonance is the weighted quality score used to rank chunks for
// combination and reporting.
func ChunkResonance(semantic, ethics, contradiction, presence, temporal float64) float64 {
	return fields.Clip(0.25*semantic + 0.30*ethics + 0.20*(1-contradiction) + 0.15*presence + 0.10*temporal)
}

// GroupStats describes how well a set of records agree.
type GroupStats struct {
	GroupCoherence float64 `json:"group_coherence"`
	Alignment      float64 `json:"alignment"`
	Resonance      float64 `json:"resonance"`
	MeanEPC        float64 `json:"mean_epc"`
	Tier           Tier    `json:"tier"`
}

// GroupCoherence scores a group by mean EPC, EPC spread and the balance of
// ethics against contradiction. An empty group scores zero.
func GroupCoherence(records []Record) GroupStats {
	if len(records) == 0 {
		return GroupStats{Tier: Negative}
	}
	n := float64(len(records))
	var sumEPC, sumEthics, sumContradiction float64
	for _, r := range records {
		sumEPC += r.EPC
		sumEthics += r.Ethics
		sumContradiction += r.Contradiction
	}
	meanEPC := sumEPC / n

	variance := 0.0
	for _, r := range records {
		variance += (r.EPC - meanEPC) * (r.EPC - meanEPC)
	}
	variance /= n

	alignment := 1 - min(1, variance*4)
	resonance := (sumEthics / n) * (1 - sumContradiction/n)
	group := meanEPC*0.5 + alignment*0.3 + resonance*0.2

	return GroupStats{
		GroupCoherence: Quantize(group),
		Alignment:      Quantize(alignment),
		Resonance:      Quantize(resonance),
		MeanEPC:        Quantize(meanEPC),
		Tier:           TierOf(meanEPC, 0.5, group, 0.5),
	}
}

// Priority ranks how urgently a chunk needs attention.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Advice is the improvement guidance for one record.
type Advice struct {
	Tier            Tier     `json:"tier"`
	Priority        Priority `json:"priority"`
	Guidance        string   `json:"guidance"`
	Recommendations []string `json:"recommendations,omitempty"`
}

var guidance = map[Tier]string{
	Positive: "Maintain current coherence and consider as a pattern for other components",
	Neutral:  "Component has potential but needs refinement in key areas",
	Negative: "Significant improvement needed for proper field coherence",
}

// Recommend derives advice from the record's tier and scalars.
func Recommend(r Record) Advice {
	a := Advice{Tier: r.Tier, Guidance: guidance[r.Tier]}
	switch r.Tier {
	case Positive:
		a.Priority = PriorityLow
	case Neutral:
		a.Priority = PriorityMedium
		if r.Contradiction > 0.5 {
			a.Recommendations = append(a.Recommendations, "Address moderate contradiction to improve coherence")
		}
		if r.Ethics < 0.5 {
			a.Recommendations = append(a.Recommendations, "Strengthen validation and error handling")
		}
		if r.Cadence < 0.5 {
			a.Recommendations = append(a.Recommendations, "Enhance cadence for improved flow")
		}
	default:
		a.Priority = PriorityHigh
		if r.Contradiction > 0.7 {
			a.Recommendations = append(a.Recommendations, "Reduce contradiction by resolving conflicting patterns")
		}
		if r.Ethics < 0.3 {
			a.Recommendations = append(a.Recommendations, "Improve clarity of intent through validation and documentation")
		}
		if r.Cadence < 0.3 {
			a.Recommendations = append(a.Recommendations, "Improve flow and rhythm through consistent patterns")
		}
	}
	return a
}
