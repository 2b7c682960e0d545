// Package blessing turns field vectors into a quality tier, an emergence
// potential coefficient (EPC) and a per-chunk lifecycle phase estimate.
package blessing

import (
	"math"

	"pbjrag/internal/fields"
	"pbjrag/internal/logging"
)

// Tier is the quality classification of a chunk.
type Tier string

const (
	Positive Tier = "Positive"
	Neutral  Tier = "Neutral"
	Negative Tier = "Negative"
)

// Symbol returns the compact glyph used in reports.
func (t Tier) Symbol() string {
	switch t {
	case Positive:
		return "Φ+"
	case Neutral:
		return "Φ~"
	}
	return "Φ-"
}

// Phase is the estimated maturity of a chunk.
type Phase string

const (
	PhaseRaw        Phase = "raw"
	PhaseReflective Phase = "reflective"
	PhaseDeveloping Phase = "developing"
	PhaseStable     Phase = "stable"
	PhaseAdapting   Phase = "adapting"
	PhaseNovel      Phase = "novel"
	PhaseHardening  Phase = "hardening"
)

// Phases lists the phases in ascending order.
var Phases = []Phase{
	PhaseRaw, PhaseReflective, PhaseDeveloping, PhaseStable,
	PhaseAdapting, PhaseNovel, PhaseHardening,
}

// phaseBounds are the lower bounds of each phase bucket.
var phaseBounds = []float64{0, 0.20, 0.35, 0.50, 0.65, 0.80, 0.90}

// Tier thresholds.
const (
	PositiveEPC           = 0.60
	PositiveEthics        = 0.60
	PositiveContradiction = 0.45
	PositivePresence      = 0.50

	NeutralEPC           = 0.45
	NeutralEthics        = 0.45
	NeutralContradiction = 0.60
)

// Precision is the number of decimals EPC is quantized to.
const Precision = 4

// Sigmoid is the logistic curve centred at 0.5 with slope 10.
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-10*(x-0.5)))
}

// EPC combines ethics, presence and inverse contradiction as the geometric
// mean of their sigmoids. Inputs are clipped to [0,1].
func EPC(ethics, presence, contradiction float64) float64 {
	e := fields.Clip(ethics)
	p := fields.Clip(presence)
	k := fields.Clip(contradiction)
	return Quantize(math.Cbrt(Sigmoid(e) * Sigmoid(p) * Sigmoid(1-k)))
}

// Quantize rounds x to Precision decimals.
func Quantize(x float64) float64 {
	scale := math.Pow(10, Precision)
	return math.Round(x*scale) / scale
}

// Classify returns the tier and EPC for the three scalar summaries.
func Classify(ethics, presence, contradiction float64) (Tier, float64) {
	epc := EPC(ethics, presence, contradiction)
	return TierOf(epc, ethics, presence, contradiction), epc
}

// TierOf applies the tier thresholds in priority order.
func TierOf(epc, ethics, presence, contradiction float64) Tier {
	switch {
	case epc >= PositiveEPC && ethics >= PositiveEthics &&
		contradiction <= PositiveContradiction && presence >= PositivePresence:
		return Positive
	case epc >= NeutralEPC && ethics >= NeutralEthics && contradiction <= NeutralContradiction:
		return Neutral
	}
	return Negative
}

// PhaseScore estimates maturity from presence and entropy.
func PhaseScore(presence, entropy float64) float64 {
	return fields.Clip((presence - entropy + 1) / 2)
}

// PhaseFor maps a phase score onto its bucket.
func PhaseFor(score float64) Phase {
	score = fields.Clip(score)
	for i := len(phaseBounds) - 1; i > 0; i-- {
		if score >= phaseBounds[i] {
			return Phases[i]
		}
	}
	return PhaseRaw
}

// RelationalModifier favours moderately coupled chunks; both isolation and
// over-coupling are penalized by up to 20%.
func RelationalModifier(relationalMean float64) float64 {
	return 1 - math.Abs(relationalMean-0.5)*0.4
}

// Record is the blessing outcome of one chunk. Ethics and Presence hold the
// values after the relational modifier; Tier, EPC and Phase derive from the
// stored scalars only.
type Record struct {
	Tier               Tier    `json:"tier"`
	EPC                float64 `json:"epc"`
	Phase              Phase   `json:"phase"`
	PhaseScore         float64 `json:"phase_score"`
	Ethics             float64 `json:"ethics"`
	Presence           float64 `json:"presence"`
	Contradiction      float64 `json:"contradiction"`
	Entropy            float64 `json:"entropy"`
	RelationalModifier float64 `json:"relational_modifier"`
	Resonance          float64 `json:"resonance"`
	Cadence            float64 `json:"cadence"`
	CadenceClass       Cadence `json:"cadence_class"`
	Tone               Tone    `json:"tone"`
}

// Classifier converts field vectors into records. It holds no state.
type Classifier struct{}

// NewClassifier returns a Classifier.
func NewClassifier() *Classifier { return &Classifier{} }

// Classify computes the record for v.
func (c *Classifier) Classify(v fields.Vector) Record {
	mod := RelationalModifier(v.Mean(fields.Relational))
	semantic := v.Mean(fields.Semantic)
	rhythmic := v.Mean(fields.Rhythmic)

	ethics := Quantize(fields.Clip(v.Mean(fields.Ethical) * mod))
	presence := Quantize(fields.Clip((rhythmic + semantic) / 2 * mod))
	contradiction := Quantize(fields.Clip(v.Mean(fields.Contradiction)))
	entropy := Quantize(fields.Clip(v.Mean(fields.Entropic)))

	tier, epc := Classify(ethics, presence, contradiction)
	score := Quantize(PhaseScore(presence, entropy))

	r := Record{
		Tier:               tier,
		EPC:                epc,
		Phase:              PhaseFor(score),
		PhaseScore:         score,
		Ethics:             ethics,
		Presence:           presence,
		Contradiction:      contradiction,
		Entropy:            entropy,
		RelationalModifier: Quantize(mod),
		Cadence:            Quantize(fields.Clip(rhythmic)),
		CadenceClass:       CadenceOf(rhythmic),
		Tone:               ToneOf(ethics, entropy, contradiction),
	}
	r.Resonance = Quantize(ChunkResonance(semantic, ethics, contradiction, presence, v.Mean(fields.Temporal)))

	logging.BlessingDebug("classified tier=%s epc=%.4f phase=%s", r.Tier, r.EPC, r.Phase)
	return r
}
