package blessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pbjrag/internal/fields"
)

func TestClassifyScenarios(t *testing.T) {
	tests := []struct {
		name                            string
		ethics, presence, contradiction float64
		want                            Tier
	}{
		{"well-formed", 0.85, 0.78, 0.10, Positive},
		{"poor", 0.30, 0.40, 0.70, Negative},
		{"middling", 0.55, 0.55, 0.40, Neutral},
		{"high ethics but heavy contradiction", 0.90, 0.90, 0.65, Negative},
		{"positive except presence", 0.80, 0.45, 0.10, Neutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tier, epc := Classify(tt.ethics, tt.presence, tt.contradiction)
			assert.Equal(t, tt.want, tier, "epc=%.4f", epc)
		})
	}
}

func TestWellFormedScenarioMeetsEveryPositiveCondition(t *testing.T) {
	tier, epc := Classify(0.85, 0.78, 0.10)
	require.Equal(t, Positive, tier)
	assert.GreaterOrEqual(t, epc, PositiveEPC)
	assert.InDelta(t, 0.965, epc, 0.001)
}

func TestClassifyIsDeterministic(t *testing.T) {
	for i := 0; i < 50; i++ {
		x := float64(i) / 49
		t1, e1 := Classify(x, 1-x, x/2)
		t2, e2 := Classify(x, 1-x, x/2)
		assert.Equal(t, t1, t2)
		assert.Equal(t, e1, e2)
	}
}

func TestEPCInUnitRange(t *testing.T) {
	steps := []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1}
	for _, e := range steps {
		for _, p := range steps {
			for _, k := range steps {
				epc := EPC(e, p, k)
				assert.GreaterOrEqual(t, epc, 0.0)
				assert.LessOrEqual(t, epc, 1.0)
			}
		}
	}
	assert.Equal(t, EPC(1, 1, 0), EPC(2, 5, -3), "inputs are clipped")
}

func TestEPCSuppressedByOneWeakTerm(t *testing.T) {
	strong := EPC(0.9, 0.9, 0.1)
	weak := EPC(0.9, 0.9, 0.95)
	assert.Less(t, weak, strong/2)
}

func TestPhaseScoreMonotonicInPresence(t *testing.T) {
	for _, entropy := range []float64{0, 0.3, 0.6, 1} {
		prev := -1.0
		for i := 0; i <= 100; i++ {
			s := PhaseScore(float64(i)/100, entropy)
			assert.GreaterOrEqual(t, s, prev)
			prev = s
		}
	}
}

func TestPhaseFor(t *testing.T) {
	tests := map[float64]Phase{
		0:     PhaseRaw,
		0.199: PhaseRaw,
		0.2:   PhaseReflective,
		0.35:  PhaseDeveloping,
		0.49:  PhaseDeveloping,
		0.5:   PhaseStable,
		0.65:  PhaseAdapting,
		0.8:   PhaseNovel,
		0.9:   PhaseHardening,
		1:     PhaseHardening,
		1.5:   PhaseHardening,
		-1:    PhaseRaw,
	}
	for score, want := range tests {
		assert.Equal(t, want, PhaseFor(score), "score %v", score)
	}
}

func TestRelationalModifier(t *testing.T) {
	assert.Equal(t, 1.0, RelationalModifier(0.5))
	assert.InDelta(t, 0.8, RelationalModifier(0), 1e-12)
	assert.InDelta(t, 0.8, RelationalModifier(1), 1e-12)
}

func vectorOf(vals map[fields.Dimension]float64) fields.Vector {
	v := fields.Neutral(8)
	for d, x := range vals {
		for i := range v.Get(d) {
			v.Get(d)[i] = x
		}
	}
	return v
}

func TestClassifierRecord(t *testing.T) {
	v := vectorOf(map[fields.Dimension]float64{
		fields.Ethical:       0.9,
		fields.Rhythmic:      0.8,
		fields.Semantic:      0.8,
		fields.Contradiction: 0.1,
		fields.Relational:    0.5,
		fields.Entropic:      0.2,
	})
	r := NewClassifier().Classify(v)

	assert.Equal(t, Positive, r.Tier)
	assert.InDelta(t, 0.9, r.Ethics, 1e-9)
	assert.InDelta(t, 0.8, r.Presence, 1e-9)
	assert.Equal(t, 1.0, r.RelationalModifier)
	assert.InDelta(t, 0.8, r.PhaseScore, 1e-9)
	assert.Equal(t, PhaseNovel, r.Phase)
	assert.Equal(t, CadenceLegato, r.CadenceClass)
	assert.Equal(t, ToneHarmonic, r.Tone)

	tier, epc := Classify(r.Ethics, r.Presence, r.Contradiction)
	assert.Equal(t, r.Tier, tier, "tier derives from stored scalars")
	assert.Equal(t, r.EPC, epc)
	assert.Equal(t, r.Phase, PhaseFor(r.PhaseScore))
}

func TestClassifierAppliesRelationalModifier(t *testing.T) {
	base := map[fields.Dimension]float64{
		fields.Ethical:       0.7,
		fields.Rhythmic:      0.7,
		fields.Semantic:      0.7,
		fields.Contradiction: 0.2,
	}
	balanced := vectorOf(base)
	for i := range balanced.Relational {
		balanced.Relational[i] = 0.5
	}
	isolated := vectorOf(base)
	for i := range isolated.Relational {
		isolated.Relational[i] = 0
	}

	c := NewClassifier()
	rb, ri := c.Classify(balanced), c.Classify(isolated)
	assert.Greater(t, rb.Ethics, ri.Ethics)
	assert.Greater(t, rb.EPC, ri.EPC)
	assert.InDelta(t, 0.56, ri.Ethics, 1e-9)
}

func TestNeutralVectorIsNotPositive(t *testing.T) {
	r := NewClassifier().Classify(fields.Neutral(8))
	assert.NotEqual(t, Positive, r.Tier)
	assert.Equal(t, PhaseStable, r.Phase)
}

func TestTierSymbol(t *testing.T) {
	assert.Equal(t, "Φ+", Positive.Symbol())
	assert.Equal(t, "Φ~", Neutral.Symbol())
	assert.Equal(t, "Φ-", Negative.Symbol())
}
