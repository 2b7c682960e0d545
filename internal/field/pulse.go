package field

import (
	"maps"
	"time"

	"pbjrag/internal/blessing"
)

// Pulse is a point-in-time summary of a container.
type Pulse struct {
	At        time.Time              `json:"at"`
	Coherence float64                `json:"coherence"`
	Fragments int                    `json:"fragments"`
	Patterns  int                    `json:"patterns"`
	Compost   int                    `json:"compost"`
	MeanEPC   float64                `json:"mean_epc"`
	Tiers     map[blessing.Tier]int  `json:"tiers"`
	Phases    map[blessing.Phase]int `json:"phases"`
	Context   map[string]string      `json:"context,omitempty"`
}

// PulseCheck snapshots coherence and the tier and phase distributions.
// Every tier and phase appears in the maps, zero counts included.
func (c *Container) PulseCheck(context map[string]string) Pulse {
	coh := c.CalculateFieldCoherence()

	c.mu.RLock()
	defer c.mu.RUnlock()

	p := Pulse{
		At:        c.now(),
		Coherence: coh,
		Fragments: len(c.fragments),
		Patterns:  len(c.patterns),
		Compost:   len(c.compost),
		Tiers:     map[blessing.Tier]int{blessing.Positive: 0, blessing.Neutral: 0, blessing.Negative: 0},
		Phases:    make(map[blessing.Phase]int, len(blessing.Phases)),
		Context:   maps.Clone(context),
	}
	for _, ph := range blessing.Phases {
		p.Phases[ph] = 0
	}
	sum := 0.0
	for _, f := range c.fragments {
		p.Tiers[f.Blessing.Tier]++
		p.Phases[f.Blessing.Phase]++
		sum += f.Blessing.EPC
	}
	if len(c.fragments) > 0 {
		p.MeanEPC = blessing.Quantize(sum / float64(len(c.fragments)))
	}
	return p
}
