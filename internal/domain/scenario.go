package domain

import (
	"time"
)

// SimulationMode states whether a bundle's assets were simulated
// independently or under the train-residual correlation structure.
type SimulationMode string

const (
	SimIndependent SimulationMode = "independent"
	SimCorrelated  SimulationMode = "correlated"
)

// SimulatedPath is one simulated future price trajectory for an asset,
// tagged with the draw index that produced it. Never mutated after
// creation.
type SimulatedPath struct {
	Draw   int       `json:"draw"`
	Prices []float64 `json:"prices"`
}

// Terminal returns the final simulated price.
func (p SimulatedPath) Terminal() float64 { return p.Prices[len(p.Prices)-1] }

// PercentileBands holds per-step percentile summaries across draws.
type PercentileBands struct {
	P5  []float64 `json:"p5"`
	P50 []float64 `json:"p50"`
	P95 []float64 `json:"p95"`
}

// ScenarioBundle is the set of simulated paths for one asset over a
// fixed horizon, with derived summary statistics. Identical seed and
// identical source forecast produce a bit-for-bit identical bundle.
type ScenarioBundle struct {
	Symbol  string         `json:"symbol"`
	Family  ModelFamily    `json:"family"`
	Mode    SimulationMode `json:"mode"`
	Seed    uint64         `json:"seed"`
	Horizon int            `json:"horizon"`

	Dates []time.Time     `json:"dates"`
	Paths []SimulatedPath `json:"paths"`

	Bands            PercentileBands `json:"bands"`
	ExpectedTerminal float64         `json:"expected_terminal"`
}
