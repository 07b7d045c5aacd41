package pipeline

import (
	"context"
	"math"

	"github.com/aristath/foresight/internal/domain"
)

// survivors returns the states whose data stage succeeded.
func survivors(states []*assetState) []*assetState {
	out := make([]*assetState, 0, len(states))
	for _, st := range states {
		if st.result.Err == "" && st.derived.Len() > 0 {
			out = append(out, st)
		}
	}
	return out
}

// runSequence trains one LSTM jointly over the surviving assets and
// fans the rollout back out into per-asset forecasts. A failed fit
// marks the family unavailable on every survivor and nothing else.
func (o *Orchestrator) runSequence(ctx context.Context, states []*assetState) {
	alive := survivors(states)
	if len(alive) == 0 {
		return
	}

	// Every aligned series ends on the common last trading day, and
	// differencing only trims leading observations, so equal-length
	// tails cover the same dates across assets.
	minLen := alive[0].derived.Len()
	for _, st := range alive[1:] {
		if st.derived.Len() < minLen {
			minLen = st.derived.Len()
		}
	}

	symbols := make([]string, len(alive))
	specs := make(map[string]domain.TransformSpec, len(alive))
	rows := make([][]float64, minLen)
	for t := range rows {
		rows[t] = make([]float64, len(alive))
	}
	for j, st := range alive {
		symbols[j] = st.result.Symbol
		specs[st.result.Symbol] = st.trainSpec
		offset := st.derived.Len() - minLen
		for t := 0; t < minLen; t++ {
			rows[t][j] = st.derived.Values[offset+t]
		}
	}

	ref := alive[0]
	commonDates := ref.derived.Dates[ref.derived.Len()-minLen:]
	boundary := ref.split.Index(commonDates)
	testDates := ref.level.Dates[ref.splitLevel:]

	model, err := o.seq.Fit(ctx, symbols, rows, boundary)
	if err != nil {
		for _, st := range alive {
			o.markUnavailable(st, domain.FamilyLSTM, err)
		}
		return
	}

	forecasts, err := model.Forecast(testDates, specs)
	if err != nil {
		for _, st := range alive {
			o.markUnavailable(st, domain.FamilyLSTM, err)
		}
		return
	}
	for j, st := range alive {
		st.result.Forecasts = append(st.result.Forecasts, forecasts[j])
		st.result.Statuses = append(st.result.Statuses, domain.ModelStatus{Family: domain.FamilyLSTM, Available: true})
	}
}

// evaluateAll scores every survivor's forecasts over the identical test
// window, in price space.
func (o *Orchestrator) evaluateAll(states []*assetState) {
	for _, st := range survivors(states) {
		prices := st.aligned.Prices()
		actual := prices[st.splitLevel:]
		lastTrain := prices[st.splitLevel-1]

		unavailable := make(map[domain.ModelFamily]string)
		for _, s := range st.result.Statuses {
			if !s.Available {
				unavailable[s.Family] = s.Reason
			}
		}

		st.result.Report = o.eval.Evaluate(st.result.Symbol, actual, lastTrain, st.result.Forecasts, unavailable)
	}
}

// simulateAll runs Monte-Carlo scenarios off each survivor's best
// forecast. When the best mean model shares its transform space with an
// available GARCH fit, the GARCH conditional variance replaces the mean
// model's own band, which is the usual mean-plus-volatility pairing.
func (o *Orchestrator) simulateAll(ctx context.Context, states []*assetState) error {
	alive := survivors(states)

	var sources []domain.ForecastResult
	var owners []*assetState
	for _, st := range alive {
		best := st.result.Report.Best()
		if best == "" {
			continue
		}
		src, ok := findForecast(st.result.Forecasts, best)
		if !ok {
			continue
		}
		if best != domain.FamilyGARCH {
			if g, ok := findForecast(st.result.Forecasts, domain.FamilyGARCH); ok && g.Space == src.Space && g.Horizon() == src.Horizon() {
				src.Variance = g.Variance
			}
		}
		sources = append(sources, src)
		owners = append(owners, st)
	}
	if len(sources) == 0 {
		return nil
	}

	bundles, err := o.sim.Simulate(ctx, sources)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		o.log.Warn().Err(err).Msg("Scenario simulation failed")
		return nil
	}
	for i, st := range owners {
		b := bundles[i]
		st.result.Bundle = &b
	}
	return nil
}

func findForecast(forecasts []domain.ForecastResult, family domain.ModelFamily) (domain.ForecastResult, bool) {
	for _, fc := range forecasts {
		if fc.Family == family {
			return fc, true
		}
	}
	return domain.ForecastResult{}, false
}

func sqrtOrZero(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}
