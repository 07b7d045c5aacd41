package evaluation

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/foresight/internal/domain"
)

// Evaluator scores competing forecasts for one asset over the identical
// test window. Every forecast is mapped back to price space before any
// metric is computed, so models fitted in different transform spaces
// stay comparable.
type Evaluator struct {
	log zerolog.Logger
}

// New creates an evaluator.
func New(log zerolog.Logger) *Evaluator {
	return &Evaluator{log: log.With().Str("component", "evaluation").Logger()}
}

// Evaluate compares the given forecasts against the actual test-window
// prices. lastTrainPrice is the final observed price before the test
// window, used by the direction-sensitive metrics. unavailable records
// families that produced no forecast and why.
func (e *Evaluator) Evaluate(symbol string, actualPrices []float64, lastTrainPrice float64, forecasts []domain.ForecastResult, unavailable map[domain.ModelFamily]string) domain.EvaluationReport {
	report := domain.EvaluationReport{
		Symbol:  symbol,
		Metrics: make(map[domain.ModelFamily]map[string]float64),
	}
	if len(unavailable) > 0 {
		report.Unavailable = make(map[domain.ModelFamily]string, len(unavailable))
		for fam, reason := range unavailable {
			report.Unavailable[fam] = reason
		}
	}

	type scored struct {
		family domain.ModelFamily
		rmse   float64
	}
	var ranked []scored

	for _, fc := range forecasts {
		predicted := fc.PriceMean()
		n := len(actualPrices)
		if len(predicted) < n {
			n = len(predicted)
		}
		if n == 0 {
			report.Unavailable = ensure(report.Unavailable)
			report.Unavailable[fc.Family] = "empty forecast"
			continue
		}
		actual := actualPrices[:n]
		predicted = predicted[:n]

		m := map[string]float64{
			"rmse":                 RMSE(actual, predicted),
			"mape":                 MAPE(actual, predicted),
			"mae":                  MAE(actual, predicted),
			"directional_accuracy": DirectionalAccuracy(lastTrainPrice, actual, predicted),
			"theils_u":             TheilsU(lastTrainPrice, actual, predicted),
			"correlation":          PearsonCorr(actual, predicted),
		}
		if fc.ICs != nil {
			m["aic"] = fc.ICs.AIC
			m["bic"] = fc.ICs.BIC
		}
		report.Metrics[fc.Family] = m

		if !math.IsNaN(m["rmse"]) {
			ranked = append(ranked, scored{family: fc.Family, rmse: m["rmse"]})
		}
	}

	sort.Slice(ranked, func(i, j int) bool { return ranked[i].rmse < ranked[j].rmse })
	report.Ranking = make([]domain.ModelFamily, len(ranked))
	for i, s := range ranked {
		report.Ranking[i] = s.family
	}

	if best := report.Best(); best != "" {
		e.log.Info().
			Str("symbol", symbol).
			Str("best", string(best)).
			Float64("rmse", report.Metrics[best]["rmse"]).
			Msg("Ranked model families")
	} else {
		e.log.Warn().Str("symbol", symbol).Msg("No usable forecast to rank")
	}
	return report
}

func ensure(m map[domain.ModelFamily]string) map[domain.ModelFamily]string {
	if m == nil {
		return make(map[domain.ModelFamily]string)
	}
	return m
}
