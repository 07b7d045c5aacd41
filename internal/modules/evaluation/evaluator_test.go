package evaluation

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/aristath/foresight/internal/domain"
)

func TestRMSE(t *testing.T) {
	require.InDelta(t, 0.0, RMSE([]float64{1, 2, 3}, []float64{1, 2, 3}), 1e-12)
	require.InDelta(t, 2.0, RMSE([]float64{1, 1}, []float64{3, 3}), 1e-12)
	require.True(t, math.IsNaN(RMSE(nil, nil)))
	require.True(t, math.IsNaN(RMSE([]float64{1}, []float64{1, 2})))
}

func TestMAPE(t *testing.T) {
	require.InDelta(t, 10.0, MAPE([]float64{100, 200}, []float64{110, 180}), 1e-9)
	require.True(t, math.IsNaN(MAPE([]float64{0, 0}, []float64{1, 1})))
}

func TestDirectionalAccuracy(t *testing.T) {
	// Actual path rises twice then falls; forecast agrees on the first
	// two moves only.
	actual := []float64{101, 102, 100}
	predicted := []float64{100.5, 103, 102.5}
	acc := DirectionalAccuracy(100, actual, predicted)
	require.InDelta(t, 2.0/3.0, acc, 1e-12)
}

func TestTheilsUNaiveEqualsOne(t *testing.T) {
	// The naive no-change forecast scores exactly one.
	actual := []float64{101, 103, 102, 104}
	naive := []float64{100, 101, 103, 102}
	require.InDelta(t, 1.0, TheilsU(100, actual, naive), 1e-12)
}

func testDates(n int) []time.Time {
	dates := make([]time.Time, n)
	d := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := range dates {
		dates[i] = d
		d = d.AddDate(0, 0, 1)
	}
	return dates
}

// forecastFor builds a forecast whose price-space mean is exactly the
// given path, expressed in log-return space via a transform spec.
func forecastFor(symbol string, family domain.ModelFamily, anchor float64, prices []float64) domain.ForecastResult {
	full := append([]float64{anchor}, prices...)
	mean := make([]float64, len(prices))
	for i := 1; i < len(full); i++ {
		mean[i-1] = math.Log(full[i]) - math.Log(full[i-1])
	}
	return domain.ForecastResult{
		Symbol: symbol,
		Family: family,
		Space:  domain.SpaceLogDiff,
		Dates:  testDates(len(prices)),
		Mean:   mean,
		Spec: domain.TransformSpec{Steps: []domain.TransformStep{
			{Op: domain.OpLog},
			{Op: domain.OpDiff, Initial: math.Log(anchor), Anchor: math.Log(anchor)},
		}},
	}
}

func TestEvaluateRanksInPriceSpace(t *testing.T) {
	actual := []float64{102, 104, 103, 106}
	lastTrain := 100.0

	good := forecastFor("X", domain.FamilyARIMA, lastTrain, []float64{102, 104, 103, 105.5})
	bad := forecastFor("X", domain.FamilyTrend, lastTrain, []float64{110, 112, 114, 116})

	e := New(zerolog.Nop())
	report := e.Evaluate("X", actual, lastTrain,
		[]domain.ForecastResult{bad, good},
		map[domain.ModelFamily]string{domain.FamilyGARCH: "did not converge"})

	require.Equal(t, domain.FamilyARIMA, report.Best())
	require.Len(t, report.Ranking, 2)
	require.Equal(t, "did not converge", report.Unavailable[domain.FamilyGARCH])

	// Metrics are computed on prices, so the good forecast's RMSE is
	// small in price units.
	require.Less(t, report.Metrics[domain.FamilyARIMA]["rmse"], 1.0)
	require.Greater(t, report.Metrics[domain.FamilyTrend]["rmse"], 5.0)
}

func TestEvaluateMetricConsistencyAcrossSpaces(t *testing.T) {
	// Two forecasts with identical price-space means but different
	// internal spaces must score identically.
	actual := []float64{102, 104, 103}
	lastTrain := 100.0
	prices := []float64{101, 103, 104}

	inReturns := forecastFor("X", domain.FamilyARIMA, lastTrain, prices)

	logPrices := make([]float64, len(prices))
	for i, p := range prices {
		logPrices[i] = math.Log(p)
	}
	inLogLevels := domain.ForecastResult{
		Symbol: "X",
		Family: domain.FamilyTrend,
		Space:  domain.SpaceLogPrice,
		Dates:  testDates(len(prices)),
		Mean:   logPrices,
		Spec:   domain.TransformSpec{Steps: []domain.TransformStep{{Op: domain.OpLog}}},
	}

	e := New(zerolog.Nop())
	report := e.Evaluate("X", actual, lastTrain,
		[]domain.ForecastResult{inReturns, inLogLevels}, nil)

	for _, name := range []string{"rmse", "mape", "mae"} {
		require.InDelta(t,
			report.Metrics[domain.FamilyARIMA][name],
			report.Metrics[domain.FamilyTrend][name],
			1e-9, name)
	}
}
