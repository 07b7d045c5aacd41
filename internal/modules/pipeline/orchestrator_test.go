package pipeline

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/internal/modules/preprocess"
	"github.com/aristath/foresight/internal/modules/scenario"
	"github.com/aristath/foresight/internal/modules/sequence"
)

// gbmSeries simulates geometric Brownian motion over trading days.
func gbmSeries(symbol string, n int, drift, vol float64, seed uint64) domain.AssetSeries {
	rng := rand.New(rand.NewPCG(seed, 0))
	s := domain.AssetSeries{Symbol: symbol}
	price := 100.0
	d := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	for s.Len() < n {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			s.Points = append(s.Points, domain.PricePoint{Date: d, Price: price})
			price *= math.Exp(drift + vol*rng.NormFloat64())
		}
		d = d.AddDate(0, 0, 1)
	}
	return s
}

// withGap removes a run of consecutive observations.
func withGap(s domain.AssetSeries, from, length int) domain.AssetSeries {
	out := domain.AssetSeries{Symbol: s.Symbol}
	for i, p := range s.Points {
		if i >= from && i < from+length {
			continue
		}
		out.Points = append(out.Points, p)
	}
	return out
}

func testPipelineConfig() Config {
	return Config{
		Preprocess: preprocess.Config{MaxFillDays: 3},
		LSTM: sequence.Config{
			Window:    10,
			Hidden:    6,
			Epochs:    5,
			BatchSize: 32,
			Patience:  3,
			Seed:      42,
		},
		Scenario: scenario.Config{Draws: 100, Seed: 42},
		UseLog:   true,
		MinTrain: 60,
	}
}

func TestRunEndToEnd(t *testing.T) {
	series := []domain.AssetSeries{
		gbmSeries("AAA", 500, 0.0004, 0.012, 1),
		gbmSeries("BBB", 500, 0.0002, 0.02, 2),
	}

	o := New(testPipelineConfig(), zerolog.Nop())
	run, err := o.Run(context.Background(), Request{Series: series, SplitFraction: 0.94})
	require.NoError(t, err)
	require.NotEqual(t, "", run.RunID.String())
	require.Len(t, run.Coverage, 2)
	require.Len(t, run.Assets, 2)

	for _, asset := range run.Assets {
		require.Empty(t, asset.Err)
		require.NotNil(t, asset.ADF)
		require.NotEmpty(t, asset.Statuses)
		require.NotEmpty(t, asset.Forecasts)

		// Every produced forecast covers the same test window.
		h := asset.Forecasts[0].Horizon()
		for _, fc := range asset.Forecasts {
			require.Equal(t, h, fc.Horizon())
			require.Len(t, fc.Dates, h)
		}

		best := asset.Report.Best()
		require.NotEqual(t, domain.ModelFamily(""), best)
		require.Contains(t, asset.Report.Metrics, best)
		require.Greater(t, asset.Report.Metrics[best]["rmse"], 0.0)

		require.NotNil(t, asset.Bundle)
		require.Len(t, asset.Bundle.Paths, 100)
		require.Equal(t, h, asset.Bundle.Horizon)
		require.Greater(t, asset.Bundle.ExpectedTerminal, 0.0)
	}
}

func TestForecastsContinueFromTrainBoundary(t *testing.T) {
	series := gbmSeries("AAA", 500, 0.0004, 0.012, 9)
	cfg := testPipelineConfig()
	cfg.Families = []domain.ModelFamily{domain.FamilyARIMA, domain.FamilyLSTM}

	o := New(cfg, zerolog.Nop())
	run, err := o.Run(context.Background(), Request{
		Series:        []domain.AssetSeries{series},
		SplitFraction: 0.9,
	})
	require.NoError(t, err)

	asset := run.Assets[0]
	require.Empty(t, asset.Err)
	require.GreaterOrEqual(t, asset.DiffOrder, 1)

	prices := series.Prices()
	cut := int(float64(len(prices)) * 0.9)
	lastTrain := prices[cut-1]

	checked := 0
	for _, fc := range asset.Forecasts {
		if fc.Spec.DiffOrder() == 0 {
			continue
		}
		checked++

		// The outermost diff anchor is the last train-partition level
		// value; anchoring at the series end would hand the models the
		// final test price.
		var anchor float64
		for _, step := range fc.Spec.Steps {
			if step.Op == domain.OpDiff {
				anchor = step.Anchor
				break
			}
		}
		require.InDelta(t, math.Log(lastTrain), anchor, 1e-9)

		// The first price-space step continues from the cut.
		first := fc.PriceMean()[0]
		require.InDelta(t, lastTrain, first, 0.08*lastTrain)
	}
	require.NotZero(t, checked)
}

func TestRunIsolatesGapAsset(t *testing.T) {
	healthy := gbmSeries("GOOD", 400, 0.0003, 0.015, 3)
	broken := withGap(gbmSeries("GAPPY", 400, 0.0003, 0.015, 4), 200, 10)

	o := New(testPipelineConfig(), zerolog.Nop())
	run, err := o.Run(context.Background(), Request{
		Series:        []domain.AssetSeries{healthy, broken},
		SplitFraction: 0.9,
	})
	require.NoError(t, err)
	require.Len(t, run.Assets, 2)

	byName := map[string]*AssetResult{}
	for _, a := range run.Assets {
		byName[a.Symbol] = a
	}

	require.NotEmpty(t, byName["GAPPY"].Err)
	require.Contains(t, byName["GAPPY"].Err, "data gap")
	require.Empty(t, byName["GAPPY"].Forecasts)

	require.Empty(t, byName["GOOD"].Err)
	require.NotEmpty(t, byName["GOOD"].Forecasts)
	require.NotNil(t, byName["GOOD"].Bundle)
}

func TestRunRejectsBadConfig(t *testing.T) {
	o := New(testPipelineConfig(), zerolog.Nop())

	_, err := o.Run(context.Background(), Request{})
	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)

	s := gbmSeries("AAA", 200, 0, 0.01, 5)
	_, err = o.Run(context.Background(), Request{Series: []domain.AssetSeries{s, s}, SplitFraction: 0.9})
	require.ErrorAs(t, err, &cfgErr) // duplicate symbol

	_, err = o.Run(context.Background(), Request{Series: []domain.AssetSeries{s}})
	require.ErrorAs(t, err, &cfgErr) // no split
}

func TestRunHonorsCancellation(t *testing.T) {
	series := []domain.AssetSeries{gbmSeries("AAA", 400, 0.0003, 0.015, 6)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := New(testPipelineConfig(), zerolog.Nop())
	_, err := o.Run(ctx, Request{Series: series, SplitFraction: 0.9})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunFitTimeoutMarksUnavailable(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.FitTimeout = time.Nanosecond
	cfg.Families = []domain.ModelFamily{domain.FamilyTrend, domain.FamilyARIMA}

	series := []domain.AssetSeries{gbmSeries("AAA", 400, 0.0003, 0.015, 7)}
	o := New(cfg, zerolog.Nop())
	run, err := o.Run(context.Background(), Request{Series: series, SplitFraction: 0.9})
	require.NoError(t, err)

	asset := run.Assets[0]
	for _, status := range asset.Statuses {
		if !status.Available {
			require.Contains(t, status.Reason, "timeout")
		}
	}
	require.NotEmpty(t, asset.Report.Unavailable)
}

func TestRunFamilySubset(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.Families = []domain.ModelFamily{domain.FamilyTrend}

	series := []domain.AssetSeries{gbmSeries("AAA", 300, 0.0003, 0.01, 8)}
	o := New(cfg, zerolog.Nop())
	run, err := o.Run(context.Background(), Request{Series: series, SplitFraction: 0.9})
	require.NoError(t, err)

	asset := run.Assets[0]
	require.Len(t, asset.Forecasts, 1)
	require.Equal(t, domain.FamilyTrend, asset.Forecasts[0].Family)
}
