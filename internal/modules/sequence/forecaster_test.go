package sequence

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/aristath/foresight/internal/domain"
)

func sineRows(n int) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = []float64{
			math.Sin(float64(i) * 0.2),
			math.Cos(float64(i) * 0.15),
		}
	}
	return rows
}

func testConfig() Config {
	return Config{
		Window:       8,
		Hidden:       8,
		Epochs:       15,
		BatchSize:    16,
		LearningRate: 5e-3,
		ValFraction:  0.15,
		Patience:     10,
		Seed:         42,
	}
}

func futureDates(n int) []time.Time {
	dates := make([]time.Time, n)
	d := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	for i := range dates {
		dates[i] = d
		d = d.AddDate(0, 0, 1)
	}
	return dates
}

func TestFitAndForecastShapes(t *testing.T) {
	f := New(testConfig(), zerolog.Nop())
	rows := sineRows(200)

	model, err := f.Fit(context.Background(), []string{"A", "B"}, rows, 180)
	require.NoError(t, err)
	require.Greater(t, model.EpochsRun, 0)

	specs := map[string]domain.TransformSpec{"A": {}, "B": {}}
	forecasts, err := model.Forecast(futureDates(20), specs)
	require.NoError(t, err)
	require.Len(t, forecasts, 2)
	for _, fc := range forecasts {
		require.Equal(t, domain.FamilyLSTM, fc.Family)
		require.Len(t, fc.Mean, 20)
		require.Len(t, fc.Variance, 20)
		require.NotEmpty(t, fc.Residuals)
		for k := range fc.Mean {
			require.False(t, math.IsNaN(fc.Mean[k]))
			require.LessOrEqual(t, fc.Lower[k], fc.Upper[k])
		}
	}
}

func TestFitIsReproducibleWithSameSeed(t *testing.T) {
	rows := sineRows(150)
	specs := map[string]domain.TransformSpec{"A": {}, "B": {}}

	run := func() []float64 {
		f := New(testConfig(), zerolog.Nop())
		model, err := f.Fit(context.Background(), []string{"A", "B"}, rows, 130)
		require.NoError(t, err)
		forecasts, err := model.Forecast(futureDates(10), specs)
		require.NoError(t, err)
		return forecasts[0].Mean
	}

	first := run()
	second := run()
	require.Equal(t, first, second)
}

func TestFitHonorsCancellation(t *testing.T) {
	f := New(testConfig(), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fit(ctx, []string{"A", "B"}, sineRows(150), 130)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFitRejectsBadShapes(t *testing.T) {
	f := New(testConfig(), zerolog.Nop())

	_, err := f.Fit(context.Background(), nil, nil, 0)
	require.Error(t, err)

	_, err = f.Fit(context.Background(), []string{"A"}, sineRows(150), 130)
	require.Error(t, err) // two columns, one symbol

	_, err = f.Fit(context.Background(), []string{"A", "B"}, sineRows(150), 5)
	require.Error(t, err) // boundary inside the first window
}

func TestForecastRequiresSpecs(t *testing.T) {
	f := New(testConfig(), zerolog.Nop())
	model, err := f.Fit(context.Background(), []string{"A", "B"}, sineRows(150), 130)
	require.NoError(t, err)

	_, err = model.Forecast(futureDates(5), map[string]domain.TransformSpec{"A": {}})
	require.Error(t, err)
}
