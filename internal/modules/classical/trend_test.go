package classical

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestTrendRecoversExactLine(t *testing.T) {
	train := make([]float64, 50)
	for i := range train {
		train[i] = 3.5 + 0.25*float64(i)
	}

	f := NewTrendFitter(zerolog.Nop())
	m, err := f.Fit("X", train)
	require.NoError(t, err)
	require.InDelta(t, 0.25, m.Slope, 1e-9)
	require.InDelta(t, 3.5, m.Intercept, 1e-9)
	require.InDelta(t, 0.0, m.Sigma2, 1e-12)

	meanF, variance, lower, upper := m.Forecast(5)
	require.Len(t, meanF, 5)
	require.InDelta(t, 3.5+0.25*50, meanF[0], 1e-9)
	require.InDelta(t, 3.5+0.25*54, meanF[4], 1e-9)
	for k := range meanF {
		require.LessOrEqual(t, lower[k], meanF[k])
		require.GreaterOrEqual(t, upper[k], meanF[k])
		require.GreaterOrEqual(t, variance[k], 0.0)
	}
}

func TestTrendRejectsTinyTrain(t *testing.T) {
	f := NewTrendFitter(zerolog.Nop())
	_, err := f.Fit("X", []float64{1, 2})
	require.Error(t, err)
}
