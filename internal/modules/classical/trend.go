package classical

import (
	"math"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"

	"github.com/aristath/foresight/internal/domain"
)

// TrendModel is a least-squares linear trend over the train partition,
// the simplest mean forecaster and the baseline the richer families are
// compared against.
type TrendModel struct {
	Slope     float64
	Intercept float64
	Sigma2    float64
	Residuals []float64

	n int
}

// TrendFitter fits the linear baseline.
type TrendFitter struct {
	log zerolog.Logger
}

// NewTrendFitter creates a fitter.
func NewTrendFitter(log zerolog.Logger) *TrendFitter {
	return &TrendFitter{log: log.With().Str("component", "trend").Logger()}
}

// Fit regresses the train values on time. The regression is delegated
// to TA-Lib's linear regression over the full train window.
func (f *TrendFitter) Fit(symbol string, train []float64) (*TrendModel, error) {
	n := len(train)
	if n < 3 {
		return nil, &domain.NonConvergenceError{
			Symbol: symbol,
			Family: domain.FamilyTrend,
			Reason: "train partition too short",
		}
	}

	slope := talib.LinearRegSlope(train, n)[n-1]
	intercept := talib.LinearRegIntercept(train, n)[n-1]

	resid := make([]float64, n)
	sse := 0.0
	for t, v := range train {
		fitted := intercept + slope*float64(t)
		resid[t] = v - fitted
		sse += resid[t] * resid[t]
	}
	sigma2 := sse / float64(n-2)

	f.log.Debug().
		Str("symbol", symbol).
		Float64("slope", slope).
		Msg("Fitted linear trend")

	return &TrendModel{
		Slope:     slope,
		Intercept: intercept,
		Sigma2:    sigma2,
		Residuals: resid,
		n:         n,
	}, nil
}

// Forecast extrapolates the fitted line h steps past the train window
// with a constant-variance Gaussian band.
func (m *TrendModel) Forecast(h int) (meanF, variance, lower, upper []float64) {
	meanF = make([]float64, h)
	variance = make([]float64, h)
	lower = make([]float64, h)
	upper = make([]float64, h)

	const z95 = 1.959963984540054
	sd := math.Sqrt(m.Sigma2)
	for k := 0; k < h; k++ {
		meanF[k] = m.Intercept + m.Slope*float64(m.n+k)
		variance[k] = m.Sigma2
		lower[k] = meanF[k] - z95*sd
		upper[k] = meanF[k] + z95*sd
	}
	return meanF, variance, lower, upper
}
