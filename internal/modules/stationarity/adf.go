package stationarity

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"github.com/rs/zerolog"
)

// ADF critical values for the constant-only regression, large-sample
// MacKinnon approximations.
const (
	critical1pct  = -3.43
	critical5pct  = -2.86
	critical10pct = -2.57
)

// ADFResult is the outcome of an Augmented Dickey-Fuller unit-root
// test.
type ADFResult struct {
	Statistic     float64 `json:"statistic"`
	Lags          int     `json:"lags"`
	Observations  int     `json:"observations"`
	Critical1Pct  float64 `json:"critical_1pct"`
	Critical5Pct  float64 `json:"critical_5pct"`
	Critical10Pct float64 `json:"critical_10pct"`
	Stationary    bool    `json:"stationary"`
}

// Config holds analyzer settings.
type Config struct {
	// Significance selects the critical value the decision uses: one of
	// 0.01, 0.05, 0.10.
	Significance float64
	// MaxLag bounds the augmentation lags. Zero or negative selects the
	// Schwert rule 12*(n/100)^0.25.
	MaxLag int
}

// Analyzer runs stationarity diagnostics. It is a pure function of its
// input: it informs preprocessing policy but never invokes it, so the
// same diagnostics can validate the result of preprocessing.
type Analyzer struct {
	cfg Config
	log zerolog.Logger
}

// New creates an analyzer.
func New(cfg Config, log zerolog.Logger) *Analyzer {
	if cfg.Significance == 0 {
		cfg.Significance = 0.05
	}
	return &Analyzer{
		cfg: cfg,
		log: log.With().Str("component", "stationarity").Logger(),
	}
}

// Test runs the ADF regression
//
//	Δy_t = α + ρ·y_{t-1} + Σ δ_i·Δy_{t-i} + ε_t
//
// and compares the t-statistic of ρ against the constant-only critical
// values. A statistic below the critical value rejects the unit root.
func (a *Analyzer) Test(values []float64) (ADFResult, error) {
	n := len(values)
	lags := a.cfg.MaxLag
	if lags <= 0 {
		lags = int(12 * math.Pow(float64(n)/100, 0.25))
	}
	// Each lag consumes one usable row; keep enough degrees of freedom.
	for lags > 0 && n-1-lags < 3*(lags+2) {
		lags--
	}

	rows := n - 1 - lags
	cols := 2 + lags
	if rows <= cols {
		return ADFResult{}, fmt.Errorf("series too short for ADF test: %d observations, %d lags", n, lags)
	}

	diff := make([]float64, n-1)
	for i := 1; i < n; i++ {
		diff[i-1] = values[i] - values[i-1]
	}

	X := mat.NewDense(rows, cols, nil)
	y := mat.NewVecDense(rows, nil)
	for r := 0; r < rows; r++ {
		t := r + lags // index into diff; target is diff[t]
		y.SetVec(r, diff[t])
		X.Set(r, 0, 1)
		X.Set(r, 1, values[t]) // y_{t-1} in levels
		for l := 1; l <= lags; l++ {
			X.Set(r, 1+l, diff[t-l])
		}
	}

	var beta mat.VecDense
	if err := beta.SolveVec(X, y); err != nil {
		return ADFResult{}, fmt.Errorf("ADF regression failed: %w", err)
	}

	// Residual variance and the standard error of the y_{t-1}
	// coefficient from the (X'X)^-1 diagonal.
	var fitted mat.VecDense
	fitted.MulVec(X, &beta)
	rss := 0.0
	for r := 0; r < rows; r++ {
		e := y.AtVec(r) - fitted.AtVec(r)
		rss += e * e
	}
	sigma2 := rss / float64(rows-cols)

	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err != nil {
		return ADFResult{}, fmt.Errorf("ADF regression is singular: %w", err)
	}
	se := math.Sqrt(sigma2 * xtxInv.At(1, 1))
	if se == 0 || math.IsNaN(se) {
		return ADFResult{}, fmt.Errorf("degenerate ADF regression: zero standard error")
	}

	stat := beta.AtVec(1) / se

	res := ADFResult{
		Statistic:     stat,
		Lags:          lags,
		Observations:  rows,
		Critical1Pct:  critical1pct,
		Critical5Pct:  critical5pct,
		Critical10Pct: critical10pct,
	}
	res.Stationary = stat < a.criticalValue()

	a.log.Debug().
		Float64("statistic", stat).
		Int("lags", lags).
		Bool("stationary", res.Stationary).
		Msg("ADF test")

	return res, nil
}

// SuggestDiffOrder differences the series until the ADF test rejects a
// unit root, capped at order 2.
func (a *Analyzer) SuggestDiffOrder(values []float64) (int, error) {
	const maxOrder = 2
	current := values
	for d := 0; d <= maxOrder; d++ {
		res, err := a.Test(current)
		if err != nil {
			return 0, err
		}
		if res.Stationary {
			return d, nil
		}
		next := make([]float64, len(current)-1)
		for i := 1; i < len(current); i++ {
			next[i-1] = current[i] - current[i-1]
		}
		current = next
	}
	return maxOrder, nil
}

func (a *Analyzer) criticalValue() float64 {
	switch {
	case a.cfg.Significance <= 0.01:
		return critical1pct
	case a.cfg.Significance <= 0.05:
		return critical5pct
	default:
		return critical10pct
	}
}
