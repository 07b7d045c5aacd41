package classical

import (
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/optimize"

	"github.com/aristath/foresight/internal/domain"
)

// ARIMAOrder is the (p,d,q) specification of a mean model. The
// differencing order d is applied by the preprocessor; the fitter
// estimates the ARMA(p,q) component on the transformed series.
type ARIMAOrder struct {
	P int `json:"p"`
	D int `json:"d"`
	Q int `json:"q"`
}

// ARIMAModel is a fitted mean model.
type ARIMAModel struct {
	Order     ARIMAOrder
	Const     float64
	AR        []float64
	MA        []float64
	Sigma2    float64
	LogLik    float64
	AIC       float64
	BIC       float64
	Residuals []float64

	train []float64
}

// ARIMAConfig bounds the order search and the optimizer budget.
type ARIMAConfig struct {
	MaxP    int
	MaxQ    int
	MaxIter int
}

// ARIMAFitter selects an ARMA order by AIC over a bounded grid and fits
// coefficients by conditional sum of squares.
type ARIMAFitter struct {
	cfg ARIMAConfig
	log zerolog.Logger
}

// NewARIMAFitter creates a fitter. Zero config fields fall back to a
// (2,2) grid with a 500-iteration budget.
func NewARIMAFitter(cfg ARIMAConfig, log zerolog.Logger) *ARIMAFitter {
	if cfg.MaxP == 0 && cfg.MaxQ == 0 {
		cfg.MaxP, cfg.MaxQ = 2, 2
	}
	if cfg.MaxIter == 0 {
		cfg.MaxIter = 500
	}
	return &ARIMAFitter{
		cfg: cfg,
		log: log.With().Str("component", "arima").Logger(),
	}
}

// Fit searches orders p<=MaxP, q<=MaxQ on the train partition only and
// returns the candidate with the lowest AIC. It fails with a
// NonConvergenceError when no candidate's optimization converges
// within the iteration budget.
func (f *ARIMAFitter) Fit(symbol string, train []float64, diffOrder int) (*ARIMAModel, error) {
	if len(train) < 20 {
		return nil, &domain.NonConvergenceError{
			Symbol: symbol,
			Family: domain.FamilyARIMA,
			Reason: "train partition too short",
		}
	}

	var best *ARIMAModel
	for p := 0; p <= f.cfg.MaxP; p++ {
		for q := 0; q <= f.cfg.MaxQ; q++ {
			m, err := f.fitOrder(train, p, q)
			if err != nil {
				f.log.Debug().
					Str("symbol", symbol).
					Int("p", p).Int("q", q).
					Err(err).
					Msg("Order candidate rejected")
				continue
			}
			if best == nil || m.AIC < best.AIC {
				best = m
			}
		}
	}

	if best == nil {
		return nil, &domain.NonConvergenceError{
			Symbol: symbol,
			Family: domain.FamilyARIMA,
			Reason: "no order candidate converged",
		}
	}

	best.Order.D = diffOrder
	f.log.Info().
		Str("symbol", symbol).
		Int("p", best.Order.P).Int("d", diffOrder).Int("q", best.Order.Q).
		Float64("aic", best.AIC).
		Msg("Selected ARIMA order")
	return best, nil
}

func (f *ARIMAFitter) fitOrder(train []float64, p, q int) (*ARIMAModel, error) {
	n := len(train)
	dim := 1 + p + q

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return cssObjective(train, p, q, x)
		},
	}

	x0 := make([]float64, dim)
	x0[0] = mean(train)

	settings := &optimize.Settings{
		MajorIterations: f.cfg.MaxIter,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-10,
			Iterations: 50,
		},
	}

	result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if err != nil {
		return nil, err
	}
	if result.Status == optimize.IterationLimit {
		return nil, &domain.NonConvergenceError{
			Family: domain.FamilyARIMA,
			Reason: "iteration budget exhausted",
		}
	}

	c := result.X[0]
	ar := append([]float64(nil), result.X[1:1+p]...)
	ma := append([]float64(nil), result.X[1+p:]...)

	resid, sse := cssResiduals(train, c, ar, ma)
	nEff := float64(n - p)
	sigma2 := sse / nEff
	if sigma2 <= 0 || math.IsNaN(sigma2) || math.IsInf(sigma2, 0) {
		return nil, &domain.NonConvergenceError{
			Family: domain.FamilyARIMA,
			Reason: "degenerate residual variance",
		}
	}

	logLik := -0.5 * nEff * (math.Log(2*math.Pi*sigma2) + 1)
	k := float64(p + q + 2) // constant and innovation variance
	return &ARIMAModel{
		Order:     ARIMAOrder{P: p, Q: q},
		Const:     c,
		AR:        ar,
		MA:        ma,
		Sigma2:    sigma2,
		LogLik:    logLik,
		AIC:       2*k - 2*logLik,
		BIC:       k*math.Log(nEff) - 2*logLik,
		Residuals: resid,
		train:     train,
	}, nil
}

// cssObjective is the conditional sum of squares with a soft penalty
// outside the stationarity/invertibility region.
func cssObjective(train []float64, p, q int, x []float64) float64 {
	c := x[0]
	ar := x[1 : 1+p]
	ma := x[1+p:]

	penalty := 0.0
	if s := sumAbs(ar); s >= 0.999 {
		penalty += 1e6 * (s - 0.999)
	}
	if s := sumAbs(ma); s >= 0.999 {
		penalty += 1e6 * (s - 0.999)
	}

	_, sse := cssResiduals(train, c, ar, ma)
	if math.IsNaN(sse) || math.IsInf(sse, 0) {
		return math.MaxFloat64
	}
	return sse * (1 + penalty)
}

// cssResiduals runs the ARMA recursion with pre-sample terms set to
// zero and returns the innovations and their sum of squares over the
// conditioning-free range.
func cssResiduals(train []float64, c float64, ar, ma []float64) ([]float64, float64) {
	n := len(train)
	p := len(ar)
	e := make([]float64, n)
	sse := 0.0
	for t := 0; t < n; t++ {
		pred := c
		for i, phi := range ar {
			if t-1-i >= 0 {
				pred += phi * train[t-1-i]
			}
		}
		for j, theta := range ma {
			if t-1-j >= 0 {
				pred += theta * e[t-1-j]
			}
		}
		e[t] = train[t] - pred
		if t >= p {
			sse += e[t] * e[t]
		}
	}
	return e, sse
}

// Forecast produces h-step-ahead means with Gaussian confidence bounds
// from the psi-weight representation of the forecast error variance.
func (m *ARIMAModel) Forecast(h int) (meanF, variance, lower, upper []float64) {
	n := len(m.train)
	extended := append(append([]float64(nil), m.train...), make([]float64, h)...)
	resid := append(append([]float64(nil), m.Residuals...), make([]float64, h)...)

	for k := 0; k < h; k++ {
		t := n + k
		pred := m.Const
		for i, phi := range m.AR {
			if t-1-i >= 0 {
				pred += phi * extended[t-1-i]
			}
		}
		for j, theta := range m.MA {
			idx := t - 1 - j
			if idx >= 0 && idx < n {
				pred += theta * resid[idx]
			}
			// future innovations have zero expectation
		}
		extended[t] = pred
	}

	psi := m.psiWeights(h)
	meanF = make([]float64, h)
	variance = make([]float64, h)
	lower = make([]float64, h)
	upper = make([]float64, h)

	const z95 = 1.959963984540054
	cum := 0.0
	for k := 0; k < h; k++ {
		cum += psi[k] * psi[k]
		meanF[k] = extended[n+k]
		variance[k] = m.Sigma2 * cum
		sd := math.Sqrt(variance[k])
		lower[k] = meanF[k] - z95*sd
		upper[k] = meanF[k] + z95*sd
	}
	return meanF, variance, lower, upper
}

// psiWeights expands the ARMA model into its MA(∞) representation up to
// lag h-1.
func (m *ARIMAModel) psiWeights(h int) []float64 {
	psi := make([]float64, h)
	if h == 0 {
		return psi
	}
	psi[0] = 1
	for j := 1; j < h; j++ {
		v := 0.0
		if j-1 < len(m.MA) {
			v = m.MA[j-1]
		}
		for i, phi := range m.AR {
			if j-1-i >= 0 {
				v += phi * psi[j-1-i]
			}
		}
		psi[j] = v
	}
	return psi
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	s := 0.0
	for _, v := range x {
		s += v
	}
	return s / float64(len(x))
}

func sumAbs(x []float64) float64 {
	s := 0.0
	for _, v := range x {
		s += math.Abs(v)
	}
	return s
}
