package classical

import (
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/foresight/internal/domain"
)

// GARCHFamily selects the conditional variance specification.
type GARCHFamily string

const (
	GARCH  GARCHFamily = "garch"
	EGARCH GARCHFamily = "egarch"
)

// GARCHConfig holds variance-model settings.
type GARCHConfig struct {
	Family  GARCHFamily
	MaxIter int
}

// GARCHModel is a fitted conditional variance model over mean-model
// residuals or returns.
type GARCHModel struct {
	Family GARCHFamily
	Mu     float64
	Omega  float64
	Alpha  float64
	Beta   float64
	Gamma  float64 // EGARCH asymmetry term, zero for plain GARCH

	// Persistence is alpha+beta for GARCH and beta for EGARCH; values
	// near one mean volatility shocks decay slowly.
	Persistence float64

	Sigma2  []float64 // in-sample conditional variance
	LogLik  float64
	AIC     float64
	BIC     float64

	lastEps  float64
	lastVar  float64
	uncond   float64
}

// GARCHFitter fits GARCH(1,1) or EGARCH(1,1) by Gaussian maximum
// likelihood.
type GARCHFitter struct {
	cfg GARCHConfig
	log zerolog.Logger
}

// NewGARCHFitter creates a fitter. The family defaults to GARCH(1,1)
// and the iteration budget to 500.
func NewGARCHFitter(cfg GARCHConfig, log zerolog.Logger) *GARCHFitter {
	if cfg.Family == "" {
		cfg.Family = GARCH
	}
	if cfg.MaxIter == 0 {
		cfg.MaxIter = 500
	}
	return &GARCHFitter{
		cfg: cfg,
		log: log.With().Str("component", "garch").Logger(),
	}
}

// Fit estimates the variance model on the train partition only. It
// fails with a NonConvergenceError when the optimizer exhausts its
// budget or the likelihood degenerates.
func (f *GARCHFitter) Fit(symbol string, returns []float64) (*GARCHModel, error) {
	if len(returns) < 30 {
		return nil, &domain.NonConvergenceError{
			Symbol: symbol,
			Family: domain.FamilyGARCH,
			Reason: "train partition too short",
		}
	}

	mu := stat.Mean(returns, nil)
	eps := make([]float64, len(returns))
	for i, r := range returns {
		eps[i] = r - mu
	}
	uncond := stat.Variance(eps, nil)
	if uncond <= 0 {
		return nil, &domain.NonConvergenceError{
			Symbol: symbol,
			Family: domain.FamilyGARCH,
			Reason: "zero unconditional variance",
		}
	}

	var nll func(x []float64) float64
	var x0 []float64
	switch f.cfg.Family {
	case EGARCH:
		nll = func(x []float64) float64 { return egarchNLL(eps, uncond, x) }
		// omega, alpha, gamma, atanh(beta)
		x0 = []float64{(1 - 0.95) * math.Log(uncond), 0.1, -0.05, math.Atanh(0.95)}
	default:
		nll = func(x []float64) float64 { return garchNLL(eps, uncond, x) }
		// log(omega), logits of alpha and beta
		x0 = []float64{math.Log(uncond * 0.05), 0, math.Log(18.0)}
	}

	result, err := optimize.Minimize(
		optimize.Problem{Func: nll},
		x0,
		&optimize.Settings{
			MajorIterations: f.cfg.MaxIter,
			Converger:       &optimize.FunctionConverge{Absolute: 1e-10, Iterations: 50},
		},
		&optimize.NelderMead{},
	)
	if err != nil {
		return nil, &domain.NonConvergenceError{
			Symbol: symbol,
			Family: domain.FamilyGARCH,
			Reason: err.Error(),
		}
	}
	if result.Status == optimize.IterationLimit {
		return nil, &domain.NonConvergenceError{
			Symbol: symbol,
			Family: domain.FamilyGARCH,
			Reason: "iteration budget exhausted",
		}
	}

	model := f.buildModel(eps, uncond, mu, result.X)
	if math.IsNaN(model.LogLik) || math.IsInf(model.LogLik, 0) {
		return nil, &domain.NonConvergenceError{
			Symbol: symbol,
			Family: domain.FamilyGARCH,
			Reason: "degenerate likelihood",
		}
	}

	f.log.Info().
		Str("symbol", symbol).
		Str("family", string(model.Family)).
		Float64("alpha", model.Alpha).
		Float64("beta", model.Beta).
		Float64("persistence", model.Persistence).
		Msg("Fitted variance model")
	return model, nil
}

func (f *GARCHFitter) buildModel(eps []float64, uncond, mu float64, x []float64) *GARCHModel {
	n := float64(len(eps))
	m := &GARCHModel{Family: f.cfg.Family, Mu: mu, uncond: uncond}

	var sigma2 []float64
	var nllVal float64
	switch f.cfg.Family {
	case EGARCH:
		m.Omega = x[0]
		m.Alpha = x[1]
		m.Gamma = x[2]
		m.Beta = math.Tanh(x[3])
		m.Persistence = m.Beta
		nllVal = egarchNLL(eps, uncond, x)
		sigma2 = egarchVariancePath(eps, uncond, m.Omega, m.Alpha, m.Gamma, m.Beta)
	default:
		omega, alpha, beta := garchParams(x)
		m.Omega, m.Alpha, m.Beta = omega, alpha, beta
		m.Persistence = alpha + beta
		nllVal = garchNLL(eps, uncond, x)
		sigma2 = garchVariancePath(eps, uncond, omega, alpha, beta)
	}

	m.Sigma2 = sigma2
	m.LogLik = -nllVal
	k := 4.0
	if f.cfg.Family == EGARCH {
		k = 5.0
	}
	m.AIC = 2*k - 2*m.LogLik
	m.BIC = k*math.Log(n) - 2*m.LogLik
	m.lastEps = eps[len(eps)-1]
	m.lastVar = sigma2[len(sigma2)-1]
	return m
}

// garchParams maps unconstrained optimizer coordinates to valid
// GARCH(1,1) parameters with alpha+beta < 1.
func garchParams(x []float64) (omega, alpha, beta float64) {
	omega = math.Exp(x[0])
	ea, eb := math.Exp(x[1]), math.Exp(x[2])
	s := 1 + ea + eb
	return omega, ea / s, eb / s
}

func garchVariancePath(eps []float64, uncond, omega, alpha, beta float64) []float64 {
	sigma2 := make([]float64, len(eps))
	v := uncond
	for t := range eps {
		if t > 0 {
			v = omega + alpha*eps[t-1]*eps[t-1] + beta*sigma2[t-1]
		}
		sigma2[t] = v
	}
	return sigma2
}

func garchNLL(eps []float64, uncond float64, x []float64) float64 {
	omega, alpha, beta := garchParams(x)
	if omega <= 0 || math.IsNaN(omega) || math.IsInf(omega, 0) {
		return math.MaxFloat64
	}
	sigma2 := garchVariancePath(eps, uncond, omega, alpha, beta)
	nll := 0.0
	for t, e := range eps {
		v := sigma2[t]
		if v <= 0 || math.IsNaN(v) {
			return math.MaxFloat64
		}
		nll += 0.5 * (math.Log(2*math.Pi) + math.Log(v) + e*e/v)
	}
	return nll
}

// expAbsZ is E|z| for standard normal z.
var expAbsZ = math.Sqrt(2 / math.Pi)

func egarchVariancePath(eps []float64, uncond, omega, alpha, gamma, beta float64) []float64 {
	sigma2 := make([]float64, len(eps))
	lv := math.Log(uncond)
	for t := range eps {
		if t > 0 {
			z := eps[t-1] / math.Sqrt(sigma2[t-1])
			lv = omega + alpha*(math.Abs(z)-expAbsZ) + gamma*z + beta*math.Log(sigma2[t-1])
		}
		sigma2[t] = math.Exp(lv)
	}
	return sigma2
}

func egarchNLL(eps []float64, uncond float64, x []float64) float64 {
	omega, alpha, gamma := x[0], x[1], x[2]
	beta := math.Tanh(x[3])
	sigma2 := egarchVariancePath(eps, uncond, omega, alpha, gamma, beta)
	nll := 0.0
	for t, e := range eps {
		v := sigma2[t]
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return math.MaxFloat64
		}
		nll += 0.5 * (math.Log(2*math.Pi) + math.Log(v) + e*e/v)
	}
	return nll
}

// VarianceForecast produces h-step-ahead conditional variance
// forecasts. Beyond one step the recursion uses the expectation of the
// shock terms.
func (m *GARCHModel) VarianceForecast(h int) []float64 {
	out := make([]float64, h)
	switch m.Family {
	case EGARCH:
		z := m.lastEps / math.Sqrt(m.lastVar)
		lv := m.Omega + m.Alpha*(math.Abs(z)-expAbsZ) + m.Gamma*z + m.Beta*math.Log(m.lastVar)
		for k := 0; k < h; k++ {
			if k > 0 {
				lv = m.Omega + m.Beta*lv
			}
			out[k] = math.Exp(lv)
		}
	default:
		v := m.Omega + m.Alpha*m.lastEps*m.lastEps + m.Beta*m.lastVar
		for k := 0; k < h; k++ {
			if k > 0 {
				v = m.Omega + m.Persistence*out[k-1]
			}
			out[k] = v
		}
	}
	return out
}
