package scenario

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/pkg/formulas"
)

// Config holds Monte-Carlo settings.
type Config struct {
	Draws int
	Seed  uint64
	Mode  domain.SimulationMode
}

func (c *Config) applyDefaults() {
	if c.Draws == 0 {
		c.Draws = 1000
	}
	if c.Mode == "" {
		c.Mode = domain.SimIndependent
	}
}

// Simulator generates Monte-Carlo price paths around model forecasts.
// Shocks are Gaussian with the model's per-step conditional variance;
// each draw owns a PCG stream keyed by (seed, draw) so a bundle is
// reproducible regardless of scheduling.
type Simulator struct {
	cfg Config
	log zerolog.Logger
}

// New creates a simulator.
func New(cfg Config, log zerolog.Logger) *Simulator {
	cfg.applyDefaults()
	return &Simulator{
		cfg: cfg,
		log: log.With().Str("component", "scenario").Logger(),
	}
}

// Simulate produces one bundle per forecast. In correlated mode the
// per-step shocks share the cross-asset correlation estimated from
// train residuals; when that matrix is not positive definite the run
// falls back to independent draws with a warning.
func (s *Simulator) Simulate(ctx context.Context, forecasts []domain.ForecastResult) ([]domain.ScenarioBundle, error) {
	if len(forecasts) == 0 {
		return nil, fmt.Errorf("scenario: no forecasts to simulate")
	}
	h := forecasts[0].Horizon()
	for _, fc := range forecasts[1:] {
		if fc.Horizon() != h {
			return nil, fmt.Errorf("scenario: horizon mismatch %d vs %d", fc.Horizon(), h)
		}
	}

	mode := s.cfg.Mode
	var chol *mat.Cholesky
	if mode == domain.SimCorrelated && len(forecasts) > 1 {
		var ok bool
		chol, ok = s.residualCholesky(forecasts)
		if !ok {
			s.log.Warn().Msg("Residual correlation not positive definite, falling back to independent draws")
			mode = domain.SimIndependent
		}
	} else if mode == domain.SimCorrelated {
		mode = domain.SimIndependent
	}

	nAssets := len(forecasts)
	// paths[a][d][k] in transform space
	paths := make([][][]float64, nAssets)
	for a := range paths {
		paths[a] = make([][]float64, s.cfg.Draws)
	}

	var lower *mat.TriDense
	if chol != nil {
		lower = mat.NewTriDense(nAssets, mat.Lower, nil)
		chol.LTo(lower)
	}

	z := make([]float64, nAssets)
	corr := make([]float64, nAssets)
	zVec := mat.NewVecDense(nAssets, z)
	corrVec := mat.NewVecDense(nAssets, corr)
	for draw := 0; draw < s.cfg.Draws; draw++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		rng := rand.New(rand.NewPCG(s.cfg.Seed, uint64(draw)))
		for a := range paths {
			paths[a][draw] = make([]float64, h)
		}
		for k := 0; k < h; k++ {
			for a := range z {
				z[a] = rng.NormFloat64()
			}
			shocks := z
			if lower != nil {
				corrVec.MulVec(lower, zVec)
				shocks = corr
			}
			for a, fc := range forecasts {
				sd := 0.0
				if len(fc.Variance) > k && fc.Variance[k] > 0 {
					sd = math.Sqrt(fc.Variance[k])
				}
				paths[a][draw][k] = fc.Mean[k] + sd*shocks[a]
			}
		}
	}

	bundles := make([]domain.ScenarioBundle, nAssets)
	for a, fc := range forecasts {
		bundles[a] = s.buildBundle(fc, mode, paths[a])
	}
	return bundles, nil
}

// residualCholesky estimates the cross-asset correlation of train
// residuals and returns its Cholesky factor. Residual series are
// truncated to the shortest asset.
func (s *Simulator) residualCholesky(forecasts []domain.ForecastResult) (*mat.Cholesky, bool) {
	n := -1
	for _, fc := range forecasts {
		if n < 0 || len(fc.Residuals) < n {
			n = len(fc.Residuals)
		}
	}
	if n < 3 {
		return nil, false
	}

	k := len(forecasts)
	corr := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		ri := forecasts[i].Residuals[len(forecasts[i].Residuals)-n:]
		corr.SetSym(i, i, 1)
		for j := i + 1; j < k; j++ {
			rj := forecasts[j].Residuals[len(forecasts[j].Residuals)-n:]
			c := stat.Correlation(ri, rj, nil)
			if math.IsNaN(c) {
				return nil, false
			}
			corr.SetSym(i, j, c)
		}
	}

	var chol mat.Cholesky
	if !chol.Factorize(corr) {
		return nil, false
	}
	return &chol, true
}

// buildBundle maps transform-space draws to price space and summarizes
// them. Each whole path is inverted in a single pass.
func (s *Simulator) buildBundle(fc domain.ForecastResult, mode domain.SimulationMode, draws [][]float64) domain.ScenarioBundle {
	h := fc.Horizon()
	bundle := domain.ScenarioBundle{
		Symbol:  fc.Symbol,
		Family:  fc.Family,
		Mode:    mode,
		Seed:    s.cfg.Seed,
		Horizon: h,
		Dates:   fc.Dates,
		Paths:   make([]domain.SimulatedPath, len(draws)),
	}

	for d, path := range draws {
		bundle.Paths[d] = domain.SimulatedPath{
			Draw:   d,
			Prices: fc.Spec.InvertFuture(path),
		}
	}

	bundle.Bands = percentileBands(bundle.Paths, h)

	total := 0.0
	for _, p := range bundle.Paths {
		total += p.Terminal()
	}
	bundle.ExpectedTerminal = total / float64(len(bundle.Paths))

	s.log.Debug().
		Str("symbol", fc.Symbol).
		Str("mode", string(mode)).
		Int("draws", len(draws)).
		Float64("expected_terminal", bundle.ExpectedTerminal).
		Msg("Simulated scenario bundle")
	return bundle
}

func percentileBands(paths []domain.SimulatedPath, h int) domain.PercentileBands {
	bands := domain.PercentileBands{
		P5:  make([]float64, h),
		P50: make([]float64, h),
		P95: make([]float64, h),
	}
	col := make([]float64, len(paths))
	for k := 0; k < h; k++ {
		for d, p := range paths {
			col[d] = p.Prices[k]
		}
		bands.P5[k] = formulas.Quantile(col, 0.05)
		bands.P50[k] = formulas.Quantile(col, 0.50)
		bands.P95[k] = formulas.Quantile(col, 0.95)
	}
	return bands
}
