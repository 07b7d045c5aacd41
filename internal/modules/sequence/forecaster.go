package sequence

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/foresight/internal/domain"
)

// Config holds sequence-model hyperparameters.
type Config struct {
	Window       int
	Hidden       int
	Epochs       int
	BatchSize    int
	LearningRate float64
	ValFraction  float64
	Patience     int
	Seed         uint64
}

func (c *Config) applyDefaults() {
	if c.Window == 0 {
		c.Window = 20
	}
	if c.Hidden == 0 {
		c.Hidden = 16
	}
	if c.Epochs == 0 {
		c.Epochs = 100
	}
	if c.BatchSize == 0 {
		c.BatchSize = 32
	}
	if c.LearningRate == 0 {
		c.LearningRate = 1e-3
	}
	if c.ValFraction == 0 {
		c.ValFraction = 0.15
	}
	if c.Patience == 0 {
		c.Patience = 10
	}
}

// Forecaster trains one LSTM jointly over all assets: each timestep is
// a vector with one transform-space value per asset, and the network
// predicts the next vector.
type Forecaster struct {
	cfg Config
	log zerolog.Logger
}

// New creates a sequence forecaster.
func New(cfg Config, log zerolog.Logger) *Forecaster {
	cfg.applyDefaults()
	return &Forecaster{
		cfg: cfg,
		log: log.With().Str("component", "sequence").Logger(),
	}
}

// Model is a trained network together with everything needed to roll it
// forward: the train-only scaler, the last train-partition window, and
// per-asset train residuals.
type Model struct {
	cfg     Config
	symbols []string
	net     *lstm
	scaler  *MinMaxScaler

	lastWindow [][]float64 // scaled, ends at the train/test boundary
	residuals  [][]float64 // per asset, transform space
	residVar   []float64

	EpochsRun int
	ValLoss   float64
}

// Fit trains the network on rows[0:boundary]. Rows are aligned
// transform-space values, one column per symbol; the scaler and every
// training window are confined to the train partition. Fit checks ctx
// between epochs so a cancelled run stops at an epoch boundary.
func (f *Forecaster) Fit(ctx context.Context, symbols []string, rows [][]float64, boundary int) (*Model, error) {
	w := f.cfg.Window
	if len(symbols) == 0 || len(rows) == 0 {
		return nil, fmt.Errorf("sequence fit: empty input")
	}
	if len(rows[0]) != len(symbols) {
		return nil, fmt.Errorf("sequence fit: %d columns for %d symbols", len(rows[0]), len(symbols))
	}
	if boundary <= w+1 || boundary > len(rows) {
		return nil, fmt.Errorf("sequence fit: boundary %d unusable for window %d over %d rows", boundary, w, len(rows))
	}

	scaler := FitScaler(rows[:boundary])
	scaled := scaler.Transform(rows)

	windows := BuildWindows(scaled, w)
	train, _ := SplitAtBoundary(windows, boundary)
	if len(train) < 2 {
		return nil, fmt.Errorf("sequence fit: only %d train windows", len(train))
	}
	fit, val := HoldOutValidation(train, f.cfg.ValFraction)

	return f.train(ctx, symbols, scaler, scaled, fit, val, train, boundary)
}

func (f *Forecaster) train(ctx context.Context, symbols []string, scaler *MinMaxScaler, scaled [][]float64, fit, val, train []Window, boundary int) (*Model, error) {
	nAssets := len(symbols)
	rng := rand.New(rand.NewPCG(f.cfg.Seed, 0))
	net := newLSTM(nAssets, f.cfg.Hidden, nAssets, rng)
	opt := newAdam(net, f.cfg.LearningRate)
	grads := net.newGrads()

	order := make([]int, len(fit))
	for i := range order {
		order[i] = i
	}

	bestVal := math.Inf(1)
	bad := 0
	epochs := 0

	for epoch := 0; epoch < f.cfg.Epochs; epoch++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		epochLoss := 0.0
		for start := 0; start < len(order); start += f.cfg.BatchSize {
			end := start + f.cfg.BatchSize
			if end > len(order) {
				end = len(order)
			}
			grads.zero()
			for _, idx := range order[start:end] {
				win := fit[idx]
				cache, _ := net.forward(win.Inputs)
				epochLoss += net.backward(cache, win.Target, grads)
			}
			opt.step(net, grads, end-start)
		}
		epochLoss /= float64(len(fit))
		epochs = epoch + 1

		if math.IsNaN(epochLoss) || math.IsInf(epochLoss, 0) {
			return nil, &domain.TrainingDivergedError{Epoch: epoch, Loss: epochLoss}
		}

		valLoss := epochLoss
		if len(val) > 0 {
			valLoss = f.evalLoss(net, val)
			if math.IsNaN(valLoss) || math.IsInf(valLoss, 0) {
				return nil, &domain.TrainingDivergedError{Epoch: epoch, Loss: valLoss}
			}
		}

		if valLoss < bestVal-1e-12 {
			bestVal = valLoss
			bad = 0
		} else {
			bad++
			if bad >= f.cfg.Patience {
				f.log.Debug().
					Int("epoch", epoch).
					Float64("val_loss", bestVal).
					Msg("Early stopping")
				break
			}
		}
	}

	m := &Model{
		cfg:        f.cfg,
		symbols:    symbols,
		net:        net,
		scaler:     scaler,
		lastWindow: copyRows(scaled[boundary-f.cfg.Window : boundary]),
		EpochsRun:  epochs,
		ValLoss:    bestVal,
	}
	m.computeResiduals(train)

	f.log.Info().
		Int("assets", nAssets).
		Int("epochs", epochs).
		Float64("val_loss", bestVal).
		Msg("Trained sequence model")
	return m, nil
}

func (f *Forecaster) evalLoss(net *lstm, windows []Window) float64 {
	total := 0.0
	for _, w := range windows {
		_, pred := net.forward(w.Inputs)
		for j, p := range pred {
			d := p - w.Target[j]
			total += d * d
		}
	}
	return total / float64(len(windows)*net.outSize)
}

// computeResiduals collects one-step train errors per asset in
// transform space, for empirical shocks and interval widths.
func (m *Model) computeResiduals(train []Window) {
	nAssets := len(m.symbols)
	m.residuals = make([][]float64, nAssets)
	for j := range m.residuals {
		m.residuals[j] = make([]float64, 0, len(train))
	}
	for _, w := range train {
		_, pred := m.net.forward(w.Inputs)
		for j := range pred {
			p := m.scaler.InverseValue(j, pred[j])
			a := m.scaler.InverseValue(j, w.Target[j])
			m.residuals[j] = append(m.residuals[j], a-p)
		}
	}
	m.residVar = make([]float64, nAssets)
	for j, r := range m.residuals {
		if len(r) > 1 {
			m.residVar[j] = stat.Variance(r, nil)
		}
	}
}

// Forecast rolls the network forward autoregressively from the
// train/test boundary: each prediction is appended to the input window
// and the oldest step dropped, so no observed test value ever enters
// the inputs. The result stays in transform space with a flat
// residual-variance band; specs map each asset back to price space.
func (m *Model) Forecast(dates []time.Time, specs map[string]domain.TransformSpec) ([]domain.ForecastResult, error) {
	h := len(dates)
	if h == 0 {
		return nil, fmt.Errorf("sequence forecast: empty horizon")
	}

	window := copyRows(m.lastWindow)
	scaledPath := make([][]float64, 0, h)
	for k := 0; k < h; k++ {
		_, pred := m.net.forward(window)
		scaledPath = append(scaledPath, pred)
		window = append(window[1:], pred)
	}

	const z95 = 1.959963984540054
	results := make([]domain.ForecastResult, len(m.symbols))
	for j, sym := range m.symbols {
		spec, ok := specs[sym]
		if !ok {
			return nil, fmt.Errorf("sequence forecast: no transform spec for %s", sym)
		}

		meanF := make([]float64, h)
		variance := make([]float64, h)
		lower := make([]float64, h)
		upper := make([]float64, h)
		sd := math.Sqrt(m.residVar[j])
		for k, row := range scaledPath {
			meanF[k] = m.scaler.InverseValue(j, row[j])
			variance[k] = m.residVar[j]
			lower[k] = meanF[k] - z95*sd
			upper[k] = meanF[k] + z95*sd
		}

		results[j] = domain.ForecastResult{
			Symbol:    sym,
			Family:    domain.FamilyLSTM,
			Space:     spec.Space(),
			Dates:     dates,
			Mean:      meanF,
			Variance:  variance,
			Lower:     lower,
			Upper:     upper,
			Residuals: m.residuals[j],
			Spec:      spec,
		}
	}
	return results, nil
}

func copyRows(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = make([]float64, len(r))
		copy(out[i], r)
	}
	return out
}
