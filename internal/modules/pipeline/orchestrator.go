package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/internal/modules/classical"
	"github.com/aristath/foresight/internal/modules/evaluation"
	"github.com/aristath/foresight/internal/modules/preprocess"
	"github.com/aristath/foresight/internal/modules/scenario"
	"github.com/aristath/foresight/internal/modules/sequence"
	"github.com/aristath/foresight/internal/modules/stationarity"
)

var errFitTimeout = errors.New("fit timeout exceeded")

// Config assembles the per-stage settings for one run.
type Config struct {
	Preprocess preprocess.Config
	ADF        stationarity.Config
	ARIMA      classical.ARIMAConfig
	GARCH      classical.GARCHConfig
	LSTM       sequence.Config
	Scenario   scenario.Config

	// UseLog applies the log transform before differencing.
	UseLog bool

	// Families enables a subset of model families; empty enables all.
	Families []domain.ModelFamily

	// FitTimeout bounds each model fit; zero disables the bound.
	FitTimeout time.Duration

	// MinTrain is the smallest acceptable train partition.
	MinTrain int

	// MaxParallel bounds concurrent per-asset work; zero means
	// unbounded.
	MaxParallel int
}

// Request is one pipeline invocation: the raw series plus the
// train/test cut, either an explicit date or a fraction of
// observations.
type Request struct {
	Series        []domain.AssetSeries
	SplitDate     time.Time
	SplitFraction float64
}

// AssetResult collects everything the pipeline produced for one asset.
// A data-level failure sets Err and leaves the rest empty; model-level
// failures appear as unavailable statuses while the other families
// proceed.
type AssetResult struct {
	Symbol    string                  `json:"symbol"`
	Err       string                  `json:"error,omitempty"`
	ADF       *stationarity.ADFResult `json:"adf,omitempty"`
	DiffOrder int                     `json:"diff_order"`

	Forecasts []domain.ForecastResult `json:"forecasts,omitempty"`
	Statuses  []domain.ModelStatus    `json:"statuses,omitempty"`
	Report    domain.EvaluationReport `json:"report"`
	Bundle    *domain.ScenarioBundle  `json:"bundle,omitempty"`
}

// RunResult is the outcome of one pipeline run.
type RunResult struct {
	RunID      uuid.UUID            `json:"run_id"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Coverage   []domain.CoverageRow `json:"coverage"`
	Assets     []*AssetResult       `json:"assets"`
}

// Orchestrator runs the full forecasting pipeline: preprocessing,
// stationarity diagnostics, model fitting across families, evaluation,
// and scenario simulation. Failures are isolated at the narrowest
// sensible scope; only configuration errors abort the run.
type Orchestrator struct {
	cfg   Config
	pre   *preprocess.Preprocessor
	adf   *stationarity.Analyzer
	trend *classical.TrendFitter
	arima *classical.ARIMAFitter
	garch *classical.GARCHFitter
	seq   *sequence.Forecaster
	eval  *evaluation.Evaluator
	sim   *scenario.Simulator
	log   zerolog.Logger
}

// New creates an orchestrator.
func New(cfg Config, log zerolog.Logger) *Orchestrator {
	if cfg.MinTrain == 0 {
		cfg.MinTrain = 60
	}
	return &Orchestrator{
		cfg:   cfg,
		pre:   preprocess.New(cfg.Preprocess, log),
		adf:   stationarity.New(cfg.ADF, log),
		trend: classical.NewTrendFitter(log),
		arima: classical.NewARIMAFitter(cfg.ARIMA, log),
		garch: classical.NewGARCHFitter(cfg.GARCH, log),
		seq:   sequence.New(cfg.LSTM, log),
		eval:  evaluation.New(log),
		sim:   scenario.New(cfg.Scenario, log),
		log:   log.With().Str("component", "pipeline").Logger(),
	}
}

func (o *Orchestrator) enabled(f domain.ModelFamily) bool {
	if len(o.cfg.Families) == 0 {
		return true
	}
	for _, e := range o.cfg.Families {
		if e == f {
			return true
		}
	}
	return false
}

// assetState is the per-asset working set threaded through the run.
type assetState struct {
	result  *AssetResult
	aligned domain.AssetSeries
	level   domain.DerivedSeries // log-price (or price) space
	derived domain.DerivedSeries // differenced transform space
	split   domain.TrainTestSplit

	splitLevel   int // index into level dates
	splitDerived int // index into derived dates

	// trainSpec carries the same transform as derived.Spec but with its
	// diff anchors at the last train observation, so inverting a
	// forecast continues from the cut instead of the series end.
	trainSpec domain.TransformSpec
}

// Run executes the pipeline. Configuration problems fail fast with a
// ConfigError before any fitting starts; everything after that degrades
// per asset and per model family.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*RunResult, error) {
	if err := o.validate(req); err != nil {
		return nil, err
	}

	run := &RunResult{
		RunID:     uuid.New(),
		StartedAt: time.Now().UTC(),
	}
	o.log.Info().
		Str("run_id", run.RunID.String()).
		Int("assets", len(req.Series)).
		Msg("Starting pipeline run")

	trimmed, coverage := preprocess.AlignCommonWindow(req.Series)
	run.Coverage = coverage

	states := make([]*assetState, len(trimmed))
	for i, series := range trimmed {
		states[i] = &assetState{result: &AssetResult{Symbol: series.Symbol}}
	}

	g, gctx := errgroup.WithContext(ctx)
	if o.cfg.MaxParallel > 0 {
		g.SetLimit(o.cfg.MaxParallel)
	}
	for i := range trimmed {
		g.Go(func() error {
			return o.runAsset(gctx, req, trimmed[i], states[i])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// One joint sequence fit across the surviving assets; its failure
	// marks the family unavailable everywhere but stops nothing else.
	if o.enabled(domain.FamilyLSTM) {
		o.runSequence(ctx, states)
	}

	o.evaluateAll(states)
	if err := o.simulateAll(ctx, states); err != nil {
		return nil, err
	}

	for _, st := range states {
		run.Assets = append(run.Assets, st.result)
	}
	run.FinishedAt = time.Now().UTC()
	o.log.Info().
		Str("run_id", run.RunID.String()).
		Dur("elapsed", run.FinishedAt.Sub(run.StartedAt)).
		Msg("Pipeline run complete")
	return run, nil
}

func (o *Orchestrator) validate(req Request) error {
	if len(req.Series) == 0 {
		return &domain.ConfigError{Field: "series", Reason: "no assets requested"}
	}
	seen := make(map[string]bool, len(req.Series))
	for _, s := range req.Series {
		if seen[s.Symbol] {
			return &domain.ConfigError{Field: "series", Reason: "duplicate symbol " + s.Symbol}
		}
		seen[s.Symbol] = true
	}
	if req.SplitDate.IsZero() && req.SplitFraction == 0 {
		return &domain.ConfigError{Field: "split", Reason: "neither split date nor fraction given"}
	}
	if req.SplitFraction < 0 || req.SplitFraction >= 1 {
		if req.SplitFraction != 0 {
			return &domain.ConfigError{Field: "split", Reason: fmt.Sprintf("fraction %.3f outside (0,1)", req.SplitFraction)}
		}
	}
	if o.cfg.Preprocess.MaxFillDays < 0 {
		return &domain.ConfigError{Field: "preprocess.max_fill_days", Reason: "negative gap limit"}
	}
	return nil
}

// runAsset performs the per-asset data and classical-model stages. Data
// failures are recorded on the asset result and never returned as
// errors; only cancellation propagates.
func (o *Orchestrator) runAsset(ctx context.Context, req Request, series domain.AssetSeries, st *assetState) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	aligned, err := o.pre.Align(series)
	if err != nil {
		st.result.Err = err.Error()
		o.log.Warn().Str("symbol", series.Symbol).Err(err).Msg("Asset excluded")
		return nil
	}
	st.aligned = aligned

	// Level series: log-price space when the log transform is on. The
	// trend baseline fits here; differencing-based families fit the
	// derived series below.
	level, err := o.pre.Transform(series, o.cfg.UseLog, 0)
	if err != nil {
		st.result.Err = err.Error()
		return nil
	}
	st.level = level

	diffOrder, err := o.adf.SuggestDiffOrder(level.Values)
	if err != nil {
		st.result.Err = err.Error()
		return nil
	}
	st.result.DiffOrder = diffOrder
	if res, testErr := o.adf.Test(level.Values); testErr == nil {
		st.result.ADF = &res
	}

	derived, err := o.pre.Transform(series, o.cfg.UseLog, diffOrder)
	if err != nil {
		st.result.Err = err.Error()
		return nil
	}
	st.derived = derived

	split := domain.TrainTestSplit{Symbol: series.Symbol, CutDate: req.SplitDate}
	if split.CutDate.IsZero() {
		split = domain.SplitByFraction(series.Symbol, level.Dates, req.SplitFraction)
	}
	if err := split.Validate(level.Dates, o.cfg.MinTrain); err != nil {
		st.result.Err = err.Error()
		return nil
	}
	st.split = split
	st.splitLevel = split.Index(level.Dates)
	st.splitDerived = split.Index(derived.Dates)

	// Forecasts invert through anchors taken from the train partition
	// only; the full-series spec would anchor them past the cut.
	_, trainSpec, err := domain.ApplyTransform(aligned.Prices()[:st.splitLevel], o.cfg.UseLog, diffOrder)
	if err != nil {
		st.result.Err = err.Error()
		return nil
	}
	st.trainSpec = trainSpec

	o.fitClassical(ctx, st)
	return nil
}

// fitClassical fits the trend, ARIMA, and GARCH families on the train
// partition, recording unavailable statuses instead of failing the
// asset.
func (o *Orchestrator) fitClassical(ctx context.Context, st *assetState) {
	sym := st.result.Symbol
	h := len(st.level.Dates) - st.splitLevel
	testDates := st.level.Dates[st.splitLevel:]

	if o.enabled(domain.FamilyTrend) {
		var model *classical.TrendModel
		err := o.withTimeout(ctx, func() error {
			var fitErr error
			model, fitErr = o.trend.Fit(sym, st.level.Values[:st.splitLevel])
			return fitErr
		})
		if err != nil {
			o.markUnavailable(st, domain.FamilyTrend, err)
		} else {
			meanF, variance, lower, upper := model.Forecast(h)
			st.result.Forecasts = append(st.result.Forecasts, domain.ForecastResult{
				Symbol:    sym,
				Family:    domain.FamilyTrend,
				Space:     st.level.Spec.Space(),
				Dates:     testDates,
				Mean:      meanF,
				Variance:  variance,
				Lower:     lower,
				Upper:     upper,
				Residuals: model.Residuals,
				Spec:      st.level.Spec,
			})
			st.result.Statuses = append(st.result.Statuses, domain.ModelStatus{Family: domain.FamilyTrend, Available: true})
		}
	}

	train := st.derived.Values[:st.splitDerived]

	if o.enabled(domain.FamilyARIMA) {
		var model *classical.ARIMAModel
		err := o.withTimeout(ctx, func() error {
			var fitErr error
			model, fitErr = o.arima.Fit(sym, train, st.result.DiffOrder)
			return fitErr
		})
		if err != nil {
			o.markUnavailable(st, domain.FamilyARIMA, err)
		} else {
			meanF, variance, lower, upper := model.Forecast(h)
			st.result.Forecasts = append(st.result.Forecasts, domain.ForecastResult{
				Symbol:    sym,
				Family:    domain.FamilyARIMA,
				Space:     st.trainSpec.Space(),
				Dates:     testDates,
				Mean:      meanF,
				Variance:  variance,
				Lower:     lower,
				Upper:     upper,
				Residuals: model.Residuals,
				Spec:      st.trainSpec,
				ICs:       &domain.InformationCriteria{AIC: model.AIC, BIC: model.BIC},
			})
			st.result.Statuses = append(st.result.Statuses, domain.ModelStatus{Family: domain.FamilyARIMA, Available: true})
		}
	}

	if o.enabled(domain.FamilyGARCH) {
		if st.result.DiffOrder == 0 {
			o.markUnavailable(st, domain.FamilyGARCH, errors.New("series is stationary in levels, no return series to model"))
			return
		}
		var model *classical.GARCHModel
		err := o.withTimeout(ctx, func() error {
			var fitErr error
			model, fitErr = o.garch.Fit(sym, train)
			return fitErr
		})
		if err != nil {
			o.markUnavailable(st, domain.FamilyGARCH, err)
		} else {
			st.result.Forecasts = append(st.result.Forecasts, garchForecast(sym, model, train, testDates, st.trainSpec))
			st.result.Statuses = append(st.result.Statuses, domain.ModelStatus{Family: domain.FamilyGARCH, Available: true})
		}
	}
}

// garchForecast packages a variance model as a forecast: a constant
// mean-return path with the conditional variance recursion around it.
func garchForecast(sym string, model *classical.GARCHModel, train []float64, testDates []time.Time, spec domain.TransformSpec) domain.ForecastResult {
	h := len(testDates)
	variance := model.VarianceForecast(h)
	meanF := make([]float64, h)
	lower := make([]float64, h)
	upper := make([]float64, h)
	const z95 = 1.959963984540054
	for k := 0; k < h; k++ {
		meanF[k] = model.Mu
		sd := sqrtOrZero(variance[k])
		lower[k] = model.Mu - z95*sd
		upper[k] = model.Mu + z95*sd
	}

	mu := stat.Mean(train, nil)
	resid := make([]float64, len(train))
	for i, r := range train {
		resid[i] = r - mu
	}

	return domain.ForecastResult{
		Symbol:    sym,
		Family:    domain.FamilyGARCH,
		Space:     spec.Space(),
		Dates:     testDates,
		Mean:      meanF,
		Variance:  variance,
		Lower:     lower,
		Upper:     upper,
		Residuals: resid,
		Spec:      spec,
		ICs:       &domain.InformationCriteria{AIC: model.AIC, BIC: model.BIC},
	}
}

// withTimeout bounds a fit. The fit function keeps running in its
// goroutine after a timeout; the result is discarded.
func (o *Orchestrator) withTimeout(ctx context.Context, fit func() error) error {
	if o.cfg.FitTimeout <= 0 {
		return fit()
	}
	done := make(chan error, 1)
	go func() { done <- fit() }()
	select {
	case err := <-done:
		return err
	case <-time.After(o.cfg.FitTimeout):
		return errFitTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) markUnavailable(st *assetState, family domain.ModelFamily, err error) {
	st.result.Statuses = append(st.result.Statuses, domain.ModelStatus{
		Family:    family,
		Available: false,
		Reason:    err.Error(),
	})
	o.log.Warn().
		Str("symbol", st.result.Symbol).
		Str("family", string(family)).
		Err(err).
		Msg("Model family unavailable")
}
