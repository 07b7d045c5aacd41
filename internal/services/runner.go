// Package services wires the pipeline to storage and scheduling.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/foresight/internal/artifacts"
	"github.com/aristath/foresight/internal/config"
	"github.com/aristath/foresight/internal/database"
	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/internal/modules/pipeline"
)

// Runner executes one full forecasting run: it loads the run spec,
// pulls price history from the repository, drives the orchestrator, and
// persists results and scenario snapshots. It satisfies the scheduler
// Job interface so unattended runs reuse the same path.
type Runner struct {
	specPath  string
	prices    *database.PriceRepository
	results   *database.ResultRepository
	snapshots *artifacts.Store
	log       zerolog.Logger

	// RunTimeout bounds a whole run; zero disables the bound.
	RunTimeout time.Duration
}

// NewRunner creates a runner.
func NewRunner(specPath string, prices *database.PriceRepository, results *database.ResultRepository, snapshots *artifacts.Store, log zerolog.Logger) *Runner {
	return &Runner{
		specPath:  specPath,
		prices:    prices,
		results:   results,
		snapshots: snapshots,
		log:       log.With().Str("component", "runner").Logger(),
	}
}

// Name implements the scheduler Job interface.
func (r *Runner) Name() string { return "forecast-run" }

// Run implements the scheduler Job interface.
func (r *Runner) Run() error {
	ctx := context.Background()
	if r.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.RunTimeout)
		defer cancel()
	}
	_, err := r.Execute(ctx)
	return err
}

// Execute performs one run and returns its result.
func (r *Runner) Execute(ctx context.Context) (*pipeline.RunResult, error) {
	spec, err := config.LoadRunSpec(r.specPath)
	if err != nil {
		return nil, err
	}

	series := make([]domain.AssetSeries, 0, len(spec.Symbols))
	for _, sym := range spec.Symbols {
		s, err := r.prices.GetSeries(sym)
		if err != nil {
			// Missing history is a data problem for one asset, not a
			// reason to abort the run.
			r.log.Warn().Str("symbol", sym).Err(err).Msg("Skipping asset without history")
			continue
		}
		series = append(series, s)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("no price history available for any requested symbol")
	}

	orch := pipeline.New(spec.PipelineConfig(), r.log)
	run, err := orch.Run(ctx, pipeline.Request{
		Series:        series,
		SplitDate:     spec.SplitDate(),
		SplitFraction: spec.Split.Fraction,
	})
	if err != nil {
		return nil, err
	}

	if err := r.results.Save(run); err != nil {
		return nil, fmt.Errorf("failed to persist run %s: %w", run.RunID, err)
	}
	for _, asset := range run.Assets {
		if asset.Bundle == nil {
			continue
		}
		if err := r.snapshots.Save(run.RunID.String(), asset.Bundle); err != nil {
			r.log.Error().Str("symbol", asset.Symbol).Err(err).Msg("Failed to save scenario snapshot")
		}
	}

	r.log.Info().
		Str("run_id", run.RunID.String()).
		Int("assets", len(run.Assets)).
		Msg("Run persisted")
	return run, nil
}
