package domain

import (
	"fmt"
	"time"
)

// DataGapError reports a run of missing trading days longer than the
// configured forward-fill limit. The asset is excluded from the run;
// data is never fabricated to bridge the gap.
type DataGapError struct {
	Symbol string
	From   time.Time
	To     time.Time
	Days   int
	Limit  int
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("data gap for %s: %d missing trading days from %s to %s (limit %d)",
		e.Symbol, e.Days, e.From.Format("2006-01-02"), e.To.Format("2006-01-02"), e.Limit)
}

// InvalidSeriesError reports a series that violates its structural
// invariants, including non-positive prices under a log transform.
type InvalidSeriesError struct {
	Symbol string
	Reason string
}

func (e *InvalidSeriesError) Error() string {
	return fmt.Sprintf("invalid series %s: %s", e.Symbol, e.Reason)
}

// NonConvergenceError reports that a classical model's optimizer did
// not converge within its iteration budget. The model family is marked
// unavailable for the asset; other families and assets continue.
type NonConvergenceError struct {
	Symbol string
	Family ModelFamily
	Reason string
}

func (e *NonConvergenceError) Error() string {
	return fmt.Sprintf("%s fit did not converge for %s: %s", e.Family, e.Symbol, e.Reason)
}

// TrainingDivergedError reports a non-finite training loss in the
// sequence model. Training is aborted rather than returning a
// corrupted forecast.
type TrainingDivergedError struct {
	Epoch int
	Loss  float64
}

func (e *TrainingDivergedError) Error() string {
	return fmt.Sprintf("sequence model training diverged at epoch %d (loss %v)", e.Epoch, e.Loss)
}

// ConfigError reports a malformed run configuration. Unlike data and
// model errors it is fatal: it propagates to the caller before any
// fitting starts.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}
