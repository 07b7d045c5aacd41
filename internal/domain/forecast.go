package domain

import (
	"time"
)

// ModelFamily identifies one forecaster variant.
type ModelFamily string

const (
	FamilyTrend ModelFamily = "trend"
	FamilyARIMA ModelFamily = "arima"
	FamilyGARCH ModelFamily = "garch"
	FamilyLSTM  ModelFamily = "lstm"
)

// InformationCriteria carries AIC/BIC for classical models. Sequence
// models have no likelihood-based criteria and leave this nil.
type InformationCriteria struct {
	AIC float64 `json:"aic"`
	BIC float64 `json:"bic"`
}

// ForecastResult is the common forecast representation every model
// family reconciles into: per-asset, per-model h-step-ahead point
// estimates with optional conditional variance, expressed in the space
// recorded by Spec. The spec is always sufficient to map the forecast
// back to price space.
type ForecastResult struct {
	Symbol string      `json:"symbol"`
	Family ModelFamily `json:"family"`
	Space  Space       `json:"space"`

	Dates []time.Time `json:"dates"`
	Mean  []float64   `json:"mean"`

	// Variance holds h-step conditional variance forecasts in transform
	// space; nil when the family provides none.
	Variance []float64 `json:"variance,omitempty"`
	Lower    []float64 `json:"lower,omitempty"`
	Upper    []float64 `json:"upper,omitempty"`

	// Residuals are the in-sample (train-only) one-step errors in
	// transform space, used for empirical shock draws and cross-asset
	// correlation estimation.
	Residuals []float64 `json:"-"`

	Spec TransformSpec        `json:"spec"`
	ICs  *InformationCriteria `json:"information_criteria,omitempty"`
}

// Horizon returns the number of forecast steps.
func (f ForecastResult) Horizon() int { return len(f.Mean) }

// PriceMean maps the mean forecast back to price space via the
// transform spec.
func (f ForecastResult) PriceMean() []float64 {
	return f.Spec.InvertFuture(f.Mean)
}

// ModelStatus records whether a model family produced a usable forecast
// for an asset, and why not when it did not.
type ModelStatus struct {
	Family    ModelFamily `json:"family"`
	Available bool        `json:"available"`
	Reason    string      `json:"reason,omitempty"`
}

// EvaluationReport maps metric names to values per model family,
// computed only over the test partition and always in price space.
// Immutable once produced.
type EvaluationReport struct {
	Symbol      string                            `json:"symbol"`
	Metrics     map[ModelFamily]map[string]float64 `json:"metrics"`
	Ranking     []ModelFamily                     `json:"ranking"`
	Unavailable map[ModelFamily]string            `json:"unavailable,omitempty"`
}

// Best returns the top-ranked model family, or empty when no family
// produced a usable forecast.
func (r EvaluationReport) Best() ModelFamily {
	if len(r.Ranking) == 0 {
		return ""
	}
	return r.Ranking[0]
}
