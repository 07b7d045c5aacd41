package domain

import (
	"time"
)

// TrainTestSplit is a single cut date per asset. Observations strictly
// before the cut belong to train; observations at or after belong to
// test. The split is fixed before any model sees test data and the same
// split is used across all model families for an asset, so metrics stay
// comparable.
type TrainTestSplit struct {
	Symbol  string    `json:"symbol"`
	CutDate time.Time `json:"cut_date"`
}

// Index returns the index of the first test observation for the given
// ordered dates, or len(dates) when every observation is train.
func (s TrainTestSplit) Index(dates []time.Time) int {
	for i, d := range dates {
		if !d.Before(s.CutDate) {
			return i
		}
	}
	return len(dates)
}

// Partition splits ordered values at the cut. Train is everything
// strictly before the cut date, test everything at or after it.
func (s TrainTestSplit) Partition(dates []time.Time, values []float64) (train, test []float64) {
	idx := s.Index(dates)
	return values[:idx], values[idx:]
}

// Validate checks that the cut leaves a non-trivial train partition and
// a non-empty test partition.
func (s TrainTestSplit) Validate(dates []time.Time, minTrain int) error {
	idx := s.Index(dates)
	if idx < minTrain {
		return &ConfigError{
			Field:  "split",
			Reason: "train partition too small for " + s.Symbol,
		}
	}
	if idx >= len(dates) {
		return &ConfigError{
			Field:  "split",
			Reason: "split date leaves no test observations for " + s.Symbol,
		}
	}
	return nil
}

// SplitByFraction derives a cut date placing roughly the given fraction
// of observations in train.
func SplitByFraction(symbol string, dates []time.Time, fraction float64) TrainTestSplit {
	idx := int(float64(len(dates)) * fraction)
	if idx < 1 {
		idx = 1
	}
	if idx >= len(dates) {
		idx = len(dates) - 1
	}
	return TrainTestSplit{Symbol: symbol, CutDate: dates[idx]}
}
