package domain

import (
	"fmt"
	"time"
)

// PricePoint is a single daily observation of an asset's adjusted close.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// AssetSeries is the ordered daily price history for one asset. It is
// immutable once ingested; preprocessing produces derived series and
// never mutates the original in place.
type AssetSeries struct {
	Symbol string       `json:"symbol"`
	Points []PricePoint `json:"points"`
}

// Len returns the number of observations.
func (s AssetSeries) Len() int { return len(s.Points) }

// Dates returns the observation dates in order.
func (s AssetSeries) Dates() []time.Time {
	dates := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		dates[i] = p.Date
	}
	return dates
}

// Prices returns the adjusted close values in order.
func (s AssetSeries) Prices() []float64 {
	prices := make([]float64, len(s.Points))
	for i, p := range s.Points {
		prices[i] = p.Price
	}
	return prices
}

// First returns the earliest observation. Panics on an empty series.
func (s AssetSeries) First() PricePoint { return s.Points[0] }

// Last returns the most recent observation. Panics on an empty series.
func (s AssetSeries) Last() PricePoint { return s.Points[len(s.Points)-1] }

// Validate checks the series invariants: non-empty, strictly increasing
// dates, no duplicates, strictly positive prices.
func (s AssetSeries) Validate() error {
	if s.Symbol == "" {
		return &InvalidSeriesError{Symbol: s.Symbol, Reason: "empty symbol"}
	}
	if len(s.Points) == 0 {
		return &InvalidSeriesError{Symbol: s.Symbol, Reason: "empty series"}
	}
	for i, p := range s.Points {
		if p.Price <= 0 {
			return &InvalidSeriesError{
				Symbol: s.Symbol,
				Reason: fmt.Sprintf("non-positive price %.6f at %s", p.Price, p.Date.Format("2006-01-02")),
			}
		}
		if i > 0 && !p.Date.After(s.Points[i-1].Date) {
			return &InvalidSeriesError{
				Symbol: s.Symbol,
				Reason: fmt.Sprintf("dates not strictly increasing at %s", p.Date.Format("2006-01-02")),
			}
		}
	}
	return nil
}

// TruncateBefore returns a copy of the series containing only
// observations at or after the given date.
func (s AssetSeries) TruncateBefore(start time.Time) AssetSeries {
	out := AssetSeries{Symbol: s.Symbol}
	for _, p := range s.Points {
		if !p.Date.Before(start) {
			out.Points = append(out.Points, p)
		}
	}
	return out
}

// TruncateAfter returns a copy of the series containing only
// observations at or before the given date.
func (s AssetSeries) TruncateAfter(end time.Time) AssetSeries {
	out := AssetSeries{Symbol: s.Symbol}
	for _, p := range s.Points {
		if !p.Date.After(end) {
			out.Points = append(out.Points, p)
		}
	}
	return out
}

// DerivedSeries is an asset series mapped into transform space by a
// SeriesPreprocessor. Values[i] corresponds to Dates[i]. Differencing
// shortens the series, so a derived series may carry fewer observations
// than the source it was produced from.
type DerivedSeries struct {
	Symbol string
	Dates  []time.Time
	Values []float64
	Spec   TransformSpec
}

// Len returns the number of transformed observations.
func (d DerivedSeries) Len() int { return len(d.Values) }

// CoverageRow records how much of an asset's raw history survived
// common-window alignment and calendar cleaning.
type CoverageRow struct {
	Symbol        string  `json:"symbol"`
	RowsBefore    int     `json:"rows_before"`
	RowsAfter     int     `json:"rows_after"`
	RetainedRatio float64 `json:"retained_ratio"`
}
