package preprocess

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/foresight/internal/domain"
)

// Config holds preprocessing policy.
type Config struct {
	// MaxFillDays is the largest run of missing business days that may
	// be forward-filled. Longer gaps fail with a DataGapError.
	MaxFillDays int
}

// Preprocessor aligns raw asset series to a business-day calendar and
// maps them into transform space. It never mutates its input; every
// output is a fresh derived series.
type Preprocessor struct {
	cfg Config
	log zerolog.Logger
}

// New creates a preprocessor with the given gap policy.
func New(cfg Config, log zerolog.Logger) *Preprocessor {
	return &Preprocessor{
		cfg: cfg,
		log: log.With().Str("component", "preprocess").Logger(),
	}
}

// Align reindexes a series to the business-day calendar spanning its
// observations, forward-filling runs of missing days up to the
// configured limit. Runs longer than the limit fail with a
// DataGapError rather than fabricating data.
func (p *Preprocessor) Align(series domain.AssetSeries) (domain.AssetSeries, error) {
	if err := series.Validate(); err != nil {
		return domain.AssetSeries{}, err
	}

	byDate := make(map[time.Time]float64, series.Len())
	for _, pt := range series.Points {
		byDate[dateOnly(pt.Date)] = pt.Price
	}

	first := dateOnly(series.First().Date)
	last := dateOnly(series.Last().Date)
	calendar := BusinessDays(first, last)

	aligned := domain.AssetSeries{Symbol: series.Symbol}
	lastPrice := 0.0
	gapStart := time.Time{}
	gapLen := 0

	for _, day := range calendar {
		price, ok := byDate[day]
		if !ok {
			if gapLen == 0 {
				gapStart = day
			}
			gapLen++
			if gapLen > p.cfg.MaxFillDays {
				return domain.AssetSeries{}, &domain.DataGapError{
					Symbol: series.Symbol,
					From:   gapStart,
					To:     day,
					Days:   gapLen,
					Limit:  p.cfg.MaxFillDays,
				}
			}
			price = lastPrice
		} else {
			gapLen = 0
		}
		lastPrice = price
		aligned.Points = append(aligned.Points, domain.PricePoint{Date: day, Price: price})
	}

	present := 0
	for _, pt := range series.Points {
		if IsBusinessDay(pt.Date) {
			present++
		}
	}
	if filled := aligned.Len() - present; filled > 0 {
		p.log.Debug().
			Str("symbol", series.Symbol).
			Int("filled_days", filled).
			Msg("Forward-filled missing trading days")
	}

	return aligned, nil
}

// Transform aligns a series and applies the log/differencing policy,
// returning the derived series with a spec sufficient for exact
// inversion back to price space.
func (p *Preprocessor) Transform(series domain.AssetSeries, useLog bool, diffOrder int) (domain.DerivedSeries, error) {
	aligned, err := p.Align(series)
	if err != nil {
		return domain.DerivedSeries{}, err
	}

	values, spec, err := domain.ApplyTransform(aligned.Prices(), useLog, diffOrder)
	if err != nil {
		return domain.DerivedSeries{}, &domain.InvalidSeriesError{
			Symbol: series.Symbol,
			Reason: err.Error(),
		}
	}

	// Differencing consumes the leading observations.
	dates := aligned.Dates()[aligned.Len()-len(values):]

	p.log.Debug().
		Str("symbol", series.Symbol).
		Bool("log", useLog).
		Int("diff_order", diffOrder).
		Int("observations", len(values)).
		Msg("Transformed series")

	return domain.DerivedSeries{
		Symbol: series.Symbol,
		Dates:  dates,
		Values: values,
		Spec:   spec,
	}, nil
}

// AlignCommonWindow trims every series to the window every asset
// covers: from the latest first observation date to the earliest last
// one. All assets then share one calendar at both ends, which joint
// modelling across assets relies on. It returns the trimmed set with a
// per-asset coverage audit.
func AlignCommonWindow(seriesSet []domain.AssetSeries) ([]domain.AssetSeries, []domain.CoverageRow) {
	var commonStart, commonEnd time.Time
	for _, s := range seriesSet {
		if s.Len() == 0 {
			continue
		}
		first := dateOnly(s.First().Date)
		if first.After(commonStart) {
			commonStart = first
		}
		last := dateOnly(s.Last().Date)
		if commonEnd.IsZero() || last.Before(commonEnd) {
			commonEnd = last
		}
	}

	trimmed := make([]domain.AssetSeries, 0, len(seriesSet))
	coverage := make([]domain.CoverageRow, 0, len(seriesSet))
	for _, s := range seriesSet {
		cut := s.TruncateBefore(commonStart).TruncateAfter(commonEnd)
		row := domain.CoverageRow{
			Symbol:     s.Symbol,
			RowsBefore: s.Len(),
			RowsAfter:  cut.Len(),
		}
		if row.RowsBefore > 0 {
			row.RetainedRatio = float64(row.RowsAfter) / float64(row.RowsBefore)
		}
		coverage = append(coverage, row)
		trimmed = append(trimmed, cut)
	}
	return trimmed, coverage
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
