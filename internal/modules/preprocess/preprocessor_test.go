package preprocess

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/aristath/foresight/internal/domain"
)

func seriesFrom(symbol string, start time.Time, prices []float64, skip map[int]bool) domain.AssetSeries {
	s := domain.AssetSeries{Symbol: symbol}
	d := start
	i := 0
	for len(s.Points) < len(prices)-countTrue(skip) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			if !skip[i] {
				s.Points = append(s.Points, domain.PricePoint{Date: d, Price: prices[i]})
			}
			i++
			if i >= len(prices) {
				break
			}
		}
		d = d.AddDate(0, 0, 1)
	}
	return s
}

func countTrue(m map[int]bool) int {
	n := 0
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}

var monday = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestAlignForwardFillsShortGap(t *testing.T) {
	prices := []float64{100, 101, 102, 103, 104, 105, 106, 107}
	// Two consecutive missing trading days.
	s := seriesFrom("AAA", monday, prices, map[int]bool{3: true, 4: true})

	p := New(Config{MaxFillDays: 3}, zerolog.Nop())
	aligned, err := p.Align(s)
	require.NoError(t, err)
	require.Equal(t, len(prices), aligned.Len())

	// Filled days carry the last observed price forward.
	require.Equal(t, 102.0, aligned.Points[3].Price)
	require.Equal(t, 102.0, aligned.Points[4].Price)
	require.Equal(t, 105.0, aligned.Points[5].Price)
}

func TestAlignRejectsLongGap(t *testing.T) {
	prices := make([]float64, 30)
	skip := map[int]bool{}
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	// Ten consecutive missing trading days against a limit of three.
	for i := 10; i < 20; i++ {
		skip[i] = true
	}
	s := seriesFrom("BBB", monday, prices, skip)

	p := New(Config{MaxFillDays: 3}, zerolog.Nop())
	_, err := p.Align(s)
	require.Error(t, err)

	var gapErr *domain.DataGapError
	require.ErrorAs(t, err, &gapErr)
	require.Equal(t, "BBB", gapErr.Symbol)
	require.Equal(t, 3, gapErr.Limit)
	require.Greater(t, gapErr.Days, 3)
}

func TestTransformTrimsDatesWithDifferencing(t *testing.T) {
	prices := []float64{100, 101, 102, 103, 104, 105}
	s := seriesFrom("CCC", monday, prices, nil)

	p := New(Config{MaxFillDays: 3}, zerolog.Nop())
	derived, err := p.Transform(s, true, 1)
	require.NoError(t, err)
	require.Equal(t, len(prices)-1, derived.Len())
	require.Len(t, derived.Dates, derived.Len())

	// Dates correspond to the surviving observations.
	require.Equal(t, s.Points[1].Date, derived.Dates[0])
}

func TestAlignCommonWindow(t *testing.T) {
	// LONG covers the SHORT window on both sides.
	long := seriesFrom("LONG", monday, []float64{100, 101, 102, 103, 104, 105, 106, 107}, nil)
	short := seriesFrom("SHORT", monday.AddDate(0, 0, 2), []float64{50, 51, 52, 53}, nil)

	trimmed, coverage := AlignCommonWindow([]domain.AssetSeries{long, short})
	require.Len(t, trimmed, 2)
	require.Equal(t, trimmed[0].First().Date, trimmed[1].First().Date)
	require.Equal(t, trimmed[0].Last().Date, trimmed[1].Last().Date)
	require.Equal(t, trimmed[1].Len(), trimmed[0].Len())

	require.Equal(t, "LONG", coverage[0].Symbol)
	require.Equal(t, 8, coverage[0].RowsBefore)
	require.Equal(t, 4, coverage[0].RowsAfter)
	require.Equal(t, 0.5, coverage[0].RetainedRatio)
	require.Equal(t, 1.0, coverage[1].RetainedRatio)
}

func TestBusinessDaysSkipsWeekends(t *testing.T) {
	// Mon Jan 1 .. Mon Jan 8 2024 spans one weekend.
	days := BusinessDays(monday, monday.AddDate(0, 0, 7))
	require.Len(t, days, 6)
	for _, d := range days {
		require.True(t, IsBusinessDay(d))
	}
}
