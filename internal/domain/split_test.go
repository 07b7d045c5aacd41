package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func tradingDates(n int) []time.Time {
	dates := make([]time.Time, 0, n)
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for len(dates) < n {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			dates = append(dates, d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return dates
}

func TestSplitPartition(t *testing.T) {
	dates := tradingDates(10)
	values := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

	split := TrainTestSplit{Symbol: "X", CutDate: dates[7]}
	train, test := split.Partition(dates, values)
	require.Len(t, train, 7)
	require.Len(t, test, 3)
	require.Equal(t, 7.0, test[0])
}

func TestSplitCutDateBetweenObservations(t *testing.T) {
	dates := tradingDates(10)
	// A cut on a weekend lands on the next trading day.
	cut := dates[5].AddDate(0, 0, -1)
	split := TrainTestSplit{Symbol: "X", CutDate: cut}
	require.Equal(t, 5, split.Index(dates))
}

func TestSplitValidate(t *testing.T) {
	dates := tradingDates(10)

	tooEarly := TrainTestSplit{Symbol: "X", CutDate: dates[1]}
	require.Error(t, tooEarly.Validate(dates, 5))

	pastEnd := TrainTestSplit{Symbol: "X", CutDate: dates[9].AddDate(0, 0, 5)}
	require.Error(t, pastEnd.Validate(dates, 5))

	ok := TrainTestSplit{Symbol: "X", CutDate: dates[7]}
	require.NoError(t, ok.Validate(dates, 5))
}

func TestSplitByFraction(t *testing.T) {
	dates := tradingDates(100)
	split := SplitByFraction("X", dates, 0.9)
	require.Equal(t, 90, split.Index(dates))
}
