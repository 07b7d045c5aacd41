package sequence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func makeRows(n, cols int) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, cols)
		for j := range rows[i] {
			rows[i][j] = float64(i*cols + j)
		}
	}
	return rows
}

func TestBuildWindows(t *testing.T) {
	rows := makeRows(10, 2)
	windows := BuildWindows(rows, 3)
	require.Len(t, windows, 7)

	first := windows[0]
	require.Len(t, first.Inputs, 3)
	require.Equal(t, rows[3], first.Target)
	require.Equal(t, 3, first.TargetIndex)

	last := windows[len(windows)-1]
	require.Equal(t, 9, last.TargetIndex)
}

func TestBuildWindowsTooShort(t *testing.T) {
	require.Nil(t, BuildWindows(makeRows(3, 1), 3))
	require.Nil(t, BuildWindows(makeRows(5, 1), 0))
}

func TestSplitAtBoundaryNoLeakage(t *testing.T) {
	rows := makeRows(50, 1)
	windows := BuildWindows(rows, 5)
	train, test := SplitAtBoundary(windows, 40)

	// Every train target is strictly before the boundary.
	for _, w := range train {
		require.Less(t, w.TargetIndex, 40)
	}
	// Every test window's inputs end strictly before its own target;
	// targets sit at or after the boundary.
	for _, w := range test {
		require.GreaterOrEqual(t, w.TargetIndex, 40)
		require.Equal(t, rows[w.TargetIndex-1], w.Inputs[len(w.Inputs)-1])
	}
	require.Len(t, train, 35)
	require.Len(t, test, 10)
}

func TestHoldOutValidationIsChronological(t *testing.T) {
	rows := makeRows(40, 1)
	train, _ := SplitAtBoundary(BuildWindows(rows, 4), 40)
	fit, val := HoldOutValidation(train, 0.2)
	require.NotEmpty(t, val)

	// Validation windows come strictly after every fit window.
	lastFit := fit[len(fit)-1].TargetIndex
	for _, w := range val {
		require.Greater(t, w.TargetIndex, lastFit)
	}
}

func TestScalerFitsTrainBoundsOnly(t *testing.T) {
	rows := [][]float64{{1, 10}, {3, 30}, {2, 20}}
	s := FitScaler(rows)
	require.Equal(t, []float64{1, 10}, s.Min)
	require.Equal(t, []float64{3, 30}, s.Max)

	scaled := s.TransformRow([]float64{2, 20})
	require.InDelta(t, 0.5, scaled[0], 1e-12)
	require.InDelta(t, 0.5, scaled[1], 1e-12)

	// Values outside the fitted range scale outside [0,1] rather than
	// silently clamping.
	out := s.TransformRow([]float64{5, 40})
	require.Greater(t, out[0], 1.0)

	back := s.InverseRow(scaled)
	require.InDelta(t, 2.0, back[0], 1e-12)
	require.InDelta(t, 20.0, back[1], 1e-12)
}

func TestScalerConstantColumn(t *testing.T) {
	s := FitScaler([][]float64{{7}, {7}, {7}})
	require.Equal(t, []float64{0}, s.TransformRow([]float64{7}))
}
