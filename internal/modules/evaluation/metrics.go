package evaluation

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// RMSE is the root mean squared error between actual and predicted.
func RMSE(actual, predicted []float64) float64 {
	if len(actual) == 0 || len(actual) != len(predicted) {
		return math.NaN()
	}
	sse := 0.0
	for i, a := range actual {
		d := a - predicted[i]
		sse += d * d
	}
	return math.Sqrt(sse / float64(len(actual)))
}

// MAE is the mean absolute error.
func MAE(actual, predicted []float64) float64 {
	if len(actual) == 0 || len(actual) != len(predicted) {
		return math.NaN()
	}
	sum := 0.0
	for i, a := range actual {
		sum += math.Abs(a - predicted[i])
	}
	return sum / float64(len(actual))
}

// MAPE is the mean absolute percentage error. Zero actuals are skipped;
// all-zero actuals yield NaN.
func MAPE(actual, predicted []float64) float64 {
	if len(actual) == 0 || len(actual) != len(predicted) {
		return math.NaN()
	}
	sum := 0.0
	n := 0
	for i, a := range actual {
		if a == 0 {
			continue
		}
		sum += math.Abs((a - predicted[i]) / a)
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return 100 * sum / float64(n)
}

// DirectionalAccuracy is the share of steps where the forecast moved in
// the same direction as the actual series, relative to the previous
// actual value. prev is the last observation before the evaluation
// window.
func DirectionalAccuracy(prev float64, actual, predicted []float64) float64 {
	if len(actual) == 0 || len(actual) != len(predicted) {
		return math.NaN()
	}
	hits := 0
	p := prev
	for i, a := range actual {
		da := a - p
		dp := predicted[i] - p
		if da*dp > 0 || (da == 0 && dp == 0) {
			hits++
		}
		p = a
	}
	return float64(hits) / float64(len(actual))
}

// TheilsU compares forecast error against the naive no-change forecast;
// values below one beat the naive walk. prev is the last observation
// before the evaluation window.
func TheilsU(prev float64, actual, predicted []float64) float64 {
	if len(actual) == 0 || len(actual) != len(predicted) {
		return math.NaN()
	}
	num, den := 0.0, 0.0
	p := prev
	for i, a := range actual {
		d := a - predicted[i]
		num += d * d
		nd := a - p
		den += nd * nd
		p = a
	}
	if den == 0 {
		return math.NaN()
	}
	return math.Sqrt(num / den)
}

// PearsonCorr is the Pearson correlation between actual and predicted.
func PearsonCorr(actual, predicted []float64) float64 {
	if len(actual) < 2 || len(actual) != len(predicted) {
		return math.NaN()
	}
	return stat.Correlation(actual, predicted, nil)
}
