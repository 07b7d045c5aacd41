package stationarity

import (
	"gonum.org/v1/gonum/stat"
)

// ACF returns the sample autocorrelation function up to maxLag, with
// the conventional biased denominator. Index 0 is always 1.
func ACF(values []float64, maxLag int) []float64 {
	n := len(values)
	if n == 0 {
		return nil
	}
	if maxLag >= n {
		maxLag = n - 1
	}

	mean := stat.Mean(values, nil)
	denom := 0.0
	for _, v := range values {
		d := v - mean
		denom += d * d
	}

	acf := make([]float64, maxLag+1)
	acf[0] = 1
	if denom == 0 {
		return acf
	}
	for k := 1; k <= maxLag; k++ {
		num := 0.0
		for t := k; t < n; t++ {
			num += (values[t] - mean) * (values[t-k] - mean)
		}
		acf[k] = num / denom
	}
	return acf
}

// PACF returns the partial autocorrelation function up to maxLag via
// the Durbin-Levinson recursion on the sample ACF. Index 0 is 1.
func PACF(values []float64, maxLag int) []float64 {
	acf := ACF(values, maxLag)
	if len(acf) == 0 {
		return nil
	}
	maxLag = len(acf) - 1

	pacf := make([]float64, maxLag+1)
	pacf[0] = 1
	if maxLag == 0 {
		return pacf
	}

	phi := make([][]float64, maxLag+1)
	for k := range phi {
		phi[k] = make([]float64, maxLag+1)
	}

	phi[1][1] = acf[1]
	pacf[1] = acf[1]
	for k := 2; k <= maxLag; k++ {
		num := acf[k]
		den := 1.0
		for j := 1; j < k; j++ {
			num -= phi[k-1][j] * acf[k-j]
			den -= phi[k-1][j] * acf[j]
		}
		if den == 0 {
			break
		}
		phi[k][k] = num / den
		for j := 1; j < k; j++ {
			phi[k][j] = phi[k-1][j] - phi[k][k]*phi[k-1][k-j]
		}
		pacf[k] = phi[k][k]
	}
	return pacf
}
