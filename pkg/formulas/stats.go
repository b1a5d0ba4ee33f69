// Package formulas holds the numeric helpers shared by the analytics modules.
package formulas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation (n-1).
// Fewer than two values yield 0.
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Quantile returns the p-quantile of data using linear interpolation of the
// empirical CDF. data is not modified.
func Quantile(data []float64, p float64) float64 {
	if len(data) == 0 || !(p >= 0 && p <= 1) {
		return math.NaN()
	}
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.LinInterp, sorted, nil)
}

// LinearTrend fits y = intercept + slope*x by least squares
func LinearTrend(x, y []float64) (intercept, slope float64) {
	if len(x) < 2 || len(x) != len(y) {
		return Mean(y), 0
	}
	return stat.LinearRegression(x, y, nil, false)
}

// PercentChange returns (current - base) / |base| * 100, or 0 when base is 0.
// The sign follows the direction of the move, also for a negative base.
func PercentChange(base, current float64) float64 {
	if base == 0 {
		return 0
	}
	return (current - base) / math.Abs(base) * 100
}

// Round rounds value to the given number of decimal places
func Round(value float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(value*scale) / scale
}
