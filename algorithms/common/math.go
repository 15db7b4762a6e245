package common

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic statistical functions used across algorithms using gonum for robustness

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// PopVariance calculates the population variance (divisor n) of a slice.
// This is the variance definition both SI and TI are built on.
func PopVariance(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	_, variance := stat.PopMeanVariance(data, nil)
	if variance < 0 || math.IsNaN(variance) {
		return 0.0
	}
	return variance
}

// PopStdDev calculates the population standard deviation of a slice
func PopStdDev(data []float64) float64 {
	return math.Sqrt(PopVariance(data))
}

// Percentile calculates the p-th percentile (p between 0 and 1)
func Percentile(data []float64, p float64) float64 {
	if len(data) == 0 || p < 0 || p > 1 {
		return 0.0
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// MinMax returns the smallest and largest value of data
func MinMax(data []float64) (float64, float64) {
	if len(data) == 0 {
		return 0.0, 0.0
	}
	return floats.Min(data), floats.Max(data)
}

// Clamp constrains a value to a range
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
