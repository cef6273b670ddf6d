package analysis

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientData is returned when a transform's preconditions on input size
// are not met.
var ErrInsufficientData = errors.New("insufficient data")

// MovingAverage returns the trailing simple moving average of values. The value at
// index i averages values[max(0, i-window+1) : i+1], so the first window-1 entries
// average over however many values exist so far. Never looks ahead.
func MovingAverage(values []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		n := i + 1
		if n > window {
			n = window
		}
		out[i] = sum / float64(n)
	}
	return out
}

// Standardize maps values to zero mean and unit population variance. A constant
// input maps to all zeros.
func Standardize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	if std == 0 {
		return out
	}
	for i, v := range values {
		out[i] = stat.StdScore(v, mean, std)
	}
	return out
}

type Stats struct {
	N    int
	Mean float64
	Std  float64 // sample standard deviation, NaN for N < 2
	Min  float64
	Max  float64
}

func Summary(values []float64) Stats {
	s := Stats{N: len(values), Mean: math.NaN(), Std: math.NaN(), Min: math.NaN(), Max: math.NaN()}
	if len(values) == 0 {
		return s
	}
	s.Min, s.Max = floats.Min(values), floats.Max(values)
	if len(values) == 1 {
		s.Mean = values[0]
		return s
	}
	s.Mean, s.Std = stat.MeanStdDev(values, nil)
	return s
}

// Quantile returns the q-th quantile of values, interpolating linearly over the
// empirical distribution. The median of an even-sized sample is the lower middle
// value.
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 || math.IsNaN(q) {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return stat.Quantile(math.Max(0, math.Min(1, q)), stat.LinInterp, sorted, nil)
}
