package indicator

import (
	"math"

	"github.com/quantfold/hekla/pkg/stat"
)

// series is one named feature column prior to table insertion. Generators
// return them in a fixed order so column layout is deterministic.
type series struct {
	name   string
	values []float64
}

// NaN propagates through all of these, matching the rolling engine.

func sub(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

func add(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

// div divides a by b with the epsilon guard on the denominator.
func div(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] / (b[i] + stat.Eps)
	}
	return out
}

func scale(a []float64, k float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] * k
	}
	return out
}

func addScalar(a []float64, k float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] + k
	}
	return out
}

func absAll(a []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = math.Abs(a[i])
	}
	return out
}

// clipFloor replaces values below floor with floor, keeping NaN.
func clipFloor(a []float64, floor float64) []float64 {
	out := make([]float64, len(a))
	for i, v := range a {
		if v < floor {
			out[i] = floor
		} else {
			out[i] = v
		}
	}
	return out
}

// clipCeil replaces values above ceil with ceil, keeping NaN.
func clipCeil(a []float64, ceil float64) []float64 {
	out := make([]float64, len(a))
	for i, v := range a {
		if v > ceil {
			out[i] = ceil
		} else {
			out[i] = v
		}
	}
	return out
}

// diff is the one-period difference with a NaN head.
func diff(a []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		if i == 0 {
			out[i] = math.NaN()
		} else {
			out[i] = a[i] - a[i-1]
		}
	}
	return out
}

// ratioLag is a/lag(a, periods) with a NaN head.
func ratioLag(a []float64, periods int) []float64 {
	lagged := stat.Shift(a, periods)
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] / lagged[i]
	}
	return out
}

// max3 is the elementwise maximum of three series.
func max3(a, b, c []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = math.Max(a[i], math.Max(b[i], c[i]))
	}
	return out
}
