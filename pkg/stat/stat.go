// Package stat provides the rolling and scalar statistics used by the feature
// generators. Rolling results follow the usual convention for trailing
// windows: positions with fewer than `window` observations, or any NaN inside
// the window, yield NaN.
package stat

import (
	"math"
	"sort"
)

// TradingDays is the annualization base for daily series.
const TradingDays = 252.0

// Eps guards divisions against zero-variance windows.
const Eps = 1e-8

// Mean returns the arithmetic mean, NaN for empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SampleStd returns the sample standard deviation (ddof=1), NaN when n < 2.
func SampleStd(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return math.NaN()
	}
	m := Mean(values)
	ss := 0.0
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// PopStd returns the population standard deviation (ddof=0).
func PopStd(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}
	m := Mean(values)
	ss := 0.0
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(n))
}

// Median returns the median, NaN for empty input.
func Median(values []float64) float64 {
	return Percentile(values, 50)
}

// Percentile returns the p-th percentile (p in 0..100) using linear
// interpolation between order statistics. NaN inputs are ignored.
func Percentile(values []float64, p float64) float64 {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return math.NaN()
	}
	sort.Float64s(clean)
	if len(clean) == 1 {
		return clean[0]
	}
	rank := p / 100 * float64(len(clean)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return clean[lower]
	}
	frac := rank - float64(lower)
	return clean[lower] + frac*(clean[upper]-clean[lower])
}

// Skew returns the bias-adjusted sample skewness, NaN when n < 3 or the
// window has no variance.
func Skew(values []float64) float64 {
	n := float64(len(values))
	if n < 3 {
		return math.NaN()
	}
	m := Mean(values)
	var m2, m3 float64
	for _, v := range values {
		d := v - m
		m2 += d * d
		m3 += d * d * d
	}
	m2 /= n
	m3 /= n
	if m2 < Eps*Eps {
		return math.NaN()
	}
	g1 := m3 / math.Pow(m2, 1.5)
	return g1 * math.Sqrt(n*(n-1)) / (n - 2)
}

// Kurt returns the bias-adjusted excess kurtosis, NaN when n < 4 or the
// window has no variance.
func Kurt(values []float64) float64 {
	n := float64(len(values))
	if n < 4 {
		return math.NaN()
	}
	m := Mean(values)
	var ss, s4 float64
	for _, v := range values {
		d := v - m
		ss += d * d
		s4 += d * d * d * d
	}
	variance := ss / (n - 1) // sample variance
	if variance < Eps*Eps {
		return math.NaN()
	}
	num := n * (n + 1) / ((n - 1) * (n - 2) * (n - 3)) * s4 / (variance * variance)
	return num - 3*(n-1)*(n-1)/((n-2)*(n-3))
}

// Corr returns the Pearson correlation of two equal-length slices, NaN when
// either side has no variance.
func Corr(x, y []float64) float64 {
	n := len(x)
	if n < 2 || n != len(y) {
		return math.NaN()
	}
	mx, my := Mean(x), Mean(y)
	var sxy, sxx, syy float64
	for i := 0; i < n; i++ {
		dx, dy := x[i]-mx, y[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	denom := math.Sqrt(sxx * syy)
	if denom == 0 {
		return math.NaN()
	}
	return sxy / denom
}

// Cov returns the sample covariance (ddof=1).
func Cov(x, y []float64) float64 {
	n := len(x)
	if n < 2 || n != len(y) {
		return math.NaN()
	}
	mx, my := Mean(x), Mean(y)
	s := 0.0
	for i := 0; i < n; i++ {
		s += (x[i] - mx) * (y[i] - my)
	}
	return s / float64(n-1)
}

// Slope returns the least-squares slope of values against 0..n-1.
func Slope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return math.NaN()
	}
	var sumX, sumY, sumXY, sumX2 float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumX2 += x * x
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return math.NaN()
	}
	return (n*sumXY - sumX*sumY) / denom
}

// MaxDrawdown compounds a return series and returns the deepest
// peak-to-trough decline as a non-positive fraction.
func MaxDrawdown(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	cum := 1.0
	peak := 1.0
	maxDD := 0.0
	for _, r := range returns {
		cum *= 1 + r
		if cum > peak {
			peak = cum
		}
		dd := (cum - peak) / peak
		if dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// Shift moves a series forward by `periods`, filling the head with NaN. This
// is the lag operator behind the no-look-ahead guarantee: a shifted value at
// position t was observable at t-periods.
func Shift(values []float64, periods int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if i < periods {
			out[i] = math.NaN()
		} else {
			out[i] = values[i-periods]
		}
	}
	return out
}

func hasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
