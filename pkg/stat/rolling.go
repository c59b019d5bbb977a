package stat

import "math"

// rollApply evaluates fn over every trailing window of the given size.
// Positions without a full window, or whose window contains NaN, yield NaN.
func rollApply(values []float64, window int, fn func([]float64) float64) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if i+1 < window {
			out[i] = math.NaN()
			continue
		}
		w := values[i+1-window : i+1]
		if hasNaN(w) {
			out[i] = math.NaN()
			continue
		}
		out[i] = fn(w)
	}
	return out
}

// RollMean is the trailing moving average.
func RollMean(values []float64, window int) []float64 {
	return rollApply(values, window, Mean)
}

// RollSum is the trailing moving sum.
func RollSum(values []float64, window int) []float64 {
	return rollApply(values, window, func(w []float64) float64 {
		s := 0.0
		for _, v := range w {
			s += v
		}
		return s
	})
}

// RollStd is the trailing sample standard deviation (ddof=1).
func RollStd(values []float64, window int) []float64 {
	return rollApply(values, window, SampleStd)
}

// RollVar is the trailing sample variance (ddof=1).
func RollVar(values []float64, window int) []float64 {
	return rollApply(values, window, func(w []float64) float64 {
		s := SampleStd(w)
		return s * s
	})
}

// RollMin is the trailing minimum.
func RollMin(values []float64, window int) []float64 {
	return rollApply(values, window, func(w []float64) float64 {
		m := w[0]
		for _, v := range w[1:] {
			if v < m {
				m = v
			}
		}
		return m
	})
}

// RollMax is the trailing maximum.
func RollMax(values []float64, window int) []float64 {
	return rollApply(values, window, func(w []float64) float64 {
		m := w[0]
		for _, v := range w[1:] {
			if v > m {
				m = v
			}
		}
		return m
	})
}

// RollSkew is the trailing bias-adjusted skewness.
func RollSkew(values []float64, window int) []float64 {
	return rollApply(values, window, Skew)
}

// RollKurt is the trailing bias-adjusted excess kurtosis.
func RollKurt(values []float64, window int) []float64 {
	return rollApply(values, window, Kurt)
}

// RollSlope is the trailing least-squares slope.
func RollSlope(values []float64, window int) []float64 {
	return rollApply(values, window, Slope)
}

// RollCorr is the trailing pairwise Pearson correlation.
func RollCorr(x, y []float64, window int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i+1 < window {
			out[i] = math.NaN()
			continue
		}
		wx := x[i+1-window : i+1]
		wy := y[i+1-window : i+1]
		if hasNaN(wx) || hasNaN(wy) {
			out[i] = math.NaN()
			continue
		}
		out[i] = Corr(wx, wy)
	}
	return out
}

// RollCov is the trailing pairwise sample covariance.
func RollCov(x, y []float64, window int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i+1 < window {
			out[i] = math.NaN()
			continue
		}
		wx := x[i+1-window : i+1]
		wy := y[i+1-window : i+1]
		if hasNaN(wx) || hasNaN(wy) {
			out[i] = math.NaN()
			continue
		}
		out[i] = Cov(wx, wy)
	}
	return out
}

// RollAutocorr is the trailing lag autocorrelation: the correlation of the
// window with itself shifted by `lag` periods.
func RollAutocorr(values []float64, window, lag int) []float64 {
	return rollApply(values, window, func(w []float64) float64 {
		if len(w) <= lag {
			return math.NaN()
		}
		return Corr(w[lag:], w[:len(w)-lag])
	})
}

// EWMMean is the exponentially weighted moving average with
// alpha = 2/(span+1), recursive form (adjust=false): the first value seeds
// the average and each step blends the new observation in.
func EWMMean(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1.0)
	prev := math.NaN()
	seeded := false
	for i, v := range values {
		if math.IsNaN(v) {
			// NaN yields NaN without disturbing the running average.
			out[i] = math.NaN()
			continue
		}
		if !seeded {
			prev = v
			seeded = true
		} else {
			prev = (1-alpha)*prev + alpha*v
		}
		out[i] = prev
	}
	return out
}
