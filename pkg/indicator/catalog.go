package indicator

import (
	"fmt"
	"math"

	"github.com/quantfold/hekla/pkg/stat"
)

var (
	momentumPeriods = []int{5, 10, 20, 60, 120}
	rocPeriods      = []int{10, 20}
	volWindows      = []int{5, 10, 20, 60}
	drawdownWindows = []int{20, 60, 120, 252}
	sinceHighWins   = []int{60, 120}
	ratioWindows    = []int{20, 60}
	maPairs         = [][2]int{{5, 20}, {10, 50}, {20, 60}, {50, 200}}
	adxWindows      = []int{14, 28}
	slopeWindows    = []int{20, 60}
	momentWindows   = []int{20, 60}
	autocorrLags    = []int{1, 5, 10}
)

// momentumFeatures covers trailing momentum, rate of change, and the
// momentum-of-momentum acceleration term.
func momentumFeatures(prices []float64) []series {
	var out []series
	for _, period := range momentumPeriods {
		mom := stat.Shift(addScalar(ratioLag(prices, period), -1), 1)
		out = append(out, series{fmt.Sprintf("mom_%d", period), mom})
	}
	for _, period := range rocPeriods {
		lagged := stat.Shift(prices, period)
		roc := stat.Shift(divRaw(sub(prices, lagged), lagged), 1)
		out = append(out, series{fmt.Sprintf("roc_%d", period), roc})
	}
	mom20 := stat.Shift(addScalar(ratioLag(prices, 20), -1), 1)
	out = append(out, series{"mom_acceleration", sub(mom20, stat.Shift(mom20, 10))})
	return out
}

// volatilityFeatures covers trailing standard deviations, an absolute-return
// proxy for Parkinson volatility, volatility of volatility, downside
// deviation, and the upside/downside asymmetry ratio.
func volatilityFeatures(returns []float64) []series {
	var out []series
	for _, window := range volWindows {
		out = append(out, series{fmt.Sprintf("vol_%d", window), stat.Shift(stat.RollStd(returns, window), 1)})
	}
	out = append(out, series{"vol_parkinson", stat.Shift(stat.RollMean(absAll(returns), 20), 1)})

	vol20 := stat.RollStd(returns, 20)
	out = append(out, series{"volvol_20", stat.Shift(stat.RollStd(vol20, 20), 1)})

	downside := stat.Shift(stat.RollStd(clipCeil(returns, 0), 20), 1)
	out = append(out, series{"downside_vol_20", downside})

	upside := stat.Shift(stat.RollStd(clipFloor(returns, 0), 20), 1)
	out = append(out, series{"vol_asymmetry", div(upside, downside)})
	return out
}

// riskFeatures covers rolling drawdowns, time-since-high counters, rolling
// Sharpe and Sortino ratios, and a Calmar-like ratio over one trading year.
func riskFeatures(prices, returns []float64) []series {
	var out []series
	drawdowns := map[int][]float64{}
	for _, window := range drawdownWindows {
		rollingMax := stat.Shift(stat.RollMax(prices, window), 1)
		dd := div(sub(prices, rollingMax), rollingMax)
		drawdowns[window] = dd
		out = append(out, series{fmt.Sprintf("dd_%d", window), dd})
	}
	for _, window := range sinceHighWins {
		rollingMax := stat.Shift(stat.RollMax(prices, window), 1)
		out = append(out, series{fmt.Sprintf("days_since_high_%d", window), stat.Shift(runLength(prices, rollingMax), 1)})
	}
	sqrtAnn := math.Sqrt(stat.TradingDays)
	for _, window := range ratioWindows {
		meanRet := stat.Shift(stat.RollMean(returns, window), 1)
		stdRet := stat.Shift(stat.RollStd(returns, window), 1)
		out = append(out, series{fmt.Sprintf("sharpe_%d", window), scale(div(meanRet, stdRet), sqrtAnn)})
	}
	negative := clipCeil(returns, 0)
	for _, window := range ratioWindows {
		meanRet := stat.Shift(stat.RollMean(returns, window), 1)
		downsideStd := stat.Shift(stat.RollStd(negative, window), 1)
		out = append(out, series{fmt.Sprintf("sortino_%d", window), scale(div(meanRet, downsideStd), sqrtAnn)})
	}
	ret252 := stat.Shift(stat.RollSum(returns, 252), 1)
	out = append(out, series{"calmar", div(ret252, absAll(drawdowns[252]))})
	return out
}

// trendFeatures covers moving-average crossover spreads, a simplified ADX
// trend-strength indicator, and the least-squares price slope.
func trendFeatures(prices []float64) []series {
	var out []series
	for _, pair := range maPairs {
		maFast := stat.Shift(stat.RollMean(prices, pair[0]), 1)
		maSlow := stat.Shift(stat.RollMean(prices, pair[1]), 1)
		out = append(out, series{fmt.Sprintf("ma_%d_%d_cross", pair[0], pair[1]), div(sub(maFast, maSlow), maSlow)})
	}

	high := stat.RollMax(prices, 2)
	low := stat.RollMin(prices, 2)
	prevClose := stat.Shift(prices, 1)
	plusDM := clipFloor(sub(high, stat.Shift(high, 1)), 0)
	minusDM := clipFloor(sub(stat.Shift(low, 1), low), 0)
	tr := max3(sub(high, low), absAll(sub(high, prevClose)), absAll(sub(low, prevClose)))
	for _, window := range adxWindows {
		atr := stat.RollMean(tr, window)
		plusDI := scale(div(stat.RollMean(plusDM, window), atr), 100)
		minusDI := scale(div(stat.RollMean(minusDM, window), atr), 100)
		dx := scale(div(absAll(sub(plusDI, minusDI)), add(plusDI, minusDI)), 100)
		out = append(out, series{fmt.Sprintf("adx_%d", window), stat.Shift(stat.RollMean(dx, window), 1)})
	}

	for _, window := range slopeWindows {
		out = append(out, series{fmt.Sprintf("trend_slope_%d", window), stat.Shift(stat.RollSlope(prices, window), 1)})
	}
	return out
}

// statisticalFeatures covers rolling higher moments and lagged
// autocorrelation of the return distribution.
func statisticalFeatures(returns []float64) []series {
	var out []series
	for _, window := range momentWindows {
		out = append(out, series{fmt.Sprintf("skew_%d", window), stat.Shift(stat.RollSkew(returns, window), 1)})
	}
	for _, window := range momentWindows {
		out = append(out, series{fmt.Sprintf("kurt_%d", window), stat.Shift(stat.RollKurt(returns, window), 1)})
	}
	for _, lag := range autocorrLags {
		out = append(out, series{fmt.Sprintf("autocorr_%d", lag), stat.Shift(stat.RollAutocorr(returns, 60, lag), 1)})
	}
	return out
}

// runLength counts consecutive periods in the same at-the-high state: the
// counter resets to zero whenever the price flips between being at and below
// its trailing maximum.
func runLength(prices, rollingMax []float64) []float64 {
	out := make([]float64, len(prices))
	prev := -1
	count := 0.0
	for i := range prices {
		state := 0
		if prices[i] == rollingMax[i] {
			state = 1
		}
		if i == 0 || state != prev {
			count = 0
		} else {
			count++
		}
		out[i] = count
		prev = state
	}
	return out
}

// divRaw divides without the epsilon guard, for ratios whose denominator is a
// price and therefore strictly positive.
func divRaw(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] / b[i]
	}
	return out
}
