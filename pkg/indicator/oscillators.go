package indicator

import (
	"github.com/quantfold/hekla/pkg/stat"
)

// rsi computes the Relative Strength Index from rolling average gain/loss,
// lagged one period.
func rsi(prices []float64, window int) []float64 {
	delta := diff(prices)
	up := clipFloor(delta, 0)
	down := scale(clipCeil(delta, 0), -1)

	rollUp := stat.Shift(stat.RollMean(up, window), 1)
	rollDown := stat.Shift(stat.RollMean(down, window), 1)

	rs := div(rollUp, rollDown)
	out := make([]float64, len(prices))
	for i := range out {
		out[i] = 100.0 - 100.0/(1.0+rs[i])
	}
	return out
}

// macd computes the MACD line, signal line, and histogram from lagged
// exponential moving averages.
func macd(prices []float64, fast, slow, signal int) (line, sig, hist []float64) {
	emaFast := stat.Shift(stat.EWMMean(prices, fast), 1)
	emaSlow := stat.Shift(stat.EWMMean(prices, slow), 1)
	line = sub(emaFast, emaSlow)
	sig = stat.Shift(stat.EWMMean(line, signal), 1)
	hist = sub(line, sig)
	return line, sig, hist
}

// bollinger computes the band levels plus position and width. The band
// itself is lagged; position compares today's price against the lagged band.
func bollinger(prices []float64, window int, numStd float64) (upper, middle, lower, position, width []float64) {
	sma := stat.Shift(stat.RollMean(prices, window), 1)
	sd := stat.Shift(stat.RollStd(prices, window), 1)

	band := scale(sd, numStd)
	upper = add(sma, band)
	lower = sub(sma, band)
	position = div(sub(prices, sma), band)
	width = div(sub(upper, lower), sma)
	return upper, sma, lower, position, width
}

// stochastic computes %K against the lagged rolling high/low range.
func stochastic(prices []float64, window int) []float64 {
	lowMin := stat.Shift(stat.RollMin(prices, window), 1)
	highMax := stat.Shift(stat.RollMax(prices, window), 1)
	return scale(div(sub(prices, lowMin), sub(highMax, lowMin)), 100)
}
