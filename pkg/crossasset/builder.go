// Package crossasset derives relationships between each asset and a market
// proxy, plus the equal-weighted portfolio's own feature block. Everything is
// lagged one period, same as the per-asset catalogue.
package crossasset

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/quantfold/hekla/pkg/model"
	"github.com/quantfold/hekla/pkg/stat"
)

// DefaultProxy is preferred as the market reference when present in the
// universe.
const DefaultProxy = "SPY"

// Builder computes cross-asset and portfolio features.
type Builder struct {
	proxy string
}

// NewBuilder creates a builder. An empty marketProxy falls back to
// DefaultProxy when present, otherwise the first ticker.
func NewBuilder(marketProxy string) *Builder {
	return &Builder{proxy: marketProxy}
}

// ResolveProxy picks the market reference ticker for a universe.
func (b *Builder) ResolveProxy(tickers []string) string {
	want := b.proxy
	if want == "" {
		want = DefaultProxy
	}
	for _, t := range tickers {
		if t == want {
			return t
		}
	}
	return tickers[0]
}

// AddCrossAsset appends, for every non-proxy ticker, rolling correlation and
// beta to the proxy, relative strength, and relative volatility.
func (b *Builder) AddCrossAsset(table *model.FeatureTable, prices *model.PriceMatrix, rets *model.ReturnMatrix) error {
	if len(rets.Tickers) == 0 {
		return fmt.Errorf("crossasset: empty return matrix")
	}
	proxy := b.ResolveProxy(rets.Tickers)
	rm, err := rets.Column(proxy)
	if err != nil {
		return fmt.Errorf("crossasset: %w", err)
	}
	pmFull, err := prices.Column(proxy)
	if err != nil {
		return fmt.Errorf("crossasset: %w", err)
	}
	pm := pmFull[1:]

	proxyVol := stat.Shift(stat.RollStd(rm, 20), 1)

	n := 0
	for _, ticker := range rets.Tickers {
		if ticker == proxy {
			continue
		}
		rt, err := rets.Column(ticker)
		if err != nil {
			return fmt.Errorf("crossasset: %w", err)
		}
		ptFull, err := prices.Column(ticker)
		if err != nil {
			return fmt.Errorf("crossasset: %w", err)
		}
		pt := ptFull[1:]

		add := func(name string, values []float64) error {
			col := model.Column{Name: name, Kind: model.KindCross, Ticker: ticker}
			if err := table.AddColumn(col, values); err != nil {
				return fmt.Errorf("crossasset: %w", err)
			}
			n++
			return nil
		}

		for _, window := range []int{20, 60, 120} {
			corr := stat.Shift(stat.RollCorr(rt, rm, window), 1)
			if err := add(fmt.Sprintf("%s_mkt_corr_%d", ticker, window), corr); err != nil {
				return err
			}
		}
		for _, window := range []int{60, 120} {
			cov := stat.Shift(stat.RollCov(rt, rm, window), 1)
			variance := stat.Shift(stat.RollVar(rm, window), 1)
			if err := add(fmt.Sprintf("%s_beta_%d", ticker, window), divEps(cov, variance)); err != nil {
				return err
			}
		}
		for _, window := range []int{20, 60} {
			rel := make([]float64, len(pt))
			for i := range pt {
				if i < window {
					rel[i] = math.NaN()
					continue
				}
				rel[i] = (pt[i] / pt[i-window]) / (pm[i] / pm[i-window])
			}
			if err := add(fmt.Sprintf("%s_rel_strength_%d", ticker, window), stat.Shift(rel, 1)); err != nil {
				return err
			}
		}
		assetVol := stat.Shift(stat.RollStd(rt, 20), 1)
		if err := add(fmt.Sprintf("%s_rel_vol", ticker), divEps(assetVol, proxyVol)); err != nil {
			return err
		}
	}

	log.Info().
		Str("stage", "crossasset").
		Str("proxy", proxy).
		Int("columns", n).
		Msg("cross-asset features built")
	return nil
}

// AddPortfolio appends the equal-weighted portfolio block: daily return and
// compounded value, rolling volatility, summed returns, drawdowns, Sharpe,
// and the average pairwise correlation diversification measure. It returns
// the portfolio's daily return series for downstream consumers.
func (b *Builder) AddPortfolio(table *model.FeatureTable, rets *model.ReturnMatrix) ([]float64, error) {
	rows := rets.Rows()
	if rows == 0 {
		return nil, fmt.Errorf("crossasset: empty return matrix")
	}

	ewRet := make([]float64, rows)
	for i, row := range rets.Values {
		ewRet[i] = stat.Mean(row)
	}
	ewValue := make([]float64, rows)
	cum := 1.0
	for i, r := range ewRet {
		cum *= 1 + r
		ewValue[i] = cum
	}

	add := func(name string, values []float64) error {
		col := model.Column{Name: name, Kind: model.KindPortfolio}
		if err := table.AddColumn(col, values); err != nil {
			return fmt.Errorf("crossasset: %w", err)
		}
		return nil
	}

	if err := add("ew_ret_1d", ewRet); err != nil {
		return nil, err
	}
	if err := add("ew_value", ewValue); err != nil {
		return nil, err
	}
	for _, window := range []int{5, 20, 60} {
		if err := add(fmt.Sprintf("ew_vol_%d", window), stat.Shift(stat.RollStd(ewRet, window), 1)); err != nil {
			return nil, err
		}
	}
	for _, window := range []int{5, 20, 60} {
		if err := add(fmt.Sprintf("ew_ret_%d", window), stat.Shift(stat.RollSum(ewRet, window), 1)); err != nil {
			return nil, err
		}
	}
	for _, window := range []int{60, 120, 252} {
		rollingMax := stat.Shift(stat.RollMax(ewValue, window), 1)
		dd := make([]float64, rows)
		for i := range dd {
			dd[i] = (ewValue[i] - rollingMax[i]) / (rollingMax[i] + stat.Eps)
		}
		if err := add(fmt.Sprintf("ew_dd_%d", window), dd); err != nil {
			return nil, err
		}
	}
	sqrtAnn := math.Sqrt(stat.TradingDays)
	for _, window := range []int{20, 60} {
		mean := stat.Shift(stat.RollMean(ewRet, window), 1)
		std := stat.Shift(stat.RollStd(ewRet, window), 1)
		sharpe := make([]float64, rows)
		for i := range sharpe {
			sharpe[i] = mean[i] / (std[i] + stat.Eps) * sqrtAnn
		}
		if err := add(fmt.Sprintf("ew_sharpe_%d", window), sharpe); err != nil {
			return nil, err
		}
	}
	if len(rets.Tickers) > 1 {
		if err := add("avg_correlation_60", b.avgPairwiseCorr(rets, 60)); err != nil {
			return nil, err
		}
	}

	log.Info().
		Str("stage", "crossasset").
		Int("rows", rows).
		Msg("portfolio features built")
	return ewRet, nil
}

// avgPairwiseCorr is the mean off-diagonal rolling correlation across all
// asset pairs, lagged one period. Any pair still in its warm-up makes the
// whole row NaN.
func (b *Builder) avgPairwiseCorr(rets *model.ReturnMatrix, window int) []float64 {
	nAssets := len(rets.Tickers)
	cols := make([][]float64, nAssets)
	for j, ticker := range rets.Tickers {
		cols[j], _ = rets.Column(ticker)
	}

	rows := rets.Rows()
	sums := make([]float64, rows)
	pairs := 0
	for a := 0; a < nAssets; a++ {
		for c := a + 1; c < nAssets; c++ {
			corr := stat.RollCorr(cols[a], cols[c], window)
			for i := range sums {
				sums[i] += corr[i]
			}
			pairs++
		}
	}
	out := make([]float64, rows)
	for i := range out {
		out[i] = sums[i] / float64(pairs)
	}
	return stat.Shift(out, 1)
}

// divEps divides elementwise with the usual epsilon guard.
func divEps(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] / (b[i] + stat.Eps)
	}
	return out
}
