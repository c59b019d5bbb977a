package crossasset

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/hekla/pkg/model"
)

func day(n int) time.Time {
	return time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func fixtures(n int, tickers []string) (*model.PriceMatrix, *model.ReturnMatrix) {
	prices := &model.PriceMatrix{Tickers: tickers}
	levels := make([]float64, len(tickers))
	for j := range levels {
		levels[j] = 100 + 10*float64(j)
	}
	rets := &model.ReturnMatrix{Tickers: tickers}
	for i := 0; i <= n; i++ {
		prices.Dates = append(prices.Dates, day(i))
		row := make([]float64, len(tickers))
		rrow := make([]float64, len(tickers))
		for j := range tickers {
			if i > 0 {
				r := 0.003*math.Sin(float64(i+j)*0.5) + 0.0002*float64(j+1)
				levels[j] *= math.Exp(r)
				rrow[j] = r
			}
			row[j] = levels[j]
		}
		prices.Values = append(prices.Values, row)
		if i > 0 {
			rets.Dates = append(rets.Dates, day(i))
			rets.Values = append(rets.Values, rrow)
		}
	}
	return prices, rets
}

func TestResolveProxy(t *testing.T) {
	tickers := []string{"AAA", "SPY", "BBB"}
	assert.Equal(t, "SPY", NewBuilder("").ResolveProxy(tickers))
	assert.Equal(t, "BBB", NewBuilder("BBB").ResolveProxy(tickers))
	// Requested or default proxy missing: fall back to the first ticker.
	assert.Equal(t, "AAA", NewBuilder("ZZZ").ResolveProxy(tickers))
	assert.Equal(t, "AAA", NewBuilder("").ResolveProxy([]string{"AAA", "BBB"}))
}

func TestAddCrossAssetColumns(t *testing.T) {
	prices, rets := fixtures(150, []string{"SPY", "AAA"})
	table := model.NewFeatureTable(rets.Dates)

	require.NoError(t, NewBuilder("SPY").AddCrossAsset(table, prices, rets))

	// The proxy itself gets no cross-asset block.
	for _, name := range []string{
		"AAA_mkt_corr_20", "AAA_mkt_corr_60", "AAA_mkt_corr_120",
		"AAA_beta_60", "AAA_beta_120",
		"AAA_rel_strength_20", "AAA_rel_strength_60",
		"AAA_rel_vol",
	} {
		assert.GreaterOrEqual(t, table.ColumnIndex(name), 0, "missing %s", name)
	}
	assert.Equal(t, -1, table.ColumnIndex("SPY_mkt_corr_20"))
	assert.Equal(t, 8, table.Cols())

	for _, c := range table.Columns {
		assert.Equal(t, model.KindCross, c.Kind)
		assert.Equal(t, "AAA", c.Ticker)
	}

	// Correlation stays in [-1, 1] once warmed up.
	corr, err := table.ColumnValues("AAA_mkt_corr_20")
	require.NoError(t, err)
	for i := 21; i < len(corr); i++ {
		require.False(t, math.IsNaN(corr[i]), "row %d", i)
		assert.GreaterOrEqual(t, corr[i], -1.0-1e-9)
		assert.LessOrEqual(t, corr[i], 1.0+1e-9)
	}
}

func TestBetaOfProxyCloneIsOne(t *testing.T) {
	// Two tickers with identical returns: beta to the proxy is one.
	prices, rets := fixtures(100, []string{"SPY"})
	clone := &model.ReturnMatrix{Dates: rets.Dates, Tickers: []string{"SPY", "AAA"}}
	clonePrices := &model.PriceMatrix{Dates: prices.Dates, Tickers: []string{"SPY", "AAA"}}
	for i := range rets.Values {
		clone.Values = append(clone.Values, []float64{rets.Values[i][0], rets.Values[i][0]})
	}
	for i := range prices.Values {
		clonePrices.Values = append(clonePrices.Values, []float64{prices.Values[i][0], prices.Values[i][0]})
	}

	table := model.NewFeatureTable(clone.Dates)
	require.NoError(t, NewBuilder("SPY").AddCrossAsset(table, clonePrices, clone))

	beta, err := table.ColumnValues("AAA_beta_60")
	require.NoError(t, err)
	for i := 61; i < len(beta); i++ {
		// The epsilon guard in the variance denominator biases beta
		// slightly below one at this return scale.
		assert.InDelta(t, 1.0, beta[i], 5e-3, "row %d", i)
	}
	rel, err := table.ColumnValues("AAA_rel_strength_20")
	require.NoError(t, err)
	for i := 21; i < len(rel); i++ {
		assert.InDelta(t, 1.0, rel[i], 1e-12)
	}
}

func TestAddPortfolio(t *testing.T) {
	_, rets := fixtures(120, []string{"SPY", "AAA", "BBB"})
	table := model.NewFeatureTable(rets.Dates)

	ewRet, err := NewBuilder("SPY").AddPortfolio(table, rets)
	require.NoError(t, err)
	require.Len(t, ewRet, rets.Rows())

	for _, name := range []string{
		"ew_ret_1d", "ew_value",
		"ew_vol_5", "ew_vol_20", "ew_vol_60",
		"ew_ret_5", "ew_ret_20", "ew_ret_60",
		"ew_dd_60", "ew_dd_120", "ew_dd_252",
		"ew_sharpe_20", "ew_sharpe_60",
		"avg_correlation_60",
	} {
		assert.GreaterOrEqual(t, table.ColumnIndex(name), 0, "missing %s", name)
	}
	for _, c := range table.Columns {
		assert.Equal(t, model.KindPortfolio, c.Kind)
	}

	// ew_ret_1d is the row mean of the asset returns.
	col, err := table.ColumnValues("ew_ret_1d")
	require.NoError(t, err)
	for i, row := range rets.Values {
		want := (row[0] + row[1] + row[2]) / 3
		assert.InDelta(t, want, col[i], 1e-12)
	}

	// ew_value compounds ew_ret_1d from 1.0.
	val, err := table.ColumnValues("ew_value")
	require.NoError(t, err)
	cum := 1.0
	for i := range ewRet {
		cum *= 1 + ewRet[i]
		assert.InDelta(t, cum, val[i], 1e-12)
	}

	// Drawdowns never exceed zero once warmed up.
	dd, err := table.ColumnValues("ew_dd_60")
	require.NoError(t, err)
	for i := 61; i < len(dd); i++ {
		assert.LessOrEqual(t, dd[i], 1e-9)
	}
}

func TestAddPortfolioSingleAssetSkipsCorrelation(t *testing.T) {
	_, rets := fixtures(80, []string{"SPY"})
	table := model.NewFeatureTable(rets.Dates)
	_, err := NewBuilder("SPY").AddPortfolio(table, rets)
	require.NoError(t, err)
	assert.Equal(t, -1, table.ColumnIndex("avg_correlation_60"))
}

func TestEmptyMatrixErrors(t *testing.T) {
	empty := &model.ReturnMatrix{}
	table := model.NewFeatureTable(nil)
	b := NewBuilder("")
	assert.ErrorContains(t, b.AddCrossAsset(table, &model.PriceMatrix{}, empty), "empty return matrix")
	_, err := b.AddPortfolio(table, empty)
	assert.ErrorContains(t, err, "empty return matrix")
}
