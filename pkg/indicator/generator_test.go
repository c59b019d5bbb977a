package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/hekla/pkg/model"
)

func day(n int) time.Time {
	return time.Date(2019, 6, 3, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

// syntheticMatrix builds a deterministic wavy price path long enough for the
// short and medium windows to warm up.
func syntheticMatrix(n int) (*model.PriceMatrix, *model.ReturnMatrix) {
	prices := &model.PriceMatrix{Tickers: []string{"AAA"}}
	level := 100.0
	for i := 0; i <= n; i++ {
		prices.Dates = append(prices.Dates, day(i))
		prices.Values = append(prices.Values, []float64{level})
		level *= math.Exp(0.0004 + 0.01*math.Sin(float64(i)*0.7))
	}
	rets := &model.ReturnMatrix{Tickers: []string{"AAA"}}
	for i := 1; i <= n; i++ {
		rets.Dates = append(rets.Dates, prices.Dates[i])
		rets.Values = append(rets.Values, []float64{math.Log(prices.Values[i][0] / prices.Values[i-1][0])})
	}
	return prices, rets
}

func TestGenerateShape(t *testing.T) {
	prices, rets := syntheticMatrix(80)
	table, err := NewGenerator().Generate(prices, rets)
	require.NoError(t, err)

	assert.Equal(t, 80, table.Rows())
	assert.Equal(t, rets.Dates, table.Dates)

	for _, name := range []string{
		"AAA_ret_1d", "AAA_rsi14", "AAA_macd", "AAA_macd_signal", "AAA_macd_hist",
		"AAA_bb_upper", "AAA_bb_position", "AAA_bb_width", "AAA_stochastic",
		"AAA_mom_5", "AAA_mom_120", "AAA_roc_10", "AAA_mom_acceleration",
		"AAA_vol_20", "AAA_vol_parkinson", "AAA_volvol_20", "AAA_vol_asymmetry",
		"AAA_dd_60", "AAA_days_since_high_60", "AAA_sharpe_20", "AAA_sortino_60", "AAA_calmar",
		"AAA_ma_5_20_cross", "AAA_adx_14", "AAA_trend_slope_20",
		"AAA_skew_20", "AAA_kurt_60", "AAA_autocorr_1",
	} {
		assert.GreaterOrEqual(t, table.ColumnIndex(name), 0, "missing column %s", name)
	}
	for _, c := range table.Columns {
		assert.Equal(t, model.KindAsset, c.Kind)
		assert.Equal(t, "AAA", c.Ticker)
	}
}

func TestRetColumnEqualsInput(t *testing.T) {
	prices, rets := syntheticMatrix(40)
	table, err := NewGenerator().Generate(prices, rets)
	require.NoError(t, err)

	col, err := table.ColumnValues("AAA_ret_1d")
	require.NoError(t, err)
	for i := range col {
		assert.InDelta(t, rets.Values[i][0], col[i], 1e-12)
	}
}

func TestRSIBoundsAndWarmup(t *testing.T) {
	prices, rets := syntheticMatrix(60)
	table, err := NewGenerator().Generate(prices, rets)
	require.NoError(t, err)

	col, err := table.ColumnValues("AAA_rsi14")
	require.NoError(t, err)
	// diff head + 14-row window + one-period lag.
	for i := 0; i < 15; i++ {
		assert.True(t, math.IsNaN(col[i]), "row %d should be warm-up", i)
	}
	for i := 15; i < len(col); i++ {
		require.False(t, math.IsNaN(col[i]), "row %d", i)
		assert.GreaterOrEqual(t, col[i], 0.0)
		assert.LessOrEqual(t, col[i], 100.0)
	}
}

func TestMomentumMatchesLaggedRatio(t *testing.T) {
	prices, rets := syntheticMatrix(40)
	table, err := NewGenerator().Generate(prices, rets)
	require.NoError(t, err)

	col, err := table.ColumnValues("AAA_mom_5")
	require.NoError(t, err)
	p := make([]float64, 0, 40)
	for i := 1; i < len(prices.Dates); i++ {
		p = append(p, prices.Values[i][0])
	}
	// mom_5 at t is yesterday's 5-period return.
	for i := 6; i < len(col); i++ {
		want := p[i-1]/p[i-6] - 1
		assert.InDelta(t, want, col[i], 1e-12, "row %d", i)
	}
	for i := 0; i < 6; i++ {
		assert.True(t, math.IsNaN(col[i]))
	}
}

// Features computed for a date must not change when later data arrives.
func TestNoLookAhead(t *testing.T) {
	pricesFull, retsFull := syntheticMatrix(80)
	full, err := NewGenerator().Generate(pricesFull, retsFull)
	require.NoError(t, err)

	cut := 60
	pricesPart := &model.PriceMatrix{
		Dates:   pricesFull.Dates[:cut+1],
		Tickers: pricesFull.Tickers,
		Values:  pricesFull.Values[:cut+1],
	}
	retsPart := &model.ReturnMatrix{
		Dates:   retsFull.Dates[:cut],
		Tickers: retsFull.Tickers,
		Values:  retsFull.Values[:cut],
	}
	part, err := NewGenerator().Generate(pricesPart, retsPart)
	require.NoError(t, err)

	require.Equal(t, full.Cols(), part.Cols())
	for j, c := range full.Columns {
		for i := 0; i < cut; i++ {
			a, b := full.Values[i][j], part.Values[i][j]
			if math.IsNaN(a) {
				assert.True(t, math.IsNaN(b), "%s row %d", c.Name, i)
			} else {
				assert.InDelta(t, a, b, 1e-12, "%s row %d", c.Name, i)
			}
		}
	}
}

func TestGenerateErrors(t *testing.T) {
	prices, rets := syntheticMatrix(20)
	rets.Dates = rets.Dates[:10]
	rets.Values = rets.Values[:10]
	_, err := NewGenerator().Generate(prices, rets)
	assert.ErrorContains(t, err, "price matrix has")
}
