package model

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestPriceMatrixValidate(t *testing.T) {
	good := &PriceMatrix{
		Dates:   []time.Time{day(0), day(1)},
		Tickers: []string{"AAA", "BBB"},
		Values:  [][]float64{{1, 2}, {3, 4}},
	}
	require.NoError(t, good.Validate())

	bad := &PriceMatrix{
		Dates:   []time.Time{day(0), day(0)},
		Tickers: []string{"AAA"},
		Values:  [][]float64{{1}, {2}},
	}
	assert.ErrorContains(t, bad.Validate(), "strictly increasing")

	neg := &PriceMatrix{
		Dates:   []time.Time{day(0)},
		Tickers: []string{"AAA"},
		Values:  [][]float64{{-1}},
	}
	assert.ErrorContains(t, neg.Validate(), "non-positive")
}

func TestFeatureTableColumns(t *testing.T) {
	ft := NewFeatureTable([]time.Time{day(0), day(1), day(2)})
	require.NoError(t, ft.AddColumn(Column{Name: "AAA_mom", Kind: KindAsset, Ticker: "AAA"}, []float64{1, 2, 3}))
	require.NoError(t, ft.AddColumn(Column{Name: "BBB_mom", Kind: KindAsset, Ticker: "BBB"}, []float64{4, 5, 6}))
	require.NoError(t, ft.AddColumn(Column{Name: "BBB_beta", Kind: KindCross, Ticker: "BBB"}, []float64{7, 8, 9}))
	require.NoError(t, ft.AddColumn(Column{Name: "ew_vol_20", Kind: KindPortfolio}, []float64{1, 1, 1}))
	require.NoError(t, ft.AddColumn(Column{Name: "regime_0", Kind: KindRegime}, []float64{0, 1, 0}))

	assert.Error(t, ft.AddColumn(Column{Name: "AAA_mom"}, []float64{0, 0, 0}), "duplicate name")
	assert.Error(t, ft.AddColumn(Column{Name: "short"}, []float64{1}), "length mismatch")

	// Per-asset view: own + cross + portfolio + regime.
	assert.Equal(t, []int{1, 2, 3, 4}, ft.ColumnsFor("BBB"))
	assert.Equal(t, []int{0, 3, 4}, ft.ColumnsFor("AAA"))

	vals, err := ft.ColumnValues("BBB_beta")
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 8, 9}, vals)

	sel := ft.SelectColumns([]int{2, 0})
	assert.Equal(t, []string{"BBB_beta", "AAA_mom"}, sel.ColumnNames())
	assert.Equal(t, []float64{8, 2}, sel.Values[1])
}

func TestDropIncompleteRows(t *testing.T) {
	ft := NewFeatureTable([]time.Time{day(0), day(1), day(2), day(3)})
	require.NoError(t, ft.AddColumn(Column{Name: "a"}, []float64{math.NaN(), 1, 2, 3}))
	require.NoError(t, ft.AddColumn(Column{Name: "b"}, []float64{1, 2, math.Inf(1), 4}))

	out := ft.DropIncompleteRows()
	require.Equal(t, 2, out.Rows())
	assert.Equal(t, []time.Time{day(1), day(3)}, out.Dates)
	assert.Equal(t, []float64{1, 2}, out.Values[0])
	assert.Equal(t, []float64{3, 4}, out.Values[1])
}

func TestGenerateWindowID(t *testing.T) {
	a := GenerateWindowID("AAA", day(0), day(29), 30, 1)
	b := GenerateWindowID("AAA", day(0), day(29), 30, 1)
	assert.Equal(t, a, b, "same parameters give the same ID")
	assert.Len(t, a, 32)

	assert.NotEqual(t, a, GenerateWindowID("BBB", day(0), day(29), 30, 1))
	assert.NotEqual(t, a, GenerateWindowID("AAA", day(1), day(30), 30, 1))
	assert.NotEqual(t, a, GenerateWindowID("AAA", day(0), day(29), 30, 2))
}
