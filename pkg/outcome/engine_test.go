package outcome

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/hekla/pkg/model"
)

func day(n int) time.Time {
	return time.Date(2022, 2, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func returnsFixture(n int) *model.ReturnMatrix {
	rets := &model.ReturnMatrix{Tickers: []string{"AAA"}}
	for i := 0; i < n; i++ {
		rets.Dates = append(rets.Dates, day(i))
		rets.Values = append(rets.Values, []float64{0.01 * float64(i+1)})
	}
	return rets
}

func windowMeta(id string, end int) model.WindowMeta {
	return model.WindowMeta{WindowID: id, Ticker: "AAA", DateEnd: day(end)}
}

func TestCalculateForwardStats(t *testing.T) {
	// Returns 0.01, 0.02, ..., 0.20 on days 0..19.
	e := NewEngine(returnsFixture(20))

	results, err := e.Calculate([]model.WindowMeta{windowMeta("w", 9)}, []int{5})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	// Forward span is days 10..14: 0.11..0.15, strictly after the window.
	assert.Equal(t, "w", r.WindowID)
	assert.Equal(t, 5, r.FwdDays)
	assert.InDelta(t, 0.13, r.FwdMean, 1e-12)
	assert.InDelta(t, 0.13, r.FwdP50, 1e-12)
	assert.InDelta(t, 0.11+0.12+0.13+0.14+0.15, r.FwdCumulative, 1e-12)
	assert.Equal(t, 0.0, r.MaxDrawdown, "all-positive span has no drawdown")
}

func TestCalculateDrawdown(t *testing.T) {
	rets := &model.ReturnMatrix{Tickers: []string{"AAA"}}
	for i, v := range []float64{0, 0.10, -0.20, 0.05} {
		rets.Dates = append(rets.Dates, day(i))
		rets.Values = append(rets.Values, []float64{v})
	}
	e := NewEngine(rets)

	results, err := e.Calculate([]model.WindowMeta{windowMeta("w", 0)}, []int{3})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, -0.20, results[0].MaxDrawdown, 1e-12)
}

func TestCalculateInsufficientForwardData(t *testing.T) {
	e := NewEngine(returnsFixture(20))

	results, err := e.Calculate([]model.WindowMeta{windowMeta("w", 16)}, []int{5, 3})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Only 3 forward days exist after day 16.
	short := results[0]
	assert.Equal(t, 5, short.Horizon)
	assert.Equal(t, 3, short.FwdDays)
	assert.Equal(t, 0.0, short.FwdMean, "incomplete pair carries no statistics")

	full := results[1]
	assert.Equal(t, 3, full.Horizon)
	assert.Equal(t, 3, full.FwdDays)
	assert.InDelta(t, (0.18+0.19+0.20)/3, full.FwdMean, 1e-12)
}

func TestCalculateMultipleHorizonsAndWindows(t *testing.T) {
	e := NewEngine(returnsFixture(100))
	metas := []model.WindowMeta{windowMeta("a", 29), windowMeta("b", 39)}

	results, err := e.Calculate(metas, DefaultConfig().Horizons)
	require.NoError(t, err)
	require.Len(t, results, 6)
	for _, r := range results {
		assert.Equal(t, r.Horizon, r.FwdDays)
	}
}

func TestCalculateErrors(t *testing.T) {
	e := NewEngine(returnsFixture(20))

	_, err := e.Calculate([]model.WindowMeta{windowMeta("w", 5)}, nil)
	assert.ErrorContains(t, err, "no horizons given")

	unknown := model.WindowMeta{WindowID: "x", Ticker: "ZZZ", DateEnd: day(5)}
	_, err = e.Calculate([]model.WindowMeta{unknown}, []int{5})
	assert.Error(t, err)
}

func TestAggregateExcludesIncomplete(t *testing.T) {
	results := []Result{
		{WindowID: "a", Horizon: 5, FwdDays: 5, FwdMean: 0.01, MaxDrawdown: -0.02},
		{WindowID: "b", Horizon: 5, FwdDays: 5, FwdMean: 0.03, MaxDrawdown: -0.06},
		{WindowID: "c", Horizon: 5, FwdDays: 2}, // too close to the end
		{WindowID: "a", Horizon: 20, FwdDays: 20, FwdMean: 0.10, MaxDrawdown: -0.01},
	}

	agg := Aggregate(results)
	require.Len(t, agg, 2)

	five := agg[5]
	assert.Equal(t, 2, five.SampleCount)
	assert.InDelta(t, 0.02, five.MeanReturn, 1e-12)
	assert.LessOrEqual(t, five.WorstDD, -0.02)
	assert.GreaterOrEqual(t, five.WorstDD, -0.06)

	assert.Equal(t, 1, agg[20].SampleCount)
	assert.InDelta(t, 0.10, agg[20].MeanReturn, 1e-12)

	assert.Equal(t, []int{5, 20}, Horizons(agg))
}

func TestAggregatedString(t *testing.T) {
	s := Aggregated{Horizon: 5, SampleCount: 3, MeanReturn: 0.012}.String()
	assert.Contains(t, s, "horizon 5")
	assert.Contains(t, s, "samples=3")
}
