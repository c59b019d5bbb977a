package split

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/hekla/pkg/model"
)

func day(n int) time.Time {
	return time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

// fixture builds an aligned feature table and return matrix over n dates with
// one asset column per ticker plus shared portfolio and regime columns.
func fixture(t *testing.T, n int, tickers []string) (*model.FeatureTable, *model.ReturnMatrix) {
	t.Helper()
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = day(i)
	}
	table := model.NewFeatureTable(dates)
	rets := &model.ReturnMatrix{Dates: dates, Tickers: tickers}
	for i := 0; i < n; i++ {
		row := make([]float64, len(tickers))
		for j := range tickers {
			row[j] = 0.001 * float64(i+j)
		}
		rets.Values = append(rets.Values, row)
	}
	for j, tk := range tickers {
		own := make([]float64, n)
		beta := make([]float64, n)
		for i := range own {
			own[i] = float64(i + 10*j)
			beta[i] = 1 + 0.01*float64(i)
		}
		require.NoError(t, table.AddColumn(model.Column{Name: tk + "_mom_5", Kind: model.KindAsset, Ticker: tk}, own))
		require.NoError(t, table.AddColumn(model.Column{Name: tk + "_beta_60", Kind: model.KindCross, Ticker: tk}, beta))
	}
	shared := make([]float64, n)
	for i := range shared {
		shared[i] = float64(i)
	}
	require.NoError(t, table.AddColumn(model.Column{Name: "ew_vol_20", Kind: model.KindPortfolio}, shared))
	require.NoError(t, table.AddColumn(model.Column{Name: "regime_0", Kind: model.KindRegime}, shared))
	return table, rets
}

func TestNewEngineValidatesCutoffs(t *testing.T) {
	_, err := NewEngine(day(10), day(5))
	assert.ErrorContains(t, err, "must be after")
	_, err = NewEngine(day(10), day(10))
	assert.ErrorContains(t, err, "must be after")
	_, err = NewEngine(day(10), day(11))
	assert.NoError(t, err)
}

func TestPartitionOfBoundaries(t *testing.T) {
	e, err := NewEngine(day(10), day(20))
	require.NoError(t, err)

	assert.Equal(t, model.Train, e.PartitionOf(day(0)))
	assert.Equal(t, model.Train, e.PartitionOf(day(10)), "trainEnd itself is train")
	assert.Equal(t, model.Validation, e.PartitionOf(day(11)))
	assert.Equal(t, model.Validation, e.PartitionOf(day(20)), "valEnd itself is validation")
	assert.Equal(t, model.Test, e.PartitionOf(day(21)))
}

func TestExportPooledPartitionSizes(t *testing.T) {
	table, rets := fixture(t, 30, []string{"AAA", "BBB"})
	e, err := NewEngine(day(9), day(19))
	require.NoError(t, err)

	ds, err := e.ExportPooled(table, rets)
	require.NoError(t, err)

	assert.Len(t, ds.Train.Features.Dates, 10)
	assert.Len(t, ds.Validation.Features.Dates, 10)
	assert.Len(t, ds.Test.Features.Dates, 10)

	// Complete, disjoint, and chronological.
	var all []time.Time
	for _, s := range ds.Splits() {
		require.Equal(t, len(s.Features.Dates), len(s.Targets.Dates))
		all = append(all, s.Features.Dates...)
	}
	require.Len(t, all, 30)
	for i := range all {
		assert.Equal(t, day(i), all[i])
	}

	// Pooled view keeps every column and every target ticker.
	assert.Equal(t, table.Cols(), ds.Train.Features.Cols())
	assert.Equal(t, []string{"AAA", "BBB"}, ds.Train.Targets.Tickers)
}

func TestExportPerAssetColumnSelection(t *testing.T) {
	table, rets := fixture(t, 30, []string{"AAA", "BBB"})
	e, err := NewEngine(day(9), day(19))
	require.NoError(t, err)

	ds, err := e.ExportPerAsset(table, rets, "BBB")
	require.NoError(t, err)

	// Own asset + own cross + portfolio + regime; nothing from AAA.
	assert.Equal(t, []string{"BBB_mom_5", "BBB_beta_60", "ew_vol_20", "regime_0"},
		ds.Train.Features.ColumnNames())
	assert.Equal(t, []string{"BBB"}, ds.Train.Targets.Tickers)

	// Target values line up with the asset's return column.
	full, err := rets.Column("BBB")
	require.NoError(t, err)
	got, err := ds.Train.Targets.Column("BBB")
	require.NoError(t, err)
	assert.Equal(t, full[:10], got)
}

func TestExportAfterWarmupDrop(t *testing.T) {
	// Feature dates are a strict subset of return dates once warm-up rows are
	// gone; targets must align on the surviving dates.
	table, rets := fixture(t, 30, []string{"AAA"})
	trimmed := table.SelectRows([]int{5, 6, 7, 8, 9, 10, 11, 12})

	e, err := NewEngine(day(9), day(11))
	require.NoError(t, err)
	ds, err := e.ExportPooled(trimmed, rets)
	require.NoError(t, err)

	assert.Len(t, ds.Train.Features.Dates, 5)
	assert.Len(t, ds.Validation.Features.Dates, 2)
	assert.Len(t, ds.Test.Features.Dates, 1)
	assert.Equal(t, day(5), ds.Train.Features.Dates[0])
	assert.Equal(t, day(5), ds.Train.Targets.Dates[0])
	got, err := ds.Train.Targets.Column("AAA")
	require.NoError(t, err)
	assert.Equal(t, 0.001*5, got[0])
}

func TestExportErrors(t *testing.T) {
	table, rets := fixture(t, 20, []string{"AAA"})
	e, err := NewEngine(day(9), day(14))
	require.NoError(t, err)

	_, err = e.ExportPerAsset(table, rets, "ZZZ")
	assert.ErrorContains(t, err, `no feature columns for ticker "ZZZ"`)

	// A feature date with no matching return row fails the alignment guard.
	short := &model.ReturnMatrix{
		Dates:   rets.Dates[:10],
		Tickers: rets.Tickers,
		Values:  rets.Values[:10],
	}
	_, err = e.ExportPooled(table, short)
	assert.ErrorContains(t, err, "has no target return")
}

func TestBuildManifest(t *testing.T) {
	table, rets := fixture(t, 30, []string{"AAA", "BBB"})
	e, err := NewEngine(day(9), day(19))
	require.NoError(t, err)

	pooled, err := e.ExportPooled(table, rets)
	require.NoError(t, err)
	perAsset := map[string]*Dataset{}
	for _, tk := range rets.Tickers {
		ds, err := e.ExportPerAsset(table, rets, tk)
		require.NoError(t, err)
		perAsset[tk] = ds
	}

	m := e.BuildManifest(pooled, perAsset, rets.Tickers)

	assert.Equal(t, PipelineVersion, m.PipelineVersion)
	assert.Equal(t, day(9), m.TrainEnd)
	assert.Equal(t, day(19), m.ValEnd)
	assert.Equal(t, 30, m.TotalSamples)
	assert.Equal(t, 10, m.TrainSamples)
	assert.Equal(t, table.Cols(), m.TotalFeatures)
	assert.Equal(t, DateRange{Start: day(0), End: day(29)}, m.DateRange)
	assert.Equal(t, []string{"AAA", "BBB"}, m.TargetNames)

	require.Contains(t, m.PerAsset, "AAA")
	am := m.PerAsset["AAA"]
	assert.Equal(t, 4, am.NFeatures)
	assert.Equal(t, 10, am.TrainSamples)
	assert.Equal(t, DateRange{Start: day(0), End: day(9)}, am.TrainRange)
	assert.Equal(t, DateRange{Start: day(20), End: day(29)}, am.TestRange)

	// AAA's train targets are 0.000..0.009: check the summary stats.
	assert.InDelta(t, 0.0045, am.TrainStats.Mean, 1e-12)
	assert.InDelta(t, 0.0, am.TrainStats.Min, 1e-12)
	assert.InDelta(t, 0.009, am.TrainStats.Max, 1e-12)
	assert.Greater(t, am.TrainStats.SharpeAnn, 0.0)
}
