package scale

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/hekla/pkg/model"
	"github.com/quantfold/hekla/pkg/stat"
)

func day(n int) time.Time {
	return time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func makeTable(t *testing.T, cols map[string][]float64, order []string) *model.FeatureTable {
	t.Helper()
	n := len(cols[order[0]])
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = day(i)
	}
	table := model.NewFeatureTable(dates)
	for _, name := range order {
		require.NoError(t, table.AddColumn(model.Column{Name: name}, cols[name]))
	}
	return table
}

func randomTable(t *testing.T, rows int, seed int64) *model.FeatureTable {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	a := make([]float64, rows)
	b := make([]float64, rows)
	for i := range a {
		a[i] = 5 + 2*rng.NormFloat64()
		b[i] = -1 + 0.5*rng.NormFloat64()
	}
	return makeTable(t, map[string][]float64{"a": a, "b": b}, []string{"a", "b"})
}

func TestParseMethod(t *testing.T) {
	for _, s := range []string{"standard", "robust", "minmax"} {
		m, err := ParseMethod(s)
		require.NoError(t, err)
		assert.Equal(t, Method(s), m)
	}
	_, err := ParseMethod("zscore")
	assert.ErrorContains(t, err, "unknown scaling method")
}

func TestStandardFitApply(t *testing.T) {
	table := randomTable(t, 200, 1)
	s, _, err := Fit(table, day(199), Standard)
	require.NoError(t, err)

	out, err := s.Apply(table)
	require.NoError(t, err)

	// Scaled training columns have mean 0 and population std 1.
	for j := range out.Columns {
		col := make([]float64, out.Rows())
		for i := range col {
			col[i] = out.Values[i][j]
		}
		assert.InDelta(t, 0, stat.Mean(col), 1e-9)
		assert.InDelta(t, 1, stat.PopStd(col), 1e-9)
	}
}

func TestFitUsesTrainRowsOnly(t *testing.T) {
	table := randomTable(t, 300, 2)
	// Shift the tail so train and full distributions differ.
	for i := 200; i < 300; i++ {
		table.Values[i][0] += 50
	}

	s, _, err := Fit(table, day(199), Standard)
	require.NoError(t, err)

	trainOnly := randomTable(t, 200, 2)
	sTrain, _, err := Fit(trainOnly, day(199), Standard)
	require.NoError(t, err)

	// Appending future rows must not move the frozen parameters.
	assert.InDelta(t, sTrain.Center[0], s.Center[0], 1e-12)
	assert.InDelta(t, sTrain.Scale[0], s.Scale[0], 1e-12)
	assert.InDelta(t, sTrain.Center[1], s.Center[1], 1e-12)
	assert.InDelta(t, sTrain.Scale[1], s.Scale[1], 1e-12)
}

func TestRobustCenters(t *testing.T) {
	col := []float64{1, 2, 3, 4, 100}
	table := makeTable(t, map[string][]float64{"a": col}, []string{"a"})
	s, _, err := Fit(table, day(4), Robust)
	require.NoError(t, err)

	assert.InDelta(t, 3.0, s.Center[0], 1e-12)
	assert.InDelta(t, stat.Percentile(col, 75)-stat.Percentile(col, 25), s.Scale[0], 1e-12)

	out, err := s.Apply(table)
	require.NoError(t, err)
	assert.InDelta(t, 0, out.Values[2][0], 1e-12, "median maps to zero")
}

func TestMinMaxRange(t *testing.T) {
	table := makeTable(t, map[string][]float64{"a": {2, 8, 5, 11}}, []string{"a"})
	s, _, err := Fit(table, day(3), MinMax)
	require.NoError(t, err)

	out, err := s.Apply(table)
	require.NoError(t, err)
	assert.InDelta(t, 0, out.Values[0][0], 1e-12)
	assert.InDelta(t, 1, out.Values[3][0], 1e-12)
	for i := range out.Values {
		assert.GreaterOrEqual(t, out.Values[i][0], 0.0)
		assert.LessOrEqual(t, out.Values[i][0], 1.0)
	}
}

func TestDegenerateScaleBecomesOne(t *testing.T) {
	table := makeTable(t, map[string][]float64{"flat": {3, 3, 3, 3}}, []string{"flat"})
	for _, method := range []Method{Standard, Robust, MinMax} {
		s, _, err := Fit(table, day(3), method)
		require.NoError(t, err)
		assert.Equal(t, 1.0, s.Scale[0], "method %s", method)

		out, err := s.Apply(table)
		require.NoError(t, err)
		for i := range out.Values {
			assert.False(t, math.IsNaN(out.Values[i][0]))
			assert.False(t, math.IsInf(out.Values[i][0], 0))
		}
	}
}

func TestRejectsNonFinite(t *testing.T) {
	table := makeTable(t, map[string][]float64{"a": {1, math.NaN(), 3}}, []string{"a"})
	_, _, err := Fit(table, day(2), Standard)
	assert.ErrorContains(t, err, "non-finite value in column a")

	inf := makeTable(t, map[string][]float64{"a": {1, math.Inf(-1), 3}}, []string{"a"})
	_, _, err = Fit(inf, day(2), Standard)
	assert.ErrorContains(t, err, "non-finite")
}

func TestNoTrainingRows(t *testing.T) {
	table := makeTable(t, map[string][]float64{"a": {1, 2}}, []string{"a"})
	_, _, err := Fit(table, day(-1), Standard)
	assert.ErrorContains(t, err, "no training rows")
}

func TestApplyLayoutMismatch(t *testing.T) {
	table := randomTable(t, 50, 3)
	s, _, err := Fit(table, day(49), Standard)
	require.NoError(t, err)

	narrow := makeTable(t, map[string][]float64{"a": {1, 2}}, []string{"a"})
	_, err = s.Apply(narrow)
	assert.ErrorContains(t, err, "scaler fitted on 2")

	renamed := makeTable(t, map[string][]float64{"a": {1, 2}, "c": {3, 4}}, []string{"a", "c"})
	_, err = s.Apply(renamed)
	assert.ErrorContains(t, err, `scaler fitted on "b"`)
}

func TestDiagnostics(t *testing.T) {
	rows := 120
	rng := rand.New(rand.NewSource(4))
	base := make([]float64, rows)
	twin := make([]float64, rows)
	skewed := make([]float64, rows)
	tiny := make([]float64, rows)
	for i := range base {
		base[i] = rng.NormFloat64()
		twin[i] = base[i] + 0.001*rng.NormFloat64()
		// Mostly near zero with rare large spikes: heavy right skew.
		if i%30 == 0 {
			skewed[i] = 50
		}
		tiny[i] = 0.001 * rng.NormFloat64()
	}
	table := makeTable(t, map[string][]float64{
		"base": base, "twin": twin, "skewed": skewed, "tiny": tiny,
	}, []string{"base", "twin", "skewed", "tiny"})

	_, diag, err := Fit(table, day(rows-1), Standard)
	require.NoError(t, err)

	assert.Contains(t, diag.HighlySkewed, "skewed")
	assert.Contains(t, diag.LowVariance, "tiny")
	require.NotEmpty(t, diag.HighCorr)
	found := false
	for _, p := range diag.HighCorr {
		if (p.A == "base" && p.B == "twin") || (p.A == "twin" && p.B == "base") {
			found = true
			assert.Greater(t, math.Abs(p.Corr), 0.95)
		}
	}
	assert.True(t, found, "base/twin pair flagged")
}
