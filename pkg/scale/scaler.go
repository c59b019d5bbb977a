// Package scale fits per-feature location/scale parameters on the training
// partition and applies them, frozen, to the full horizon. It refuses
// matrices containing NaN or Inf: by the time features reach the scaler the
// warm-up rows must already be gone.
package scale

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantfold/hekla/pkg/model"
	"github.com/quantfold/hekla/pkg/stat"
)

// Method selects the scaler variant.
type Method string

const (
	Standard Method = "standard" // mean 0, std 1
	Robust   Method = "robust"   // median 0, IQR 1
	MinMax   Method = "minmax"   // range [0, 1]
)

// ParseMethod validates a configuration string.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case Standard, Robust, MinMax:
		return Method(s), nil
	default:
		return "", fmt.Errorf("scale: unknown scaling method %q", s)
	}
}

// Scaler holds frozen per-feature parameters: scaled = (v - Center) / Scale.
type Scaler struct {
	Method  Method    `json:"method"`
	Columns []string  `json:"columns"`
	Center  []float64 `json:"center"`
	Scale   []float64 `json:"scale"`
}

// CorrPair records two features whose training correlation exceeds the
// redundancy threshold.
type CorrPair struct {
	A    string  `json:"a"`
	B    string  `json:"b"`
	Corr float64 `json:"corr"`
}

// Diagnostics summarizes the training-partition feature distributions. It is
// informational output for feature selection, nothing downstream enforces it.
type Diagnostics struct {
	Skew         []float64  `json:"skew"`
	Kurt         []float64  `json:"kurt"`
	HighlySkewed []string   `json:"highly_skewed"` // |skew| > 2
	LowVariance  []string   `json:"low_variance"`  // var < 0.01
	HighCorr     []CorrPair `json:"high_corr"`     // |corr| > 0.95
}

// Fit validates the matrix, fits the chosen variant on rows up to and
// including trainEnd, and computes distribution diagnostics over the same
// training rows.
func Fit(table *model.FeatureTable, trainEnd time.Time, method Method) (*Scaler, *Diagnostics, error) {
	if err := validateFinite(table); err != nil {
		return nil, nil, err
	}
	trainRows := 0
	for _, d := range table.Dates {
		if !d.After(trainEnd) {
			trainRows++
		}
	}
	if trainRows == 0 {
		return nil, nil, fmt.Errorf("scale: no training rows on or before %s", trainEnd.Format("2006-01-02"))
	}

	cols := table.Cols()
	s := &Scaler{
		Method:  method,
		Columns: table.ColumnNames(),
		Center:  make([]float64, cols),
		Scale:   make([]float64, cols),
	}
	train := make([][]float64, cols)
	for j := 0; j < cols; j++ {
		col := make([]float64, trainRows)
		for i := 0; i < trainRows; i++ {
			col[i] = table.Values[i][j]
		}
		train[j] = col
		s.Center[j], s.Scale[j] = fitColumn(col, method)
	}

	diag := diagnostics(table, train)

	log.Info().
		Str("stage", "scale").
		Str("method", string(method)).
		Int("features", cols).
		Int("train_rows", trainRows).
		Int("low_variance", len(diag.LowVariance)).
		Int("high_corr_pairs", len(diag.HighCorr)).
		Msg("scaler fitted")
	return s, diag, nil
}

// fitColumn returns (center, scale) for one feature. A degenerate scale of
// zero becomes one so the transform stays defined.
func fitColumn(col []float64, method Method) (center, scaleVal float64) {
	switch method {
	case Robust:
		center = stat.Median(col)
		scaleVal = stat.Percentile(col, 75) - stat.Percentile(col, 25)
	case MinMax:
		lo, hi := col[0], col[0]
		for _, v := range col[1:] {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		center = lo
		scaleVal = hi - lo
	default: // Standard
		center = stat.Mean(col)
		scaleVal = stat.PopStd(col)
	}
	if scaleVal == 0 {
		scaleVal = 1
	}
	return center, scaleVal
}

// Apply transforms a table with the frozen parameters. The table's column
// layout must match the fit exactly.
func (s *Scaler) Apply(table *model.FeatureTable) (*model.FeatureTable, error) {
	if table.Cols() != len(s.Columns) {
		return nil, fmt.Errorf("scale: table has %d columns, scaler fitted on %d", table.Cols(), len(s.Columns))
	}
	for j, c := range table.Columns {
		if c.Name != s.Columns[j] {
			return nil, fmt.Errorf("scale: column %d is %q, scaler fitted on %q", j, c.Name, s.Columns[j])
		}
	}
	out := &model.FeatureTable{
		Dates:   append([]time.Time(nil), table.Dates...),
		Columns: append([]model.Column(nil), table.Columns...),
		Values:  make([][]float64, len(table.Values)),
	}
	for i, row := range table.Values {
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.Center[j]) / s.Scale[j]
		}
		out.Values[i] = scaled
	}
	return out, nil
}

// validateFinite fails on the first NaN or Inf cell with enough context to
// locate it.
func validateFinite(table *model.FeatureTable) error {
	for i, row := range table.Values {
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("scale: non-finite value in column %s at %s",
					table.Columns[j].Name, table.Dates[i].Format("2006-01-02"))
			}
		}
	}
	return nil
}

// diagnostics computes the training-partition distribution report.
func diagnostics(table *model.FeatureTable, train [][]float64) *Diagnostics {
	diag := &Diagnostics{
		Skew: make([]float64, len(train)),
		Kurt: make([]float64, len(train)),
	}
	for j, col := range train {
		diag.Skew[j] = stat.Skew(col)
		diag.Kurt[j] = stat.Kurt(col)
		if math.Abs(diag.Skew[j]) > 2 {
			diag.HighlySkewed = append(diag.HighlySkewed, table.Columns[j].Name)
		}
		sd := stat.SampleStd(col)
		if sd*sd < 0.01 {
			diag.LowVariance = append(diag.LowVariance, table.Columns[j].Name)
		}
	}
	for a := 0; a < len(train); a++ {
		if stat.SampleStd(train[a]) == 0 {
			continue
		}
		for b := a + 1; b < len(train); b++ {
			if stat.SampleStd(train[b]) == 0 {
				continue
			}
			if c := stat.Corr(train[a], train[b]); math.Abs(c) > 0.95 {
				diag.HighCorr = append(diag.HighCorr, CorrPair{
					A:    table.Columns[a].Name,
					B:    table.Columns[b].Name,
					Corr: c,
				})
			}
		}
	}
	return diag
}
