package model

import (
	"fmt"
	"math"
	"time"
)

// ColumnKind tags where a feature column came from. The per-asset export view
// is resolved from these tags, decided once when the column is added, instead
// of re-deriving ownership from name patterns at export time.
type ColumnKind int

const (
	KindAsset     ColumnKind = iota // per-asset feature, owned by Ticker
	KindCross                       // cross-asset feature referencing Ticker
	KindPortfolio                   // equal-weight portfolio feature
	KindRegime                      // regime one-hot indicator
)

func (k ColumnKind) String() string {
	switch k {
	case KindAsset:
		return "asset"
	case KindCross:
		return "cross"
	case KindPortfolio:
		return "portfolio"
	case KindRegime:
		return "regime"
	default:
		return "unknown"
	}
}

// Column describes one feature column.
type Column struct {
	Name   string
	Kind   ColumnKind
	Ticker string // owning ticker for asset/cross columns, empty otherwise
}

// FeatureTable is a date-indexed feature matrix. Missing values are NaN.
// Every value at row t is computable from information at dates <= t-1; the
// generators enforce the one-period lag before columns land here.
type FeatureTable struct {
	Dates   []time.Time
	Columns []Column
	Values  [][]float64 // len(Dates) x len(Columns)
}

// NewFeatureTable creates an empty table over the given date index.
func NewFeatureTable(dates []time.Time) *FeatureTable {
	values := make([][]float64, len(dates))
	for i := range values {
		values[i] = []float64{}
	}
	return &FeatureTable{Dates: dates, Values: values}
}

// AddColumn appends a column. The series must cover the full date index.
func (ft *FeatureTable) AddColumn(col Column, series []float64) error {
	if len(series) != len(ft.Dates) {
		return fmt.Errorf("feature table: column %s has %d rows, want %d", col.Name, len(series), len(ft.Dates))
	}
	for _, c := range ft.Columns {
		if c.Name == col.Name {
			return fmt.Errorf("feature table: duplicate column %s", col.Name)
		}
	}
	ft.Columns = append(ft.Columns, col)
	for i := range ft.Values {
		ft.Values[i] = append(ft.Values[i], series[i])
	}
	return nil
}

// ColumnIndex returns the position of a named column, or -1.
func (ft *FeatureTable) ColumnIndex(name string) int {
	for i, c := range ft.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ColumnValues returns the series stored under name.
func (ft *FeatureTable) ColumnValues(name string) ([]float64, error) {
	idx := ft.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("feature table: unknown column %q", name)
	}
	out := make([]float64, len(ft.Values))
	for i := range ft.Values {
		out[i] = ft.Values[i][idx]
	}
	return out, nil
}

// ColumnNames returns all column names in order.
func (ft *FeatureTable) ColumnNames() []string {
	names := make([]string, len(ft.Columns))
	for i, c := range ft.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnsFor resolves the per-asset view for one ticker from the schema tags:
// the ticker's own columns, cross-asset columns referencing it, and all
// portfolio and regime columns.
func (ft *FeatureTable) ColumnsFor(ticker string) []int {
	var idx []int
	for i, c := range ft.Columns {
		switch c.Kind {
		case KindAsset, KindCross:
			if c.Ticker == ticker {
				idx = append(idx, i)
			}
		case KindPortfolio, KindRegime:
			idx = append(idx, i)
		}
	}
	return idx
}

// DropIncompleteRows returns a copy without any row containing NaN or Inf.
// Warm-up rows are dropped whole; they are never imputed.
func (ft *FeatureTable) DropIncompleteRows() *FeatureTable {
	out := &FeatureTable{Columns: ft.Columns}
	for i, row := range ft.Values {
		complete := true
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				complete = false
				break
			}
		}
		if complete {
			cp := make([]float64, len(row))
			copy(cp, row)
			out.Values = append(out.Values, cp)
			out.Dates = append(out.Dates, ft.Dates[i])
		}
	}
	return out
}

// SelectColumns returns a copy restricted to the given column indices.
func (ft *FeatureTable) SelectColumns(cols []int) *FeatureTable {
	out := &FeatureTable{Dates: append([]time.Time(nil), ft.Dates...)}
	for _, j := range cols {
		out.Columns = append(out.Columns, ft.Columns[j])
	}
	out.Values = make([][]float64, len(ft.Values))
	for i, row := range ft.Values {
		sel := make([]float64, 0, len(cols))
		for _, j := range cols {
			sel = append(sel, row[j])
		}
		out.Values[i] = sel
	}
	return out
}

// SelectRows returns a copy restricted to the given row indices.
func (ft *FeatureTable) SelectRows(rows []int) *FeatureTable {
	out := &FeatureTable{Columns: ft.Columns}
	for _, i := range rows {
		cp := make([]float64, len(ft.Values[i]))
		copy(cp, ft.Values[i])
		out.Values = append(out.Values, cp)
		out.Dates = append(out.Dates, ft.Dates[i])
	}
	return out
}

// Rows returns the number of dates.
func (ft *FeatureTable) Rows() int { return len(ft.Dates) }

// Cols returns the number of columns.
func (ft *FeatureTable) Cols() int { return len(ft.Columns) }
