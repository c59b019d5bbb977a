// Package split partitions date-indexed tables at fixed calendar cutoffs and
// builds the per-asset and pooled export views with aligned targets. Dates on
// or before trainEnd are train, dates on or before valEnd are validation, the
// rest is test; the three partitions are contiguous and disjoint by
// construction.
package split

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantfold/hekla/pkg/model"
)

// Engine partitions tables at the two configured cutoffs.
type Engine struct {
	trainEnd time.Time
	valEnd   time.Time
}

// NewEngine validates the cutoff ordering.
func NewEngine(trainEnd, valEnd time.Time) (*Engine, error) {
	if !valEnd.After(trainEnd) {
		return nil, fmt.Errorf("split: valEnd %s must be after trainEnd %s",
			valEnd.Format("2006-01-02"), trainEnd.Format("2006-01-02"))
	}
	return &Engine{trainEnd: trainEnd, valEnd: valEnd}, nil
}

// PartitionOf assigns a date to exactly one partition.
func (e *Engine) PartitionOf(d time.Time) model.Partition {
	switch {
	case !d.After(e.trainEnd):
		return model.Train
	case !d.After(e.valEnd):
		return model.Validation
	default:
		return model.Test
	}
}

// Split is one partition's aligned feature/target pair.
type Split struct {
	Partition model.Partition
	Features  *model.FeatureTable
	Targets   *model.ReturnMatrix
}

// Dataset is one export view split three ways.
type Dataset struct {
	Train      *Split
	Validation *Split
	Test       *Split
}

// Splits returns the three partitions in chronological order.
func (d *Dataset) Splits() []*Split {
	return []*Split{d.Train, d.Validation, d.Test}
}

// ExportPerAsset builds the single-asset view: the ticker's own and
// cross-asset columns plus all portfolio and regime columns, paired with the
// ticker's return series as target.
func (e *Engine) ExportPerAsset(scaled *model.FeatureTable, rets *model.ReturnMatrix, ticker string) (*Dataset, error) {
	cols := scaled.ColumnsFor(ticker)
	if len(cols) == 0 {
		return nil, fmt.Errorf("split: no feature columns for ticker %q", ticker)
	}
	features := scaled.SelectColumns(cols)
	targets, err := alignTargets(features.Dates, rets, []string{ticker})
	if err != nil {
		return nil, err
	}
	ds, err := e.partition(features, targets)
	if err != nil {
		return nil, fmt.Errorf("split: %s: %w", ticker, err)
	}
	log.Debug().
		Str("stage", "split").
		Str("ticker", ticker).
		Int("features", len(cols)).
		Int("train", len(ds.Train.Features.Dates)).
		Int("validation", len(ds.Validation.Features.Dates)).
		Int("test", len(ds.Test.Features.Dates)).
		Msg("per-asset export built")
	return ds, nil
}

// ExportPooled builds the global view: the full feature matrix paired with
// every asset's return series.
func (e *Engine) ExportPooled(scaled *model.FeatureTable, rets *model.ReturnMatrix) (*Dataset, error) {
	targets, err := alignTargets(scaled.Dates, rets, rets.Tickers)
	if err != nil {
		return nil, err
	}
	ds, err := e.partition(scaled, targets)
	if err != nil {
		return nil, fmt.Errorf("split: pooled: %w", err)
	}
	log.Info().
		Str("stage", "split").
		Int("features", scaled.Cols()).
		Int("targets", len(rets.Tickers)).
		Int("train", len(ds.Train.Features.Dates)).
		Int("validation", len(ds.Validation.Features.Dates)).
		Int("test", len(ds.Test.Features.Dates)).
		Msg("pooled export built")
	return ds, nil
}

// partition slices an aligned feature/target pair at the cutoffs and runs
// the alignment guard on every split.
func (e *Engine) partition(features *model.FeatureTable, targets *model.ReturnMatrix) (*Dataset, error) {
	idx := map[model.Partition][]int{}
	for i, d := range features.Dates {
		p := e.PartitionOf(d)
		idx[p] = append(idx[p], i)
	}
	ds := &Dataset{}
	for _, p := range []model.Partition{model.Train, model.Validation, model.Test} {
		s := &Split{
			Partition: p,
			Features:  features.SelectRows(idx[p]),
			Targets:   selectTargetRows(targets, idx[p]),
		}
		if err := validateAligned(s); err != nil {
			return nil, err
		}
		switch p {
		case model.Train:
			ds.Train = s
		case model.Validation:
			ds.Validation = s
		default:
			ds.Test = s
		}
	}
	return ds, nil
}

// alignTargets restricts the return matrix to the feature dates (the feature
// table lost its warm-up rows) and to the requested tickers.
func alignTargets(dates []time.Time, rets *model.ReturnMatrix, tickers []string) (*model.ReturnMatrix, error) {
	rowOf := make(map[time.Time]int, len(rets.Dates))
	for i, d := range rets.Dates {
		rowOf[d] = i
	}
	colOf := make([]int, len(tickers))
	for j, t := range tickers {
		found := -1
		for c, rt := range rets.Tickers {
			if rt == t {
				found = c
				break
			}
		}
		if found < 0 {
			return nil, fmt.Errorf("split: target ticker %q not in return matrix", t)
		}
		colOf[j] = found
	}

	out := &model.ReturnMatrix{
		Dates:   append([]time.Time(nil), dates...),
		Tickers: append([]string(nil), tickers...),
		Values:  make([][]float64, len(dates)),
	}
	for i, d := range dates {
		src, ok := rowOf[d]
		if !ok {
			return nil, fmt.Errorf("split: feature date %s has no target return", d.Format("2006-01-02"))
		}
		row := make([]float64, len(tickers))
		for j, c := range colOf {
			row[j] = rets.Values[src][c]
		}
		out.Values[i] = row
	}
	return out, nil
}

func selectTargetRows(rets *model.ReturnMatrix, rows []int) *model.ReturnMatrix {
	out := &model.ReturnMatrix{Tickers: append([]string(nil), rets.Tickers...)}
	for _, i := range rows {
		out.Dates = append(out.Dates, rets.Dates[i])
		row := make([]float64, len(rets.Values[i]))
		copy(row, rets.Values[i])
		out.Values = append(out.Values, row)
	}
	return out
}

// validateAligned is the export-boundary guard: feature and target indices
// must be identical as ordered sequences.
func validateAligned(s *Split) error {
	if len(s.Features.Dates) != len(s.Targets.Dates) {
		return fmt.Errorf("%s split: %d feature rows but %d target rows",
			s.Partition, len(s.Features.Dates), len(s.Targets.Dates))
	}
	for i := range s.Features.Dates {
		if !s.Features.Dates[i].Equal(s.Targets.Dates[i]) {
			return fmt.Errorf("%s split: feature/target date mismatch at row %d (%s vs %s)",
				s.Partition, i,
				s.Features.Dates[i].Format("2006-01-02"),
				s.Targets.Dates[i].Format("2006-01-02"))
		}
	}
	return nil
}
