package index

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/quantfold/hekla/pkg/model"
	"github.com/quantfold/hekla/pkg/stat"
)

// DefaultWindowSize covers roughly a month and a half of trading days.
const DefaultWindowSize = 30

// BuilderConfig controls the sliding-window sweep.
type BuilderConfig struct {
	WindowSize   int
	Stride       int
	MinValidFrac float64 // minimum fraction of non-missing cells per window
	DataVersion  int
}

// DefaultBuilderConfig requires 25 of 30 rows' worth of valid cells.
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		WindowSize:   DefaultWindowSize,
		Stride:       1,
		MinValidFrac: 25.0 / 30.0,
		DataVersion:  1,
	}
}

// Window is one accepted embedding unit: the flattened feature block plus
// its metadata.
type Window struct {
	ID     string
	Vector []float64
	Meta   model.WindowMeta
}

// Builder sweeps the scaled feature matrix into windows.
type Builder struct {
	cfg BuilderConfig
}

// NewBuilder creates a window builder.
func NewBuilder(cfg BuilderConfig) *Builder {
	return &Builder{cfg: cfg}
}

// Build slides a fixed-size window over the full feature matrix once per
// ticker. A window is rejected when its fraction of non-missing cells falls
// below the configured minimum; missing cells in accepted windows become 0
// so the index never stores NaN. Return statistics are attached when the
// ticker has returns covering the window.
func (b *Builder) Build(scaled *model.FeatureTable, rets *model.ReturnMatrix, tickers []string) ([]Window, error) {
	nDates := scaled.Rows()
	if nDates < b.cfg.WindowSize {
		return nil, fmt.Errorf("index: %d rows is fewer than window size %d", nDates, b.cfg.WindowSize)
	}
	if b.cfg.Stride < 1 {
		return nil, fmt.Errorf("index: stride must be positive, got %d", b.cfg.Stride)
	}

	var windows []Window
	for _, ticker := range tickers {
		tickerRets := alignedReturns(scaled, rets, ticker)

		windowIdx := 0
		accepted := 0
		for i := 0; i+b.cfg.WindowSize <= nDates; i += b.cfg.Stride {
			end := i + b.cfg.WindowSize
			vector, ok := flattenWindow(scaled.Values[i:end], b.cfg.MinValidFrac)
			if !ok {
				continue
			}
			start := scaled.Dates[i]
			last := scaled.Dates[end-1]

			meta := model.WindowMeta{
				WindowID:  model.GenerateWindowID(ticker, start, last, b.cfg.WindowSize, b.cfg.DataVersion),
				Ticker:    ticker,
				DateStart: start,
				DateEnd:   last,
				WindowIdx: windowIdx,
				Size:      b.cfg.WindowSize,
			}
			if tickerRets != nil {
				if rs := windowReturnStats(tickerRets[i:end]); rs != nil {
					meta.Returns = rs
					meta.HasReturns = true
				}
			}
			windows = append(windows, Window{ID: meta.WindowID, Vector: vector, Meta: meta})
			windowIdx++
			accepted++
		}
		log.Debug().Str("stage", "index").Str("ticker", ticker).Int("windows", accepted).Msg("windows built")
	}

	log.Info().
		Str("stage", "index").
		Int("windows", len(windows)).
		Int("window_size", b.cfg.WindowSize).
		Int("stride", b.cfg.Stride).
		Msg("sliding windows created")
	return windows, nil
}

// Index builds the windows and inserts them all into the given index.
// Window IDs are deterministic, so rebuilding over the same data upserts in
// place instead of duplicating.
func (b *Builder) Index(ctx context.Context, idx VectorIndex, scaled *model.FeatureTable, rets *model.ReturnMatrix, tickers []string) (int, error) {
	windows, err := b.Build(scaled, rets, tickers)
	if err != nil {
		return 0, err
	}
	for _, w := range windows {
		if err := idx.Insert(ctx, w.ID, w.Vector, w.Meta); err != nil {
			return 0, err
		}
	}
	return len(windows), nil
}

// flattenWindow concatenates a window's rows, returning false when too many
// cells are missing.
func flattenWindow(rows [][]float64, minValidFrac float64) ([]float64, bool) {
	total := 0
	valid := 0
	for _, row := range rows {
		total += len(row)
		for _, v := range row {
			if !math.IsNaN(v) {
				valid++
			}
		}
	}
	if float64(valid) < minValidFrac*float64(total) {
		return nil, false
	}
	out := make([]float64, 0, total)
	for _, row := range rows {
		for _, v := range row {
			if math.IsNaN(v) {
				v = 0
			}
			out = append(out, v)
		}
	}
	return out, true
}

// alignedReturns maps the ticker's return series onto the feature table's
// date index, NaN where a date has no return. Nil when the ticker has no
// return column at all.
func alignedReturns(scaled *model.FeatureTable, rets *model.ReturnMatrix, ticker string) []float64 {
	if rets == nil {
		return nil
	}
	col, err := rets.Column(ticker)
	if err != nil {
		return nil
	}
	rowOf := make(map[int64]int, len(rets.Dates))
	for i, d := range rets.Dates {
		rowOf[d.Unix()] = i
	}
	out := make([]float64, scaled.Rows())
	for i, d := range scaled.Dates {
		if j, ok := rowOf[d.Unix()]; ok {
			out[i] = col[j]
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// windowReturnStats summarizes the non-missing returns inside one window.
// Nil when the window has no usable returns.
func windowReturnStats(returns []float64) *model.ReturnStats {
	clean := make([]float64, 0, len(returns))
	for _, v := range returns {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range clean {
		sum += v
	}
	mean := stat.Mean(clean)
	std := stat.SampleStd(clean)
	sharpe := 0.0
	vol := 0.0
	if std > 0 {
		sharpe = mean / std * math.Sqrt(stat.TradingDays)
		vol = std * math.Sqrt(stat.TradingDays)
	}
	return &model.ReturnStats{
		Cumulative:  sum,
		Mean:        mean,
		Std:         std,
		Sharpe:      sharpe,
		Volatility:  vol,
		MaxDrawdown: stat.MaxDrawdown(clean),
	}
}
