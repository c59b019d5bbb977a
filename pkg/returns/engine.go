// Package returns converts price matrices to winsorized log-return matrices.
// Clipping thresholds are estimated from the training partition only and then
// applied to the entire horizon, which is the central leakage guard of the
// pipeline.
package returns

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantfold/hekla/pkg/model"
	"github.com/quantfold/hekla/pkg/stat"
)

// Config holds the winsorization percentile pair, expressed as fractions.
type Config struct {
	LowerPct float64
	UpperPct float64
}

// DefaultConfig clips at the pooled 1st/99th percentiles.
func DefaultConfig() Config {
	return Config{LowerPct: 0.01, UpperPct: 0.99}
}

// Thresholds records the fitted clip band and audit counters.
type Thresholds struct {
	LowerPct     float64 `json:"lower_percentile"`
	UpperPct     float64 `json:"upper_percentile"`
	Lower        float64 `json:"lower_threshold"`
	Upper        float64 `json:"upper_threshold"`
	ClippedLower int     `json:"n_clipped_lower"`
	ClippedUpper int     `json:"n_clipped_upper"`
	TrainRows    int     `json:"train_rows"`
	TotalRows    int     `json:"total_rows"`
}

// Clip applies the fitted band to a single value. Applying it twice is a
// no-op.
func (t *Thresholds) Clip(v float64) float64 {
	if v < t.Lower {
		return t.Lower
	}
	if v > t.Upper {
		return t.Upper
	}
	return v
}

// AssetStats is the per-asset audit block computed on training-period
// returns. It is emitted for inspection, nothing downstream consumes it.
type AssetStats struct {
	Ticker  string  `json:"ticker"`
	MeanAnn float64 `json:"mean_ann"`
	StdAnn  float64 `json:"std_ann"`
	Sharpe  float64 `json:"sharpe"`
	Skew    float64 `json:"skew"`
	Kurt    float64 `json:"kurt"`
}

// Engine computes and winsorizes log returns.
type Engine struct {
	cfg Config
}

// NewEngine creates a returns engine.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// ComputeAndClip derives log returns from the price matrix, fits clip
// thresholds on the pooled returns of all assets up to and including
// trainEnd, and applies them to every asset and every date.
func (e *Engine) ComputeAndClip(prices *model.PriceMatrix, trainEnd time.Time) (*model.ReturnMatrix, *Thresholds, []AssetStats, error) {
	if err := prices.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("returns: %w", err)
	}
	if len(prices.Dates) < 2 {
		return nil, nil, nil, fmt.Errorf("returns: matrix empty after differencing (%d price rows)", len(prices.Dates))
	}

	nRows := len(prices.Dates) - 1
	nCols := len(prices.Tickers)
	rets := &model.ReturnMatrix{
		Dates:   append([]time.Time(nil), prices.Dates[1:]...),
		Tickers: append([]string(nil), prices.Tickers...),
		Values:  make([][]float64, nRows),
	}
	for i := 0; i < nRows; i++ {
		row := make([]float64, nCols)
		for j := 0; j < nCols; j++ {
			row[j] = math.Log(prices.Values[i+1][j] / prices.Values[i][j])
		}
		rets.Values[i] = row
	}

	trainRows := 0
	for _, d := range rets.Dates {
		if !d.After(trainEnd) {
			trainRows++
		}
	}
	if trainRows == 0 {
		return nil, nil, nil, fmt.Errorf("returns: no training rows on or before %s", trainEnd.Format("2006-01-02"))
	}

	// Pool all assets' training returns for a single global band.
	pooled := make([]float64, 0, trainRows*nCols)
	for i := 0; i < trainRows; i++ {
		pooled = append(pooled, rets.Values[i]...)
	}
	th := &Thresholds{
		LowerPct:  e.cfg.LowerPct,
		UpperPct:  e.cfg.UpperPct,
		Lower:     stat.Percentile(pooled, e.cfg.LowerPct*100),
		Upper:     stat.Percentile(pooled, e.cfg.UpperPct*100),
		TrainRows: trainRows,
		TotalRows: nRows,
	}

	for i := range rets.Values {
		for j, v := range rets.Values[i] {
			if v < th.Lower {
				th.ClippedLower++
			} else if v > th.Upper {
				th.ClippedUpper++
			}
			rets.Values[i][j] = th.Clip(v)
		}
	}

	stats := e.auditStats(rets, trainRows)

	log.Info().
		Str("stage", "returns").
		Int("rows", nRows).
		Int("train_rows", trainRows).
		Float64("lower", th.Lower).
		Float64("upper", th.Upper).
		Int("clipped_lower", th.ClippedLower).
		Int("clipped_upper", th.ClippedUpper).
		Msg("returns computed and winsorized")

	return rets, th, stats, nil
}

// auditStats computes annualized per-asset descriptive statistics over the
// clipped training rows.
func (e *Engine) auditStats(rets *model.ReturnMatrix, trainRows int) []AssetStats {
	stats := make([]AssetStats, 0, len(rets.Tickers))
	for j, ticker := range rets.Tickers {
		col := make([]float64, trainRows)
		for i := 0; i < trainRows; i++ {
			col[i] = rets.Values[i][j]
		}
		meanAnn := stat.Mean(col) * stat.TradingDays
		stdAnn := stat.SampleStd(col) * math.Sqrt(stat.TradingDays)
		sharpe := 0.0
		if stdAnn > 0 {
			sharpe = meanAnn / stdAnn
		}
		s := AssetStats{
			Ticker:  ticker,
			MeanAnn: meanAnn,
			StdAnn:  stdAnn,
			Sharpe:  sharpe,
			Skew:    stat.Skew(col),
			Kurt:    stat.Kurt(col),
		}
		stats = append(stats, s)
		log.Debug().
			Str("stage", "returns").
			Str("ticker", ticker).
			Float64("mean_ann", s.MeanAnn).
			Float64("std_ann", s.StdAnn).
			Float64("sharpe", s.Sharpe).
			Msg("train return stats")
	}
	return stats
}
