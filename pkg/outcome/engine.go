// Package outcome computes what happened after a window: forward return
// statistics over fixed horizons, for evaluating whether similar historical
// patterns led to similar outcomes.
package outcome

import (
	"fmt"
	"sort"
	"time"

	"github.com/quantfold/hekla/pkg/model"
	"github.com/quantfold/hekla/pkg/stat"
)

// Config holds the forward horizons, in trading days.
type Config struct {
	Horizons []int
}

// DefaultConfig looks one week, one month, and one quarter ahead.
func DefaultConfig() Config {
	return Config{Horizons: []int{5, 20, 60}}
}

// Result holds one window-horizon pair's forward statistics. FwdDays below
// the horizon means the window sits too close to the end of the data; its
// statistics are left zero.
type Result struct {
	WindowID      string  `json:"window_id"`
	Ticker        string  `json:"ticker"`
	Horizon       int     `json:"horizon"`
	FwdMean       float64 `json:"fwd_ret_mean"`
	FwdP10        float64 `json:"fwd_ret_p10"`
	FwdP50        float64 `json:"fwd_ret_p50"`
	FwdP90        float64 `json:"fwd_ret_p90"`
	FwdCumulative float64 `json:"fwd_ret_cumulative"`
	MaxDrawdown   float64 `json:"fwd_max_drawdown"`
	FwdDays       int     `json:"fwd_days"`
}

// Engine evaluates forward outcomes against a return matrix.
type Engine struct {
	rets *model.ReturnMatrix
}

// NewEngine creates an outcome engine.
func NewEngine(rets *model.ReturnMatrix) *Engine {
	return &Engine{rets: rets}
}

// Calculate computes forward statistics for every window-horizon pair. The
// forward span starts on the first return date strictly after the window's
// end, so a window never sees its own interval.
func (e *Engine) Calculate(metas []model.WindowMeta, horizons []int) ([]Result, error) {
	if len(horizons) == 0 {
		return nil, fmt.Errorf("outcome: no horizons given")
	}
	var results []Result
	for _, m := range metas {
		col, err := e.rets.Column(m.Ticker)
		if err != nil {
			return nil, fmt.Errorf("outcome: %w", err)
		}
		start := firstAfter(e.rets.Dates, m.DateEnd)
		for _, h := range horizons {
			r := Result{WindowID: m.WindowID, Ticker: m.Ticker, Horizon: h}
			avail := len(col) - start
			if avail < h {
				r.FwdDays = maxInt(avail, 0)
				results = append(results, r)
				continue
			}
			fwd := col[start : start+h]
			r.FwdDays = h
			r.FwdMean = stat.Mean(fwd)
			r.FwdP10 = stat.Percentile(fwd, 10)
			r.FwdP50 = stat.Percentile(fwd, 50)
			r.FwdP90 = stat.Percentile(fwd, 90)
			for _, v := range fwd {
				r.FwdCumulative += v
			}
			r.MaxDrawdown = stat.MaxDrawdown(fwd)
			results = append(results, r)
		}
	}
	return results, nil
}

// Aggregated summarizes one horizon across many windows.
type Aggregated struct {
	Horizon     int     `json:"horizon"`
	SampleCount int     `json:"sample_count"`
	MeanReturn  float64 `json:"mean_return"`
	MeanP10     float64 `json:"mean_p10"`
	MeanP50     float64 `json:"mean_p50"`
	MeanP90     float64 `json:"mean_p90"`
	WorstDD     float64 `json:"worst_drawdown_p95"`
}

// Aggregate groups complete results by horizon. Windows without full forward
// coverage are excluded.
func Aggregate(results []Result) map[int]Aggregated {
	byHorizon := map[int][]Result{}
	for _, r := range results {
		if r.FwdDays == r.Horizon {
			byHorizon[r.Horizon] = append(byHorizon[r.Horizon], r)
		}
	}

	out := make(map[int]Aggregated, len(byHorizon))
	for horizon, group := range byHorizon {
		means := make([]float64, len(group))
		p10s := make([]float64, len(group))
		p50s := make([]float64, len(group))
		p90s := make([]float64, len(group))
		dds := make([]float64, len(group))
		for i, r := range group {
			means[i] = r.FwdMean
			p10s[i] = r.FwdP10
			p50s[i] = r.FwdP50
			p90s[i] = r.FwdP90
			dds[i] = -r.MaxDrawdown // drawdowns are <= 0; rank by magnitude
		}
		out[horizon] = Aggregated{
			Horizon:     horizon,
			SampleCount: len(group),
			MeanReturn:  stat.Mean(means),
			MeanP10:     stat.Mean(p10s),
			MeanP50:     stat.Mean(p50s),
			MeanP90:     stat.Mean(p90s),
			WorstDD:     -stat.Percentile(dds, 95),
		}
	}
	return out
}

// Horizons lists an aggregate map's keys in ascending order.
func Horizons(agg map[int]Aggregated) []int {
	keys := make([]int, 0, len(agg))
	for h := range agg {
		keys = append(keys, h)
	}
	sort.Ints(keys)
	return keys
}

func (a Aggregated) String() string {
	return fmt.Sprintf(
		"horizon %d: samples=%d mean=%.5f p10=%.5f p50=%.5f p90=%.5f dd95=%.5f",
		a.Horizon, a.SampleCount, a.MeanReturn, a.MeanP10, a.MeanP50, a.MeanP90, a.WorstDD,
	)
}

// firstAfter returns the index of the first date strictly after t.
func firstAfter(dates []time.Time, t time.Time) int {
	return sort.Search(len(dates), func(i int) bool { return dates[i].After(t) })
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
