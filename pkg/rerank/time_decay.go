// Package rerank reweights similarity matches by recency. Two windows with
// the same embedding distance are not equally useful when one ended last
// quarter and the other fifteen years ago.
package rerank

import (
	"math"
	"sort"
	"time"

	"github.com/quantfold/hekla/pkg/index"
)

// Config controls the decay curve applied to a match's age in days.
type Config struct {
	Lambda float64 // exponential decay rate per day

	// Segment weights, used instead of the exponential when UseSegments is
	// set.
	UseSegments  bool
	RecentDays   float64
	MediumDays   float64
	RecentWeight float64
	MediumWeight float64
	OldWeight    float64
}

// DefaultConfig halves a match's weight roughly once per trading year.
func DefaultConfig() Config {
	return Config{
		Lambda:       math.Ln2 / 252,
		UseSegments:  false,
		RecentDays:   90,
		MediumDays:   365,
		RecentWeight: 1.0,
		MediumWeight: 0.7,
		OldWeight:    0.4,
	}
}

// SegmentConfig switches to the three-bucket weighting.
func SegmentConfig() Config {
	cfg := DefaultConfig()
	cfg.UseSegments = true
	return cfg
}

// Ranked pairs a search result with its recency-adjusted score.
type Ranked struct {
	index.Result
	TimeWeight float64
	FinalScore float64
}

// Reranker applies the configured decay to search results.
type Reranker struct {
	cfg Config
}

// NewReranker creates a reranker.
func NewReranker(cfg Config) *Reranker {
	return &Reranker{cfg: cfg}
}

// Rerank weights each result by the age of its window end date and re-sorts
// by the combined score, best first.
func (r *Reranker) Rerank(results []index.Result, now time.Time) []Ranked {
	ranked := make([]Ranked, len(results))
	for i, res := range results {
		ageDays := now.Sub(res.Meta.DateEnd).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		weight := r.weight(ageDays)
		ranked[i] = Ranked{
			Result:     res,
			TimeWeight: weight,
			FinalScore: res.Score * weight,
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].FinalScore > ranked[j].FinalScore
	})
	return ranked
}

// TopN reranks and truncates.
func (r *Reranker) TopN(results []index.Result, now time.Time, n int) []Ranked {
	ranked := r.Rerank(results, now)
	if len(ranked) <= n {
		return ranked
	}
	return ranked[:n]
}

func (r *Reranker) weight(ageDays float64) float64 {
	if r.cfg.UseSegments {
		switch {
		case ageDays <= r.cfg.RecentDays:
			return r.cfg.RecentWeight
		case ageDays <= r.cfg.MediumDays:
			return r.cfg.MediumWeight
		default:
			return r.cfg.OldWeight
		}
	}
	return math.Exp(-r.cfg.Lambda * ageDays)
}

// FilterByMinScore drops results whose adjusted score falls below the floor.
func FilterByMinScore(results []Ranked, minScore float64) []Ranked {
	var filtered []Ranked
	for _, r := range results {
		if r.FinalScore >= minScore {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
