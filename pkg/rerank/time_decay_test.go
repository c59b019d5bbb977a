package rerank

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/hekla/pkg/index"
	"github.com/quantfold/hekla/pkg/model"
)

func result(id string, score float64, endDaysAgo int, now time.Time) index.Result {
	return index.Result{
		Meta: model.WindowMeta{
			WindowID: id,
			DateEnd:  now.AddDate(0, 0, -endDaysAgo),
		},
		Score: score,
	}
}

func TestRerankPrefersRecentAtEqualScore(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	results := []index.Result{
		result("old", 0.9, 1000, now),
		result("recent", 0.9, 10, now),
	}

	ranked := NewReranker(DefaultConfig()).Rerank(results, now)
	require.Len(t, ranked, 2)
	assert.Equal(t, "recent", ranked[0].Meta.WindowID)
	assert.Greater(t, ranked[0].FinalScore, ranked[1].FinalScore)
	assert.Greater(t, ranked[0].TimeWeight, ranked[1].TimeWeight)
}

func TestExponentialHalfLife(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	ranked := NewReranker(DefaultConfig()).Rerank([]index.Result{result("a", 1.0, 252, now)}, now)
	require.Len(t, ranked, 1)
	// One trading year of age halves the weight.
	assert.InDelta(t, 0.5, ranked[0].TimeWeight, 1e-9)
	assert.InDelta(t, 0.5, ranked[0].FinalScore, 1e-9)
}

func TestFutureDatesGetFullWeight(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	ranked := NewReranker(DefaultConfig()).Rerank([]index.Result{result("f", 0.8, -30, now)}, now)
	assert.Equal(t, 1.0, ranked[0].TimeWeight)
}

func TestSegmentWeights(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	cfg := SegmentConfig()
	ranked := NewReranker(cfg).Rerank([]index.Result{
		result("recent", 1.0, 30, now),
		result("medium", 1.0, 200, now),
		result("old", 1.0, 800, now),
	}, now)

	byID := map[string]float64{}
	for _, r := range ranked {
		byID[r.Meta.WindowID] = r.TimeWeight
	}
	assert.Equal(t, cfg.RecentWeight, byID["recent"])
	assert.Equal(t, cfg.MediumWeight, byID["medium"])
	assert.Equal(t, cfg.OldWeight, byID["old"])
}

func TestRerankCanReorderDistantHighScores(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	// A slightly better raw match from long ago loses to a fresh one.
	results := []index.Result{
		result("stale", 0.95, 2000, now),
		result("fresh", 0.80, 5, now),
	}
	ranked := NewReranker(DefaultConfig()).Rerank(results, now)
	assert.Equal(t, "fresh", ranked[0].Meta.WindowID)

	staleWeight := math.Exp(-DefaultConfig().Lambda * 2000)
	assert.InDelta(t, 0.95*staleWeight, ranked[1].FinalScore, 1e-9)
}

func TestTopN(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	results := []index.Result{
		result("a", 0.9, 10, now),
		result("b", 0.8, 10, now),
		result("c", 0.7, 10, now),
	}
	r := NewReranker(DefaultConfig())
	top := r.TopN(results, now, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "a", top[0].Meta.WindowID)
	assert.Equal(t, "b", top[1].Meta.WindowID)

	assert.Len(t, r.TopN(results, now, 10), 3)
}

func TestFilterByMinScore(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	ranked := NewReranker(DefaultConfig()).Rerank([]index.Result{
		result("keep", 0.9, 10, now),
		result("drop", 0.9, 3000, now),
	}, now)

	kept := FilterByMinScore(ranked, 0.5)
	require.Len(t, kept, 1)
	assert.Equal(t, "keep", kept[0].Meta.WindowID)

	assert.Empty(t, FilterByMinScore(ranked, 2.0))
}
