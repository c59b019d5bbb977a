package index

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/quantfold/hekla/pkg/model"
	"github.com/quantfold/hekla/pkg/stat"
)

// WeightScheme selects how neighbors are weighted in a prediction.
type WeightScheme string

const (
	Uniform         WeightScheme = "uniform"
	InverseDistance WeightScheme = "inverse_distance" // weight proportional to similarity
	Exponential     WeightScheme = "exponential"      // weight proportional to exp(similarity)
)

// AnomalyMethod selects how neighbor distances collapse into one score.
type AnomalyMethod string

const (
	AverageDistance AnomalyMethod = "average_distance"
	MinDistance     AnomalyMethod = "min_distance"
)

// Metadata fields usable as prediction targets and ranking metrics.
const (
	FieldCumulative  = "returns_cumulative"
	FieldMean        = "returns_mean"
	FieldStd         = "returns_std"
	FieldSharpe      = "sharpe_ratio"
	FieldVolatility  = "volatility"
	FieldMaxDrawdown = "max_drawdown"
)

// Engine answers similarity queries against a built VectorIndex.
type Engine struct {
	idx VectorIndex
}

// NewEngine wraps an index.
func NewEngine(idx VectorIndex) *Engine {
	return &Engine{idx: idx}
}

// KNN returns the k nearest windows, closest first.
func (e *Engine) KNN(ctx context.Context, vector []float64, k int, filter *Filter) ([]Result, error) {
	return e.idx.Search(ctx, vector, k, filter)
}

// Prediction is a weighted aggregate of one metadata field over the query's
// neighbors. Confidence shrinks with neighbor disagreement and is always in
// [0, 1].
type Prediction struct {
	WeightedMean float64 `json:"weighted_mean"`
	SimpleMean   float64 `json:"simple_mean"`
	Median       float64 `json:"median"`
	Std          float64 `json:"std"`
	Confidence   float64 `json:"confidence"`
	Neighbors    int     `json:"n_neighbors"`
	MinScore     float64 `json:"min_score"`
	MaxScore     float64 `json:"max_score"`
}

// WeightedPrediction aggregates the chosen field over the k nearest windows.
// An empty neighbor set degrades to a zero-confidence prediction instead of
// failing.
func (e *Engine) WeightedPrediction(ctx context.Context, vector []float64, k int, field string, scheme WeightScheme, filter *Filter) (*Prediction, error) {
	results, err := e.idx.Search(ctx, vector, k, filter)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return &Prediction{}, nil
	}

	values := make([]float64, len(results))
	scores := make([]float64, len(results))
	for i, r := range results {
		values[i] = metaField(&r.Meta, field)
		scores[i] = r.Score
	}

	weights, err := neighborWeights(scores, scheme)
	if err != nil {
		return nil, err
	}

	p := &Prediction{
		SimpleMean: stat.Mean(values),
		Median:     stat.Median(values),
		Std:        stat.PopStd(values),
		Neighbors:  len(results),
		MinScore:   scores[len(scores)-1],
		MaxScore:   scores[0],
	}
	for i := range values {
		p.WeightedMean += weights[i] * values[i]
	}
	p.Confidence = clamp01(stat.Mean(scores) * (1 - p.Std/(math.Abs(p.SimpleMean)+1e-6)))
	return p, nil
}

// Anomaly scores how unusual a query pattern is relative to its nearest
// historical neighbors. Scores above 0.5 flag a rarely-seen pattern.
type Anomaly struct {
	Score         float64 `json:"anomaly_score"`
	AvgSimilarity float64 `json:"avg_similarity"`
	MinSimilarity float64 `json:"min_similarity"`
	MaxSimilarity float64 `json:"max_similarity"`
	IsAnomalous   bool    `json:"is_anomalous"`
	Neighbors     int     `json:"n_neighbors"`
}

// AnomalyScore normalizes neighbor distances to [0, 1]. An empty neighbor
// set degrades to the maximal score.
func (e *Engine) AnomalyScore(ctx context.Context, vector []float64, k int, method AnomalyMethod, filter *Filter) (*Anomaly, error) {
	results, err := e.idx.Search(ctx, vector, k, filter)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return &Anomaly{Score: 1.0, IsAnomalous: true}, nil
	}

	// 1 - score is a [0, 1] distance for both metrics: cosine distance
	// directly, and d/(1+d) for Euclidean.
	score := 0.0
	switch method {
	case MinDistance:
		score = 1 - results[0].Score
	case AverageDistance:
		for _, r := range results {
			score += 1 - r.Score
		}
		score /= float64(len(results))
	default:
		return nil, fmt.Errorf("index: unknown anomaly method %q", method)
	}
	score = clamp01(score)

	scores := make([]float64, len(results))
	for i, r := range results {
		scores[i] = r.Score
	}
	return &Anomaly{
		Score:         score,
		AvgSimilarity: stat.Mean(scores),
		MinSimilarity: scores[len(scores)-1],
		MaxSimilarity: scores[0],
		IsAnomalous:   score > 0.5,
		Neighbors:     len(results),
	}, nil
}

// EnsembleFeatures is the fixed-size summary of a neighborhood, meant as
// auxiliary model input.
type EnsembleFeatures struct {
	AvgSimilarity float64 `json:"avg_similarity"`
	MinSimilarity float64 `json:"min_similarity"`
	MaxSimilarity float64 `json:"max_similarity"`
	StdSimilarity float64 `json:"std_similarity"`

	AvgReturn    float64 `json:"avg_return"`
	MedianReturn float64 `json:"median_return"`
	StdReturn    float64 `json:"std_return"`
	MinReturn    float64 `json:"min_return"`
	MaxReturn    float64 `json:"max_return"`

	AvgSharpe     float64 `json:"avg_sharpe"`
	AvgVolatility float64 `json:"avg_volatility"`

	ReturnConsistency float64 `json:"return_consistency"`
	PositiveRatio     float64 `json:"positive_ratio"`

	Neighbors int `json:"n_neighbors"`
}

// Vector flattens the features in declaration order.
func (f *EnsembleFeatures) Vector() []float64 {
	return []float64{
		f.AvgSimilarity, f.MinSimilarity, f.MaxSimilarity, f.StdSimilarity,
		f.AvgReturn, f.MedianReturn, f.StdReturn, f.MinReturn, f.MaxReturn,
		f.AvgSharpe, f.AvgVolatility,
		f.ReturnConsistency, f.PositiveRatio,
	}
}

// Ensemble synthesizes the neighborhood summary for a query vector. An empty
// neighbor set yields the zero feature set.
func (e *Engine) Ensemble(ctx context.Context, vector []float64, k int, filter *Filter) (*EnsembleFeatures, error) {
	results, err := e.idx.Search(ctx, vector, k, filter)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return &EnsembleFeatures{}, nil
	}

	scores := make([]float64, len(results))
	returns := make([]float64, len(results))
	sharpes := make([]float64, len(results))
	vols := make([]float64, len(results))
	positive := 0
	for i, r := range results {
		scores[i] = r.Score
		returns[i] = metaField(&r.Meta, FieldCumulative)
		sharpes[i] = metaField(&r.Meta, FieldSharpe)
		vols[i] = metaField(&r.Meta, FieldVolatility)
		if returns[i] > 0 {
			positive++
		}
	}

	stdReturn := stat.PopStd(returns)
	meanReturn := stat.Mean(returns)
	return &EnsembleFeatures{
		AvgSimilarity:     stat.Mean(scores),
		MinSimilarity:     scores[len(scores)-1],
		MaxSimilarity:     scores[0],
		StdSimilarity:     stat.PopStd(scores),
		AvgReturn:         meanReturn,
		MedianReturn:      stat.Median(returns),
		StdReturn:         stdReturn,
		MinReturn:         minOf(returns),
		MaxReturn:         maxOf(returns),
		AvgSharpe:         stat.Mean(sharpes),
		AvgVolatility:     stat.Mean(vols),
		ReturnConsistency: 1 - stdReturn/(math.Abs(meanReturn)+1e-6),
		PositiveRatio:     float64(positive) / float64(len(returns)),
		Neighbors:         len(results),
	}, nil
}

// BestPeriods scans every indexed window and returns the top n by a
// metadata metric, best first.
func (e *Engine) BestPeriods(ctx context.Context, metric string, n int, filter *Filter) ([]model.WindowMeta, error) {
	metas, err := e.idx.Scroll(ctx, filter)
	if err != nil {
		return nil, err
	}
	withMetric := make([]model.WindowMeta, 0, len(metas))
	for _, m := range metas {
		if m.HasReturns {
			withMetric = append(withMetric, m)
		}
	}
	sort.SliceStable(withMetric, func(i, j int) bool {
		return metaField(&withMetric[i], metric) > metaField(&withMetric[j], metric)
	})
	if len(withMetric) > n {
		withMetric = withMetric[:n]
	}
	return withMetric, nil
}

// metaField resolves a named return statistic, 0 when the window has none.
func metaField(meta *model.WindowMeta, field string) float64 {
	if meta.Returns == nil {
		return 0
	}
	switch field {
	case FieldCumulative:
		return meta.Returns.Cumulative
	case FieldMean:
		return meta.Returns.Mean
	case FieldStd:
		return meta.Returns.Std
	case FieldSharpe:
		return meta.Returns.Sharpe
	case FieldVolatility:
		return meta.Returns.Volatility
	case FieldMaxDrawdown:
		return meta.Returns.MaxDrawdown
	default:
		return 0
	}
}

// neighborWeights normalizes a weight per neighbor under the chosen scheme.
func neighborWeights(scores []float64, scheme WeightScheme) ([]float64, error) {
	weights := make([]float64, len(scores))
	switch scheme {
	case Uniform:
		for i := range weights {
			weights[i] = 1
		}
	case InverseDistance:
		copy(weights, scores)
	case Exponential:
		for i, s := range scores {
			weights[i] = math.Exp(s)
		}
	default:
		return nil, fmt.Errorf("index: unknown weight scheme %q", scheme)
	}
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		// Degenerate scores; fall back to uniform.
		for i := range weights {
			weights[i] = 1.0 / float64(len(weights))
		}
		return weights, nil
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights, nil
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
