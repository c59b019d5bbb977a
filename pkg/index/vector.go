// Package index builds fixed-length embeddings from sliding windows of the
// scaled feature matrix and answers similarity queries over them: k-NN
// retrieval, distance-weighted prediction, anomaly scoring, and ensemble
// feature synthesis.
package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/quantfold/hekla/pkg/model"
)

// Metric selects the distance function.
type Metric string

const (
	Euclidean Metric = "euclidean"
	Cosine    Metric = "cosine"
)

// ParseMetric validates a configuration string.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case Euclidean, Cosine:
		return Metric(s), nil
	default:
		return "", fmt.Errorf("index: unknown distance metric %q", s)
	}
}

// Filter restricts a search to one ticker and/or a window start-date range.
// Zero values mean no restriction.
type Filter struct {
	Ticker   string
	DateFrom time.Time
	DateTo   time.Time
}

// Matches reports whether a window passes the filter.
func (f *Filter) Matches(meta *model.WindowMeta) bool {
	if f == nil {
		return true
	}
	if f.Ticker != "" && meta.Ticker != f.Ticker {
		return false
	}
	if !f.DateFrom.IsZero() && meta.DateStart.Before(f.DateFrom) {
		return false
	}
	if !f.DateTo.IsZero() && meta.DateStart.After(f.DateTo) {
		return false
	}
	return true
}

// Result is one retrieved neighbor. Distance is the raw metric value; Score
// is a similarity in (0, 1] for Euclidean (1/(1+d)) and the cosine
// similarity for Cosine.
type Result struct {
	Meta     model.WindowMeta
	Distance float64
	Score    float64
}

// VectorIndex is the nearest-neighbor capability behind the query engine.
// Dimensionality is fixed by the first insert; inserting the same ID again
// replaces the stored vector and metadata.
type VectorIndex interface {
	Insert(ctx context.Context, id string, vector []float64, meta model.WindowMeta) error
	Search(ctx context.Context, vector []float64, k int, filter *Filter) ([]Result, error)
	Scroll(ctx context.Context, filter *Filter) ([]model.WindowMeta, error)
}

// MemoryIndex is a brute-force in-memory VectorIndex. Construction is
// append-only and not safe for concurrent writes; once built, concurrent
// read-only queries are safe.
type MemoryIndex struct {
	metric  Metric
	dim     int
	entries []entry
	byID    map[string]int
}

type entry struct {
	id     string
	vector []float64
	meta   model.WindowMeta
}

// NewMemoryIndex creates an empty index. Dimensionality locks on the first
// insert.
func NewMemoryIndex(metric Metric) *MemoryIndex {
	return &MemoryIndex{metric: metric, byID: map[string]int{}}
}

// Insert adds or replaces one window vector.
func (m *MemoryIndex) Insert(_ context.Context, id string, vector []float64, meta model.WindowMeta) error {
	if m.dim == 0 {
		m.dim = len(vector)
	}
	if len(vector) != m.dim {
		return fmt.Errorf("index: vector for %s has dimension %d, index fixed at %d", id, len(vector), m.dim)
	}
	v := make([]float64, len(vector))
	copy(v, vector)
	if pos, ok := m.byID[id]; ok {
		m.entries[pos] = entry{id: id, vector: v, meta: meta}
		return nil
	}
	m.byID[id] = len(m.entries)
	m.entries = append(m.entries, entry{id: id, vector: v, meta: meta})
	return nil
}

// Search returns the k nearest windows in ascending-distance order, ties
// broken by insertion order.
func (m *MemoryIndex) Search(_ context.Context, vector []float64, k int, filter *Filter) ([]Result, error) {
	if len(m.entries) == 0 {
		return nil, fmt.Errorf("index: search on empty index")
	}
	if len(vector) != m.dim {
		return nil, fmt.Errorf("index: query vector has dimension %d, index fixed at %d", len(vector), m.dim)
	}
	if k <= 0 {
		return nil, fmt.Errorf("index: k must be positive, got %d", k)
	}

	results := make([]Result, 0, len(m.entries))
	for _, e := range m.entries {
		if !filter.Matches(&e.meta) {
			continue
		}
		d, s := m.distanceScore(vector, e.vector)
		results = append(results, Result{Meta: e.meta, Distance: d, Score: s})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Scroll returns the metadata of every indexed window passing the filter, in
// insertion order.
func (m *MemoryIndex) Scroll(_ context.Context, filter *Filter) ([]model.WindowMeta, error) {
	out := make([]model.WindowMeta, 0, len(m.entries))
	for _, e := range m.entries {
		if filter.Matches(&e.meta) {
			out = append(out, e.meta)
		}
	}
	return out, nil
}

// Len returns the number of indexed windows.
func (m *MemoryIndex) Len() int { return len(m.entries) }

// Dim returns the locked dimensionality, 0 before the first insert.
func (m *MemoryIndex) Dim() int { return m.dim }

func (m *MemoryIndex) distanceScore(a, b []float64) (distance, score float64) {
	switch m.metric {
	case Cosine:
		sim := cosineSimilarity(a, b)
		return 1 - sim, sim
	default:
		d := euclideanDistance(a, b)
		return d, 1 / (1 + d)
	}
}

func euclideanDistance(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return math.Sqrt(s)
}

func cosineSimilarity(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	denom := math.Sqrt(na) * math.Sqrt(nb)
	if denom == 0 {
		return 0
	}
	return dot / denom
}
