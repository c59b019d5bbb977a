package milvus

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/quantfold/hekla/pkg/index"
	"github.com/quantfold/hekla/pkg/model"
)

// DefaultCollectionName holds the market-window embeddings.
const DefaultCollectionName = "market_windows"

var metadataFields = []string{
	"window_id", "ticker", "date_start", "date_end", "window_idx", "size", "has_returns",
	"returns_cumulative", "returns_mean", "returns_std", "sharpe_ratio", "volatility", "max_drawdown",
}

// CollectionConfig describes the windows collection.
type CollectionConfig struct {
	Name      string
	Dimension int
	Metric    index.Metric
	Shards    int
}

// DefaultCollectionConfig uses cosine distance; dimension must be set to the
// window builder's vector length before creating the collection.
func DefaultCollectionConfig() CollectionConfig {
	return CollectionConfig{
		Name:   DefaultCollectionName,
		Metric: index.Cosine,
		Shards: 2,
	}
}

// WindowStore is the Milvus-backed VectorIndex.
type WindowStore struct {
	client *Client
	cfg    CollectionConfig
}

// NewWindowStore creates the collection if needed and returns the store.
func NewWindowStore(ctx context.Context, client *Client, cfg CollectionConfig) (*WindowStore, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("milvus: collection dimension must be positive, got %d", cfg.Dimension)
	}
	s := &WindowStore{client: client, cfg: cfg}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *WindowStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.HasCollection(ctx, s.cfg.Name)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	schema := &entity.Schema{
		CollectionName: s.cfg.Name,
		Description:    "Sliding-window feature embeddings for market similarity search",
		Fields: []*entity.Field{
			{
				Name:       "window_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       "embedding",
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": fmt.Sprintf("%d", s.cfg.Dimension)},
			},
			{
				Name:       "ticker",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "32"},
			},
			{Name: "date_start", DataType: entity.FieldTypeInt64},
			{Name: "date_end", DataType: entity.FieldTypeInt64},
			{Name: "window_idx", DataType: entity.FieldTypeInt32},
			{Name: "size", DataType: entity.FieldTypeInt32},
			{Name: "has_returns", DataType: entity.FieldTypeBool},
			{Name: "returns_cumulative", DataType: entity.FieldTypeDouble},
			{Name: "returns_mean", DataType: entity.FieldTypeDouble},
			{Name: "returns_std", DataType: entity.FieldTypeDouble},
			{Name: "sharpe_ratio", DataType: entity.FieldTypeDouble},
			{Name: "volatility", DataType: entity.FieldTypeDouble},
			{Name: "max_drawdown", DataType: entity.FieldTypeDouble},
		},
	}
	if err := s.client.conn.CreateCollection(ctx, schema, int32(s.cfg.Shards)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	if err := s.client.CreateIndex(ctx, s.cfg.Name, s.metricType()); err != nil {
		return err
	}
	return nil
}

func (s *WindowStore) metricType() entity.MetricType {
	if s.cfg.Metric == index.Euclidean {
		return entity.L2
	}
	return entity.COSINE
}

// Insert upserts one window. The collection's dimension is fixed at
// creation; mismatched vectors are rejected before they reach the server.
func (s *WindowStore) Insert(ctx context.Context, id string, vector []float64, meta model.WindowMeta) error {
	if len(vector) != s.cfg.Dimension {
		return fmt.Errorf("milvus: vector for %s has dimension %d, collection fixed at %d",
			id, len(vector), s.cfg.Dimension)
	}
	embedding := make([]float32, len(vector))
	for i, v := range vector {
		embedding[i] = float32(v)
	}

	var cum, mean, std, sharpe, vol, mdd float64
	if meta.Returns != nil {
		cum, mean, std = meta.Returns.Cumulative, meta.Returns.Mean, meta.Returns.Std
		sharpe, vol, mdd = meta.Returns.Sharpe, meta.Returns.Volatility, meta.Returns.MaxDrawdown
	}

	columns := []entity.Column{
		entity.NewColumnVarChar("window_id", []string{id}),
		entity.NewColumnFloatVector("embedding", s.cfg.Dimension, [][]float32{embedding}),
		entity.NewColumnVarChar("ticker", []string{meta.Ticker}),
		entity.NewColumnInt64("date_start", []int64{meta.DateStart.Unix()}),
		entity.NewColumnInt64("date_end", []int64{meta.DateEnd.Unix()}),
		entity.NewColumnInt32("window_idx", []int32{int32(meta.WindowIdx)}),
		entity.NewColumnInt32("size", []int32{int32(meta.Size)}),
		entity.NewColumnBool("has_returns", []bool{meta.HasReturns}),
		entity.NewColumnDouble("returns_cumulative", []float64{cum}),
		entity.NewColumnDouble("returns_mean", []float64{mean}),
		entity.NewColumnDouble("returns_std", []float64{std}),
		entity.NewColumnDouble("sharpe_ratio", []float64{sharpe}),
		entity.NewColumnDouble("volatility", []float64{vol}),
		entity.NewColumnDouble("max_drawdown", []float64{mdd}),
	}
	if _, err := s.client.conn.Upsert(ctx, s.cfg.Name, "", columns...); err != nil {
		return fmt.Errorf("failed to upsert window %s: %w", id, err)
	}
	return nil
}

// Search runs a TopK query with an optional ticker/date-range filter.
func (s *WindowStore) Search(ctx context.Context, vector []float64, k int, filter *index.Filter) ([]index.Result, error) {
	if len(vector) != s.cfg.Dimension {
		return nil, fmt.Errorf("milvus: query vector has dimension %d, collection fixed at %d",
			len(vector), s.cfg.Dimension)
	}
	embedding := make([]float32, len(vector))
	for i, v := range vector {
		embedding[i] = float32(v)
	}

	sp, err := entity.NewIndexIvfFlatSearchParam(16)
	if err != nil {
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}
	results, err := s.client.conn.Search(
		ctx, s.cfg.Name, nil,
		filterExpr(filter),
		metadataFields,
		[]entity.Vector{entity.FloatVector(embedding)},
		"embedding",
		s.metricType(),
		k,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	out := make([]index.Result, 0, results[0].ResultCount)
	for i := 0; i < results[0].ResultCount; i++ {
		meta, err := metaFromColumns(results[0].Fields, i)
		if err != nil {
			return nil, err
		}
		distance, score := s.convertScore(float64(results[0].Scores[i]))
		out = append(out, index.Result{Meta: *meta, Distance: distance, Score: score})
	}
	return out, nil
}

// convertScore normalizes the server's raw score into the Result contract:
// L2 returns a squared distance, cosine returns a similarity.
func (s *WindowStore) convertScore(raw float64) (distance, score float64) {
	if s.cfg.Metric == index.Euclidean {
		d := math.Sqrt(math.Max(raw, 0))
		return d, 1 / (1 + d)
	}
	return 1 - raw, raw
}

// Scroll reads the metadata of every stored window passing the filter.
func (s *WindowStore) Scroll(ctx context.Context, filter *index.Filter) ([]model.WindowMeta, error) {
	expr := filterExpr(filter)
	if expr == "" {
		expr = `window_id != ""`
	}
	rs, err := s.client.conn.Query(ctx, s.cfg.Name, nil, expr, metadataFields)
	if err != nil {
		return nil, fmt.Errorf("failed to query windows: %w", err)
	}
	if len(rs) == 0 {
		return nil, nil
	}
	n := rs[0].Len()
	out := make([]model.WindowMeta, 0, n)
	for i := 0; i < n; i++ {
		meta, err := metaFromColumns(rs, i)
		if err != nil {
			return nil, err
		}
		out = append(out, *meta)
	}
	return out, nil
}

// filterExpr renders a Filter into a Milvus boolean expression.
func filterExpr(f *index.Filter) string {
	if f == nil {
		return ""
	}
	expr := ""
	and := func(clause string) {
		if expr != "" {
			expr += " && "
		}
		expr += clause
	}
	if f.Ticker != "" {
		and(fmt.Sprintf(`ticker == "%s"`, f.Ticker))
	}
	if !f.DateFrom.IsZero() {
		and(fmt.Sprintf("date_start >= %d", f.DateFrom.Unix()))
	}
	if !f.DateTo.IsZero() {
		and(fmt.Sprintf("date_start <= %d", f.DateTo.Unix()))
	}
	return expr
}

// metaFromColumns reconstructs a WindowMeta from output columns at row i.
func metaFromColumns(columns []entity.Column, i int) (*model.WindowMeta, error) {
	m := &model.WindowMeta{}
	stats := &model.ReturnStats{}
	for _, col := range columns {
		switch col.Name() {
		case "window_id":
			if c, ok := col.(*entity.ColumnVarChar); ok {
				m.WindowID, _ = c.ValueByIdx(i)
			}
		case "ticker":
			if c, ok := col.(*entity.ColumnVarChar); ok {
				m.Ticker, _ = c.ValueByIdx(i)
			}
		case "date_start":
			if c, ok := col.(*entity.ColumnInt64); ok {
				v, _ := c.ValueByIdx(i)
				m.DateStart = time.Unix(v, 0).UTC()
			}
		case "date_end":
			if c, ok := col.(*entity.ColumnInt64); ok {
				v, _ := c.ValueByIdx(i)
				m.DateEnd = time.Unix(v, 0).UTC()
			}
		case "window_idx":
			if c, ok := col.(*entity.ColumnInt32); ok {
				v, _ := c.ValueByIdx(i)
				m.WindowIdx = int(v)
			}
		case "size":
			if c, ok := col.(*entity.ColumnInt32); ok {
				v, _ := c.ValueByIdx(i)
				m.Size = int(v)
			}
		case "has_returns":
			if c, ok := col.(*entity.ColumnBool); ok {
				m.HasReturns, _ = c.ValueByIdx(i)
			}
		case "returns_cumulative":
			if c, ok := col.(*entity.ColumnDouble); ok {
				stats.Cumulative, _ = c.ValueByIdx(i)
			}
		case "returns_mean":
			if c, ok := col.(*entity.ColumnDouble); ok {
				stats.Mean, _ = c.ValueByIdx(i)
			}
		case "returns_std":
			if c, ok := col.(*entity.ColumnDouble); ok {
				stats.Std, _ = c.ValueByIdx(i)
			}
		case "sharpe_ratio":
			if c, ok := col.(*entity.ColumnDouble); ok {
				stats.Sharpe, _ = c.ValueByIdx(i)
			}
		case "volatility":
			if c, ok := col.(*entity.ColumnDouble); ok {
				stats.Volatility, _ = c.ValueByIdx(i)
			}
		case "max_drawdown":
			if c, ok := col.(*entity.ColumnDouble); ok {
				stats.MaxDrawdown, _ = c.ValueByIdx(i)
			}
		}
	}
	if m.HasReturns {
		m.Returns = stats
	}
	return m, nil
}

// Flush forces persistence of pending inserts.
func (s *WindowStore) Flush(ctx context.Context) error {
	return s.client.conn.Flush(ctx, s.cfg.Name, false)
}

// Load brings the collection into memory for searching.
func (s *WindowStore) Load(ctx context.Context) error {
	return s.client.LoadCollection(ctx, s.cfg.Name)
}
