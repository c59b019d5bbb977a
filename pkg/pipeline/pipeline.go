// Package pipeline runs the full feature-engineering sequence: prices in,
// winsorized returns, the lagged indicator catalogue, cross-asset and
// portfolio features, regime labels, train-only scaling, the three-way
// chronological export, and the embedding windows for the similarity index.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantfold/hekla/pkg/config"
	"github.com/quantfold/hekla/pkg/crossasset"
	"github.com/quantfold/hekla/pkg/data"
	"github.com/quantfold/hekla/pkg/index"
	"github.com/quantfold/hekla/pkg/indicator"
	"github.com/quantfold/hekla/pkg/model"
	"github.com/quantfold/hekla/pkg/regime"
	"github.com/quantfold/hekla/pkg/returns"
	"github.com/quantfold/hekla/pkg/scale"
	"github.com/quantfold/hekla/pkg/split"
)

// Config collects the parameters of one pipeline run.
type Config struct {
	Tickers     []string
	MarketProxy string
	Start       time.Time
	End         time.Time
	TrainEnd    time.Time
	ValEnd      time.Time

	Outliers returns.Config
	Scaling  scale.Method
	Regime   regime.Config
	Window   index.BuilderConfig
}

// FromFile derives a run configuration from the loaded application config.
func FromFile(cfg *config.Config) (Config, error) {
	start, err := cfg.Start()
	if err != nil {
		return Config{}, err
	}
	end, err := cfg.End()
	if err != nil {
		return Config{}, err
	}
	trainEnd, err := cfg.TrainEnd()
	if err != nil {
		return Config{}, err
	}
	valEnd, err := cfg.ValEnd()
	if err != nil {
		return Config{}, err
	}
	method, err := scale.ParseMethod(cfg.Scaling.Method)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Tickers:     cfg.Data.Tickers,
		MarketProxy: cfg.Data.MarketProxy,
		Start:       start,
		End:         end,
		TrainEnd:    trainEnd,
		ValEnd:      valEnd,
		Outliers: returns.Config{
			LowerPct: cfg.Outliers.LowerPct,
			UpperPct: cfg.Outliers.UpperPct,
		},
		Scaling: method,
		Regime: regime.Config{
			K:        cfg.Regime.K,
			Restarts: cfg.Regime.Restarts,
			MaxIter:  cfg.Regime.MaxIter,
			Seed:     cfg.Regime.Seed,
		},
		Window: index.BuilderConfig{
			WindowSize:   cfg.Index.WindowSize,
			Stride:       cfg.Index.Stride,
			MinValidFrac: cfg.Index.MinValidFrac,
			DataVersion:  cfg.Index.DataVersion,
		},
	}, nil
}

// Result holds everything one run produced: the fitted artifacts, the scaled
// matrix, the partitioned exports, and the embedding windows.
type Result struct {
	Prices  *model.PriceMatrix
	Returns *model.ReturnMatrix

	Thresholds *returns.Thresholds
	AssetStats []returns.AssetStats
	Regime     *regime.Model
	Scaler     *scale.Scaler
	Diag       *scale.Diagnostics

	Scaled   *model.FeatureTable
	Pooled   *split.Dataset
	PerAsset map[string]*split.Dataset
	Manifest *split.Manifest

	Windows []index.Window
}

// Pipeline wires the stages against a price source.
type Pipeline struct {
	cfg      Config
	provider data.PriceProvider
}

// New creates a pipeline.
func New(cfg Config, provider data.PriceProvider) *Pipeline {
	return &Pipeline{cfg: cfg, provider: provider}
}

// Run executes every stage in order. Each fitted artifact is estimated on
// dates up to TrainEnd only and then applied across the full horizon.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	started := time.Now()

	prices, err := p.provider.FetchPrices(ctx, p.cfg.Tickers, p.cfg.Start, p.cfg.End)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	log.Info().
		Str("stage", "load").
		Int("tickers", len(prices.Tickers)).
		Int("rows", len(prices.Dates)).
		Msg("price matrix loaded")

	res := &Result{Prices: prices}

	res.Returns, res.Thresholds, res.AssetStats, err = returns.NewEngine(p.cfg.Outliers).ComputeAndClip(prices, p.cfg.TrainEnd)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	table, err := indicator.NewGenerator().Generate(prices, res.Returns)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	cross := crossasset.NewBuilder(p.cfg.MarketProxy)
	if err := cross.AddCrossAsset(table, prices, res.Returns); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if _, err := cross.AddPortfolio(table, res.Returns); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	res.Regime, err = regime.NewClassifier(p.cfg.Regime).FitLabel(table, p.cfg.TrainEnd)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	complete := table.DropIncompleteRows()
	if complete.Rows() == 0 {
		return nil, fmt.Errorf("pipeline: no complete feature rows after warm-up drop")
	}
	log.Info().
		Str("stage", "clean").
		Int("rows_before", table.Rows()).
		Int("rows_after", complete.Rows()).
		Msg("warm-up rows dropped")

	var scaler *scale.Scaler
	scaler, res.Diag, err = scale.Fit(complete, p.cfg.TrainEnd, p.cfg.Scaling)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	res.Scaler = scaler
	res.Scaled, err = scaler.Apply(complete)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	splitter, err := split.NewEngine(p.cfg.TrainEnd, p.cfg.ValEnd)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	res.Pooled, err = splitter.ExportPooled(res.Scaled, res.Returns)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	res.PerAsset = make(map[string]*split.Dataset, len(p.cfg.Tickers))
	for _, ticker := range p.cfg.Tickers {
		ds, err := splitter.ExportPerAsset(res.Scaled, res.Returns, ticker)
		if err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		res.PerAsset[ticker] = ds
	}
	res.Manifest = splitter.BuildManifest(res.Pooled, res.PerAsset, p.cfg.Tickers)

	res.Windows, err = index.NewBuilder(p.cfg.Window).Build(res.Scaled, res.Returns, p.cfg.Tickers)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	log.Info().
		Str("stage", "pipeline").
		Int("features", res.Scaled.Cols()).
		Int("rows", res.Scaled.Rows()).
		Int("windows", len(res.Windows)).
		Dur("elapsed", time.Since(started)).
		Msg("pipeline run complete")
	return res, nil
}

// IndexWindows inserts the run's windows into a vector index. Deterministic
// window IDs make this idempotent against stores that upsert by primary key.
func (r *Result) IndexWindows(ctx context.Context, idx index.VectorIndex) error {
	for _, w := range r.Windows {
		if err := idx.Insert(ctx, w.ID, w.Vector, w.Meta); err != nil {
			return fmt.Errorf("pipeline: index window %s: %w", w.ID, err)
		}
	}
	return nil
}

// WindowMetas extracts the metadata rows for relational persistence.
func (r *Result) WindowMetas() []model.WindowMeta {
	metas := make([]model.WindowMeta, len(r.Windows))
	for i, w := range r.Windows {
		metas[i] = w.Meta
	}
	return metas
}
