package split

import (
	"math"
	"time"

	"github.com/quantfold/hekla/pkg/stat"
)

// PipelineVersion is recorded in every manifest.
const PipelineVersion = "1.0"

// DateRange is a closed interval of trading dates.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// TargetStats summarizes one split's target returns.
type TargetStats struct {
	Mean      float64 `json:"y_mean"`
	Std       float64 `json:"y_std"`
	Min       float64 `json:"y_min"`
	Max       float64 `json:"y_max"`
	SharpeAnn float64 `json:"y_sharpe_ann"`
}

// AssetManifest is the per-asset block of the master manifest.
type AssetManifest struct {
	Ticker       string      `json:"ticker"`
	NFeatures    int         `json:"n_features"`
	FeatureNames []string    `json:"feature_names"`
	TrainSamples int         `json:"train_samples"`
	ValSamples   int         `json:"val_samples"`
	TestSamples  int         `json:"test_samples"`
	TrainRange   DateRange   `json:"train_date_range"`
	ValRange     DateRange   `json:"val_date_range"`
	TestRange    DateRange   `json:"test_date_range"`
	TrainStats   TargetStats `json:"train_stats"`
	ValStats     TargetStats `json:"val_stats"`
	TestStats    TargetStats `json:"test_stats"`
}

// Manifest is the audit record emitted once per pipeline run.
type Manifest struct {
	PipelineVersion string                   `json:"pipeline_version"`
	CreatedAt       time.Time                `json:"created_at"`
	TrainEnd        time.Time                `json:"train_end_date"`
	ValEnd          time.Time                `json:"val_end_date"`
	Tickers         []string                 `json:"tickers"`
	TotalFeatures   int                      `json:"total_features"`
	TotalSamples    int                      `json:"total_samples"`
	TrainSamples    int                      `json:"train_samples"`
	ValSamples      int                      `json:"val_samples"`
	TestSamples     int                      `json:"test_samples"`
	DateRange       DateRange                `json:"date_range"`
	PerAsset        map[string]AssetManifest `json:"per_asset_metadata"`
	TargetNames     []string                 `json:"target_names"`
}

// BuildManifest summarizes the pooled dataset and every per-asset view.
func (e *Engine) BuildManifest(pooled *Dataset, perAsset map[string]*Dataset, tickers []string) *Manifest {
	m := &Manifest{
		PipelineVersion: PipelineVersion,
		CreatedAt:       time.Now().UTC(),
		TrainEnd:        e.trainEnd,
		ValEnd:          e.valEnd,
		Tickers:         tickers,
		TotalFeatures:   pooled.Train.Features.Cols(),
		TrainSamples:    len(pooled.Train.Features.Dates),
		ValSamples:      len(pooled.Validation.Features.Dates),
		TestSamples:     len(pooled.Test.Features.Dates),
		PerAsset:        map[string]AssetManifest{},
		TargetNames:     pooled.Train.Targets.Tickers,
	}
	m.TotalSamples = m.TrainSamples + m.ValSamples + m.TestSamples
	m.DateRange = fullRange(pooled)

	for _, ticker := range tickers {
		ds, ok := perAsset[ticker]
		if !ok {
			continue
		}
		am := AssetManifest{
			Ticker:       ticker,
			NFeatures:    ds.Train.Features.Cols(),
			FeatureNames: ds.Train.Features.ColumnNames(),
			TrainSamples: len(ds.Train.Features.Dates),
			ValSamples:   len(ds.Validation.Features.Dates),
			TestSamples:  len(ds.Test.Features.Dates),
			TrainRange:   splitRange(ds.Train),
			ValRange:     splitRange(ds.Validation),
			TestRange:    splitRange(ds.Test),
			TrainStats:   targetStats(ds.Train, ticker),
			ValStats:     targetStats(ds.Validation, ticker),
			TestStats:    targetStats(ds.Test, ticker),
		}
		m.PerAsset[ticker] = am
	}
	return m
}

func fullRange(ds *Dataset) DateRange {
	var dates []time.Time
	for _, s := range ds.Splits() {
		dates = append(dates, s.Features.Dates...)
	}
	if len(dates) == 0 {
		return DateRange{}
	}
	return DateRange{Start: dates[0], End: dates[len(dates)-1]}
}

func splitRange(s *Split) DateRange {
	if len(s.Features.Dates) == 0 {
		return DateRange{}
	}
	return DateRange{Start: s.Features.Dates[0], End: s.Features.Dates[len(s.Features.Dates)-1]}
}

func targetStats(s *Split, ticker string) TargetStats {
	col, err := s.Targets.Column(ticker)
	if err != nil || len(col) == 0 {
		return TargetStats{}
	}
	mean := stat.Mean(col)
	std := stat.SampleStd(col)
	lo, hi := col[0], col[0]
	for _, v := range col[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	ts := TargetStats{Mean: mean, Std: std, Min: lo, Max: hi}
	if std > 0 {
		ts.SharpeAnn = mean / std * math.Sqrt(stat.TradingDays)
	}
	return ts
}
