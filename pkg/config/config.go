// Package config loads the pipeline's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full pipeline configuration.
type Config struct {
	Data     DataConfig     `yaml:"data"`
	Splits   SplitsConfig   `yaml:"splits"`
	Outliers OutliersConfig `yaml:"outliers"`
	Scaling  ScalingConfig  `yaml:"scaling"`
	Regime   RegimeConfig   `yaml:"regime"`
	Index    IndexConfig    `yaml:"index"`
	Store    StoreConfig    `yaml:"store"`
	Queue    QueueConfig    `yaml:"queue"`
	Log      LogConfig      `yaml:"log"`
}

// DataConfig locates the input universe.
type DataConfig struct {
	CSVPath     string   `yaml:"csv_path"`
	Tickers     []string `yaml:"tickers"`
	MarketProxy string   `yaml:"market_proxy"`
	Start       string   `yaml:"start"`
	End         string   `yaml:"end"`
}

// SplitsConfig holds the two calendar cutoffs.
type SplitsConfig struct {
	TrainEnd string `yaml:"train_end"`
	ValEnd   string `yaml:"val_end"`
}

// OutliersConfig holds the winsorization percentiles as fractions.
type OutliersConfig struct {
	LowerPct float64 `yaml:"lower_pct"`
	UpperPct float64 `yaml:"upper_pct"`
}

// ScalingConfig selects the scaler variant.
type ScalingConfig struct {
	Method string `yaml:"method"` // standard | robust | minmax
}

// RegimeConfig holds the clustering parameters.
type RegimeConfig struct {
	K        int   `yaml:"k"`
	Restarts int   `yaml:"restarts"`
	MaxIter  int   `yaml:"max_iter"`
	Seed     int64 `yaml:"seed"`
}

// IndexConfig controls window building and queries.
type IndexConfig struct {
	WindowSize   int     `yaml:"window_size"`
	Stride       int     `yaml:"stride"`
	MinValidFrac float64 `yaml:"min_valid_frac"`
	Metric       string  `yaml:"metric"` // euclidean | cosine
	TopK         int     `yaml:"top_k"`
	DataVersion  int     `yaml:"data_version"`
}

// StoreConfig locates DuckDB and Milvus.
type StoreConfig struct {
	DuckDBPath       string `yaml:"duckdb_path"`
	MilvusAddress    string `yaml:"milvus_address"`
	MilvusCollection string `yaml:"milvus_collection"`
}

// QueueConfig locates NATS.
type QueueConfig struct {
	URL    string `yaml:"url"`
	Stream string `yaml:"stream"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the configuration used when a field is absent.
func Default() Config {
	return Config{
		Data: DataConfig{
			MarketProxy: "SPY",
			Start:       "2010-01-01",
			End:         "2024-12-31",
		},
		Splits: SplitsConfig{
			TrainEnd: "2017-12-31",
			ValEnd:   "2020-12-31",
		},
		Outliers: OutliersConfig{LowerPct: 0.01, UpperPct: 0.99},
		Scaling:  ScalingConfig{Method: "standard"},
		Regime:   RegimeConfig{K: 3, Restarts: 20, MaxIter: 500, Seed: 42},
		Index: IndexConfig{
			WindowSize:   30,
			Stride:       1,
			MinValidFrac: 25.0 / 30.0,
			Metric:       "cosine",
			TopK:         10,
			DataVersion:  1,
		},
		Store: StoreConfig{
			DuckDBPath:       "hekla.duckdb",
			MilvusAddress:    "localhost:19530",
			MilvusCollection: "market_windows",
		},
		Queue: QueueConfig{
			URL:    "nats://localhost:4222",
			Stream: "hekla",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads YAML over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints before the pipeline starts.
func (c *Config) Validate() error {
	if len(c.Data.Tickers) == 0 {
		return fmt.Errorf("config: no tickers configured")
	}
	trainEnd, err := c.TrainEnd()
	if err != nil {
		return err
	}
	valEnd, err := c.ValEnd()
	if err != nil {
		return err
	}
	if !valEnd.After(trainEnd) {
		return fmt.Errorf("config: val_end %s must be after train_end %s", c.Splits.ValEnd, c.Splits.TrainEnd)
	}
	if c.Outliers.LowerPct < 0 || c.Outliers.UpperPct > 1 || c.Outliers.LowerPct >= c.Outliers.UpperPct {
		return fmt.Errorf("config: outlier percentiles must satisfy 0 <= lower < upper <= 1, got %.3f/%.3f",
			c.Outliers.LowerPct, c.Outliers.UpperPct)
	}
	if c.Index.WindowSize < 2 {
		return fmt.Errorf("config: window_size must be at least 2, got %d", c.Index.WindowSize)
	}
	if c.Index.MinValidFrac < 0 || c.Index.MinValidFrac > 1 {
		return fmt.Errorf("config: min_valid_frac must be in [0, 1], got %.3f", c.Index.MinValidFrac)
	}
	return nil
}

func (c *Config) parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("config: bad %s date %q: %w", field, value, err)
	}
	return t, nil
}

// TrainEnd parses the training cutoff.
func (c *Config) TrainEnd() (time.Time, error) {
	return c.parseDate("train_end", c.Splits.TrainEnd)
}

// ValEnd parses the validation cutoff.
func (c *Config) ValEnd() (time.Time, error) {
	return c.parseDate("val_end", c.Splits.ValEnd)
}

// Start parses the data range start.
func (c *Config) Start() (time.Time, error) {
	return c.parseDate("start", c.Data.Start)
}

// End parses the data range end.
func (c *Config) End() (time.Time, error) {
	return c.parseDate("end", c.Data.End)
}
