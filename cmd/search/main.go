// The search command queries the window similarity index. Vector queries
// rebuild the feature matrix from the configured CSV, embed the ticker's most
// recent window, and run it against the Milvus collection; best-periods ranks
// stored windows by a return metric without a query vector.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantfold/hekla/pkg/config"
	"github.com/quantfold/hekla/pkg/data"
	"github.com/quantfold/hekla/pkg/index"
	"github.com/quantfold/hekla/pkg/logging"
	"github.com/quantfold/hekla/pkg/model"
	"github.com/quantfold/hekla/pkg/outcome"
	"github.com/quantfold/hekla/pkg/pipeline"
	"github.com/quantfold/hekla/pkg/rerank"
	"github.com/quantfold/hekla/pkg/store/milvus"
)

type options struct {
	configPath   string
	ticker       string
	topK         int
	filterTicker string
	from         string
	to           string
}

func main() {
	opts := &options{}

	root := &cobra.Command{
		Use:          "search",
		Short:        "Query the market-window similarity index",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "hekla.yaml", "path to the YAML configuration")
	root.PersistentFlags().StringVarP(&opts.ticker, "ticker", "t", "", "ticker whose latest window becomes the query")
	root.PersistentFlags().IntVarP(&opts.topK, "k", "k", 0, "number of neighbors (defaults to the configured top_k)")
	root.PersistentFlags().StringVar(&opts.filterTicker, "filter-ticker", "", "restrict matches to one ticker")
	root.PersistentFlags().StringVar(&opts.from, "from", "", "restrict matches starting on or after this date (YYYY-MM-DD)")
	root.PersistentFlags().StringVar(&opts.to, "to", "", "restrict matches starting on or before this date (YYYY-MM-DD)")

	root.AddCommand(knnCmd(opts), predictCmd(opts), anomalyCmd(opts), ensembleCmd(opts), bestPeriodsCmd(opts), outcomesCmd(opts))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func knnCmd(opts *options) *cobra.Command {
	var decay bool
	cmd := &cobra.Command{
		Use:   "knn",
		Short: "List the k most similar historical windows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVectorQuery(cmd.Context(), opts, func(ctx context.Context, e *index.Engine, vector []float64, k int, filter *index.Filter) error {
				results, err := e.KNN(ctx, vector, k, filter)
				if err != nil {
					return err
				}
				if decay {
					ranked := rerank.NewReranker(rerank.DefaultConfig()).Rerank(results, time.Now())
					fmt.Printf("%-4s %-34s %-8s %-12s %-12s %-10s %-10s\n",
						"Rank", "WindowID", "Ticker", "Start", "End", "Score", "Decayed")
					for i, r := range ranked {
						fmt.Printf("%-4d %-34s %-8s %-12s %-12s %-10.4f %-10.4f\n",
							i+1, r.Meta.WindowID, r.Meta.Ticker,
							r.Meta.DateStart.Format("2006-01-02"), r.Meta.DateEnd.Format("2006-01-02"),
							r.Score, r.FinalScore)
					}
					return nil
				}
				fmt.Printf("%-4s %-34s %-8s %-12s %-12s %-10s %-10s\n",
					"Rank", "WindowID", "Ticker", "Start", "End", "Score", "Distance")
				for i, r := range results {
					fmt.Printf("%-4d %-34s %-8s %-12s %-12s %-10.4f %-10.4f\n",
						i+1, r.Meta.WindowID, r.Meta.Ticker,
						r.Meta.DateStart.Format("2006-01-02"), r.Meta.DateEnd.Format("2006-01-02"),
						r.Score, r.Distance)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&decay, "decay", false, "rerank matches by recency before listing")
	return cmd
}

func outcomesCmd(opts *options) *cobra.Command {
	var metric string
	var n int
	var horizons []int
	cmd := &cobra.Command{
		Use:   "outcomes",
		Short: "Forward-return statistics after the top-ranked windows",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, _, _, err := setup(opts)
			if err != nil {
				return err
			}
			runCfg, err := pipeline.FromFile(cfg)
			if err != nil {
				return err
			}
			res, err := pipeline.New(runCfg, data.NewCSVProvider(cfg.Data.CSVPath)).Run(ctx)
			if err != nil {
				return err
			}

			metas := res.WindowMetas()
			ranked := make([]model.WindowMeta, 0, len(metas))
			for _, m := range metas {
				if m.HasReturns {
					ranked = append(ranked, m)
				}
			}
			sort.SliceStable(ranked, func(i, j int) bool {
				return metaValue(ranked[i], metric) > metaValue(ranked[j], metric)
			})
			if len(ranked) > n {
				ranked = ranked[:n]
			}

			results, err := outcome.NewEngine(res.Returns).Calculate(ranked, horizons)
			if err != nil {
				return err
			}
			agg := outcome.Aggregate(results)
			fmt.Printf("forward outcomes of the top %d windows by %s:\n", len(ranked), metric)
			for _, h := range outcome.Horizons(agg) {
				fmt.Println("  " + agg[h].String())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&metric, "metric", index.FieldSharpe, "ranking metric")
	cmd.Flags().IntVar(&n, "n", 50, "number of top windows to evaluate")
	cmd.Flags().IntSliceVar(&horizons, "horizons", outcome.DefaultConfig().Horizons, "forward horizons in trading days")
	return cmd
}

// metaValue reads a return statistic off a window, 0 when absent.
func metaValue(m model.WindowMeta, field string) float64 {
	if m.Returns == nil {
		return 0
	}
	switch field {
	case index.FieldCumulative:
		return m.Returns.Cumulative
	case index.FieldMean:
		return m.Returns.Mean
	case index.FieldStd:
		return m.Returns.Std
	case index.FieldVolatility:
		return m.Returns.Volatility
	case index.FieldMaxDrawdown:
		return m.Returns.MaxDrawdown
	default:
		return m.Returns.Sharpe
	}
}

func predictCmd(opts *options) *cobra.Command {
	var field, scheme string
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict a return statistic from the nearest historical windows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVectorQuery(cmd.Context(), opts, func(ctx context.Context, e *index.Engine, vector []float64, k int, filter *index.Filter) error {
				p, err := e.WeightedPrediction(ctx, vector, k, field, index.WeightScheme(scheme), filter)
				if err != nil {
					return err
				}
				fmt.Printf("field:         %s\n", field)
				fmt.Printf("weighted mean: %.6f\n", p.WeightedMean)
				fmt.Printf("simple mean:   %.6f\n", p.SimpleMean)
				fmt.Printf("median:        %.6f\n", p.Median)
				fmt.Printf("std:           %.6f\n", p.Std)
				fmt.Printf("confidence:    %.4f\n", p.Confidence)
				fmt.Printf("neighbors:     %d (scores %.4f .. %.4f)\n", p.Neighbors, p.MinScore, p.MaxScore)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&field, "field", index.FieldCumulative, "return statistic to aggregate")
	cmd.Flags().StringVar(&scheme, "scheme", string(index.InverseDistance), "neighbor weighting: uniform, inverse_distance, exponential")
	return cmd
}

func anomalyCmd(opts *options) *cobra.Command {
	var method string
	cmd := &cobra.Command{
		Use:   "anomaly",
		Short: "Score how unusual the current window is",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVectorQuery(cmd.Context(), opts, func(ctx context.Context, e *index.Engine, vector []float64, k int, filter *index.Filter) error {
				a, err := e.AnomalyScore(ctx, vector, k, index.AnomalyMethod(method), filter)
				if err != nil {
					return err
				}
				fmt.Printf("anomaly score:  %.4f\n", a.Score)
				fmt.Printf("anomalous:      %v\n", a.IsAnomalous)
				fmt.Printf("avg similarity: %.4f\n", a.AvgSimilarity)
				fmt.Printf("similarity:     %.4f .. %.4f over %d neighbors\n", a.MinSimilarity, a.MaxSimilarity, a.Neighbors)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&method, "method", string(index.AverageDistance), "distance collapse: average_distance, min_distance")
	return cmd
}

func ensembleCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ensemble",
		Short: "Summarize the neighborhood as a fixed-size feature vector",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVectorQuery(cmd.Context(), opts, func(ctx context.Context, e *index.Engine, vector []float64, k int, filter *index.Filter) error {
				f, err := e.Ensemble(ctx, vector, k, filter)
				if err != nil {
					return err
				}
				fmt.Printf("similarity:    avg %.4f, min %.4f, max %.4f, std %.4f\n",
					f.AvgSimilarity, f.MinSimilarity, f.MaxSimilarity, f.StdSimilarity)
				fmt.Printf("returns:       avg %.6f, median %.6f, std %.6f, range [%.6f, %.6f]\n",
					f.AvgReturn, f.MedianReturn, f.StdReturn, f.MinReturn, f.MaxReturn)
				fmt.Printf("sharpe/vol:    %.4f / %.4f\n", f.AvgSharpe, f.AvgVolatility)
				fmt.Printf("consistency:   %.4f, positive ratio %.2f, neighbors %d\n",
					f.ReturnConsistency, f.PositiveRatio, f.Neighbors)
				return nil
			})
		},
	}
}

func bestPeriodsCmd(opts *options) *cobra.Command {
	var metric string
	var n int
	cmd := &cobra.Command{
		Use:   "best-periods",
		Short: "Rank stored windows by a return metric",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, filter, _, err := setup(opts)
			if err != nil {
				return err
			}
			engine, closer, err := openRemoteIndex(ctx, cfg, 0)
			if err != nil {
				return err
			}
			defer closer()

			metas, err := engine.BestPeriods(ctx, metric, n, filter)
			if err != nil {
				return err
			}
			fmt.Printf("%-4s %-8s %-12s %-12s %-12s %-10s %-10s\n",
				"Rank", "Ticker", "Start", "End", "CumReturn", "Sharpe", "MaxDD")
			for i, m := range metas {
				var cum, sharpe, mdd float64
				if m.Returns != nil {
					cum, sharpe, mdd = m.Returns.Cumulative, m.Returns.Sharpe, m.Returns.MaxDrawdown
				}
				fmt.Printf("%-4d %-8s %-12s %-12s %-12.6f %-10.4f %-10.4f\n",
					i+1, m.Ticker,
					m.DateStart.Format("2006-01-02"), m.DateEnd.Format("2006-01-02"),
					cum, sharpe, mdd)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&metric, "metric", index.FieldSharpe, "ranking metric")
	cmd.Flags().IntVar(&n, "n", 10, "number of periods to list")
	return cmd
}

// setup loads config, applies flag defaults, and renders the filter.
func setup(opts *options) (*config.Config, *index.Filter, int, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, 0, err
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)

	k := opts.topK
	if k <= 0 {
		k = cfg.Index.TopK
	}

	var filter *index.Filter
	if opts.filterTicker != "" || opts.from != "" || opts.to != "" {
		filter = &index.Filter{Ticker: opts.filterTicker}
		if opts.from != "" {
			d, err := time.Parse("2006-01-02", opts.from)
			if err != nil {
				return nil, nil, 0, fmt.Errorf("bad --from date %q: %w", opts.from, err)
			}
			filter.DateFrom = d
		}
		if opts.to != "" {
			d, err := time.Parse("2006-01-02", opts.to)
			if err != nil {
				return nil, nil, 0, fmt.Errorf("bad --to date %q: %w", opts.to, err)
			}
			filter.DateTo = d
		}
	}
	return cfg, filter, k, nil
}

type vectorQuery func(ctx context.Context, e *index.Engine, vector []float64, k int, filter *index.Filter) error

// withVectorQuery rebuilds the ticker's latest window and runs the query
// against the remote index.
func withVectorQuery(ctx context.Context, opts *options, fn vectorQuery) error {
	cfg, filter, k, err := setup(opts)
	if err != nil {
		return err
	}
	ticker := opts.ticker
	if ticker == "" {
		ticker = cfg.Data.Tickers[0]
	}

	vector, meta, err := latestWindow(ctx, cfg, ticker)
	if err != nil {
		return err
	}
	fmt.Printf("query window: %s %s .. %s (%s)\n\n",
		meta.Ticker, meta.DateStart.Format("2006-01-02"), meta.DateEnd.Format("2006-01-02"), meta.WindowID)

	engine, closer, err := openRemoteIndex(ctx, cfg, len(vector))
	if err != nil {
		return err
	}
	defer closer()
	return fn(ctx, engine, vector, k, filter)
}

// latestWindow recomputes the feature matrix from the CSV and returns the
// ticker's most recent accepted window.
func latestWindow(ctx context.Context, cfg *config.Config, ticker string) ([]float64, *model.WindowMeta, error) {
	runCfg, err := pipeline.FromFile(cfg)
	if err != nil {
		return nil, nil, err
	}
	res, err := pipeline.New(runCfg, data.NewCSVProvider(cfg.Data.CSVPath)).Run(ctx)
	if err != nil {
		return nil, nil, err
	}

	var best *index.Window
	for i := range res.Windows {
		w := &res.Windows[i]
		if w.Meta.Ticker != ticker {
			continue
		}
		if best == nil || w.Meta.DateEnd.After(best.Meta.DateEnd) {
			best = w
		}
	}
	if best == nil {
		return nil, nil, fmt.Errorf("no accepted windows for ticker %q", ticker)
	}
	return best.Vector, &best.Meta, nil
}

// openRemoteIndex connects to Milvus and wraps the collection as a query
// engine. A zero dim is resolved from the collection schema.
func openRemoteIndex(ctx context.Context, cfg *config.Config, dim int) (*index.Engine, func(), error) {
	client, err := milvus.NewClient(ctx, milvus.Config{Address: cfg.Store.MilvusAddress})
	if err != nil {
		return nil, nil, err
	}
	if dim == 0 {
		dim, err = client.Dimension(ctx, cfg.Store.MilvusCollection)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
	}
	metric, err := index.ParseMetric(cfg.Index.Metric)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	store, err := milvus.NewWindowStore(ctx, client, milvus.CollectionConfig{
		Name:      cfg.Store.MilvusCollection,
		Dimension: dim,
		Metric:    metric,
		Shards:    2,
	})
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	if err := store.Load(ctx); err != nil {
		client.Close()
		return nil, nil, err
	}
	return index.NewEngine(store), func() { client.Close() }, nil
}
