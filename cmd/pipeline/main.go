// The pipeline command runs the full feature build over a price CSV and,
// optionally, persists the outputs: matrices and artifacts into DuckDB,
// window embeddings into Milvus, or batches onto the NATS stream for the
// writer worker.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quantfold/hekla/pkg/config"
	"github.com/quantfold/hekla/pkg/data"
	"github.com/quantfold/hekla/pkg/index"
	"github.com/quantfold/hekla/pkg/logging"
	"github.com/quantfold/hekla/pkg/pipeline"
	natsq "github.com/quantfold/hekla/pkg/queue/nats"
	"github.com/quantfold/hekla/pkg/store/duckdb"
	"github.com/quantfold/hekla/pkg/store/milvus"
)

const windowPublishBatch = 500

func main() {
	var (
		configPath string
		store      bool
		publish    bool
		recreate   bool
	)

	cmd := &cobra.Command{
		Use:          "pipeline",
		Short:        "Build features, splits, and embedding windows from a price CSV",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logging.Setup(cfg.Log.Level, cfg.Log.Pretty)
			return run(cmd.Context(), cfg, store, publish, recreate)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "hekla.yaml", "path to the YAML configuration")
	cmd.Flags().BoolVar(&store, "store", false, "persist results into DuckDB and Milvus")
	cmd.Flags().BoolVar(&publish, "publish", false, "publish results onto the NATS stream instead of writing directly")
	cmd.Flags().BoolVar(&recreate, "recreate", false, "drop and recreate the DuckDB tables first")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, store, publish, recreate bool) error {
	runCfg, err := pipeline.FromFile(cfg)
	if err != nil {
		return err
	}

	provider := data.NewCSVProvider(cfg.Data.CSVPath)
	res, err := pipeline.New(runCfg, provider).Run(ctx)
	if err != nil {
		return err
	}

	m := res.Manifest
	log.Info().
		Str("stage", "summary").
		Int("total_features", m.TotalFeatures).
		Int("train", m.TrainSamples).
		Int("validation", m.ValSamples).
		Int("test", m.TestSamples).
		Int("windows", len(res.Windows)).
		Msg("pipeline outputs ready")

	if store {
		if err := persist(ctx, cfg, res, recreate); err != nil {
			return err
		}
	}
	if publish {
		if err := publishBatches(ctx, cfg, res); err != nil {
			return err
		}
	}
	return nil
}

// persist lands everything in DuckDB and Milvus directly.
func persist(ctx context.Context, cfg *config.Config, res *pipeline.Result, recreate bool) error {
	duckClient, err := duckdb.NewClient(cfg.Store.DuckDBPath)
	if err != nil {
		return err
	}
	defer duckClient.Close()

	if recreate {
		if err := duckdb.DropAllTables(ctx, duckClient); err != nil {
			return err
		}
	}
	if err := duckdb.InitializeSchema(ctx, duckClient); err != nil {
		return err
	}

	if err := duckdb.NewPriceRepo(duckClient).InsertMatrix(ctx, res.Prices); err != nil {
		return err
	}
	if err := duckdb.NewReturnRepo(duckClient).InsertMatrix(ctx, res.Returns); err != nil {
		return err
	}
	if err := duckdb.NewWindowRepo(duckClient).UpsertBatch(ctx, res.WindowMetas()); err != nil {
		return err
	}

	artifacts := duckdb.NewArtifactRepo(duckClient)
	version := cfg.Index.DataVersion
	for kind, payload := range map[string]interface{}{
		duckdb.ArtifactThresholds:  res.Thresholds,
		duckdb.ArtifactScaler:      res.Scaler,
		duckdb.ArtifactRegimeModel: res.Regime,
		duckdb.ArtifactManifest:    res.Manifest,
	} {
		if err := artifacts.Save(ctx, kind, version, payload); err != nil {
			return err
		}
	}
	log.Info().Str("stage", "persist").Str("path", cfg.Store.DuckDBPath).Msg("duckdb persistence complete")

	if len(res.Windows) == 0 {
		return nil
	}
	milvusClient, err := milvus.NewClient(ctx, milvus.Config{Address: cfg.Store.MilvusAddress})
	if err != nil {
		return err
	}
	defer milvusClient.Close()

	metric, err := index.ParseMetric(cfg.Index.Metric)
	if err != nil {
		return err
	}
	windowStore, err := milvus.NewWindowStore(ctx, milvusClient, milvus.CollectionConfig{
		Name:      cfg.Store.MilvusCollection,
		Dimension: len(res.Windows[0].Vector),
		Metric:    metric,
		Shards:    2,
	})
	if err != nil {
		return err
	}
	if err := res.IndexWindows(ctx, windowStore); err != nil {
		return err
	}
	if err := windowStore.Flush(ctx); err != nil {
		return err
	}
	if err := windowStore.Load(ctx); err != nil {
		return err
	}
	log.Info().
		Str("stage", "persist").
		Str("collection", cfg.Store.MilvusCollection).
		Int("windows", len(res.Windows)).
		Msg("milvus persistence complete")
	return nil
}

// publishBatches hands the outputs to the writer worker over JetStream.
func publishBatches(ctx context.Context, cfg *config.Config, res *pipeline.Result) error {
	client, err := natsq.NewClient(natsq.Config{URL: cfg.Queue.URL, StreamName: cfg.Queue.Stream})
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.CreateStream(ctx, natsq.AllSubjects); err != nil {
		return err
	}

	priceData, err := natsq.Marshal(natsq.PriceBatchMsg{Prices: res.Prices})
	if err != nil {
		return err
	}
	if err := client.Publish(ctx, natsq.SubjectPriceWrite, priceData); err != nil {
		return err
	}
	returnData, err := natsq.Marshal(natsq.ReturnBatchMsg{Returns: res.Returns})
	if err != nil {
		return err
	}
	if err := client.Publish(ctx, natsq.SubjectReturnWrite, returnData); err != nil {
		return err
	}

	published := 0
	for start := 0; start < len(res.Windows); start += windowPublishBatch {
		end := start + windowPublishBatch
		if end > len(res.Windows) {
			end = len(res.Windows)
		}
		data, err := natsq.Marshal(natsq.WindowBatchMsg{Windows: res.Windows[start:end]})
		if err != nil {
			return err
		}
		if err := client.Publish(ctx, natsq.SubjectWindowWrite, data); err != nil {
			return fmt.Errorf("publish window batch at %d: %w", start, err)
		}
		published += end - start
	}
	log.Info().
		Str("stage", "publish").
		Str("stream", cfg.Queue.Stream).
		Int("windows", published).
		Msg("batches published")
	return nil
}
