// The writer worker drains the JetStream work queue: price and return
// batches land in DuckDB, window batches land in both DuckDB and Milvus.
// Running it separately keeps slow storage out of the pipeline's critical
// path.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quantfold/hekla/pkg/config"
	"github.com/quantfold/hekla/pkg/index"
	"github.com/quantfold/hekla/pkg/logging"
	"github.com/quantfold/hekla/pkg/model"
	natsq "github.com/quantfold/hekla/pkg/queue/nats"
	"github.com/quantfold/hekla/pkg/store/duckdb"
	"github.com/quantfold/hekla/pkg/store/milvus"
)

func main() {
	var configPath string

	cmd := &cobra.Command{
		Use:          "writer",
		Short:        "Consume pipeline batches from NATS and persist them",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logging.Setup(cfg.Log.Level, cfg.Log.Pretty)
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "hekla.yaml", "path to the YAML configuration")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	duckClient, err := duckdb.NewClient(cfg.Store.DuckDBPath)
	if err != nil {
		return err
	}
	defer duckClient.Close()
	if err := duckdb.InitializeSchema(ctx, duckClient); err != nil {
		return err
	}

	milvusClient, err := milvus.NewClient(ctx, milvus.Config{Address: cfg.Store.MilvusAddress})
	if err != nil {
		return err
	}
	defer milvusClient.Close()

	natsClient, err := natsq.NewClient(natsq.Config{URL: cfg.Queue.URL, StreamName: cfg.Queue.Stream})
	if err != nil {
		return err
	}
	defer natsClient.Close()
	if err := natsClient.CreateStream(ctx, natsq.AllSubjects); err != nil {
		return err
	}

	w := &worker{
		cfg:        cfg,
		priceRepo:  duckdb.NewPriceRepo(duckClient),
		returnRepo: duckdb.NewReturnRepo(duckClient),
		windowRepo: duckdb.NewWindowRepo(duckClient),
		milvus:     milvusClient,
	}

	consumers := []struct {
		subject string
		durable string
		handle  natsq.MessageHandler
	}{
		{natsq.SubjectPriceWrite, "price-writer", w.handlePrices(ctx)},
		{natsq.SubjectReturnWrite, "return-writer", w.handleReturns(ctx)},
		{natsq.SubjectWindowWrite, "window-writer", w.handleWindows(ctx)},
	}
	for _, c := range consumers {
		cc, err := natsClient.Subscribe(ctx, c.subject, c.durable, c.handle)
		if err != nil {
			return err
		}
		defer cc.Stop()
	}

	log.Info().Str("stream", cfg.Queue.Stream).Msg("writer worker started")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("writer worker shutting down")
	return nil
}

type worker struct {
	cfg        *config.Config
	priceRepo  *duckdb.PriceRepo
	returnRepo *duckdb.ReturnRepo
	windowRepo *duckdb.WindowRepo
	milvus     *milvus.Client

	// Created on the first window batch, once the vector dimension is known.
	windowStore *milvus.WindowStore
}

func (w *worker) handlePrices(ctx context.Context) natsq.MessageHandler {
	return func(msg jetstream.Msg) error {
		var batch natsq.PriceBatchMsg
		if err := natsq.Unmarshal(msg.Data(), &batch); err != nil {
			log.Error().Err(err).Msg("bad price batch")
			return err
		}
		if batch.Prices == nil || len(batch.Prices.Dates) == 0 {
			return nil
		}
		if err := w.priceRepo.InsertMatrix(ctx, batch.Prices); err != nil {
			log.Error().Err(err).Msg("price insert failed")
			return err
		}
		log.Info().Int("rows", len(batch.Prices.Dates)).Msg("prices written")
		return nil
	}
}

func (w *worker) handleReturns(ctx context.Context) natsq.MessageHandler {
	return func(msg jetstream.Msg) error {
		var batch natsq.ReturnBatchMsg
		if err := natsq.Unmarshal(msg.Data(), &batch); err != nil {
			log.Error().Err(err).Msg("bad return batch")
			return err
		}
		if batch.Returns == nil || len(batch.Returns.Dates) == 0 {
			return nil
		}
		if err := w.returnRepo.InsertMatrix(ctx, batch.Returns); err != nil {
			log.Error().Err(err).Msg("return insert failed")
			return err
		}
		log.Info().Int("rows", len(batch.Returns.Dates)).Msg("returns written")
		return nil
	}
}

func (w *worker) handleWindows(ctx context.Context) natsq.MessageHandler {
	return func(msg jetstream.Msg) error {
		var batch natsq.WindowBatchMsg
		if err := natsq.Unmarshal(msg.Data(), &batch); err != nil {
			log.Error().Err(err).Msg("bad window batch")
			return err
		}
		if len(batch.Windows) == 0 {
			return nil
		}
		if err := w.ensureWindowStore(ctx, len(batch.Windows[0].Vector)); err != nil {
			log.Error().Err(err).Msg("window store unavailable")
			return err
		}

		out := make([]model.WindowMeta, 0, len(batch.Windows))
		for _, win := range batch.Windows {
			out = append(out, win.Meta)
			if err := w.windowStore.Insert(ctx, win.ID, win.Vector, win.Meta); err != nil {
				log.Error().Err(err).Str("window_id", win.ID).Msg("milvus insert failed")
				return err
			}
		}
		if err := w.windowRepo.UpsertBatch(ctx, out); err != nil {
			log.Error().Err(err).Msg("window metadata insert failed")
			return err
		}
		log.Info().Int("windows", len(batch.Windows)).Msg("windows written")
		return nil
	}
}

// ensureWindowStore lazily opens the Milvus collection.
func (w *worker) ensureWindowStore(ctx context.Context, dim int) error {
	if w.windowStore != nil {
		return nil
	}
	metric, err := index.ParseMetric(w.cfg.Index.Metric)
	if err != nil {
		return err
	}
	store, err := milvus.NewWindowStore(ctx, w.milvus, milvus.CollectionConfig{
		Name:      w.cfg.Store.MilvusCollection,
		Dimension: dim,
		Metric:    metric,
		Shards:    2,
	})
	if err != nil {
		return err
	}
	w.windowStore = store
	return nil
}
