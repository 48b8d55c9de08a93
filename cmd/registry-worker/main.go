package main

import (
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"giftregistry/internal/backend"
	"giftregistry/internal/cli"
	"giftregistry/internal/config"
	"giftregistry/internal/core"
	"giftregistry/internal/log"
	"giftregistry/internal/metrics"
	"giftregistry/internal/sheets"
	"giftregistry/internal/sheets/google"
	"giftregistry/internal/sheets/memory"
	"giftregistry/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentWorker)
	logger.Info("Starting registry-worker")

	if cfg.DataBackend == config.BackendMemory {
		logger.Error("The export worker needs a shared store", "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("The export worker needs AMQP_URL to receive gift changes")
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Worker failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := cli.ShutdownContext()
	defer stop()

	result, err := cli.CreateBackend(ctx, logger, cfg, func(b *backend.Config) {
		// A durable queue keeps changes made while the worker is down.
		b.AMQPQueue = cfg.AMQPExportQueue
		b.FirebaseAuth = false
	})
	if err != nil {
		return err
	}
	defer cli.Cleanup(logger, result)
	if result.Events == nil {
		return fmt.Errorf("AMQP broker unreachable at startup")
	}

	var exporter sheets.ViewExporter
	if cfg.ExportEnabled() {
		exporter, err = google.New(ctx, google.ConfigFromEnv(cfg.GoogleSpreadsheetID, cfg.GoogleSheetName))
		if err != nil {
			return fmt.Errorf("create sheets exporter: %w", err)
		}
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		exporter = memory.New()
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, exporting to memory")
	}

	export := worker.NewExportWorker(result.Store, exporter, core.ParseGroupKey(cfg.DefaultGroupBy), cfg.ExportInterval, logger, metrics.New())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return export.Run(gctx) })
	g.Go(func() error { return result.Events.ConsumeWithRetry(gctx, export.HandleGiftChanged) })
	return g.Wait()
}
