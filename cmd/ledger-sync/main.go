package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expensebook/internal/amqp"
	"expensebook/internal/backend"
	"expensebook/internal/cli"
	"expensebook/internal/config"
	"expensebook/internal/core"
	"expensebook/internal/ledger"
	applog "expensebook/internal/log"
	"expensebook/internal/sheets"
	gsheet "expensebook/internal/sheets/google"
	memsheet "expensebook/internal/sheets/memory"
	"expensebook/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting ledger-sync")

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateSync(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err.Error())
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	mirror := openMirror(ctx, logger, cfg)
	syncWorker := worker.NewSyncWorker(mirror)

	store := cli.InitStore(ctx, logger, cfg)
	defer store.Close()

	// Catch up on events missed while the worker was down.
	logger.Info("Performing startup sync...")
	if err := resync(ctx, logger, store, syncWorker); err != nil {
		logger.Error("Failed startup sync", applog.FieldError, err.Error())
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err.Error())
		os.Exit(1)
	}
	defer amqpClient.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeEvents(gctx, syncWorker.HandleEvent)
	})
	if cfg.SyncInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(cfg.SyncInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case <-ticker.C:
					if err := resync(gctx, logger, store, syncWorker); err != nil {
						logger.Error("Periodic sync failed", applog.FieldError, err.Error())
					}
				}
			}
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", applog.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

// openMirror returns the Google Sheets mirror, or an in-memory one when no
// spreadsheet is configured.
func openMirror(ctx context.Context, logger *applog.Logger, cfg *config.Config) sheets.TransactionMirror {
	if cfg.GoogleSpreadsheetID == "" {
		logger.Warn("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, mirroring in memory")
		return memsheet.New()
	}
	client, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)
	return client
}

// resync reloads the transaction log from the store and rewrites the
// mirror from it.
func resync(ctx context.Context, logger *applog.Logger, store *backend.BackendResult, w *worker.SyncWorker) error {
	return w.StartupSync(ctx, func(ctx context.Context) ([]core.Transaction, error) {
		l := ledger.New(ctx, store.Store, ledger.WithLogger(logger.WithComponent(applog.ComponentLedger)))
		for _, e := range l.Errors() {
			logger.Warn("Ledger load problem", applog.FieldOperation, e.Operation, applog.FieldError, e.Message)
		}
		return l.TransactionLog(), nil
	})
}
