package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expensebook/internal/amqp"
	"expensebook/internal/cli"
	apphttp "expensebook/internal/http"
	"expensebook/internal/kv"
	"expensebook/internal/ledger"
	applog "expensebook/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	store := cli.InitStore(ctx, logger, cfg)
	defer store.Close()

	opts, cacheManager := cli.LedgerOptions(cfg, logger)
	defer cacheManager.Stop()

	// The change feed is optional; the ledger works without it. Events are
	// queued so the broker is never contacted while a request holds the ledger.
	var events *ledger.QueuedNotifier
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, ledger events will not be published",
				applog.FieldError, err.Error(),
				"exchange", cfg.AMQPExchange)
		} else {
			defer client.Close()
			events = ledger.NewQueuedNotifier(client, 0, logger.WithComponent(applog.ComponentAMQP))
			opts = append(opts, ledger.WithNotifier(events))
			logger.Info("Publishing ledger events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	l := ledger.New(ctx, store.Store, opts...)
	if errs := l.Errors(); len(errs) > 0 {
		logger.Warn("Ledger loaded with errors", "count", len(errs))
	}

	srv := apphttp.NewServer(":"+cfg.Port, l,
		apphttp.WithLogger(logger.WithComponent(applog.ComponentHTTP)),
		apphttp.WithRateLimit(cfg.RateLimit),
		apphttp.WithReadinessCheck("store", func(ctx context.Context) error {
			_, _, err := store.Store.Get(ctx, kv.KeyTransactions)
			return err
		}))
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting expensebook server", "port", cfg.Port, "backend", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	// The event queue outlives the server so in-flight mutations still publish.
	queueCtx, stopQueue := context.WithCancel(context.Background())
	defer stopQueue()
	if events != nil {
		g.Go(func() error {
			return events.Run(queueCtx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		defer stopQueue()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
