// Package cli provides common CLI initialization utilities shared by
// cmd/expensebook and cmd/ledger-sync.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"expensebook/internal/backend"
	"expensebook/internal/cache"
	"expensebook/internal/config"
	"expensebook/internal/ledger"
	applog "expensebook/internal/log"
)

// SetupLogger initializes structured logging at the given level and sets
// it as the default logger.
func SetupLogger(level string) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(level),
		Component: applog.ComponentApp,
		Handler: slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: applog.ParseLevel(level),
		}),
	})
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err.Error())
		os.Exit(1)
	}
	return cfg
}

// InitStore opens the ledger store selected by STORE_BACKEND.
// Exits the process on failure.
func InitStore(ctx context.Context, logger *applog.Logger, cfg *config.Config) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid store configuration", applog.FieldError, err.Error())
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend)).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize ledger store", applog.FieldError, err.Error(), "backend", bcfg.Type.String())
		os.Exit(1)
	}
	return res
}

// LedgerOptions builds the ledger options implied by cfg. The returned
// cache manager must be stopped on shutdown.
func LedgerOptions(cfg *config.Config, logger *applog.Logger) ([]ledger.Option, *cache.Manager) {
	reports := cache.NewLRUCache[ledger.MonthlyReport](cfg.ReportCacheSize, cfg.ReportCacheTTL)
	manager := cache.NewManager()
	manager.Register(reports)
	manager.StartCleanup(cfg.ReportCacheTTL)

	return []ledger.Option{
		ledger.WithLogger(logger.WithComponent(applog.ComponentLedger)),
		ledger.WithDefaultBudgetLimit(cfg.BudgetLimit()),
		ledger.WithReportCache(reports),
	}, manager
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received")
	}()
	return ctx, stop
}
