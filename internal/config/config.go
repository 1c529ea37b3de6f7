package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"expensebook/internal/core"
)

// Store backends
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

var validBackends = []string{BackendMemory, BackendFile, BackendSQLite}

type Config struct {
	// HTTP Server
	Port      string
	RateLimit int

	// Ledger store
	StoreBackend string
	SQLiteDBPath string
	DataFilePath string

	// AMQP change feed; an empty URL disables it
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror
	GoogleSpreadsheetID string
	GoogleSheetName     string
	// SyncInterval triggers a full mirror rewrite; zero disables it
	SyncInterval time.Duration

	LogLevel string

	// Ledger
	DefaultBudgetLimit string
	ReportCacheSize    int
	ReportCacheTTL     time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port:      getEnv("PORT", "8081"),
		RateLimit: getEnvInt("RATE_LIMIT", 60),

		StoreBackend: getEnv("STORE_BACKEND", BackendSQLite),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/expensebook.db"),
		DataFilePath: getEnv("DATA_FILE_PATH", "./data/ledger.json"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "expensebook"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		SyncInterval:        getEnvDuration("SYNC_INTERVAL", 0),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		DefaultBudgetLimit: getEnv("DEFAULT_BUDGET_LIMIT", "100"),
		ReportCacheSize:    getEnvInt("REPORT_CACHE_SIZE", 24),
		ReportCacheTTL:     getEnvDuration("REPORT_CACHE_TTL", time.Hour),
	}

	return cfg
}

// BudgetLimit returns DefaultBudgetLimit as money. Call after Validate.
func (c *Config) BudgetLimit() core.Money {
	m, err := core.ParseMoney(c.DefaultBudgetLimit)
	if err != nil {
		return core.Cents(100_00)
	}
	return m
}

// AMQPEnabled reports whether the change feed is configured.
func (c *Config) AMQPEnabled() bool {
	return strings.TrimSpace(c.AMQPURL) != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimit))
	}

	if !slices.Contains(validBackends, c.StoreBackend) {
		errors = append(errors, fmt.Sprintf("invalid store backend '%s': must be one of %v", c.StoreBackend, validBackends))
	}
	if c.StoreBackend == BackendSQLite && c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
	}
	if c.StoreBackend == BackendFile && c.DataFilePath == "" {
		errors = append(errors, "data file path cannot be empty when using file backend")
	}

	if c.AMQPEnabled() {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if _, err := core.ParseMoney(c.DefaultBudgetLimit); err != nil {
		errors = append(errors, fmt.Sprintf("invalid default budget limit '%s': must be a positive amount", c.DefaultBudgetLimit))
	}
	if c.ReportCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid report cache size %d: must be at least 1", c.ReportCacheSize))
	}
	if c.ReportCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid report cache TTL %v: must be at least 1 second", c.ReportCacheTTL))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateSync checks the settings the sheet sync worker needs on top of
// Validate.
func (c *Config) ValidateSync() error {
	var errors []string
	if !c.AMQPEnabled() {
		errors = append(errors, "AMQP_URL is required for the sync worker")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "Google Sheet name cannot be empty")
	}
	if c.SyncInterval != 0 && c.SyncInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 minute", c.SyncInterval))
	}
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
