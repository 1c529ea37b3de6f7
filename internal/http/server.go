package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"expensebook/internal/ledger"
	applog "expensebook/internal/log"
)

// ReadinessCheck probes a dependency for /readyz.
type ReadinessCheck func(ctx context.Context) error

// Server serves the ledger over HTTP. The ledger is single-owner, so every
// handler touching it holds mu.
type Server struct {
	http.Server

	mu     sync.Mutex
	ledger *ledger.Ledger

	logger       *applog.Logger
	now          func() time.Time
	started      time.Time
	checks       map[string]ReadinessCheck
	rateLimit    int
	rateLimiter  *rateLimiter
	metrics      securityMetrics
	shutdownOnce sync.Once
}

type Option func(*Server)

// WithClock replaces time.Now for input validation and report defaults.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func WithLogger(logger *applog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithReadinessCheck registers a named dependency probe for /readyz.
func WithReadinessCheck(name string, check ReadinessCheck) Option {
	return func(s *Server) { s.checks[name] = check }
}

// WithRateLimit sets how many mutating requests a client may issue per
// minute.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) { s.rateLimit = perMinute }
}

// NewServer configures routes, returning a ready-to-run server.
func NewServer(addr string, l *ledger.Ledger, opts ...Option) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		ledger:    l,
		logger:    applog.Default(applog.ComponentHTTP),
		now:       time.Now,
		checks:    make(map[string]ReadinessCheck),
		rateLimit: DefaultRateLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.started = s.now()
	s.rateLimiter = newRateLimiter(s.rateLimit, time.Minute)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /expenses", s.handleListExpenses)
	mux.HandleFunc("GET /transactions", s.handleListTransactions)
	mux.HandleFunc("GET /transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PUT /transactions/{id}", s.handleEditTransaction)
	mux.HandleFunc("DELETE /transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("DELETE /ledger", s.handleDeleteAll)

	mux.HandleFunc("GET /categories", s.handleListCategories)
	mux.HandleFunc("POST /categories", s.handleCreateCategory)
	mux.HandleFunc("PUT /categories/{name}/budget", s.handleSetBudget)
	mux.HandleFunc("GET /payment-methods", s.handleListPaymentMethods)
	mux.HandleFunc("PUT /payment-methods/{type}", s.handleSetPaymentDetails)

	mux.HandleFunc("GET /summary", s.handleSummary)
	mux.HandleFunc("GET /budget/alerts", s.handleBudgetAlerts)
	mux.HandleFunc("GET /budget/check", s.handleBudgetCheck)
	mux.HandleFunc("GET /reports/monthly", s.handleMonthlyReport)
	mux.HandleFunc("GET /reports/weekly", s.handleWeeklyReport)
	mux.HandleFunc("GET /reports/trends", s.handleTrends)

	mux.HandleFunc("GET /export/transactions.json", s.handleExport)
	mux.HandleFunc("GET /export/transactions.csv", s.handleExport)
	mux.HandleFunc("GET /export/transactions.xlsx", s.handleExport)

	mux.HandleFunc("GET /errors", s.handleErrors)
	mux.HandleFunc("DELETE /errors", s.handleClearErrors)
	mux.HandleFunc("POST /reconcile", s.handleReconcile)

	s.Handler = withRequestID(
		applog.Middleware(s.logger)(
			applog.ComponentMiddleware(applog.ComponentHTTP)(
				applog.RequestIDMiddleware(requestIDOf)(
					s.withMiddleware(mux)))))
	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

const requestIDHeader = "X-Request-ID"

// withRequestID makes sure every request carries an X-Request-ID header
// before the logging middleware reads it.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := requestIDFromHeader(r.Header.Get(requestIDHeader))
		r.Header.Set(requestIDHeader, id)
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func requestIDOf(r *http.Request) string {
	return r.Header.Get(requestIDHeader)
}

// withMiddleware adds request logging, security headers and rate limiting
// of mutating requests.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		clientIP := extractClientIP(r)
		logger := applog.FromContext(ctx)
		sl := applog.NewStructuredLogger(logger)
		sl.LogHTTPStart(ctx, r, clientIP)

		if detectSuspiciousRequest(r, &s.metrics) {
			logger.WarnContext(ctx, "Suspicious request",
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path,
				applog.FieldUserAgent, r.Header.Get("User-Agent"))
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		if isMutating(r.Method) && !s.rateLimiter.allow(clientIP, &s.metrics) {
			logger.WarnContext(ctx, "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			rw.Header().Set("Retry-After", "60")
			ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(rw)
		} else {
			next.ServeHTTP(rw, r)
		}

		sl.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	})
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
