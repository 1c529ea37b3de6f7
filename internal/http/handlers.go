package http

import (
	"context"
	"net/http"
	"time"

	applog "expensebook/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady runs every registered readiness check.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string, len(s.checks)+1)
	checks["ledger"] = "ok"
	if s.ledger == nil {
		checks["ledger"] = "failed: not configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	}

	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			checks[name] = "failed: " + err.Error()
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	NewJSONResponse().Status(httpStatus).JSON(map[string]any{
		"status":   status,
		"checks":   checks,
		"security": s.metrics.snapshot(),
	}).Write(w)
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	entries := s.ledger.Errors()
	s.mu.Unlock()

	NewJSONResponse().JSON(map[string]any{"errors": nonNil(entries)}).Write(w)
}

func (s *Server) handleClearErrors(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.ledger.ClearErrors()
	s.mu.Unlock()

	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleReconcile rebuilds the category and payment method totals from the
// transaction log.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ledger.Reconcile(r.Context()); err != nil {
		s.logFailure(r, "Reconcile failed", err, applog.OpReconcile)
		LedgerError(err).Write(w)
		return
	}
	NewJSONResponse().JSON(map[string]any{
		"categories":     s.ledger.Categories(),
		"paymentMethods": s.ledger.PaymentMethods(),
	}).Write(w)
}

func (s *Server) logFailure(r *http.Request, msg string, err error, op string) {
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogError(r.Context(), msg, err, op, applog.NewFields().WithClientIP(extractClientIP(r)))
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
