package http

import (
	"net/http"

	applog "expensebook/internal/log"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	categories := s.ledger.Categories()
	s.mu.Unlock()

	NewJSONResponse().JSON(nonNil(categories)).Write(w)
}

// handleCreateCategory takes name and budget_limit.
func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}
	limit, err := ParseBudgetLimit(p, "budget_limit", "budgetLimit")
	if err != nil {
		UnprocessableEntityError("budget limit: " + err.Error()).Write(w)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ledger.CreateCategory(r.Context(), p.Get("name"), limit); err != nil {
		s.logFailure(r, "Failed to create category", err, applog.OpCategory)
		LedgerError(err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).JSON(nonNil(s.ledger.Categories())).Write(w)
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}
	limit, err := ParseBudgetLimit(p, "budget_limit", "budgetLimit", "limit")
	if err != nil {
		UnprocessableEntityError("budget limit: " + err.Error()).Write(w)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ledger.SetBudgetLimit(r.Context(), r.PathValue("name"), limit); err != nil {
		s.logFailure(r, "Failed to update budget", err, applog.OpCategory)
		LedgerError(err).Write(w)
		return
	}
	NewJSONResponse().JSON(nonNil(s.ledger.Categories())).Write(w)
}

func (s *Server) handleListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	methods := s.ledger.PaymentMethods()
	s.mu.Unlock()

	NewJSONResponse().JSON(nonNil(methods)).Write(w)
}

func (s *Server) handleSetPaymentDetails(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ledger.SetPaymentDetails(r.Context(), r.PathValue("type"), p.Get("details")); err != nil {
		s.logFailure(r, "Failed to update payment method", err, applog.OpPayment)
		LedgerError(err).Write(w)
		return
	}
	NewJSONResponse().JSON(nonNil(s.ledger.PaymentMethods())).Write(w)
}
