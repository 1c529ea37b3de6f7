package http

import (
	"net/http"
	"strings"

	"expensebook/internal/core"
	"expensebook/internal/ledger"
	applog "expensebook/internal/log"
)

type addResponse struct {
	Transaction core.Transaction      `json:"transaction"`
	Warning     *ledger.BudgetWarning `json:"warning,omitempty"`
}

// handleCreateExpense adds an expense. Crossing a category budget needs
// confirm=true; without it the expense is not recorded and 409 carries the
// warning.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}

	in, err := ParseExpenseInput(p, s.now())
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	confirm := parseBool(p.Get("confirm"))

	s.mu.Lock()
	res, err := s.ledger.Add(r.Context(), in, func(ledger.BudgetWarning) bool { return confirm })
	s.mu.Unlock()

	switch {
	case err != nil:
		s.logFailure(r, "Failed to save expense", err, applog.OpAdd)
		LedgerError(err).Write(w)
	case res.Outcome == ledger.OutcomeCancelled:
		BudgetConfirmationRequired(res.Warning).Write(w)
	default:
		NewJSONResponse().
			Status(http.StatusCreated).
			Header("Location", "/transactions/"+res.Transaction.ID).
			JSON(addResponse{Transaction: res.Transaction, Warning: res.Warning}).
			Write(w)
	}
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	expenses := s.ledger.Expenses()
	s.mu.Unlock()

	NewJSONResponse().JSON(nonNil(expenses)).Write(w)
}

// handleListTransactions returns the transaction log. ?status=active or
// ?status=inactive filters it.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	txs := s.ledger.TransactionLog()
	s.mu.Unlock()

	switch strings.ToLower(r.URL.Query().Get("status")) {
	case "":
	case "active":
		txs = filterTransactions(txs, true)
	case "inactive":
		txs = filterTransactions(txs, false)
	default:
		BadRequestError("status must be active or inactive").Write(w)
		return
	}
	NewJSONResponse().JSON(nonNil(txs)).Write(w)
}

func filterTransactions(txs []core.Transaction, active bool) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Active == active {
			out = append(out, tx)
		}
	}
	return out
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	tx, ok := s.ledger.Transaction(r.PathValue("id"))
	s.mu.Unlock()

	if !ok {
		NotFoundError(ledger.ErrTransactionNotFound.Error()).Write(w)
		return
	}
	NewJSONResponse().JSON(tx).Write(w)
}

func (s *Server) handleEditTransaction(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}
	in, err := ParseExpenseInput(p, s.now())
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	s.mu.Lock()
	tx, err := s.ledger.EditTransaction(r.Context(), r.PathValue("id"), in)
	s.mu.Unlock()

	if err != nil {
		s.logFailure(r, "Failed to edit transaction", err, applog.OpEdit)
		LedgerError(err).Write(w)
		return
	}
	NewJSONResponse().JSON(tx).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	err := s.ledger.DeleteTransaction(r.Context(), r.PathValue("id"))
	s.mu.Unlock()

	if err != nil {
		s.logFailure(r, "Failed to delete transaction", err, applog.OpDelete)
		LedgerError(err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleDeleteAll wipes the ledger and every stored key.
func (s *Server) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	err := s.ledger.DeleteAll(r.Context())
	s.mu.Unlock()

	if err != nil {
		s.logFailure(r, "Failed to delete ledger", err, applog.OpDeleteAll)
		InternalServerError(err.Error()).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
