package ledger

import (
	"errors"
	"slices"
	"time"
)

var (
	// ErrPersistence wraps every store read, write or delete failure.
	ErrPersistence = errors.New("persistence error")
	// ErrParse marks stored data that could not be decoded.
	ErrParse = errors.New("parse error")

	ErrTransactionNotFound   = errors.New("transaction not found")
	ErrTransactionInactive   = errors.New("transaction is not active")
	ErrCategoryExists        = errors.New("category already exists")
	ErrCategoryNotFound      = errors.New("category not found")
	ErrPaymentMethodNotFound = errors.New("payment method not found")
	ErrInvalidBudgetLimit    = errors.New("budget limit must be positive")
)

// ErrorEntry is one record of the ledger's error log.
type ErrorEntry struct {
	Operation string    `json:"operation"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Errors returns the persistence and parse failures recorded so far,
// oldest first.
func (l *Ledger) Errors() []ErrorEntry {
	return slices.Clone(l.errs)
}

func (l *Ledger) ClearErrors() {
	l.errs = nil
}

func (l *Ledger) recordError(op string, err error) {
	l.errs = append(l.errs, ErrorEntry{
		Operation: op,
		Message:   err.Error(),
		Timestamp: l.now(),
	})
}
