package core

import "time"

// EventKind names a ledger change.
type EventKind string

const (
	EventExpenseAdded       EventKind = "expense.added"
	EventTransactionEdited  EventKind = "transaction.edited"
	EventTransactionDeleted EventKind = "transaction.deleted"
	EventLedgerCleared      EventKind = "ledger.cleared"
)

// Event describes a committed ledger mutation. Transaction is set for
// added and edited transactions; deletions carry only the ID.
type Event struct {
	Kind          EventKind    `json:"kind"`
	TransactionID string       `json:"transactionId,omitempty"`
	Transaction   *Transaction `json:"transaction,omitempty"`
	Timestamp     time.Time    `json:"timestamp"`
}

// NewEvent stamps an event with the current time.
func NewEvent(kind EventKind, tx *Transaction) Event {
	ev := Event{Kind: kind, Timestamp: time.Now().UTC()}
	if tx != nil {
		cp := *tx
		ev.Transaction = &cp
		ev.TransactionID = tx.ID
	}
	return ev
}
