package sheets

import (
	"context"

	"expensebook/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionMirror keeps an external copy of the transaction log,
	// one row per transaction keyed by ID.
	TransactionMirror interface {
		// Upsert replaces the row with the transaction's ID or appends one.
		Upsert(ctx context.Context, tx core.Transaction) error
		// Remove deletes the row for id. A missing row is not an error.
		Remove(ctx context.Context, id string) error
		// Clear drops every transaction row.
		Clear(ctx context.Context) error
	}

	// TransactionLister reads the mirrored rows back in sheet order.
	TransactionLister interface {
		List(ctx context.Context) ([]core.Transaction, error)
	}
)
