package worker

import (
	"context"
	"fmt"
	"sync"

	"expensebook/internal/core"
	applog "expensebook/internal/log"
	"expensebook/internal/sheets"
)

// SyncWorker applies ledger change events to a transaction mirror. Events
// and resyncs are serialized so a resync never overwrites an event applied
// after its snapshot was read.
type SyncWorker struct {
	mu     sync.Mutex
	mirror sheets.TransactionMirror
	logger *applog.Logger
}

// LoadFunc reads the current transaction log from the ledger store.
type LoadFunc func(ctx context.Context) ([]core.Transaction, error)

func NewSyncWorker(mirror sheets.TransactionMirror) *SyncWorker {
	return &SyncWorker{
		mirror: mirror,
		logger: applog.Default(applog.ComponentWorker),
	}
}

// HandleEvent processes a single ledger event from AMQP. A returned error
// makes the consumer requeue the message.
func (w *SyncWorker) HandleEvent(ctx context.Context, ev core.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.logger.InfoContext(ctx, "Processing ledger event",
		applog.FieldEventKind, string(ev.Kind),
		applog.FieldTransactionID, ev.TransactionID)

	var err error
	switch ev.Kind {
	case core.EventExpenseAdded, core.EventTransactionEdited:
		if ev.Transaction == nil {
			return fmt.Errorf("%s event without transaction", ev.Kind)
		}
		err = w.mirror.Upsert(ctx, *ev.Transaction)
	case core.EventTransactionDeleted:
		err = w.mirror.Remove(ctx, ev.TransactionID)
	case core.EventLedgerCleared:
		err = w.mirror.Clear(ctx)
	default:
		w.logger.WarnContext(ctx, "Ignoring unknown ledger event", applog.FieldEventKind, string(ev.Kind))
		return nil
	}
	if err != nil {
		return fmt.Errorf("sync %s %s: %w", ev.Kind, ev.TransactionID, err)
	}
	return nil
}

// StartupSync rewrites the mirror from the transaction log returned by
// load. It recovers from events missed while the worker was down. The log
// is loaded while events are held back.
func (w *SyncWorker) StartupSync(ctx context.Context, load LoadFunc) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	txs, err := load(ctx)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}
	if err := w.mirror.Clear(ctx); err != nil {
		return fmt.Errorf("clear mirror: %w", err)
	}

	successCount := 0
	errorCount := 0
	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.mirror.Upsert(ctx, tx); err != nil {
			w.logger.ErrorContext(ctx, "Failed to sync transaction on startup",
				applog.FieldTransactionID, tx.ID,
				applog.FieldError, err.Error())
			errorCount++
			continue
		}
		successCount++
	}

	w.logger.InfoContext(ctx, "Startup sync completed",
		"total", len(txs),
		"success", successCount,
		"errors", errorCount)

	if errorCount > 0 {
		return fmt.Errorf("startup sync: %d of %d transactions failed", errorCount, len(txs))
	}
	return nil
}
