package ledger

import (
	"context"
	"errors"
	"time"

	"expensebook/internal/core"
	applog "expensebook/internal/log"
)

// ErrNotifierQueueFull is returned by QueuedNotifier when its buffer is full.
var ErrNotifierQueueFull = errors.New("notifier queue full")

const drainTimeout = 10 * time.Second

// QueuedNotifier buffers events and hands them to the wrapped notifier from
// Run, in the order they were queued. PublishEvent never blocks.
type QueuedNotifier struct {
	next   Notifier
	events chan core.Event
	logger *applog.Logger
}

func NewQueuedNotifier(next Notifier, size int, logger *applog.Logger) *QueuedNotifier {
	if size <= 0 {
		size = 256
	}
	if logger == nil {
		logger = applog.Default(applog.ComponentLedger)
	}
	return &QueuedNotifier{
		next:   next,
		events: make(chan core.Event, size),
		logger: logger,
	}
}

func (q *QueuedNotifier) PublishEvent(_ context.Context, ev core.Event) error {
	select {
	case q.events <- ev:
		return nil
	default:
		return ErrNotifierQueueFull
	}
}

// Run publishes queued events until ctx is done, then flushes whatever is
// still buffered under a short deadline.
func (q *QueuedNotifier) Run(ctx context.Context) error {
	pubCtx := context.WithoutCancel(ctx)
	for {
		select {
		case ev := <-q.events:
			q.publish(pubCtx, ev)
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(pubCtx, drainTimeout)
			defer cancel()
			q.drain(drainCtx)
			return nil
		}
	}
}

func (q *QueuedNotifier) drain(ctx context.Context) {
	for {
		select {
		case ev := <-q.events:
			q.publish(ctx, ev)
		default:
			return
		}
	}
}

func (q *QueuedNotifier) publish(ctx context.Context, ev core.Event) {
	if err := q.next.PublishEvent(ctx, ev); err != nil {
		q.logger.WarnContext(ctx, "Failed to publish ledger event",
			applog.FieldOperation, applog.OpPublish,
			applog.FieldEventKind, string(ev.Kind),
			applog.FieldTransactionID, ev.TransactionID,
			applog.FieldError, err.Error())
	}
}
