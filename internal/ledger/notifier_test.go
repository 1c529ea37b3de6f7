package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"expensebook/internal/core"
	"expensebook/internal/kv/memory"
)

// gatedNotifier blocks every publish until gate is closed.
type gatedNotifier struct {
	gate chan struct{}

	mu     sync.Mutex
	events []core.Event
}

func (g *gatedNotifier) PublishEvent(ctx context.Context, ev core.Event) error {
	select {
	case <-g.gate:
	case <-ctx.Done():
		return ctx.Err()
	}
	g.mu.Lock()
	g.events = append(g.events, ev)
	g.mu.Unlock()
	return nil
}

func (g *gatedNotifier) kinds() []core.EventKind {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []core.EventKind
	for _, ev := range g.events {
		out = append(out, ev.Kind)
	}
	return out
}

func TestQueuedNotifierNeverBlocksMutations(t *testing.T) {
	next := &gatedNotifier{gate: make(chan struct{})}
	q := NewQueuedNotifier(next, 2, nil)
	l := newTestLedger(t, memory.New(), WithNotifier(q))

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx := context.Background()
		res, err := l.Add(ctx, input(5_00, "tea", "2024-03-01", "food", "cash"), confirmYes)
		if err != nil {
			t.Error(err)
			return
		}
		if err := l.DeleteTransaction(ctx, res.Transaction.ID); err != nil {
			t.Error(err)
		}
		// The buffer is full; the event is dropped and the mutation still succeeds.
		if _, err := l.Add(ctx, input(6_00, "cake", "2024-03-01", "food", "cash"), confirmYes); err != nil {
			t.Error(err)
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("mutations blocked on the notifier")
	}

	if err := q.PublishEvent(context.Background(), core.Event{Kind: core.EventLedgerCleared}); !errors.Is(err, ErrNotifierQueueFull) {
		t.Fatalf("expected ErrNotifierQueueFull, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- q.Run(ctx) }()
	close(next.gate)

	deadline := time.Now().Add(2 * time.Second)
	for len(next.kinds()) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("events not delivered, got %v", next.kinds())
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-runDone; err != nil {
		t.Fatalf("Run() = %v", err)
	}

	got := next.kinds()
	want := []core.EventKind{core.EventExpenseAdded, core.EventTransactionDeleted}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestQueuedNotifierDrainsOnStop(t *testing.T) {
	next := &gatedNotifier{gate: make(chan struct{})}
	close(next.gate)
	q := NewQueuedNotifier(next, 4, nil)

	for i := 0; i < 3; i++ {
		if err := q.PublishEvent(context.Background(), core.Event{Kind: core.EventExpenseAdded}); err != nil {
			t.Fatal(err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Run(ctx); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if n := len(next.kinds()); n != 3 {
		t.Fatalf("delivered %d events, want 3", n)
	}
}
