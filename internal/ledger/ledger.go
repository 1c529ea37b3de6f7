// Package ledger keeps the expense, category, payment method and
// transaction collections consistent and answers reporting queries over
// them. A Ledger is not safe for concurrent use.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"expensebook/internal/cache"
	"expensebook/internal/core"
	"expensebook/internal/kv"
	applog "expensebook/internal/log"
)

// DefaultBudgetLimit applies to categories created implicitly.
var DefaultBudgetLimit = core.Cents(100_00)

var (
	defaultCategories     = []string{"food", "commute", "entertainment", "utility"}
	defaultPaymentMethods = []string{"cash", "upi"}
)

// Notifier receives an event after every committed mutation.
type Notifier interface {
	PublishEvent(ctx context.Context, ev core.Event) error
}

type state struct {
	expenses       []core.Expense
	categories     []core.Category
	paymentMethods []core.PaymentMethod
	transactions   []core.Transaction
}

func (s state) clone() state {
	return state{
		expenses:       slices.Clone(s.expenses),
		categories:     slices.Clone(s.categories),
		paymentMethods: slices.Clone(s.paymentMethods),
		transactions:   slices.Clone(s.transactions),
	}
}

type Ledger struct {
	store kv.Store
	state

	errs         []ErrorEntry
	now          func() time.Time
	newID        func() string
	defaultLimit core.Money
	reports      cache.Cache[MonthlyReport]
	notifier     Notifier
	logger       *applog.Logger
}

type Option func(*Ledger)

// WithClock replaces time.Now for reports that default to the current date.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithNotifier(n Notifier) Option {
	return func(l *Ledger) { l.notifier = n }
}

func WithLogger(logger *applog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithDefaultBudgetLimit sets the limit given to implicitly created
// categories. Non-positive values are ignored.
func WithDefaultBudgetLimit(limit core.Money) Option {
	return func(l *Ledger) {
		if limit.Cents > 0 {
			l.defaultLimit = limit
		}
	}
}

// WithReportCache memoizes monthly reports in c.
func WithReportCache(c cache.Cache[MonthlyReport]) Option {
	return func(l *Ledger) { l.reports = c }
}

func WithIDGenerator(gen func() string) Option {
	return func(l *Ledger) { l.newID = gen }
}

// New loads the persisted collections from store and merges in the default
// categories and payment methods that are missing. Read and decode
// failures are recorded in the error log and leave the affected
// collection empty.
func New(ctx context.Context, store kv.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:        store,
		now:          time.Now,
		newID:        uuid.NewString,
		defaultLimit: DefaultBudgetLimit,
		reports:      cache.NewLRUCache[MonthlyReport](12, time.Hour),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = applog.Default(applog.ComponentLedger)
	}

	load(ctx, l, kv.KeyExpenses, &l.expenses)
	load(ctx, l, kv.KeyCategories, &l.categories)
	load(ctx, l, kv.KeyPaymentMethods, &l.paymentMethods)
	load(ctx, l, kv.KeyTransactions, &l.transactions)

	l.assignMissingIDs()
	l.mergeDefaults()
	return l
}

func load[T any](ctx context.Context, l *Ledger, key string, dst *[]T) {
	raw, ok, err := l.store.Get(ctx, key)
	if err != nil {
		l.fail(ctx, applog.OpLoad, fmt.Errorf("%w: read %s: %w", ErrPersistence, key, err))
		return
	}
	if !ok || len(raw) == 0 {
		return
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		l.fail(ctx, applog.OpLoad, fmt.Errorf("%w: %s: %w", ErrParse, key, err))
		return
	}
	*dst = items
}

// assignMissingIDs gives ids to records written before ids existed. Each
// id-less transaction is paired with the first unpaired equal expense so
// both copies keep sharing an id.
func (l *Ledger) assignMissingIDs() {
	paired := make([]bool, len(l.expenses))
	for i := range l.expenses {
		paired[i] = l.expenses[i].ID != ""
	}

	for i := range l.transactions {
		tx := &l.transactions[i]
		if tx.ID == "" {
			tx.ID = tx.Expense.ID
		}
		if tx.ID == "" {
			tx.ID = l.newID()
			for j := range l.expenses {
				if !paired[j] && sameExpense(l.expenses[j], tx.Expense) {
					l.expenses[j].ID = tx.ID
					paired[j] = true
					break
				}
			}
		}
		tx.Expense.ID = tx.ID
	}

	for i := range l.expenses {
		if l.expenses[i].ID == "" {
			l.expenses[i].ID = l.newID()
		}
	}
}

func sameExpense(a, b core.Expense) bool {
	return a.Amount == b.Amount &&
		a.Description == b.Description &&
		a.Date.Equal(b.Date.Time) &&
		a.Category == b.Category
}

func (l *Ledger) mergeDefaults() {
	for _, name := range defaultCategories {
		if l.categoryIndex(name) < 0 {
			l.categories = append(l.categories, core.Category{Name: name, BudgetLimit: l.defaultLimit})
		}
	}
	for _, typ := range defaultPaymentMethods {
		if l.paymentIndex(typ) < 0 {
			l.paymentMethods = append(l.paymentMethods, core.PaymentMethod{Type: typ, Details: typ})
		}
	}
}

// commit applies mutate to the in-memory state and persists all four
// collections in one batch. When the save fails the previous state is
// restored and the error, wrapping ErrPersistence, is recorded.
func (l *Ledger) commit(ctx context.Context, op string, mutate func() error) error {
	snapshot := l.state.clone()
	if err := mutate(); err != nil {
		l.state = snapshot
		return err
	}
	l.reports.Purge()

	if err := l.save(ctx); err != nil {
		l.state = snapshot
		err = fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
		l.fail(ctx, op, err)
		return err
	}
	return nil
}

func (l *Ledger) save(ctx context.Context) error {
	entries := make(map[string][]byte, len(kv.Keys))
	for key, v := range map[string]any{
		kv.KeyExpenses:       nonNil(l.expenses),
		kv.KeyCategories:     nonNil(l.categories),
		kv.KeyPaymentMethods: nonNil(l.paymentMethods),
		kv.KeyTransactions:   nonNil(l.transactions),
	} {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		entries[key] = raw
	}
	return l.store.SetMany(ctx, entries)
}

// nonNil keeps empty collections encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (l *Ledger) fail(ctx context.Context, op string, err error) {
	l.recordError(op, err)
	l.logger.ErrorContext(ctx, "Ledger operation failed", applog.NewFields().
		WithOperation(op).
		WithError(err).
		ToSlice()...)
}

func (l *Ledger) notify(ctx context.Context, kind core.EventKind, txID string, tx *core.Transaction) {
	if l.notifier == nil {
		return
	}
	ev := core.NewEvent(kind, tx)
	if tx == nil {
		ev.TransactionID = txID
	}
	if err := l.notifier.PublishEvent(ctx, ev); err != nil {
		l.logger.WarnContext(ctx, "Failed to publish ledger event",
			applog.FieldEventKind, string(kind),
			applog.FieldTransactionID, ev.TransactionID,
			applog.FieldError, err.Error())
	}
}

func (l *Ledger) categoryIndex(name string) int {
	return slices.IndexFunc(l.categories, func(c core.Category) bool { return c.Name == name })
}

func (l *Ledger) paymentIndex(typ string) int {
	return slices.IndexFunc(l.paymentMethods, func(p core.PaymentMethod) bool { return p.Type == typ })
}

func (l *Ledger) transactionIndex(id string) int {
	return slices.IndexFunc(l.transactions, func(t core.Transaction) bool { return t.ID == id })
}

func (l *Ledger) expenseIndex(id string) int {
	return slices.IndexFunc(l.expenses, func(e core.Expense) bool { return e.ID == id })
}

// credit adds amount to the named category and payment method, creating
// either when missing. An empty payment method is left unattributed.
func (l *Ledger) credit(category, paymentMethod string, amount core.Money) {
	i := l.categoryIndex(category)
	if i < 0 {
		l.categories = append(l.categories, core.Category{Name: category, BudgetLimit: l.defaultLimit})
		i = len(l.categories) - 1
	}
	l.categories[i].Spent = l.categories[i].Spent.Add(amount)

	if paymentMethod == "" {
		return
	}
	j := l.paymentIndex(paymentMethod)
	if j < 0 {
		l.paymentMethods = append(l.paymentMethods, core.PaymentMethod{Type: paymentMethod, Details: paymentMethod})
		j = len(l.paymentMethods) - 1
	}
	l.paymentMethods[j].Spent = l.paymentMethods[j].Spent.Add(amount)
}

func (l *Ledger) debit(category, paymentMethod string, amount core.Money) {
	if i := l.categoryIndex(category); i >= 0 {
		l.categories[i].Spent = l.categories[i].Spent.Sub(amount)
	}
	if paymentMethod == "" {
		return
	}
	if j := l.paymentIndex(paymentMethod); j >= 0 {
		l.paymentMethods[j].Spent = l.paymentMethods[j].Spent.Sub(amount)
	}
}
