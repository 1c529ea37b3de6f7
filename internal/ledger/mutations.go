package ledger

import (
	"context"
	"errors"
	"fmt"

	"expensebook/internal/core"
	"expensebook/internal/kv"
	applog "expensebook/internal/log"
)

// Outcome is the result of Add.
type Outcome int

const (
	OutcomeAdded Outcome = iota
	OutcomeCancelled
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAdded:
		return "added"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "failed"
	}
}

// Confirmer is asked synchronously whether to proceed with an expense that
// meets or exceeds its category budget.
type Confirmer func(BudgetWarning) bool

// AddResult reports what Add did. Warning is set whenever the budget
// pre-check fired, whether or not the caller confirmed.
type AddResult struct {
	Outcome     Outcome
	Transaction core.Transaction
	Warning     *BudgetWarning
}

// Add records a new expense as an active transaction. Text fields are
// lowercased. When the expense would meet or exceed its category budget,
// confirm decides whether to continue; a nil confirm declines.
func (l *Ledger) Add(ctx context.Context, in core.ExpenseInput, confirm Confirmer) (AddResult, error) {
	in = in.Normalize()

	var res AddResult
	if w := l.CheckBudgetOnAdd(in.Category, in.Amount); w != nil {
		res.Warning = w
		if confirm == nil || !confirm(*w) {
			res.Outcome = OutcomeCancelled
			return res, nil
		}
	}

	exp := core.Expense{ID: l.newID()}
	exp.Apply(in)
	tx := core.Transaction{ID: exp.ID, Expense: exp, Active: true}

	err := l.commit(ctx, applog.OpAdd, func() error {
		l.transactions = append(l.transactions, tx)
		l.credit(exp.Category, exp.PaymentMethod, exp.Amount)
		l.expenses = append(l.expenses, exp)
		return nil
	})
	if err != nil {
		res.Outcome = OutcomeFailed
		return res, err
	}

	res.Outcome = OutcomeAdded
	res.Transaction = tx
	applog.NewStructuredLogger(l.logger).LogExpenseAdded(ctx, tx.ID, exp.Description, exp.Amount.Cents, exp.Category, exp.PaymentMethod)
	l.notify(ctx, core.EventExpenseAdded, tx.ID, &tx)
	return res, nil
}

// activeTransaction returns the index of the active transaction id.
func (l *Ledger) activeTransaction(id string) (int, error) {
	i := l.transactionIndex(id)
	if i < 0 {
		return -1, fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
	}
	if !l.transactions[i].Active {
		return -1, fmt.Errorf("%w: %s", ErrTransactionInactive, id)
	}
	return i, nil
}

// EditTransaction replaces the expense of an active transaction and moves
// its amount between the old and new category and payment method.
func (l *Ledger) EditTransaction(ctx context.Context, id string, in core.ExpenseInput) (core.Transaction, error) {
	i, err := l.activeTransaction(id)
	if err != nil {
		return core.Transaction{}, err
	}
	in = in.Normalize()

	err = l.commit(ctx, applog.OpEdit, func() error {
		old := l.transactions[i].Expense
		l.debit(old.Category, old.PaymentMethod, old.Amount)

		l.transactions[i].Expense.Apply(in)
		if j := l.expenseIndex(id); j >= 0 {
			l.expenses[j].Apply(in)
		}
		l.credit(in.Category, in.PaymentMethod, in.Amount)
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	tx := l.transactions[i]
	l.logger.InfoContext(ctx, "Transaction edited",
		applog.FieldTransactionID, id,
		applog.FieldAmountCents, tx.Expense.Amount.Cents,
		applog.FieldCategory, tx.Expense.Category)
	l.notify(ctx, core.EventTransactionEdited, id, &tx)
	return tx, nil
}

// DeleteTransaction removes an active transaction and its expense.
func (l *Ledger) DeleteTransaction(ctx context.Context, id string) error {
	i, err := l.activeTransaction(id)
	if err != nil {
		return err
	}

	err = l.commit(ctx, applog.OpDelete, func() error {
		exp := l.transactions[i].Expense
		if j := l.expenseIndex(id); j >= 0 {
			l.expenses = append(l.expenses[:j:j], l.expenses[j+1:]...)
		}
		l.transactions = append(l.transactions[:i:i], l.transactions[i+1:]...)
		l.debit(exp.Category, exp.PaymentMethod, exp.Amount)
		return nil
	})
	if err != nil {
		return err
	}

	l.logger.InfoContext(ctx, "Transaction deleted", applog.FieldTransactionID, id)
	l.notify(ctx, core.EventTransactionDeleted, id, nil)
	return nil
}

// DeleteAll empties every collection and removes the persisted keys. The
// returned error joins every failed removal.
func (l *Ledger) DeleteAll(ctx context.Context) error {
	l.state = state{}
	l.reports.Purge()

	var errs []error
	for _, key := range kv.Keys {
		if err := l.store.Remove(ctx, key); err != nil {
			err = fmt.Errorf("%w: remove %s: %w", ErrPersistence, key, err)
			l.fail(ctx, applog.OpDeleteAll, err)
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	l.logger.InfoContext(ctx, "Ledger cleared")
	l.notify(ctx, core.EventLedgerCleared, "", nil)
	return nil
}

// AddCategory appends a category with nothing spent. It neither checks
// for duplicates nor persists; see CreateCategory.
func (l *Ledger) AddCategory(name string, budgetLimit core.Money) {
	l.categories = append(l.categories, core.Category{Name: name, BudgetLimit: budgetLimit})
	l.reports.Purge()
}

// CreateCategory adds and persists a uniquely named category.
func (l *Ledger) CreateCategory(ctx context.Context, name string, budgetLimit core.Money) error {
	name = normalizeName(name)
	if name == "" {
		return core.ErrEmptyCategory
	}
	if budgetLimit.Cents <= 0 {
		return ErrInvalidBudgetLimit
	}
	if l.categoryIndex(name) >= 0 {
		return fmt.Errorf("%w: %s", ErrCategoryExists, name)
	}
	return l.commit(ctx, applog.OpCategory, func() error {
		l.AddCategory(name, budgetLimit)
		return nil
	})
}

// SetBudgetLimit changes the limit of an existing category.
func (l *Ledger) SetBudgetLimit(ctx context.Context, name string, budgetLimit core.Money) error {
	name = normalizeName(name)
	if budgetLimit.Cents <= 0 {
		return ErrInvalidBudgetLimit
	}
	i := l.categoryIndex(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrCategoryNotFound, name)
	}
	return l.commit(ctx, applog.OpCategory, func() error {
		l.categories[i].BudgetLimit = budgetLimit
		return nil
	})
}

// SetPaymentDetails updates the free-form details of a payment method.
func (l *Ledger) SetPaymentDetails(ctx context.Context, typ, details string) error {
	typ = normalizeName(typ)
	i := l.paymentIndex(typ)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrPaymentMethodNotFound, typ)
	}
	return l.commit(ctx, applog.OpPayment, func() error {
		l.paymentMethods[i].Details = details
		return nil
	})
}

// Reconcile recomputes every category and payment method accumulator from
// the active transactions and persists the result.
func (l *Ledger) Reconcile(ctx context.Context) error {
	return l.commit(ctx, applog.OpReconcile, func() error {
		for i := range l.categories {
			l.categories[i].Spent = core.Money{}
		}
		for i := range l.paymentMethods {
			l.paymentMethods[i].Spent = core.Money{}
		}
		for _, tx := range l.transactions {
			if tx.Active {
				l.credit(tx.Expense.Category, tx.Expense.PaymentMethod, tx.Expense.Amount)
			}
		}
		return nil
	})
}
