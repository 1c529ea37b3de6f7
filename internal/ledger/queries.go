package ledger

import (
	"maps"
	"slices"
	"strings"

	"expensebook/internal/core"
)

const (
	StatusExceeded = "exceeded"
	StatusReached  = "reached"
)

// BudgetAlert describes a category whose spending has reached its limit.
type BudgetAlert struct {
	Category   string     `json:"category"`
	Spent      core.Money `json:"spent"`
	Limit      core.Money `json:"limit"`
	Percentage float64    `json:"percentage"`
	Status     string     `json:"status"`
}

// BudgetWarning is raised before adding an expense that would bring its
// category to or past the limit.
type BudgetWarning struct {
	Category   string     `json:"category"`
	Spent      core.Money `json:"spent"`
	Projected  core.Money `json:"projected"`
	Limit      core.Money `json:"limit"`
	Percentage float64    `json:"percentage"`
	Status     string     `json:"status"`
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func budgetStatus(spent, limit core.Money) string {
	if spent.Cents > limit.Cents {
		return StatusExceeded
	}
	return StatusReached
}

// TotalAmount sums every recorded expense.
func (l *Ledger) TotalAmount() core.Money {
	var total core.Money
	for _, e := range l.expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// CategoriesReport maps each category name to its current spend.
func (l *Ledger) CategoriesReport() map[string]core.Money {
	report := make(map[string]core.Money, len(l.categories))
	for _, c := range l.categories {
		report[c.Name] = c.Spent
	}
	return report
}

// TransactionLog returns every transaction in insertion order, inactive
// ones included.
func (l *Ledger) TransactionLog() []core.Transaction {
	return slices.Clone(l.transactions)
}

func (l *Ledger) Expenses() []core.Expense {
	return slices.Clone(l.expenses)
}

func (l *Ledger) Categories() []core.Category {
	return slices.Clone(l.categories)
}

func (l *Ledger) PaymentMethods() []core.PaymentMethod {
	return slices.Clone(l.paymentMethods)
}

// Transaction looks up a transaction by id.
func (l *Ledger) Transaction(id string) (core.Transaction, bool) {
	i := l.transactionIndex(id)
	if i < 0 {
		return core.Transaction{}, false
	}
	return l.transactions[i], true
}

// BudgetAlerts lists the categories whose spend is at or above their
// limit. Categories without a positive limit are skipped.
func (l *Ledger) BudgetAlerts() []BudgetAlert {
	var alerts []BudgetAlert
	for _, c := range l.categories {
		if c.BudgetLimit.Cents <= 0 || !c.Over() {
			continue
		}
		alerts = append(alerts, BudgetAlert{
			Category:   c.Name,
			Spent:      c.Spent,
			Limit:      c.BudgetLimit,
			Percentage: core.Percent(c.Spent, c.BudgetLimit),
			Status:     budgetStatus(c.Spent, c.BudgetLimit),
		})
	}
	return alerts
}

// CheckBudgetOnAdd returns a warning when adding amount to category would
// meet or exceed its limit, and nil when the category does not exist or
// the projected spend stays below the limit.
func (l *Ledger) CheckBudgetOnAdd(category string, amount core.Money) *BudgetWarning {
	i := l.categoryIndex(normalizeName(category))
	if i < 0 {
		return nil
	}
	c := l.categories[i]
	projected := c.Spent.Add(amount)
	if projected.Cents < c.BudgetLimit.Cents {
		return nil
	}
	return &BudgetWarning{
		Category:   c.Name,
		Spent:      c.Spent,
		Projected:  projected,
		Limit:      c.BudgetLimit,
		Percentage: core.Percent(projected, c.BudgetLimit),
		Status:     budgetStatus(projected, c.BudgetLimit),
	}
}

func cloneBreakdown(m map[string]core.Money) map[string]core.Money {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}
