package core

import (
	"errors"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Expense struct {
		ID            string `json:"id,omitempty"`
		Amount        Money  `json:"amount"`
		Description   string `json:"description"`
		Date          Date   `json:"date"`
		Category      string `json:"category"`
		PaymentMethod string `json:"paymentMethod,omitempty"`
	}

	// Category buckets expenses under a budget. Spent is a running total
	// of the active expenses filed under Name.
	Category struct {
		Name        string `json:"name"`
		BudgetLimit Money  `json:"budgetLimit"`
		Spent       Money  `json:"amount"`
	}

	PaymentMethod struct {
		Type    string `json:"type"`
		Details string `json:"details"`
		Spent   Money  `json:"amount"`
	}

	// Transaction is the log entry recorded for every added expense.
	// Active reports whether the expense was successfully recorded.
	Transaction struct {
		ID      string  `json:"id,omitempty"`
		Expense Expense `json:"transaction"`
		Active  bool    `json:"status"`
	}

	// ExpenseInput carries the caller-supplied fields of an expense.
	ExpenseInput struct {
		Amount        Money
		Description   string
		Date          Date
		Category      string
		PaymentMethod string
	}
)

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrFutureDate         = errors.New("date must be today or earlier")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrEmptyCategory      = errors.New("empty category")
	ErrEmptyPaymentMethod = errors.New("empty payment method")
)

// NewDate creates a new Date from year, month, day
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day, keeping t's wall clock date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a date string in YYYY-MM-DD format. An RFC 3339
// timestamp is also accepted and truncated to its date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(dateLayout) {
		// Full RFC 3339 timestamps keep the calendar date they were written with.
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return Date{}, ErrInvalidDate
		}
		return DateOf(t), nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Normalize lowercases the text fields the ledger keys on.
func (in ExpenseInput) Normalize() ExpenseInput {
	in.Description = strings.ToLower(strings.TrimSpace(in.Description))
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	in.PaymentMethod = strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	return in
}

// Validate applies the presentation-layer rules: every field present,
// a positive amount and a date no later than today.
func (in ExpenseInput) Validate(today time.Time) error {
	if err := in.Amount.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(in.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(in.Description) > 200 {
		return ErrDescriptionTooLong
	}
	if err := in.Date.Validate(); err != nil {
		return ErrInvalidDate
	}
	if in.Date.After(DateOf(today).Time) {
		return ErrFutureDate
	}
	if strings.TrimSpace(in.Category) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(in.PaymentMethod) == "" {
		return ErrEmptyPaymentMethod
	}
	return nil
}

// Apply overwrites the expense fields with the input, keeping the ID.
func (e *Expense) Apply(in ExpenseInput) {
	e.Amount = in.Amount
	e.Description = in.Description
	e.Date = in.Date
	e.Category = in.Category
	e.PaymentMethod = in.PaymentMethod
}

// Over reports whether spending has reached the budget limit.
func (c Category) Over() bool {
	return c.Spent.Cents >= c.BudgetLimit.Cents
}
