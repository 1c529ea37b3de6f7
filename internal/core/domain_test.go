package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2024-03-05", true},
		{"2024-03-05T10:00:00Z", true},
		{"2024-03-05T10:00:00.000Z", true},
		{"2024-03-05T23:30:00-05:00", true},
		{"2024-03-05garbage", false},
		{"2024-03-05 10:00", false},
		{" 2024-12-31 ", true},
		{"2024-13-01", false},
		{"05/03/2024", false},
		{"", false},
	}
	for i, tc := range cases {
		d, err := ParseDate(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error, got %v", i, d)
		}
		if tc.ok && d.String() != "2024-03-05" && d.String() != "2024-12-31" {
			t.Fatalf("case %d parsed to %s", i, d)
		}
	}
}

func TestExpenseInputValidate(t *testing.T) {
	today := time.Date(2024, time.March, 13, 15, 0, 0, 0, time.UTC)
	good := ExpenseInput{
		Amount:        Cents(100),
		Description:   "lunch",
		Date:          NewDate(2024, time.March, 13),
		Category:      "food",
		PaymentMethod: "cash",
	}
	if err := good.Validate(today); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []struct {
		mutate func(*ExpenseInput)
		want   error
	}{
		{func(in *ExpenseInput) { in.Amount = Cents(0) }, ErrInvalidAmount},
		{func(in *ExpenseInput) { in.Description = "  " }, ErrEmptyDescription},
		{func(in *ExpenseInput) { in.Date = Date{} }, ErrInvalidDate},
		{func(in *ExpenseInput) { in.Date = NewDate(2024, time.March, 14) }, ErrFutureDate},
		{func(in *ExpenseInput) { in.Category = "" }, ErrEmptyCategory},
		{func(in *ExpenseInput) { in.PaymentMethod = "" }, ErrEmptyPaymentMethod},
	}
	for i, tc := range bads {
		in := good
		tc.mutate(&in)
		if err := in.Validate(today); !errors.Is(err, tc.want) {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestExpenseInputNormalize(t *testing.T) {
	in := ExpenseInput{Description: " Lunch AT Work ", Category: "Food", PaymentMethod: "UPI"}.Normalize()
	if in.Description != "lunch at work" || in.Category != "food" || in.PaymentMethod != "upi" {
		t.Fatalf("unexpected normalized input: %+v", in)
	}
}

func TestTransactionJSONShape(t *testing.T) {
	tx := Transaction{
		ID: "t1",
		Expense: Expense{
			ID:            "t1",
			Amount:        Cents(2050),
			Description:   "dinner",
			Date:          NewDate(2024, time.March, 5),
			Category:      "food",
			PaymentMethod: "cash",
		},
		Active: true,
	}
	raw, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"id":"t1","transaction":{"id":"t1","amount":20.5,"description":"dinner","date":"2024-03-05","category":"food","paymentMethod":"cash"},"status":true}`
	if string(raw) != want {
		t.Fatalf("unexpected json:\n got %s\nwant %s", raw, want)
	}
}

func TestLegacyTransactionDecodes(t *testing.T) {
	// Shape written by the browser version: no ids, no payment method.
	raw := `{"transaction":{"amount":20,"description":"lunch","date":"2024-03-05","category":"food"},"status":true}`
	var tx Transaction
	if err := json.Unmarshal([]byte(raw), &tx); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tx.ID != "" || tx.Expense.Amount.Cents != 2000 || !tx.Active || tx.Expense.PaymentMethod != "" {
		t.Fatalf("unexpected decode: %+v", tx)
	}
	if tx.Expense.Date.String() != "2024-03-05" {
		t.Fatalf("unexpected date: %s", tx.Expense.Date)
	}
}
