package google

import (
	"fmt"
	"strconv"
	"strings"

	"expensebook/internal/core"
)

// rowValues lays a transaction out as columns A..G.
func rowValues(tx core.Transaction) []any {
	e := tx.Expense
	return []any{
		tx.ID,
		e.Date.String(),
		e.Amount.String(),
		e.Description,
		e.Category,
		e.PaymentMethod,
		strings.ToUpper(strconv.FormatBool(tx.Active)),
	}
}

// parseRow is the inverse of rowValues. Trailing empty cells may be
// omitted by the API.
func parseRow(row []any) (core.Transaction, error) {
	cols := toStrings(row)
	if len(cols) < 5 {
		return core.Transaction{}, fmt.Errorf("expected at least 5 columns, got %d", len(cols))
	}
	id := safeGet(cols, 0)
	if id == "" {
		return core.Transaction{}, fmt.Errorf("missing id")
	}
	date, err := core.ParseDate(safeGet(cols, 1))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("row %s: %w", id, err)
	}
	amount, err := core.ParseMoney(safeGet(cols, 2))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("row %s: %w", id, err)
	}
	active, _ := strconv.ParseBool(strings.ToLower(safeGet(cols, 6)))

	return core.Transaction{
		ID: id,
		Expense: core.Expense{
			ID:            id,
			Amount:        amount,
			Description:   safeGet(cols, 3),
			Date:          date,
			Category:      safeGet(cols, 4),
			PaymentMethod: safeGet(cols, 5),
		},
		Active: active,
	}, nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
