// Package kv defines the key-value persistence port the ledger writes to.
package kv

import "context"

// Logical keys owned by the ledger. Each holds a JSON array.
const (
	KeyExpenses       = "expenses"
	KeyCategories     = "categories"
	KeyPaymentMethods = "paymentmethods"
	KeyTransactions   = "transactions"
)

// Keys lists every ledger key in save order.
var Keys = []string{KeyExpenses, KeyCategories, KeyPaymentMethods, KeyTransactions}

// Store is a byte store addressed by string keys. Every call may fail.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// SetMany writes all entries atomically: either every entry is stored
	// or none is.
	SetMany(ctx context.Context, entries map[string][]byte) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}
