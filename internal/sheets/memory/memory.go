// Package memory is an in-process TransactionMirror, used when no
// spreadsheet is configured and in tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"expensebook/internal/core"
	"expensebook/internal/sheets"
)

var (
	_ sheets.TransactionMirror = (*Store)(nil)
	_ sheets.TransactionLister = (*Store)(nil)
)

type Store struct {
	mu   sync.Mutex
	rows []core.Transaction
}

func New() *Store {
	return &Store{}
}

// Upsert replaces the row with tx's ID or appends a new one.
func (s *Store) Upsert(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(tx.ID); i >= 0 {
		s.rows[i] = tx
		return nil
	}
	s.rows = append(s.rows, tx)
	return nil
}

func (s *Store) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(id); i >= 0 {
		s.rows = slices.Delete(s.rows, i, i+1)
	}
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = nil
	return nil
}

// List returns a copy of the mirrored rows.
func (s *Store) List(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.rows), nil
}

func (s *Store) index(id string) int {
	return slices.IndexFunc(s.rows, func(tx core.Transaction) bool { return tx.ID == id })
}
