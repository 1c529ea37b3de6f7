package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"expensebook/internal/kv"
)

var _ kv.Store = (*Store)(nil)

// Store keeps values in a map. When created with NewFromFile every
// successful write is also flushed to a JSON snapshot on disk.
type Store struct {
	mu    sync.Mutex
	items map[string][]byte
	path  string
}

func New() *Store {
	return &Store{items: map[string][]byte{}}
}

// NewFromFile loads the snapshot at path if it exists. A missing file
// yields an empty store; an unreadable one is an error.
func NewFromFile(path string) (*Store, error) {
	s := &Store{items: map[string][]byte{}, path: path}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(raw) == 0 {
		return s, nil
	}
	var snapshot map[string]json.RawMessage
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	for k, v := range snapshot {
		s.items[k] = []byte(v)
	}
	return s, nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *Store) SetMany(_ context.Context, entries map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := maps.Clone(s.items)
	for k, v := range entries {
		next[k] = append([]byte(nil), v...)
	}
	if err := s.flush(next); err != nil {
		return err
	}
	s.items = next
	return nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[key]; !ok {
		return nil
	}
	next := maps.Clone(s.items)
	delete(next, key)
	if err := s.flush(next); err != nil {
		return err
	}
	s.items = next
	return nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// flush writes items to the snapshot file through a temp file and rename,
// so readers never observe a partial snapshot.
func (s *Store) flush(items map[string][]byte) error {
	if s.path == "" {
		return nil
	}
	snapshot := make(map[string]json.RawMessage, len(items))
	for k, v := range items {
		if !json.Valid(v) {
			// Keep non-JSON payloads intact as strings.
			quoted, err := json.Marshal(string(v))
			if err != nil {
				return fmt.Errorf("encode %s: %w", k, err)
			}
			v = quoted
		}
		snapshot[k] = v
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
