package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"expensebook/internal/kv"
)

func TestMemoryStoreSetGetRemove(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, ok, err := s.Get(ctx, kv.KeyExpenses); ok || err != nil {
		t.Fatalf("expected missing key, ok=%v err=%v", ok, err)
	}

	err := s.SetMany(ctx, map[string][]byte{
		kv.KeyExpenses:   []byte(`[]`),
		kv.KeyCategories: []byte(`[{"name":"food"}]`),
	})
	if err != nil {
		t.Fatalf("set many: %v", err)
	}
	v, ok, err := s.Get(ctx, kv.KeyCategories)
	if err != nil || !ok || string(v) != `[{"name":"food"}]` {
		t.Fatalf("unexpected get: %q ok=%v err=%v", v, ok, err)
	}

	// Returned slices are copies.
	v[0] = 'X'
	again, _, _ := s.Get(ctx, kv.KeyCategories)
	if again[0] != '[' {
		t.Fatalf("store value mutated through returned slice")
	}

	if err := s.Remove(ctx, kv.KeyCategories); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.Remove(ctx, "missing"); err != nil {
		t.Fatalf("remove missing: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 key left, got %d", s.Len())
	}
}

func TestNewFromFilePersistsSnapshot(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "ledger.json")

	s, err := NewFromFile(path)
	if err != nil {
		t.Fatalf("new from missing file: %v", err)
	}
	if err := s.SetMany(ctx, map[string][]byte{kv.KeyTransactions: []byte(`[{"status":true}]`)}); err != nil {
		t.Fatalf("set many: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected snapshot on disk: %v", err)
	}

	reopened, err := NewFromFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	v, ok, _ := reopened.Get(ctx, kv.KeyTransactions)
	if !ok || string(v) != `[{"status":true}]` {
		t.Fatalf("unexpected reloaded value: %q ok=%v", v, ok)
	}

	if err := reopened.Remove(ctx, kv.KeyTransactions); err != nil {
		t.Fatalf("remove: %v", err)
	}
	final, _ := NewFromFile(path)
	if final.Len() != 0 {
		t.Fatalf("expected empty snapshot after remove, got %d keys", final.Len())
	}
}

func TestNewFromFileRejectsCorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewFromFile(path); err == nil {
		t.Fatalf("expected error for corrupt snapshot")
	}
}
