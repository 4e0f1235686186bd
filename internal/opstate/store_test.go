package opstate

import (
	"context"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "opstate_test.db")
	s, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("NewStore(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetMissing(t *testing.T) {
	s := testStore(t)

	val, err := s.Get(context.Background(), "ns", "missing")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if val != "" {
		t.Errorf("Get() = %q, want empty string for missing key", val)
	}
}

func TestSetUpsertDelete(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "ns", "key", "v1"); err != nil {
		t.Fatalf("Set(v1): %v", err)
	}
	if err := s.Set(ctx, "ns", "key", "v2"); err != nil {
		t.Fatalf("Set(v2): %v", err)
	}
	if val, _ := s.Get(ctx, "ns", "key"); val != "v2" {
		t.Errorf("Get() = %q, want v2 after upsert", val)
	}

	if err := s.Delete(ctx, "ns", "key"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if val, _ := s.Get(ctx, "ns", "key"); val != "" {
		t.Errorf("Get() = %q after delete, want empty", val)
	}
	if err := s.Delete(ctx, "ns", "key"); err != nil {
		t.Errorf("Delete(missing): %v", err)
	}
}

func TestNamespaceIsolation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for ns, v := range map[string]string{"alpha": "a", "beta": "b"} {
		if err := s.Set(ctx, ns, "key", v); err != nil {
			t.Fatalf("Set(%s): %v", ns, err)
		}
	}
	list, err := s.List(ctx, "alpha")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list["key"] != "a" {
		t.Errorf("List(alpha) = %v", list)
	}

	empty, err := s.List(ctx, "gamma")
	if err != nil {
		t.Fatalf("List(empty): %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("List(gamma) = %#v, want empty non-nil map", empty)
	}
}

func TestPersistAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()

	s1, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("NewStore(1): %v", err)
	}
	if err := NewCancelFlags(s1).Request(ctx, "sess-1"); err != nil {
		t.Fatalf("Request: %v", err)
	}
	s1.Close()

	s2, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("NewStore(2): %v", err)
	}
	defer s2.Close()

	ok, err := NewCancelFlags(s2).IsRequested(ctx, "sess-1")
	if err != nil || !ok {
		t.Errorf("IsRequested after reopen = %v, %v", ok, err)
	}
}

func TestNewStore_MissingDir(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "no", "such", "dir", "db.sqlite")
	if _, err := NewStore(dbPath); err == nil {
		t.Error("NewStore() should fail when the parent directory is missing")
	}
}

func TestCancelFlags(t *testing.T) {
	flags := NewCancelFlags(testStore(t))
	ctx := context.Background()

	ok, err := flags.IsRequested(ctx, "sess-a")
	if err != nil || ok {
		t.Fatalf("IsRequested before request = %v, %v", ok, err)
	}

	if err := flags.Request(ctx, "sess-a"); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if ok, _ := flags.IsRequested(ctx, "sess-a"); !ok {
		t.Error("IsRequested = false after Request")
	}
	if ok, _ := flags.IsRequested(ctx, "sess-b"); ok {
		t.Error("unrelated session reported as cancelled")
	}

	pending, err := flags.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if _, ok := pending["sess-a"]; !ok || len(pending) != 1 {
		t.Errorf("Pending = %v", pending)
	}

	if err := flags.Clear(ctx, "sess-a"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if ok, _ := flags.IsRequested(ctx, "sess-a"); ok {
		t.Error("IsRequested = true after Clear")
	}
}
