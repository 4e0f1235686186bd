package session

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/nugget/reactor/internal/llm"
)

// store is the behaviour shared by every session store.
type store interface {
	Save(context.Context, *Session) error
	Load(context.Context, string) (*Session, error)
	List(context.Context, int) ([]Summary, error)
}

func newModerncStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s, err := NewSQLiteStoreDB(db)
	if err != nil {
		t.Fatalf("NewSQLiteStoreDB: %v", err)
	}
	return s
}

func runStoreContract(t *testing.T, st store) {
	ctx := context.Background()

	t.Run("load missing", func(t *testing.T) {
		if _, err := st.Load(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Load(missing) = %v, want ErrNotFound", err)
		}
	})

	t.Run("save overwrites", func(t *testing.T) {
		s := New("overwrite", 100, "sys")
		if err := st.Save(ctx, s); err != nil {
			t.Fatalf("Save: %v", err)
		}
		s.Append(llm.RoleUser, "more")
		s.Usage.Add(3, 4)
		_ = s.Fail()
		if err := st.Save(ctx, s); err != nil {
			t.Fatalf("Save again: %v", err)
		}

		got, err := st.Load(ctx, s.ID)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if got.Status != StatusFailed || len(got.History) != 2 || got.Usage.TotalTokens != 7 {
			t.Errorf("loaded = %+v", got.Summarize())
		}
	})

	t.Run("list newest first", func(t *testing.T) {
		older := New("older", 10, "sys")
		newer := New("newer", 10, "sys")
		older.UpdatedAt = time.Now().Add(time.Hour).UTC()
		newer.UpdatedAt = time.Now().Add(2 * time.Hour).UTC()
		for _, s := range []*Session{older, newer} {
			if err := st.Save(ctx, s); err != nil {
				t.Fatalf("Save: %v", err)
			}
		}

		list, err := st.List(ctx, 2)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("List len = %d, want 2", len(list))
		}
		if list[0].Goal != "newer" || list[1].Goal != "older" {
			t.Errorf("List order = %q, %q", list[0].Goal, list[1].Goal)
		}
		if list[0].Entries != 1 || list[0].Status != StatusRunning {
			t.Errorf("summary = %+v", list[0])
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestMemoryStore_SaveCopies(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	s := New("g", 10, "sys")
	_ = st.Save(ctx, s)
	s.Append(llm.RoleUser, "after save")

	got, _ := st.Load(ctx, s.ID)
	if len(got.History) != 1 {
		t.Errorf("stored snapshot changed with the live session: %d entries", len(got.History))
	}
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, newModerncStore(t))
}

func TestSQLiteStore_File(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/sessions.db"

	st, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	s := New("persisted", 10, "sys")
	if err := st.Save(ctx, s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	st.Close()

	st, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	got, err := st.Load(ctx, s.ID)
	if err != nil {
		t.Fatalf("Load after reopen: %v", err)
	}
	if got.Goal() != "persisted" {
		t.Errorf("Goal = %q", got.Goal())
	}
}
