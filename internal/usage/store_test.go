package usage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "usage_test.db")
	s, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("NewStore(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecord_And_Summary(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	recs := []Record{
		{Timestamp: now, SessionID: "sess-1", Iteration: 0, Model: "qwen3:4b", PromptTokens: 1000, CompletionTokens: 200},
		{Timestamp: now, SessionID: "sess-1", Iteration: 1, Model: "qwen3:4b", PromptTokens: 1500, CompletionTokens: 300},
		{Timestamp: now, SessionID: "sess-2", Iteration: 0, Model: "gpt-4o-mini", Role: RoleDelegate, PromptTokens: 400, CompletionTokens: 100},
	}
	for _, rec := range recs {
		if err := s.Record(ctx, rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	sum, err := s.Summary(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalRecords != 3 {
		t.Errorf("TotalRecords = %d, want 3", sum.TotalRecords)
	}
	if sum.TotalPromptTokens != 2900 {
		t.Errorf("TotalPromptTokens = %d, want 2900", sum.TotalPromptTokens)
	}
	if sum.TotalCompletionTokens != 600 {
		t.Errorf("TotalCompletionTokens = %d, want 600", sum.TotalCompletionTokens)
	}
	if sum.TotalTokens() != 3500 {
		t.Errorf("TotalTokens() = %d, want 3500", sum.TotalTokens())
	}
}

func TestSummary_EmptyRange(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Record(ctx, Record{SessionID: "s", Model: "m", PromptTokens: 10, CompletionTokens: 5}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	past := time.Now().Add(-48 * time.Hour)
	sum, err := s.Summary(ctx, past, past.Add(time.Hour))
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalRecords != 0 || sum.TotalTokens() != 0 {
		t.Errorf("summary = %+v, want zero", sum)
	}
}

func TestSummary_IncludesRecordFromCurrentSecond(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Record(ctx, Record{SessionID: "s", Model: "m", PromptTokens: 7, CompletionTokens: 3}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	end := time.Now()
	sum, err := s.Summary(ctx, end.Add(-24*time.Hour), end)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalRecords != 1 || sum.TotalTokens() != 10 {
		t.Errorf("summary = %+v, want 1 record of 10 tokens", sum)
	}

	byRole, err := s.SummaryByRole(ctx, end.Add(-24*time.Hour), end)
	if err != nil {
		t.Fatalf("SummaryByRole: %v", err)
	}
	if got := byRole[RoleMission]; got == nil || got.TotalRecords != 1 {
		t.Errorf("byRole = %v, want one mission record", byRole)
	}
}

func TestSummary_EndIsExclusive(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	at := time.Date(2026, 3, 1, 12, 0, 0, 500, time.UTC)
	if err := s.Record(ctx, Record{Timestamp: at, SessionID: "s", Model: "m", PromptTokens: 1}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	tests := []struct {
		name string
		end  time.Time
		want int
	}{
		{"end equals timestamp", at, 0},
		{"end one nanosecond later", at.Add(time.Nanosecond), 1},
		{"end earlier in same second", at.Add(-400), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum, err := s.Summary(ctx, at.Add(-time.Hour), tt.end)
			if err != nil {
				t.Fatalf("Summary: %v", err)
			}
			if sum.TotalRecords != tt.want {
				t.Errorf("TotalRecords = %d, want %d", sum.TotalRecords, tt.want)
			}
		})
	}
}

func TestSummaryGrouped(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, rec := range []Record{
		{Timestamp: now, SessionID: "a", Model: "m1", PromptTokens: 10, CompletionTokens: 1},
		{Timestamp: now, SessionID: "a", Model: "m2", PromptTokens: 20, CompletionTokens: 2},
		{Timestamp: now, SessionID: "b", Model: "m1", Role: RoleDelegate, PromptTokens: 30, CompletionTokens: 3},
	} {
		if err := s.Record(ctx, rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	start, end := now.Add(-time.Minute), now.Add(time.Minute)

	byModel, err := s.SummaryByModel(ctx, start, end)
	if err != nil {
		t.Fatalf("SummaryByModel: %v", err)
	}
	if got := byModel["m1"]; got == nil || got.TotalRecords != 2 || got.TotalPromptTokens != 40 {
		t.Errorf("m1 summary = %+v, want 2 records / 40 prompt tokens", got)
	}

	bySession, err := s.SummaryBySession(ctx, start, end)
	if err != nil {
		t.Fatalf("SummaryBySession: %v", err)
	}
	if got := bySession["a"]; got == nil || got.TotalTokens() != 33 {
		t.Errorf("session a summary = %+v, want 33 tokens", got)
	}

	byRole, err := s.SummaryByRole(ctx, start, end)
	if err != nil {
		t.Fatalf("SummaryByRole: %v", err)
	}
	if got := byRole[RoleMission]; got == nil || got.TotalRecords != 2 {
		t.Errorf("mission role summary = %+v, want 2 records (empty role defaults to mission)", got)
	}
	if got := byRole[RoleDelegate]; got == nil || got.TotalRecords != 1 {
		t.Errorf("delegate role summary = %+v, want 1 record", got)
	}
}

func TestRecord_GeneratesID(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := s.Record(ctx, Record{SessionID: "s", Model: "m"}); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(DISTINCT id) FROM usage_records`).Scan(&n); err != nil {
		t.Fatalf("count ids: %v", err)
	}
	if n != 2 {
		t.Errorf("distinct ids = %d, want 2", n)
	}
}
