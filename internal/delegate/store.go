package delegate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Record is a persisted delegation for audit and replay.
type Record struct {
	ID               string    `json:"id"`
	ParentSessionID  string    `json:"parent_session_id,omitempty"`
	ChildSessionID   string    `json:"child_session_id,omitempty"`
	Objective        string    `json:"objective"`
	Context          string    `json:"context,omitempty"`
	Iterations       int       `json:"iterations"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	Success          bool      `json:"success"`
	Exhausted        bool      `json:"exhausted"`
	ExhaustReason    string    `json:"exhaust_reason,omitempty"`
	Result           string    `json:"result"`
	Error            string    `json:"error,omitempty"`
	StartedAt        time.Time `json:"started_at"`
	CompletedAt      time.Time `json:"completed_at"`
	DurationMs       int64     `json:"duration_ms"`
}

// ErrRecordNotFound is returned by [Store.Get] for unknown IDs.
var ErrRecordNotFound = errors.New("delegation record not found")

// Store persists delegation records. It shares a database handle with
// the other stores and creates its own table on initialization.
type Store struct {
	db *sql.DB
}

// NewStore creates a delegation store on db, creating the delegations
// table if it does not already exist.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("delegation store migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS delegations (
			id                TEXT PRIMARY KEY,
			parent_session_id TEXT,
			child_session_id  TEXT,
			objective         TEXT NOT NULL,
			context           TEXT,
			iterations        INTEGER NOT NULL,
			prompt_tokens     INTEGER NOT NULL,
			completion_tokens INTEGER NOT NULL,
			success           BOOLEAN NOT NULL DEFAULT 0,
			exhausted         BOOLEAN NOT NULL DEFAULT 0,
			exhaust_reason    TEXT,
			result            TEXT,
			error             TEXT,
			started_at        TEXT NOT NULL,
			completed_at      TEXT NOT NULL,
			duration_ms       INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_delegations_parent
			ON delegations(parent_session_id, started_at DESC);
		CREATE INDEX IF NOT EXISTS idx_delegations_started
			ON delegations(started_at DESC);
	`)
	return err
}

// Record inserts a delegation record.
func (s *Store) Record(ctx context.Context, rec *Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO delegations (
			id, parent_session_id, child_session_id, objective, context,
			iterations, prompt_tokens, completion_tokens,
			success, exhausted, exhaust_reason, result, error,
			started_at, completed_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ParentSessionID, rec.ChildSessionID, rec.Objective, rec.Context,
		rec.Iterations, rec.PromptTokens, rec.CompletionTokens,
		rec.Success, rec.Exhausted, rec.ExhaustReason, rec.Result, rec.Error,
		rec.StartedAt.UTC().Format(timeLayout),
		rec.CompletedAt.UTC().Format(timeLayout),
		rec.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("insert delegation %s: %w", rec.ID, err)
	}
	return nil
}

const selectColumns = `
	SELECT id, parent_session_id, child_session_id, objective, context,
		iterations, prompt_tokens, completion_tokens,
		success, exhausted, exhaust_reason, result, error,
		started_at, completed_at, duration_ms
	FROM delegations`

// Get retrieves a single delegation record by ID.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	rec, err := scanInto(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	return rec, err
}

// List returns records newest-first, optionally restricted to one
// parent session. If limit is 0, all matching records are returned.
func (s *Store) List(ctx context.Context, parentSessionID string, limit int) ([]*Record, error) {
	query := selectColumns
	var args []any
	if parentSessionID != "" {
		query += ` WHERE parent_session_id = ?`
		args = append(args, parentSessionID)
	}
	query += ` ORDER BY started_at DESC`
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanInto(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows for shared scanning logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanInto(s scanner) (*Record, error) {
	var rec Record
	var parent, child, reqCtx, reason, result, errStr sql.NullString
	var startedAt, completedAt string

	err := s.Scan(
		&rec.ID, &parent, &child, &rec.Objective, &reqCtx,
		&rec.Iterations, &rec.PromptTokens, &rec.CompletionTokens,
		&rec.Success, &rec.Exhausted, &reason, &result, &errStr,
		&startedAt, &completedAt, &rec.DurationMs,
	)
	if err != nil {
		return nil, err
	}

	rec.ParentSessionID = parent.String
	rec.ChildSessionID = child.String
	rec.Context = reqCtx.String
	rec.ExhaustReason = reason.String
	rec.Result = result.String
	rec.Error = errStr.String
	rec.StartedAt, _ = time.Parse(timeLayout, startedAt)
	rec.CompletedAt, _ = time.Parse(timeLayout, completedAt)
	return &rec, nil
}
