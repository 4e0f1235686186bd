package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore persists gzip-compressed session snapshots. Each Save
// overwrites the previous snapshot for the same session.
type SQLiteStore struct {
	db     *sql.DB
	ownsDB bool
}

// NewSQLiteStore opens (or creates) the session database at dbPath.
// The sqlite3 driver must be registered by the importing binary.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}
	s, err := NewSQLiteStoreDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// NewSQLiteStoreDB creates a store on an existing handle. The caller
// keeps ownership of db.
func NewSQLiteStoreDB(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			goal TEXT NOT NULL,
			iteration INTEGER NOT NULL,
			entry_count INTEGER NOT NULL,
			total_tokens INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			state_gz BLOB NOT NULL,
			byte_size INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_updated
			ON sessions(updated_at DESC);
	`)
	return err
}

// Save writes a snapshot of sess.
func (s *SQLiteStore) Save(ctx context.Context, sess *Session) error {
	blob, err := encode(sess)
	if err != nil {
		return err
	}
	sum := sess.Summarize()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, status, goal, iteration, entry_count, total_tokens, created_at, updated_at, state_gz, byte_size)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			iteration = excluded.iteration,
			entry_count = excluded.entry_count,
			total_tokens = excluded.total_tokens,
			updated_at = excluded.updated_at,
			state_gz = excluded.state_gz,
			byte_size = excluded.byte_size
	`, sum.ID, string(sum.Status), sum.Goal, sum.Iteration, sum.Entries, sum.TotalTokens,
		sum.CreatedAt.UTC().Format(timeLayout), sum.UpdatedAt.UTC().Format(timeLayout),
		blob, len(blob))
	if err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	return nil
}

// Load returns the latest snapshot of the session.
func (s *SQLiteStore) Load(ctx context.Context, id string) (*Session, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT state_gz FROM sessions WHERE id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	return decode(blob)
}

// List returns up to limit summaries, most recently updated first.
// Snapshots are not decompressed.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, goal, iteration, entry_count, total_tokens, created_at, updated_at
		FROM sessions
		ORDER BY updated_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var status, created, updated string
		if err := rows.Scan(&sum.ID, &status, &sum.Goal, &sum.Iteration, &sum.Entries, &sum.TotalTokens, &created, &updated); err != nil {
			return nil, err
		}
		sum.Status = Status(status)
		sum.CreatedAt, _ = time.Parse(timeLayout, created)
		sum.UpdatedAt, _ = time.Parse(timeLayout, updated)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Close closes the database if the store opened it.
func (s *SQLiteStore) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}
