// Package artifacts keeps tool outputs too large to pass inline through
// the mission transcript. The model sees a reference and a preview, and
// can page the full content back with the artifact_read tool.
package artifacts

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get for an unknown ref.
var ErrNotFound = errors.New("artifact not found")

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Artifact is one stored output.
type Artifact struct {
	Ref       string
	SessionID string
	Source    string
	Content   string
	Size      int
	CreatedAt time.Time
}

// Store is a SQLite-backed artifact store. Content is gzip-compressed
// at rest.
type Store struct {
	db     *sql.DB
	ownsDB bool
}

// NewStore opens (or creates) the artifact database at dbPath. The
// sqlite3 driver must be registered by the importing binary.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open artifact database: %w", err)
	}
	s, err := NewStoreDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// NewStoreDB creates a store on an existing handle. The caller keeps
// ownership of db.
func NewStoreDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS artifacts (
			ref TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			source TEXT NOT NULL,
			size INTEGER NOT NULL,
			content_gz BLOB NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_artifacts_session
			ON artifacts(session_id, created_at);
	`)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database if the store opened it.
func (s *Store) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

// Put stores content produced by source during sessionID and returns
// its ref.
func (s *Store) Put(ctx context.Context, sessionID, source, content string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	ref := id.String()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := io.WriteString(gz, content); err != nil {
		return "", fmt.Errorf("compress: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("compress: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO artifacts (ref, session_id, source, size, content_gz, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ref, sessionID, source, len(content), buf.Bytes(), time.Now().UTC().Format(timeLayout))
	if err != nil {
		return "", fmt.Errorf("insert artifact: %w", err)
	}
	return ref, nil
}

// Get returns the artifact for ref.
func (s *Store) Get(ctx context.Context, ref string) (*Artifact, error) {
	a := &Artifact{Ref: ref}
	var blob []byte
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, source, size, content_gz, created_at FROM artifacts WHERE ref = ?`, ref,
	).Scan(&a.SessionID, &a.Source, &a.Size, &blob, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact %s: %w", ref, err)
	}

	gr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", ref, err)
	}
	defer gr.Close()
	raw, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", ref, err)
	}
	a.Content = string(raw)
	a.CreatedAt, _ = time.Parse(timeLayout, created)
	return a, nil
}

// List returns the artifacts of a session in creation order, without
// content.
func (s *Store) List(ctx context.Context, sessionID string) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ref, source, size, created_at FROM artifacts WHERE session_id = ? ORDER BY created_at, ref`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		a := Artifact{SessionID: sessionID}
		var created string
		if err := rows.Scan(&a.Ref, &a.Source, &a.Size, &created); err != nil {
			return nil, err
		}
		a.CreatedAt, _ = time.Parse(timeLayout, created)
		out = append(out, a)
	}
	return out, rows.Err()
}
