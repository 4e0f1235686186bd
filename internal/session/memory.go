package session

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps session snapshots in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

// Save stores a copy of s, replacing any earlier snapshot.
func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	c := s.Clone()
	m.mu.Lock()
	m.sessions[s.ID] = c
	m.mu.Unlock()
	return nil
}

// Load returns a copy of the stored snapshot.
func (m *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

// List returns up to limit summaries, most recently updated first.
// A non-positive limit returns all of them.
func (m *MemoryStore) List(_ context.Context, limit int) ([]Summary, error) {
	m.mu.RLock()
	out := make([]Summary, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Summarize())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
