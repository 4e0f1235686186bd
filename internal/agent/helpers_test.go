package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/nugget/reactor/internal/llm"
	"github.com/nugget/reactor/internal/session"
	"github.com/nugget/reactor/internal/usage"
)

// mockLLM replays scripted responses; the last one repeats once the
// script runs out.
type mockLLM struct {
	responses []*llm.ChatResponse
	err       error
	calls     [][]llm.Message
}

func (m *mockLLM) Chat(_ context.Context, messages []llm.Message) (*llm.ChatResponse, error) {
	m.calls = append(m.calls, append([]llm.Message(nil), messages...))
	if m.err != nil {
		return nil, m.err
	}
	i := min(len(m.calls)-1, len(m.responses)-1)
	return m.responses[i], nil
}

func reply(content string, prompt, completion int) *llm.ChatResponse {
	return &llm.ChatResponse{
		Content: content,
		Model:   "test-model",
		Usage:   llm.Usage{PromptTokens: prompt, CompletionTokens: completion},
	}
}

func script(contents ...string) *mockLLM {
	m := &mockLLM{}
	for _, c := range contents {
		m.responses = append(m.responses, reply(c, 10, 5))
	}
	return m
}

// recordingStore keeps every snapshot it is given.
type recordingStore struct {
	mu    sync.Mutex
	saves []*session.Session
	err   error
}

func (s *recordingStore) Save(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, sess)
	return s.err
}

func (s *recordingStore) last(t *testing.T) *session.Session {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saves) == 0 {
		t.Fatal("no session snapshots saved")
	}
	return s.saves[len(s.saves)-1]
}

type recordingUsage struct {
	records []usage.Record
}

func (r *recordingUsage) Record(_ context.Context, rec usage.Record) error {
	r.records = append(r.records, rec)
	return nil
}

type memFlags struct {
	flagged map[string]bool
	cleared []string
	err     error
}

func (f *memFlags) Request(_ context.Context, id string) error {
	if f.flagged == nil {
		f.flagged = map[string]bool{}
	}
	f.flagged[id] = true
	return nil
}

func (f *memFlags) IsRequested(_ context.Context, id string) (bool, error) {
	return f.flagged[id], f.err
}

func (f *memFlags) Clear(_ context.Context, id string) error {
	delete(f.flagged, id)
	f.cleared = append(f.cleared, id)
	return nil
}

// flagAll reports every session as flagged.
type flagAll struct{ memFlags }

func (f *flagAll) IsRequested(context.Context, string) (bool, error) { return true, nil }

var errBoom = errors.New("boom")

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLoop(t *testing.T, cfg Config, opts ...Option) *Loop {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	l, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func roles(h []session.Entry) []string {
	out := make([]string, len(h))
	for i, e := range h {
		out[i] = e.Role
	}
	return out
}
