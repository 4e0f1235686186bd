package agent

import (
	"context"
	"log/slog"

	"github.com/nugget/reactor/internal/action"
	"github.com/nugget/reactor/internal/compaction"
	"github.com/nugget/reactor/internal/delegate"
	"github.com/nugget/reactor/internal/events"
	"github.com/nugget/reactor/internal/llm"
	"github.com/nugget/reactor/internal/session"
	"github.com/nugget/reactor/internal/tools"
	"github.com/nugget/reactor/internal/usage"
)

// Reasoner is the reasoning backend.
type Reasoner interface {
	Chat(ctx context.Context, messages []llm.Message) (*llm.ChatResponse, error)
}

// ToolBackend executes tools by name.
type ToolBackend interface {
	Execute(ctx context.Context, name string, args action.Value) (*tools.Result, error)
}

// ToolDescriber is implemented by tool backends that can list their
// tools for the system prompt.
type ToolDescriber interface {
	Describe() string
}

// SessionStore receives a snapshot after every iteration.
type SessionStore interface {
	Save(ctx context.Context, s *session.Session) error
}

// Compressor shrinks the message view sent to the reasoner.
// NeedsCompression must not block.
type Compressor interface {
	NeedsCompression(messages []llm.Message, cfg compaction.Config) bool
	Compress(ctx context.Context, messages []llm.Message, cfg compaction.Config) (*compaction.Result, error)
}

// UsageRecorder receives one record per reasoning call.
type UsageRecorder interface {
	Record(ctx context.Context, rec usage.Record) error
}

// CancelFlags holds cancellation requests keyed by session ID.
type CancelFlags interface {
	Request(ctx context.Context, sessionID string) error
	IsRequested(ctx context.Context, sessionID string) (bool, error)
	Clear(ctx context.Context, sessionID string) error
}

// Config holds loop limits and behavior switches.
type Config struct {
	MaxIterations int
	DefaultBudget int
	PersistState  bool

	// DescribeTools puts the tool backend's own listing in the system
	// prompt instead of the fixed placeholder.
	DescribeTools bool

	// RequireReasoner and RequireTools make New reject a loop that
	// lacks the capability instead of degrading.
	RequireReasoner bool
	RequireTools    bool

	Compaction compaction.Config

	// UsageRole tags ledger records (usage.RoleMission by default).
	UsageRole string
}

// DefaultConfig returns the stock limits.
func DefaultConfig() Config {
	return Config{
		MaxIterations: 10,
		DefaultBudget: usage.DefaultBudget,
		PersistState:  true,
		Compaction:    compaction.DefaultConfig(),
		UsageRole:     usage.RoleMission,
	}
}

// Option binds an optional capability.
type Option func(*Loop)

// WithReasoner binds the reasoning backend.
func WithReasoner(r Reasoner) Option {
	return func(l *Loop) { l.reasoner = r }
}

// WithTools binds the tool backend.
func WithTools(t ToolBackend) Option {
	return func(l *Loop) { l.tools = t }
}

// WithSessionStore binds the session store.
func WithSessionStore(s SessionStore) Option {
	return func(l *Loop) { l.store = s }
}

// WithCompressor replaces the default truncating compressor. A nil
// compressor disables compression.
func WithCompressor(c Compressor) Option {
	return func(l *Loop) {
		l.compressor = c
		l.compressorSet = true
	}
}

// WithDelegator binds the delegation service.
func WithDelegator(d delegate.Delegator) Option {
	return func(l *Loop) { l.delegator = d }
}

// WithEvents publishes loop events to b.
func WithEvents(b *events.Bus) Option {
	return func(l *Loop) { l.events = b }
}

// WithUsageRecorder records per-call token usage.
func WithUsageRecorder(r UsageRecorder) Option {
	return func(l *Loop) { l.usage = r }
}

// WithCancelFlags enables cooperative cancellation through flags.
func WithCancelFlags(f CancelFlags) Option {
	return func(l *Loop) { l.cancel = f }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}
