package delegate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nugget/reactor/internal/events"
	"github.com/nugget/reactor/internal/prompts"
)

// Exhaustion reason constants.
const (
	ExhaustMaxIterations = "max_iterations"
	ExhaustTokenBudget   = "token_budget"
)

// Exhauster is implemented by child errors that mean the sub-mission
// ran out of a resource rather than broke.
type Exhauster interface {
	ExhaustReason() string
}

// ChildResult is what a [Runner] reports for a finished sub-mission.
type ChildResult struct {
	Text             string
	SessionID        string
	Iterations       int
	PromptTokens     int
	CompletionTokens int
}

// Runner executes a sub-mission for goal with the given context
// summary. Errors implementing [Exhauster] are reported as failed
// outcomes; any other error aborts the delegation.
type Runner func(ctx context.Context, goal, contextSummary string) (*ChildResult, error)

type parentKey struct{}

// WithParentSession annotates ctx with the delegating session's ID.
func WithParentSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, parentKey{}, sessionID)
}

// ParentSessionFromContext returns the delegating session's ID, or "".
func ParentSessionFromContext(ctx context.Context) string {
	id, _ := ctx.Value(parentKey{}).(string)
	return id
}

// Executor implements [Delegator] by running each request as a child
// mission.
type Executor struct {
	run    Runner
	logger *slog.Logger
	events *events.Bus
	store  *Store
}

// NewExecutor creates an executor around run.
func NewExecutor(run Runner, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{run: run, logger: logger}
}

// SetStore configures delegation persistence. When set, every
// completion is recorded.
func (e *Executor) SetStore(s *Store) { e.store = s }

// SetEventBus configures the bus that receives spawn and complete
// events.
func (e *Executor) SetEventBus(b *events.Bus) { e.events = b }

// Delegate runs req as a child mission.
func (e *Executor) Delegate(ctx context.Context, req Request) (*Outcome, error) {
	if req.Objective == "" {
		return nil, fmt.Errorf("objective is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("delegate cancelled: %w", err)
	}

	delegateID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate delegate id: %w", err)
	}
	did := delegateID.String()
	parent := ParentSessionFromContext(ctx)

	e.logger.Info("delegate started",
		"delegate_id", did,
		"parent_session_id", parent,
		"objective", truncate(req.Objective, 200),
		"context", truncate(req.Context, 200),
	)
	e.events.Emit(events.SourceDelegate, events.KindSpawn, map[string]any{
		"delegate_id":       did,
		"parent_session_id": parent,
		"objective_len":     len(req.Objective),
	})

	start := time.Now()
	child, runErr := e.run(ctx, req.Objective, prompts.DelegateContext(req.Objective, req.Context))

	rec := &Record{
		ID:              did,
		ParentSessionID: parent,
		Objective:       req.Objective,
		Context:         req.Context,
		StartedAt:       start,
	}
	if child != nil {
		rec.ChildSessionID = child.SessionID
		rec.Iterations = child.Iterations
		rec.PromptTokens = child.PromptTokens
		rec.CompletionTokens = child.CompletionTokens
	}

	var out *Outcome
	var exh Exhauster
	switch {
	case runErr == nil && child != nil:
		rec.Success = true
		rec.Result = child.Text
		out = &Outcome{Success: true, Result: child.Text}
	case runErr == nil:
		rec.Error = "delegate returned no result"
		out = &Outcome{Error: rec.Error}
	case errors.As(runErr, &exh):
		rec.Exhausted = true
		rec.ExhaustReason = exh.ExhaustReason()
		rec.Error = runErr.Error()
		out = &Outcome{Error: rec.Error}
	default:
		rec.Error = runErr.Error()
	}

	e.recordCompletion(ctx, rec)

	if out == nil {
		return nil, fmt.Errorf("delegate %s: %w", did, runErr)
	}
	return out, nil
}

// recordCompletion logs, publishes and optionally persists a delegation.
func (e *Executor) recordCompletion(ctx context.Context, rec *Record) {
	rec.CompletedAt = time.Now()
	elapsed := rec.CompletedAt.Sub(rec.StartedAt)
	rec.DurationMs = elapsed.Milliseconds()

	e.logger.Info("delegate completed",
		"delegate_id", rec.ID,
		"session_id", rec.ChildSessionID,
		"iterations", rec.Iterations,
		"prompt_tokens", rec.PromptTokens,
		"completion_tokens", rec.CompletionTokens,
		"success", rec.Success,
		"exhausted", rec.Exhausted,
		"exhaust_reason", rec.ExhaustReason,
		"elapsed", elapsed.Round(time.Millisecond),
	)
	e.events.Emit(events.SourceDelegate, events.KindComplete, map[string]any{
		"delegate_id":    rec.ID,
		"session_id":     rec.ChildSessionID,
		"iterations":     rec.Iterations,
		"success":        rec.Success,
		"exhausted":      rec.Exhausted,
		"exhaust_reason": rec.ExhaustReason,
		"duration_ms":    rec.DurationMs,
	})

	if e.store == nil {
		return
	}
	// Record even when the parent context was cancelled mid-run.
	if err := e.store.Record(context.WithoutCancel(ctx), rec); err != nil {
		e.logger.Warn("failed to persist delegation record",
			"delegate_id", rec.ID,
			"error", err,
		)
	}
}
