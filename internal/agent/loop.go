// Package agent implements the mission loop: a bounded ReAct cycle that
// alternates reasoning calls with tool calls, delegation and nudges
// until the reasoner gives a final answer, the iteration cap is hit, or
// the token budget runs out. A fast path runs a single tool with no
// reasoning at all.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/nugget/reactor/internal/action"
	"github.com/nugget/reactor/internal/compaction"
	"github.com/nugget/reactor/internal/delegate"
	"github.com/nugget/reactor/internal/events"
	"github.com/nugget/reactor/internal/llm"
	"github.com/nugget/reactor/internal/prompts"
	"github.com/nugget/reactor/internal/session"
	"github.com/nugget/reactor/internal/usage"
)

// Loop runs missions. One Loop may serve many concurrent missions; each
// mission owns its session and runs strictly sequentially.
type Loop struct {
	cfg Config

	reasoner      Reasoner
	tools         ToolBackend
	store         SessionStore
	compressor    Compressor
	compressorSet bool
	delegator     delegate.Delegator
	gateway       *delegate.Gateway
	events        *events.Bus
	usage         UsageRecorder
	cancel        CancelFlags
	logger        *slog.Logger
}

// New builds a Loop, rejecting configurations that cannot run.
func New(cfg Config, opts ...Option) (*Loop, error) {
	l := &Loop{cfg: cfg}
	for _, o := range opts {
		o(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if !l.compressorSet {
		l.compressor = compaction.TruncationCompressor{}
	}
	if l.cfg.Compaction == (compaction.Config{}) {
		l.cfg.Compaction = compaction.DefaultConfig()
	}
	if l.cfg.UsageRole == "" {
		l.cfg.UsageRole = usage.RoleMission
	}
	if err := l.validate(); err != nil {
		return nil, err
	}
	l.gateway = delegate.NewGateway(l.delegator, l.logger)
	return l, nil
}

func (l *Loop) validate() error {
	switch {
	case l.cfg.MaxIterations <= 0:
		return fmt.Errorf("%w: max_iterations must be positive, got %d", ErrMisconfigured, l.cfg.MaxIterations)
	case l.cfg.DefaultBudget <= 0:
		return fmt.Errorf("%w: default_budget must be positive, got %d", ErrMisconfigured, l.cfg.DefaultBudget)
	case l.cfg.RequireReasoner && l.reasoner == nil:
		return fmt.Errorf("%w: a reasoning backend is required", ErrMisconfigured)
	case l.cfg.RequireTools && l.tools == nil:
		return fmt.Errorf("%w: a tool backend is required", ErrMisconfigured)
	}
	if l.compressor != nil {
		if err := l.cfg.Compaction.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrMisconfigured, err)
		}
	}
	return nil
}

// Config returns the effective configuration.
func (l *Loop) Config() Config { return l.cfg }

// Execute dispatches a routed intent.
func (l *Loop) Execute(ctx context.Context, in Intent) (*Result, error) {
	switch in.Kind {
	case IntentFastAction:
		return l.FastAction(ctx, in.ToolName, in.Args), nil
	case IntentComplexMission:
		return l.ComplexMission(ctx, in.Mission)
	default:
		return nil, fmt.Errorf("unknown intent kind %d", in.Kind)
	}
}

// FastAction runs one tool without reasoning. It never fails: problems
// become a ResultError with a code.
func (l *Loop) FastAction(ctx context.Context, toolName string, args action.Value) *Result {
	l.logger.Info("fast path", "tool", toolName)

	if l.tools == nil {
		return textResult(fmt.Sprintf("Fast path: would execute tool '%s'. Tools not configured.", toolName))
	}

	out, err := l.tools.Execute(ctx, toolName, args)
	switch {
	case err != nil:
		l.logger.Warn("fast path tool error", "tool", toolName, "error", err)
		return errorResult(CodeToolNotFound, err.Error())
	case out == nil:
		return errorResult(CodeToolError, fmt.Sprintf("tool '%s' returned no result", toolName))
	case !out.Success:
		return errorResult(CodeToolError, out.Content)
	default:
		return textResult(out.Content)
	}
}

// ComplexMission runs the reasoning loop for m.
func (l *Loop) ComplexMission(ctx context.Context, m Mission) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sess := session.New(m.Goal, l.cfg.DefaultBudget, prompts.ReActSystemPrompt(m.Goal, l.toolsDescription()))
	sess.Append(llm.RoleUser, missionContext(m))

	log := l.logger.With("session_id", sess.ID)
	log.Info("mission started",
		"goal_len", len(m.Goal),
		"context_len", len(m.ContextSummary),
		"refs", len(m.VisualRefs),
		"max_iterations", l.cfg.MaxIterations,
		"budget", l.cfg.DefaultBudget,
		"reasoner", l.reasoner != nil,
	)
	l.events.Emit(events.SourceAgent, events.KindSessionStart, map[string]any{
		"session_id":     sess.ID,
		"goal_len":       len(m.Goal),
		"max_iterations": l.cfg.MaxIterations,
		"budget":         l.cfg.DefaultBudget,
	})

	for i := 0; i < l.cfg.MaxIterations; i++ {
		if err := l.checkCancelled(ctx, sess); err != nil {
			l.fail(ctx, sess, "cancelled")
			return nil, err
		}

		sess.SetIteration(i)
		l.events.Emit(events.SourceAgent, events.KindIterationStart, map[string]any{
			"session_id": sess.ID,
			"iter":       i,
		})

		res, err := l.step(ctx, sess)
		if err != nil {
			l.fail(ctx, sess, "step_error")
			return nil, err
		}

		if res != nil {
			if err := sess.Complete(); err != nil {
				log.Warn("complete session", "error", err)
			}
			l.persist(ctx, sess)
			res.SessionID = sess.ID
			res.Iterations = i + 1
			res.PromptTokens = sess.Usage.PromptTokens
			res.CompletionTokens = sess.Usage.CompletionTokens

			log.Info("mission completed",
				"iterations", res.Iterations,
				"total_tokens", sess.Usage.TotalTokens,
			)
			l.events.Emit(events.SourceAgent, events.KindSessionComplete, map[string]any{
				"session_id":   sess.ID,
				"iterations":   res.Iterations,
				"total_tokens": sess.Usage.TotalTokens,
			})
			return res, nil
		}

		l.persist(ctx, sess)

		if sess.Usage.IsExceeded() {
			l.fail(ctx, sess, "token_budget")
			return nil, &BudgetExceededError{
				SessionID: sess.ID,
				Used:      sess.Usage.TotalTokens,
				Limit:     sess.Usage.BudgetLimit,
			}
		}
	}

	l.fail(ctx, sess, "max_iterations")
	return nil, &MaxIterationsError{SessionID: sess.ID, Max: l.cfg.MaxIterations}
}

// Resume is reserved for continuing a persisted session from its
// stored iteration.
func (l *Loop) Resume(_ context.Context, sessionID string) (*Result, error) {
	l.logger.Warn("resume not implemented", "session_id", sessionID)
	return nil, fmt.Errorf("resume %s: %w", sessionID, ErrNotImplemented)
}

// Cancel acknowledges a cancel request. With cancel flags bound the
// request is recorded and a running mission stops at its next
// iteration boundary; otherwise it has no effect on a running mission.
func (l *Loop) Cancel(ctx context.Context, sessionID string) error {
	l.logger.Info("cancel requested", "session_id", sessionID, "cooperative", l.cancel != nil)
	if l.cancel == nil {
		return nil
	}
	if err := l.cancel.Request(ctx, sessionID); err != nil {
		l.logger.Warn("record cancel request", "session_id", sessionID, "error", err)
	}
	return nil
}

func (l *Loop) checkCancelled(ctx context.Context, sess *session.Session) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mission %s: %w", sess.ID, err)
	}
	if l.cancel == nil {
		return nil
	}
	flagged, err := l.cancel.IsRequested(ctx, sess.ID)
	if err != nil {
		l.logger.Warn("check cancel flag", "session_id", sess.ID, "error", err)
		return nil
	}
	if !flagged {
		return nil
	}
	if err := l.cancel.Clear(ctx, sess.ID); err != nil {
		l.logger.Warn("clear cancel flag", "session_id", sess.ID, "error", err)
	}
	return fmt.Errorf("mission %s: %w", sess.ID, ErrCancelled)
}

// fail marks the session Failed and persists it.
func (l *Loop) fail(ctx context.Context, sess *session.Session, reason string) {
	if err := sess.Fail(); err != nil {
		l.logger.Warn("fail session", "session_id", sess.ID, "error", err)
	}
	l.persist(ctx, sess)

	l.logger.Info("mission failed",
		"session_id", sess.ID,
		"reason", reason,
		"iteration", sess.Iteration(),
		"total_tokens", sess.Usage.TotalTokens,
	)
	l.events.Emit(events.SourceAgent, events.KindSessionFailed, map[string]any{
		"session_id":   sess.ID,
		"iterations":   sess.Iteration() + 1,
		"total_tokens": sess.Usage.TotalTokens,
		"reason":       reason,
	})
}

// persist saves a snapshot. Failures are logged and ignored; the
// in-memory session stays authoritative.
func (l *Loop) persist(ctx context.Context, sess *session.Session) {
	if !l.cfg.PersistState || l.store == nil {
		return
	}
	if err := l.store.Save(context.WithoutCancel(ctx), sess.Clone()); err != nil {
		l.logger.Warn("failed to save session state", "session_id", sess.ID, "error", err)
	}
}

func (l *Loop) toolsDescription() string {
	if !l.cfg.DescribeTools || l.tools == nil {
		return ""
	}
	if d, ok := l.tools.(ToolDescriber); ok {
		return d.Describe()
	}
	return ""
}

// missionContext renders the first user entry of a mission.
func missionContext(m Mission) string {
	if len(m.VisualRefs) == 0 {
		return m.ContextSummary
	}
	quoted := make([]string, len(m.VisualRefs))
	for i, r := range m.VisualRefs {
		quoted[i] = strconv.Quote(r)
	}
	return m.ContextSummary + "\n\nReferences: [" + strings.Join(quoted, ", ") + "]"
}
