package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nugget/reactor/internal/action"
	"github.com/nugget/reactor/internal/compaction"
	"github.com/nugget/reactor/internal/delegate"
	"github.com/nugget/reactor/internal/events"
	"github.com/nugget/reactor/internal/llm"
	"github.com/nugget/reactor/internal/prompts"
	"github.com/nugget/reactor/internal/session"
	"github.com/nugget/reactor/internal/tools"
	"github.com/nugget/reactor/internal/usage"
)

// step runs one iteration. A non-nil result ends the mission.
func (l *Loop) step(ctx context.Context, sess *session.Session) (*Result, error) {
	if l.reasoner == nil {
		l.logger.Info("mock iteration, no reasoning backend", "session_id", sess.ID, "iter", sess.Iteration())
		return textResult(prompts.MockAnswer(sess.Goal())), nil
	}

	iter := sess.Iteration()
	messages, err := l.view(ctx, sess)
	if err != nil {
		return nil, err
	}

	l.events.Emit(events.SourceAgent, events.KindLLMCall, map[string]any{
		"session_id": sess.ID,
		"iter":       iter,
		"msgs":       len(messages),
	})

	resp, err := l.reasoner.Chat(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("reasoning call (iteration %d): %w", iter, err)
	}

	sess.Usage.Add(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	l.recordUsage(ctx, sess, resp)
	sess.Append(llm.RoleAssistant, resp.Content)

	act := action.Decode(resp.Content)
	l.logger.Debug("reasoning response",
		"session_id", sess.ID,
		"iter", iter,
		"model", resp.Model,
		"tokens_in", resp.Usage.PromptTokens,
		"tokens_out", resp.Usage.CompletionTokens,
		"total_tokens", sess.Usage.TotalTokens,
		"action", act.Type,
	)
	l.events.Emit(events.SourceAgent, events.KindLLMResponse, map[string]any{
		"session_id": sess.ID,
		"iter":       iter,
		"model":      resp.Model,
		"tokens_in":  resp.Usage.PromptTokens,
		"tokens_out": resp.Usage.CompletionTokens,
		"action":     act.Type.String(),
	})

	switch act.Type {
	case action.FinalAnswer:
		return textResult(act.Text), nil

	case action.ToolCall:
		sess.SetPending(act.Args)
		obs := l.callTool(ctx, sess, act.Name, act.Args)
		sess.AppendToolObservation("OBSERVATION: "+obs, session.ToolCallInfo{
			Name:      act.Name,
			Arguments: act.Args,
			Result:    obs,
		})
		sess.AddObservation(obs)
		sess.SetPending()

	case action.Delegate:
		l.logger.Info("delegating", "session_id", sess.ID, "iter", iter, "objective_len", len(act.Objective))
		obs := l.gateway.Observe(delegate.WithParentSession(ctx, sess.ID), act.Objective, act.Context)
		sess.Append(llm.RoleUser, "DELEGATION RESULT: "+obs)
		sess.AddObservation(obs)

	default:
		sess.Append(llm.RoleUser, prompts.ActionNudge)
	}
	return nil, nil
}

// view builds the message view for the next reasoning call,
// compressing it when the compressor asks for it. The session history
// itself is never rewritten.
func (l *Loop) view(ctx context.Context, sess *session.Session) ([]llm.Message, error) {
	messages := sess.Messages()
	if l.compressor == nil || !l.compressor.NeedsCompression(messages, l.cfg.Compaction) {
		return messages, nil
	}

	before := compaction.EstimateTokens(messages)
	res, err := l.compressor.Compress(ctx, messages, l.cfg.Compaction)
	if err != nil {
		return nil, fmt.Errorf("compress context (iteration %d): %w", sess.Iteration(), err)
	}
	if res == nil {
		return nil, errors.New("compress context: compressor returned no result")
	}

	l.logger.Info("context compressed",
		"session_id", sess.ID,
		"iter", sess.Iteration(),
		"folded", res.Folded,
		"tokens_before", before,
		"tokens_after", res.EstimatedTokens,
	)
	l.events.Emit(events.SourceAgent, events.KindCompaction, map[string]any{
		"session_id":    sess.ID,
		"iter":          sess.Iteration(),
		"folded":        res.Folded,
		"tokens_before": before,
		"tokens_after":  res.EstimatedTokens,
	})
	return res.Messages, nil
}

// callTool runs a decoded tool call and renders the observation.
func (l *Loop) callTool(ctx context.Context, sess *session.Session, name string, args action.Value) string {
	if l.tools == nil {
		return fmt.Sprintf("Tool '%s' not available (no tools configured)", name)
	}

	l.events.Emit(events.SourceAgent, events.KindToolCall, map[string]any{
		"session_id": sess.ID,
		"tool":       name,
	})
	start := time.Now()
	out, err := l.tools.Execute(tools.WithSessionID(ctx, sess.ID), name, args)
	elapsed := time.Since(start)

	ok := err == nil && out != nil && out.Success
	l.logger.Debug("tool executed",
		"session_id", sess.ID,
		"tool", name,
		"ok", ok,
		"elapsed", elapsed.Round(time.Millisecond),
	)
	l.events.Emit(events.SourceAgent, events.KindToolDone, map[string]any{
		"session_id":  sess.ID,
		"tool":        name,
		"ok":          ok,
		"duration_ms": elapsed.Milliseconds(),
	})

	switch {
	case err != nil:
		return fmt.Sprintf("Tool '%s' error: %s", name, err)
	case out == nil:
		return fmt.Sprintf("Tool '%s' error: %s", name, "no result")
	case out.Success:
		return fmt.Sprintf("Tool '%s' succeeded:\n%s", name, out.Content)
	default:
		return fmt.Sprintf("Tool '%s' failed:\n%s", name, out.Content)
	}
}

func (l *Loop) recordUsage(ctx context.Context, sess *session.Session, resp *llm.ChatResponse) {
	if l.usage == nil {
		return
	}
	err := l.usage.Record(context.WithoutCancel(ctx), usage.Record{
		SessionID:        sess.ID,
		Iteration:        sess.Iteration(),
		Model:            resp.Model,
		Role:             l.cfg.UsageRole,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	})
	if err != nil {
		l.logger.Warn("record usage", "session_id", sess.ID, "error", err)
	}
}
