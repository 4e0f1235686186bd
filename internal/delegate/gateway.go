// Package delegate hands sub-tasks from a running mission to a
// delegation service and turns the outcome into an observation the
// mission can reason about.
package delegate

import (
	"context"
	"fmt"
	"log/slog"
)

// Request describes a sub-task.
type Request struct {
	Objective string `json:"objective"`
	Context   string `json:"context"`
}

// Outcome is the result of a delegated sub-task.
type Outcome struct {
	Success bool   `json:"success"`
	Result  string `json:"result"`
	Error   string `json:"error,omitempty"`
}

// Delegator runs sub-tasks. Implementations may block for the whole
// duration of the sub-task.
type Delegator interface {
	Delegate(ctx context.Context, req Request) (*Outcome, error)
}

// Gateway turns delegation requests into observations. Delegation is
// never fatal to the caller: every path yields a string.
type Gateway struct {
	delegator Delegator
	logger    *slog.Logger
}

// NewGateway binds d, which may be nil.
func NewGateway(d Delegator, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{delegator: d, logger: logger}
}

// Available reports whether a delegator is bound.
func (g *Gateway) Available() bool {
	return g != nil && g.delegator != nil
}

// Observe delegates objective, with optional detail for the delegate,
// and renders the outcome.
func (g *Gateway) Observe(ctx context.Context, objective, detail string) string {
	if !g.Available() {
		return fmt.Sprintf("Delegation not available (no delegator configured). Objective: %s", objective)
	}

	out, err := g.delegator.Delegate(ctx, Request{Objective: objective, Context: detail})
	switch {
	case err != nil:
		g.logger.Warn("delegation error", "objective", truncate(objective, 200), "error", err)
		return fmt.Sprintf("Delegation error: %s", err)
	case out == nil:
		return "Subagent failed: "
	case out.Success:
		return fmt.Sprintf("Subagent completed successfully:\n%s", out.Result)
	default:
		return fmt.Sprintf("Subagent failed: %s", out.Error)
	}
}

// truncate shortens a string to maxLen bytes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
