package agent

import (
	"errors"
	"fmt"

	"github.com/nugget/reactor/internal/delegate"
)

// ErrMisconfigured is returned by New when the configuration or the
// bound capabilities cannot serve the requested entry paths.
var ErrMisconfigured = errors.New("agent misconfigured")

// ErrNotImplemented is returned by Resume.
var ErrNotImplemented = errors.New("not implemented")

// ErrCancelled is returned when a mission observes a cancel request.
var ErrCancelled = errors.New("mission cancelled")

// BudgetExceededError ends a mission whose token usage reached its
// budget.
type BudgetExceededError struct {
	SessionID string
	Used      int
	Limit     int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("token budget exceeded: used %d of %d", e.Used, e.Limit)
}

// ExhaustReason implements delegate.Exhauster.
func (e *BudgetExceededError) ExhaustReason() string { return delegate.ExhaustTokenBudget }

// MaxIterationsError ends a mission that ran out of iterations without
// a final answer.
type MaxIterationsError struct {
	SessionID string
	Max       int
}

func (e *MaxIterationsError) Error() string {
	return fmt.Sprintf("max iterations exceeded: %d", e.Max)
}

// ExhaustReason implements delegate.Exhauster.
func (e *MaxIterationsError) ExhaustReason() string { return delegate.ExhaustMaxIterations }
