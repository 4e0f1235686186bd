package agent

import (
	"fmt"

	"github.com/nugget/reactor/internal/action"
)

// IntentKind selects the entry path for a request.
type IntentKind int

const (
	// IntentFastAction runs one tool directly.
	IntentFastAction IntentKind = iota
	// IntentComplexMission runs the reasoning loop.
	IntentComplexMission
)

// Intent is a routed request. The router that picks the kind lives
// outside this package.
type Intent struct {
	Kind IntentKind

	// Fast path.
	ToolName string
	Args     action.Value

	// Slow path.
	Mission Mission
}

// Mission is the input to ComplexMission.
type Mission struct {
	Goal           string
	ContextSummary string
	VisualRefs     []string
}

// ResultKind distinguishes successful text from structured errors.
type ResultKind int

const (
	ResultText ResultKind = iota
	ResultError
)

// Fast path error codes.
const (
	CodeToolError    = "TOOL_ERROR"
	CodeToolNotFound = "TOOL_NOT_FOUND"
)

// Result is the outcome of a request.
type Result struct {
	Kind ResultKind `json:"kind"`
	Text string     `json:"text"`
	// Code is set for ResultError.
	Code string `json:"code,omitempty"`

	// Mission bookkeeping; empty on the fast path.
	SessionID        string `json:"session_id,omitempty"`
	Iterations       int    `json:"iterations,omitempty"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
}

// IsError reports whether r carries an error code.
func (r *Result) IsError() bool { return r.Kind == ResultError }

func (r *Result) String() string {
	if r.Kind == ResultError {
		return fmt.Sprintf("[%s] %s", r.Code, r.Text)
	}
	return r.Text
}

func textResult(s string) *Result { return &Result{Kind: ResultText, Text: s} }

func errorResult(code, msg string) *Result {
	return &Result{Kind: ResultError, Text: msg, Code: code}
}
