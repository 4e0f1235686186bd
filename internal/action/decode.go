// Package action decodes raw reasoning output into the closed set of
// actions the iteration loop knows how to enact.
//
// The grammar is marker based and line bounded. Markers are matched in a
// fixed precedence and every input decodes to exactly one action, so
// there is no decode error: text with no recognisable marker becomes a
// [Think] action.
package action

import "strings"

// Response markers. They are part of the prompting contract with the
// reasoning backend and must match exactly (case-sensitive).
const (
	MarkerFinalAnswer = "FINAL ANSWER:"
	MarkerAction      = "ACTION:"
	MarkerArgs        = "ARGS:"
	MarkerThought     = "THOUGHT:"
	MarkerDelegate    = "DELEGATE:"
	MarkerContext     = "CONTEXT:"
)

// Type identifies an action variant.
type Type int

const (
	// ToolCall invokes a named tool with structured arguments.
	ToolCall Type = iota
	// FinalAnswer ends the mission with a text result.
	FinalAnswer
	// Think is intermediate reasoning with no side effect.
	Think
	// Delegate hands a sub-objective to a subordinate runner.
	Delegate
)

func (t Type) String() string {
	switch t {
	case ToolCall:
		return "tool_call"
	case FinalAnswer:
		return "final_answer"
	case Think:
		return "think"
	case Delegate:
		return "delegate"
	default:
		return "unknown"
	}
}

// Action is one decoded decision. Which fields are meaningful depends on
// Type:
//
//   - ToolCall: Name, Args
//   - FinalAnswer, Think: Text
//   - Delegate: Objective, Context
type Action struct {
	Type      Type
	Name      string
	Args      Value
	Text      string
	Objective string
	Context   string
}

// Decode maps raw model output to an Action. It is pure and total.
//
// Precedence:
//  1. prefix FINAL ANSWER:
//  2. ACTION: anywhere (with an optional ARGS: line)
//  3. prefix THOUGHT:
//  4. DELEGATE: anywhere (with an optional CONTEXT: line)
//  5. anything else is a thought
func Decode(raw string) Action {
	text := strings.TrimSpace(raw)

	if rest, ok := strings.CutPrefix(text, MarkerFinalAnswer); ok {
		return Action{Type: FinalAnswer, Text: strings.TrimSpace(rest)}
	}

	if _, rest, ok := strings.Cut(text, MarkerAction); ok {
		return Action{
			Type: ToolCall,
			Name: firstLine(rest),
			Args: decodeArgs(rest),
		}
	}

	if rest, ok := strings.CutPrefix(text, MarkerThought); ok {
		return Action{Type: Think, Text: strings.TrimSpace(rest)}
	}

	if _, rest, ok := strings.Cut(text, MarkerDelegate); ok {
		a := Action{Type: Delegate, Objective: firstLine(rest)}
		if _, ctx, found := strings.Cut(rest, MarkerContext); found {
			a.Context = firstLine(ctx)
		}
		return a
	}

	return Action{Type: Think, Text: text}
}

// decodeArgs finds ARGS: in rest and parses the line after it. Missing
// or malformed arguments decode to an empty object.
func decodeArgs(rest string) Value {
	_, after, ok := strings.Cut(rest, MarkerArgs)
	if !ok {
		return EmptyObject()
	}
	v, err := Parse(firstLine(after))
	if err != nil {
		return EmptyObject()
	}
	return v
}

// firstLine returns the first line of s with surrounding whitespace
// removed.
func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
