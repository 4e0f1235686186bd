// Package prompts contains the prompt templates Reactor sends to models.
//
// Prompt text is Go code rather than config files because it is program logic:
// the engine's action decoder depends on the exact markers the system prompt
// teaches, so templates are interpolated with fmt.Sprintf and pinned by tests.
//
// Convention: each prompt category gets its own file (react.go,
// compaction.go, delegate.go) with an exported function that accepts the
// dynamic parts and returns the fully interpolated prompt string.
package prompts
