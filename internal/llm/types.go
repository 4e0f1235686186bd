// Package llm provides reasoning-backend clients. Every backend
// implements [Client]: a single non-streaming chat call over an ordered
// message list, reporting token usage with the response.
package llm

import (
	"log/slog"
	"time"
)

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of the ordered conversation sent to a backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports the tokens consumed by one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// ChatResponse is the provider-neutral result of [Client.Chat].
type ChatResponse struct {
	Content  string
	Model    string
	Usage    Usage
	Duration time.Duration
}

// EstimateTokens approximates the token count of s at four characters
// per token, rounded up. Used where a provider does not report usage.
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}
