// Package compaction shrinks the message view sent to a reasoning
// backend when it grows past a token threshold. Compressors only ever
// rewrite the ephemeral view; the session history they were built from
// is left untouched.
package compaction

import (
	"errors"
	"fmt"

	"github.com/nugget/reactor/internal/llm"
)

// Config controls when and how much of a view is compacted.
type Config struct {
	MaxTokens            int     `yaml:"max_tokens"`    // Context window size
	TriggerRatio         float64 `yaml:"trigger_ratio"` // Trigger compaction at this ratio (e.g., 0.7 = 70%)
	KeepRecent           int     `yaml:"keep_recent"`   // Number of recent messages to always keep
	MinMessagesToCompact int     `yaml:"min_messages"`  // Minimum folded messages before summarizing
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens:            8000,
		TriggerRatio:         0.7,
		KeepRecent:           10,
		MinMessagesToCompact: 20,
	}
}

// ErrInvalidConfig is returned by [Config.Validate].
var ErrInvalidConfig = errors.New("invalid compaction config")

// Validate reports whether the configuration can be used.
func (c Config) Validate() error {
	switch {
	case c.MaxTokens <= 0:
		return fmt.Errorf("%w: max_tokens must be positive, got %d", ErrInvalidConfig, c.MaxTokens)
	case c.TriggerRatio <= 0 || c.TriggerRatio > 1:
		return fmt.Errorf("%w: trigger_ratio must be in (0, 1], got %g", ErrInvalidConfig, c.TriggerRatio)
	case c.KeepRecent < 0:
		return fmt.Errorf("%w: keep_recent must not be negative, got %d", ErrInvalidConfig, c.KeepRecent)
	case c.MinMessagesToCompact < 0:
		return fmt.Errorf("%w: min_messages must not be negative, got %d", ErrInvalidConfig, c.MinMessagesToCompact)
	}
	return nil
}

// Threshold is the estimated token count above which compaction triggers.
func (c Config) Threshold() int {
	return int(float64(c.MaxTokens) * c.TriggerRatio)
}

// Result is the replacement view produced by a compressor.
type Result struct {
	Messages        []llm.Message
	Folded          int // messages removed or summarized
	EstimatedTokens int // estimate for Messages
}

// EstimateTokens sums the per-message estimate over messages.
func EstimateTokens(messages []llm.Message) int {
	n := 0
	for _, m := range messages {
		n += llm.EstimateTokens(m.Content)
	}
	return n
}

// Stats summarizes a view against cfg, for logging.
func Stats(messages []llm.Message, cfg Config) map[string]any {
	tokens := EstimateTokens(messages)
	return map[string]any{
		"token_count":      tokens,
		"max_tokens":       cfg.MaxTokens,
		"trigger_at":       cfg.Threshold(),
		"needs_compaction": needsCompression(messages, cfg),
		"ratio":            float64(tokens) / float64(cfg.MaxTokens),
	}
}

// needsCompression is the shared trigger: over threshold and with more
// foldable messages than the tail that is always kept.
func needsCompression(messages []llm.Message, cfg Config) bool {
	if EstimateTokens(messages) <= cfg.Threshold() {
		return false
	}
	_, body := splitLeadingSystem(messages)
	return len(body) > cfg.KeepRecent
}

// splitLeadingSystem separates the run of system messages at the start
// of the view from everything after it.
func splitLeadingSystem(messages []llm.Message) (head, body []llm.Message) {
	i := 0
	for i < len(messages) && messages[i].Role == llm.RoleSystem {
		i++
	}
	return messages[:i], messages[i:]
}

// split returns the leading system messages, the foldable middle and
// the kept tail.
func split(messages []llm.Message, keep int) (head, middle, tail []llm.Message) {
	head, body := splitLeadingSystem(messages)
	if keep > len(body) {
		keep = len(body)
	}
	cut := len(body) - keep
	return head, body[:cut], body[cut:]
}

// assemble builds a new view without aliasing the input slices.
func assemble(head []llm.Message, marker llm.Message, tail []llm.Message) []llm.Message {
	out := make([]llm.Message, 0, len(head)+1+len(tail))
	out = append(out, head...)
	out = append(out, marker)
	out = append(out, tail...)
	return out
}
