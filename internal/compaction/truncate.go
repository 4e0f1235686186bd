package compaction

import (
	"context"
	"fmt"

	"github.com/nugget/reactor/internal/llm"
)

// TruncationCompressor drops the oldest foldable messages, leaving a
// single marker in their place. It never calls out and never fails.
type TruncationCompressor struct{}

// NeedsCompression implements the agent's compressor contract.
func (TruncationCompressor) NeedsCompression(messages []llm.Message, cfg Config) bool {
	return needsCompression(messages, cfg)
}

// Compress keeps the leading system messages and the last
// cfg.KeepRecent messages.
func (TruncationCompressor) Compress(_ context.Context, messages []llm.Message, cfg Config) (*Result, error) {
	return truncate(messages, cfg), nil
}

func truncate(messages []llm.Message, cfg Config) *Result {
	head, middle, tail := split(messages, cfg.KeepRecent)
	if len(middle) == 0 {
		out := append([]llm.Message(nil), messages...)
		return &Result{Messages: out, EstimatedTokens: EstimateTokens(out)}
	}
	marker := llm.Message{
		Role:    llm.RoleSystem,
		Content: fmt.Sprintf("[%d earlier messages omitted to fit the context window]", len(middle)),
	}
	out := assemble(head, marker, tail)
	return &Result{
		Messages:        out,
		Folded:          len(middle),
		EstimatedTokens: EstimateTokens(out),
	}
}
