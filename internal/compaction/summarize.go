package compaction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nugget/reactor/internal/llm"
	"github.com/nugget/reactor/internal/prompts"
)

// Summarizer generates a summary of the folded part of a view. goal is
// the mission goal when it can be recovered from the system prompt.
type Summarizer interface {
	Summarize(ctx context.Context, goal string, messages []llm.Message) (string, error)
}

// SummarizingCompressor replaces the folded middle of a view with a
// summary. Views whose middle is shorter than MinMessagesToCompact are
// truncated instead.
type SummarizingCompressor struct {
	summarizer Summarizer
	logger     *slog.Logger
}

// NewSummarizingCompressor creates a compressor backed by s.
func NewSummarizingCompressor(s Summarizer, logger *slog.Logger) *SummarizingCompressor {
	if logger == nil {
		logger = slog.Default()
	}
	return &SummarizingCompressor{summarizer: s, logger: logger}
}

// NeedsCompression implements the agent's compressor contract.
func (c *SummarizingCompressor) NeedsCompression(messages []llm.Message, cfg Config) bool {
	return needsCompression(messages, cfg)
}

// Compress summarizes the folded middle. Summarizer errors are returned
// wrapped.
func (c *SummarizingCompressor) Compress(ctx context.Context, messages []llm.Message, cfg Config) (*Result, error) {
	head, middle, tail := split(messages, cfg.KeepRecent)

	c.logger.Debug("compaction check",
		"eligible_messages", len(middle),
		"min_required", cfg.MinMessagesToCompact,
		"keep_recent", cfg.KeepRecent,
		"token_count", EstimateTokens(messages),
		"max_tokens", cfg.MaxTokens,
	)

	if len(middle) < cfg.MinMessagesToCompact {
		c.logger.Debug("summary skipped: not enough messages, truncating",
			"eligible", len(middle),
			"required", cfg.MinMessagesToCompact,
		)
		return truncate(messages, cfg), nil
	}

	summary, err := c.summarizer.Summarize(ctx, goalFrom(head), middle)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}

	out := assemble(head, llm.Message{
		Role:    llm.RoleSystem,
		Content: formatSummary(len(middle), summary),
	}, tail)

	return &Result{
		Messages:        out,
		Folded:          len(middle),
		EstimatedTokens: EstimateTokens(out),
	}, nil
}

// formatSummary creates a structured summary message.
func formatSummary(folded int, summary string) string {
	var sb strings.Builder
	sb.WriteString("[Conversation Summary]\n")
	sb.WriteString(fmt.Sprintf("Messages compacted: %d\n\n", folded))
	sb.WriteString(strings.TrimSpace(summary))
	return sb.String()
}

// goalFrom recovers the GOAL line of a ReAct system prompt.
func goalFrom(head []llm.Message) string {
	for _, m := range head {
		for _, line := range strings.Split(m.Content, "\n") {
			if g, ok := strings.CutPrefix(line, "GOAL: "); ok {
				return strings.TrimSpace(g)
			}
		}
	}
	return ""
}

// LLMSummarizer uses a model to generate summaries.
type LLMSummarizer struct {
	llmFunc func(ctx context.Context, prompt string) (string, error)
}

// NewLLMSummarizer creates a summarizer that calls llmFunc with the
// compaction prompt.
func NewLLMSummarizer(llmFunc func(ctx context.Context, prompt string) (string, error)) *LLMSummarizer {
	return &LLMSummarizer{llmFunc: llmFunc}
}

// Summarize renders messages as a transcript and asks the model for a
// summary.
func (s *LLMSummarizer) Summarize(ctx context.Context, goal string, messages []llm.Message) (string, error) {
	var sb strings.Builder
	for _, m := range messages {
		role := m.Role
		if len(role) > 0 {
			role = strings.ToUpper(role[:1]) + role[1:]
		}
		sb.WriteString(fmt.Sprintf("%s: %s\n\n", role, m.Content))
	}
	return s.llmFunc(ctx, prompts.CompactionPrompt(goal, sb.String()))
}

// SimpleSummarizer creates a basic summary without a model (fallback).
type SimpleSummarizer struct{}

// Summarize creates an extractive summary from tool observations and
// the short user turns.
func (SimpleSummarizer) Summarize(_ context.Context, goal string, messages []llm.Message) (string, error) {
	var topics []string
	var observations int

	for _, m := range messages {
		if m.Role != llm.RoleUser {
			continue
		}
		switch {
		case strings.HasPrefix(m.Content, "OBSERVATION: "):
			observations++
		case len(m.Content) < 100:
			topics = append(topics, "- "+m.Content)
		}
	}

	var sb strings.Builder
	if goal != "" {
		sb.WriteString("Goal: " + goal + "\n\n")
	}
	sb.WriteString("Earlier turns:\n")
	if len(topics) > 0 {
		for _, t := range topics[:min(5, len(topics))] {
			sb.WriteString(t + "\n")
		}
	} else {
		sb.WriteString("- Reasoning steps only\n")
	}

	if observations > 0 {
		sb.WriteString("\nActions taken:\n")
		sb.WriteString(fmt.Sprintf("- %d tool calls\n", observations))
	}

	return sb.String(), nil
}
