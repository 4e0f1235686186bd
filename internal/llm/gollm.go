package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teilomillet/gollm"
)

// GollmConfig selects a hosted provider reached through gollm.
type GollmConfig struct {
	Provider    string
	Model       string
	APIKey      string
	MaxTokens   int
	Temperature float64
}

// GollmClient adapts a gollm.LLM to [Client]. gollm takes one prompt
// plus an optional system prompt, so the message list is folded into a
// role-labelled transcript.
type GollmClient struct {
	provider string
	model    string
	llm      gollm.LLM
	logger   *slog.Logger
}

// NewGollmClient builds a gollm-backed client. An empty APIKey lets
// gollm fall back to the provider's environment variable.
func NewGollmClient(cfg GollmConfig, logger *slog.Logger) (*GollmClient, error) {
	if cfg.Provider == "" {
		return nil, fmt.Errorf("gollm: provider is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("gollm: model is required for provider %s", cfg.Provider)
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []gollm.ConfigOption{
		gollm.SetProvider(cfg.Provider),
		gollm.SetModel(cfg.Model),
		gollm.SetMaxTokens(cfg.MaxTokens),
		gollm.SetTemperature(cfg.Temperature),
		gollm.SetMaxRetries(0),
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if cfg.APIKey != "" {
		opts = append(opts, gollm.SetAPIKey(cfg.APIKey))
	}

	l, err := gollm.NewLLM(opts...)
	if err != nil {
		return nil, fmt.Errorf("create gollm client for provider %s: %w", cfg.Provider, err)
	}

	return &GollmClient{
		provider: cfg.Provider,
		model:    cfg.Model,
		llm:      l,
		logger:   logger,
	}, nil
}

// Chat folds messages into a single gollm prompt and generates a reply.
// gollm does not surface provider usage, so tokens are estimated.
func (c *GollmClient) Chat(ctx context.Context, messages []Message) (*ChatResponse, error) {
	system, text := foldMessages(messages)

	var popts []gollm.PromptOption
	if system != "" {
		popts = append(popts, gollm.WithSystemPrompt(system, gollm.CacheTypeEphemeral))
	}
	prompt := gollm.NewPrompt(text, popts...)

	c.logger.Log(ctx, LevelTrace, "gollm request",
		"provider", c.provider, "model", c.model, "system", system, "prompt", text)

	start := time.Now()
	out, err := c.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%s generate: %w", c.provider, err)
	}

	return &ChatResponse{
		Content:  out,
		Model:    c.model,
		Duration: time.Since(start),
		Usage: Usage{
			PromptTokens:     EstimateTokens(system) + EstimateTokens(text),
			CompletionTokens: EstimateTokens(out),
		},
	}, nil
}

// Ping is a no-op; gollm offers no cheap reachability probe and a
// generate call would spend tokens.
func (c *GollmClient) Ping(context.Context) error { return nil }

// Model returns the configured model name.
func (c *GollmClient) Model() string { return c.model }

// foldMessages splits messages into a system prompt and a transcript.
// System messages are joined in order; the remainder is labelled by
// role, except that user turns are left bare.
func foldMessages(messages []Message) (system, transcript string) {
	var sys []string
	var parts []string
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			sys = append(sys, m.Content)
		case RoleUser:
			parts = append(parts, m.Content)
		case RoleAssistant:
			if m.Content != "" {
				parts = append(parts, "[Assistant]: "+m.Content)
			}
		default:
			parts = append(parts, "["+m.Role+"]: "+m.Content)
		}
	}
	transcript = strings.Join(parts, "\n")
	if transcript == "" {
		transcript = "Continue."
	}
	return strings.TrimSpace(strings.Join(sys, "\n")), transcript
}
