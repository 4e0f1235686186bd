package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nugget/reactor/internal/httpkit"
)

// DefaultOllamaURL is used when no base URL is configured.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaClient talks to the Ollama chat API.
type OllamaClient struct {
	baseURL     string
	model       string
	temperature float64
	numPredict  int
	httpClient  *http.Client
	logger      *slog.Logger
}

// OllamaOption configures an OllamaClient.
type OllamaOption func(*OllamaClient)

// WithOllamaTemperature sets the sampling temperature.
func WithOllamaTemperature(t float64) OllamaOption {
	return func(c *OllamaClient) { c.temperature = t }
}

// WithOllamaMaxTokens caps the completion length (num_predict).
func WithOllamaMaxTokens(n int) OllamaOption {
	return func(c *OllamaClient) { c.numPredict = n }
}

// WithOllamaHTTPClient replaces the default HTTP client.
func WithOllamaHTTPClient(hc *http.Client) OllamaOption {
	return func(c *OllamaClient) { c.httpClient = hc }
}

// NewOllamaClient creates a client for model served at baseURL.
func NewOllamaClient(baseURL, model string, logger *slog.Logger, opts ...OllamaOption) *OllamaClient {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &OllamaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		logger:  logger,
		// Large local models can take minutes to answer; the whole-request
		// timeout is generous and dial failures are retried.
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(5*time.Minute),
			httpkit.WithRetry(3, 2*time.Second),
			httpkit.WithLogger(logger),
		),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type ollamaRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  *ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model           string  `json:"model"`
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	TotalDuration   int64   `json:"total_duration,omitempty"`
	PromptEvalCount int     `json:"prompt_eval_count,omitempty"`
	EvalCount       int     `json:"eval_count,omitempty"`
}

// Chat sends a non-streaming chat request to /api/chat.
func (c *OllamaClient) Chat(ctx context.Context, messages []Message) (*ChatResponse, error) {
	req := ollamaRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
	}
	if c.temperature != 0 || c.numPredict != 0 {
		req.Options = &ollamaOptions{Temperature: c.temperature, NumPredict: c.numPredict}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	c.logger.Log(ctx, LevelTrace, "ollama request", "model", c.model, "payload", string(payload))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama API error %d: %s", resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 2048))
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	c.logger.Log(ctx, LevelTrace, "ollama response", "model", out.Model, "content", out.Message.Content)

	duration := time.Duration(out.TotalDuration)
	if duration == 0 {
		duration = time.Since(start)
	}

	model := out.Model
	if model == "" {
		model = c.model
	}

	return &ChatResponse{
		Content:  out.Message.Content,
		Model:    model,
		Duration: duration,
		Usage: Usage{
			PromptTokens:     out.PromptEvalCount,
			CompletionTokens: out.EvalCount,
		},
	}, nil
}

// Ping checks if Ollama is reachable.
func (c *OllamaClient) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error %d", resp.StatusCode)
	}
	return nil
}

// Model returns the configured model name.
func (c *OllamaClient) Model() string {
	return c.model
}
