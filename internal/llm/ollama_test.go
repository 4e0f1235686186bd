package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestOllama(t *testing.T, h http.HandlerFunc, opts ...OllamaOption) *OllamaClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]OllamaOption{WithOllamaHTTPClient(srv.Client())}, opts...)
	return NewOllamaClient(srv.URL, "qwen3:4b", nil, opts...)
}

func TestOllamaChat(t *testing.T) {
	var got ollamaRequest
	c := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q, want /api/chat", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model": "qwen3:4b",
			"message": {"role": "assistant", "content": "FINAL ANSWER: 4"},
			"done": true,
			"total_duration": 1500000000,
			"prompt_eval_count": 120,
			"eval_count": 8
		}`))
	}, WithOllamaTemperature(0.2), WithOllamaMaxTokens(256))

	resp, err := c.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "You are a ReAct agent."},
		{Role: RoleUser, Content: "what is 2+2"},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if got.Stream {
		t.Error("request should be non-streaming")
	}
	if len(got.Messages) != 2 || got.Messages[1].Content != "what is 2+2" {
		t.Errorf("messages not forwarded in order: %+v", got.Messages)
	}
	if got.Options == nil || got.Options.Temperature != 0.2 || got.Options.NumPredict != 256 {
		t.Errorf("options = %+v, want temperature 0.2 num_predict 256", got.Options)
	}

	if resp.Content != "FINAL ANSWER: 4" {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage.PromptTokens != 120 || resp.Usage.CompletionTokens != 8 {
		t.Errorf("Usage = %+v, want {120 8}", resp.Usage)
	}
	if resp.Duration.Seconds() != 1.5 {
		t.Errorf("Duration = %v, want 1.5s", resp.Duration)
	}
}

func TestOllamaChat_OmitsEmptyOptions(t *testing.T) {
	var raw map[string]any
	c := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"ok"},"done":true}`))
	})

	resp, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if _, ok := raw["options"]; ok {
		t.Errorf("options should be omitted when unset, got %v", raw["options"])
	}
	if resp.Model != "qwen3:4b" {
		t.Errorf("Model = %q, want configured model as fallback", resp.Model)
	}
}

func TestOllamaChat_HTTPError(t *testing.T) {
	c := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	})

	_, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !strings.Contains(err.Error(), "ollama API error 404") || !strings.Contains(err.Error(), "model not found") {
		t.Errorf("error = %q, want status and body", err)
	}
}

func TestOllamaPing(t *testing.T) {
	c := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"models":[]}`))
	})
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestComplete(t *testing.T) {
	c := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 1 || req.Messages[0].Role != RoleUser {
			t.Errorf("Complete should send a single user message, got %+v", req.Messages)
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"summary"},"done":true}`))
	})

	out, err := Complete(context.Background(), c, "summarize this")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "summary" {
		t.Errorf("Complete = %q, want %q", out, "summary")
	}
}
