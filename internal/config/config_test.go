package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFindConfig_Explicit(t *testing.T) {
	path := writeConfig(t, "log_level: debug\n")

	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig(%q) error: %v", path, err)
	}
	if got != path {
		t.Errorf("FindConfig(%q) = %q, want %q", path, got, path)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	if _, err := FindConfig("/nonexistent/config.yaml"); err == nil {
		t.Fatal("FindConfig with missing explicit path should error")
	}
}

func TestFindConfig_CWD(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log_level: info\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	got, err := FindConfig("")
	if err != nil {
		t.Fatalf("FindConfig(\"\") error: %v", err)
	}
	if got != "config.yaml" {
		t.Errorf("FindConfig(\"\") = %q, want %q", got, "config.yaml")
	}
}

func TestDefaultSearchPaths(t *testing.T) {
	paths := DefaultSearchPaths()
	if paths[0] != "config.yaml" || paths[len(paths)-1] != "/etc/reactor/config.yaml" {
		t.Errorf("DefaultSearchPaths() = %v", paths)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Agent.MaxIterations != 10 || cfg.Agent.DefaultBudget != 50000 || !cfg.Agent.PersistState {
		t.Errorf("agent = %+v", cfg.Agent)
	}
	if cfg.Compaction.Strategy != CompactionTruncate || cfg.Compaction.MaxTokens != 8000 {
		t.Errorf("compaction = %+v", cfg.Compaction)
	}
	if cfg.Sessions.Backend != SessionsMemory {
		t.Errorf("sessions backend = %q", cfg.Sessions.Backend)
	}
	if cfg.Delegation.DefaultBudget != 25000 || cfg.Delegation.MaxIterations != 10 {
		t.Errorf("delegation = %+v", cfg.Delegation)
	}
	if cfg.LLM.Provider != "" {
		t.Errorf("provider = %q, want none", cfg.LLM.Provider)
	}
}

func TestLoad_Full(t *testing.T) {
	path := writeConfig(t, `
agent:
  max_iterations: 4
  default_budget: 1000
  persist_state: false
  describe_tools: true
llm:
  provider: ollama
  model: qwen3:4b
  timeout: 90s
compaction:
  strategy: summarize
  max_tokens: 4000
  trigger_ratio: 0.5
  keep_recent: 6
  min_messages: 8
sessions:
  backend: redis
  key_prefix: "test:"
  ttl: 24h
delegation:
  enabled: true
tools:
  fetch:
    enabled: true
  artifact_threshold: 4096
data_dir: /var/lib/reactor
log_format: json
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Agent.MaxIterations != 4 || cfg.Agent.DefaultBudget != 1000 || cfg.Agent.PersistState || !cfg.Agent.DescribeTools {
		t.Errorf("agent = %+v", cfg.Agent)
	}
	if cfg.LLM.URL != "http://localhost:11434" || cfg.LLM.Timeout != 90*time.Second {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	c := cfg.Compaction
	if c.Strategy != CompactionSummarize || c.MaxTokens != 4000 || c.TriggerRatio != 0.5 || c.KeepRecent != 6 || c.MinMessagesToCompact != 8 {
		t.Errorf("compaction = %+v", c)
	}
	if cfg.Sessions.Redis.Address != "localhost:6379" || cfg.Sessions.KeyPrefix != "test:" || cfg.Sessions.TTL != 24*time.Hour {
		t.Errorf("sessions = %+v", cfg.Sessions)
	}
	if !cfg.Delegation.Enabled || cfg.Delegation.MaxIterations != 4 || cfg.Delegation.DefaultBudget != 500 {
		t.Errorf("delegation = %+v", cfg.Delegation)
	}
	if !cfg.Tools.Fetch.Enabled || cfg.Tools.ArtifactThreshold != 4096 {
		t.Errorf("tools = %+v", cfg.Tools)
	}
	if got := cfg.DBPath("sessions"); got != "/var/lib/reactor/sessions.db" {
		t.Errorf("DBPath = %q", got)
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("REACTOR_TEST_KEY", "secret123")
	path := writeConfig(t, "llm:\n  provider: openai\n  model: gpt-4o-mini\n  api_key: ${REACTOR_TEST_KEY}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.LLM.APIKey != "secret123" {
		t.Errorf("api_key = %q, want %q", cfg.LLM.APIKey, "secret123")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"log level", "log_level: loud\n", `log_level "loud"`},
		{"log format", "log_format: xml\n", "log_format"},
		{"missing model", "llm:\n  provider: anthropic\n", "llm.model is required"},
		{"require llm", "agent:\n  require_llm: true\n", "require_llm"},
		{"strategy", "compaction:\n  strategy: squash\n", "compaction.strategy"},
		{"ratio", "compaction:\n  trigger_ratio: 3\n", "trigger_ratio"},
		{"backend", "sessions:\n  backend: etcd\n", "sessions.backend"},
		{"threshold", "tools:\n  artifact_threshold: -1\n", "artifact_threshold"},
		{"yaml", "agent: [\n", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoad_CompactionOffSkipsValidation(t *testing.T) {
	cfg, err := Load(writeConfig(t, "compaction:\n  strategy: \"off\"\n  trigger_ratio: 3\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Compaction.Strategy != CompactionOff {
		t.Errorf("strategy = %q", cfg.Compaction.Strategy)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{" TRACE ", LevelTrace, false},
		{"Debug", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestReplaceLogLevelNames(t *testing.T) {
	a := ReplaceLogLevelNames(nil, slog.Any(slog.LevelKey, LevelTrace))
	if a.Value.String() != "TRACE" {
		t.Errorf("trace level rendered as %q", a.Value.String())
	}
	b := ReplaceLogLevelNames(nil, slog.Any(slog.LevelKey, slog.LevelInfo))
	if b.Value.Any() != slog.LevelInfo {
		t.Errorf("info level changed to %v", b.Value)
	}
}

func TestLoad_ExpandsDataDirHome(t *testing.T) {
	t.Setenv("HOME", "/home/reactor")
	cfg, err := Load(writeConfig(t, "data_dir: ~/state\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "/home/reactor/state" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
}
