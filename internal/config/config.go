// Package config handles Reactor configuration loading.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nugget/reactor/internal/compaction"
	"github.com/nugget/reactor/internal/paths"
	"github.com/nugget/reactor/internal/usage"
)

// DefaultSearchPaths returns the config file search order:
// ./config.yaml, ~/.config/reactor/config.yaml, /etc/reactor/config.yaml.
func DefaultSearchPaths() []string {
	search := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		search = append(search, filepath.Join(home, ".config", "reactor", "config.yaml"))
	}

	return append(search, "/etc/reactor/config.yaml")
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Reactor configuration.
type Config struct {
	Agent      AgentConfig      `yaml:"agent"`
	LLM        LLMConfig        `yaml:"llm"`
	Compaction CompactionConfig `yaml:"compaction"`
	Sessions   SessionsConfig   `yaml:"sessions"`
	Delegation DelegationConfig `yaml:"delegation"`
	Tools      ToolsConfig      `yaml:"tools"`
	DataDir    string           `yaml:"data_dir"`
	LogLevel   string           `yaml:"log_level"`
	LogFormat  string           `yaml:"log_format"` // text or json
}

// AgentConfig bounds the mission loop.
type AgentConfig struct {
	MaxIterations int  `yaml:"max_iterations"`
	DefaultBudget int  `yaml:"default_budget"`
	PersistState  bool `yaml:"persist_state"`
	DescribeTools bool `yaml:"describe_tools"`
	// RequireLLM refuses to start without a reasoning backend instead of
	// answering with the mock result.
	RequireLLM   bool `yaml:"require_llm"`
	RequireTools bool `yaml:"require_tools"`
}

// LLMConfig selects the reasoning backend. Provider "ollama" talks to
// a local Ollama server; any other provider goes through gollm.
// An empty provider runs without a backend.
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	URL         string        `yaml:"url"`
	APIKey      string        `yaml:"api_key"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Compaction strategies.
const (
	CompactionTruncate  = "truncate"
	CompactionSummarize = "summarize"
	CompactionOff       = "off"
)

// CompactionConfig controls context compression.
type CompactionConfig struct {
	Strategy          string `yaml:"strategy"`
	compaction.Config `yaml:",inline"`
}

// Session store backends.
const (
	SessionsMemory = "memory"
	SessionsSQLite = "sqlite"
	SessionsRedis  = "redis"
)

// SessionsConfig selects where session snapshots go.
type SessionsConfig struct {
	Backend   string        `yaml:"backend"`
	Redis     RedisConfig   `yaml:"redis"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// RedisConfig defines the Redis connection for the redis backend.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DelegationConfig bounds delegated child missions.
type DelegationConfig struct {
	Enabled       bool `yaml:"enabled"`
	MaxIterations int  `yaml:"max_iterations"`
	DefaultBudget int  `yaml:"default_budget"`
}

// ToolsConfig toggles optional tools.
type ToolsConfig struct {
	Fetch FetchConfig `yaml:"fetch"`
	// ArtifactThreshold offloads tool output longer than this many
	// bytes to the artifact store. Zero disables offloading.
	ArtifactThreshold int `yaml:"artifact_threshold"`
}

// FetchConfig configures the web_fetch tool.
type FetchConfig struct {
	Enabled  bool  `yaml:"enabled"`
	MaxBytes int64 `yaml:"max_bytes"`
}

// Load reads configuration from a YAML file, expanding environment
// variables, then fills defaults and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := &Config{
		Agent: AgentConfig{PersistState: true},
	}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Default returns a configuration that runs with no file: in-memory
// sessions, truncating compaction and no reasoning backend.
func Default() *Config {
	cfg := &Config{
		Agent: AgentConfig{PersistState: true},
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Agent.MaxIterations == 0 {
		c.Agent.MaxIterations = 10
	}
	if c.Agent.DefaultBudget == 0 {
		c.Agent.DefaultBudget = usage.DefaultBudget
	}

	if c.LLM.Provider == "ollama" && c.LLM.URL == "" {
		c.LLM.URL = "http://localhost:11434"
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 5 * time.Minute
	}

	def := compaction.DefaultConfig()
	if c.Compaction.Strategy == "" {
		c.Compaction.Strategy = CompactionTruncate
	}
	if c.Compaction.MaxTokens == 0 {
		c.Compaction.MaxTokens = def.MaxTokens
	}
	if c.Compaction.TriggerRatio == 0 {
		c.Compaction.TriggerRatio = def.TriggerRatio
	}
	if c.Compaction.KeepRecent == 0 {
		c.Compaction.KeepRecent = def.KeepRecent
	}
	if c.Compaction.MinMessagesToCompact == 0 {
		c.Compaction.MinMessagesToCompact = def.MinMessagesToCompact
	}

	if c.Sessions.Backend == "" {
		c.Sessions.Backend = SessionsMemory
	}
	if c.Sessions.Backend == SessionsRedis && c.Sessions.Redis.Address == "" {
		c.Sessions.Redis.Address = "localhost:6379"
	}

	if c.Delegation.MaxIterations == 0 {
		c.Delegation.MaxIterations = c.Agent.MaxIterations
	}
	if c.Delegation.DefaultBudget == 0 {
		c.Delegation.DefaultBudget = c.Agent.DefaultBudget / 2
	}

	if c.DataDir == "" {
		c.DataDir = "~/.local/share/reactor"
	}
	c.DataDir = paths.ExpandHome(c.DataDir)
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}

	if c.Agent.MaxIterations < 0 {
		errs = append(errs, fmt.Errorf("agent.max_iterations must be positive, got %d", c.Agent.MaxIterations))
	}
	if c.Agent.DefaultBudget < 0 {
		errs = append(errs, fmt.Errorf("agent.default_budget must be positive, got %d", c.Agent.DefaultBudget))
	}

	if c.LLM.Provider != "" && c.LLM.Model == "" {
		errs = append(errs, fmt.Errorf("llm.model is required when llm.provider is %q", c.LLM.Provider))
	}
	if c.Agent.RequireLLM && c.LLM.Provider == "" {
		errs = append(errs, errors.New("agent.require_llm is set but llm.provider is empty"))
	}

	switch c.Compaction.Strategy {
	case CompactionTruncate, CompactionSummarize, CompactionOff:
	default:
		errs = append(errs, fmt.Errorf("compaction.strategy must be truncate, summarize or off, got %q", c.Compaction.Strategy))
	}
	if c.Compaction.Strategy != CompactionOff {
		if err := c.Compaction.Config.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("compaction: %w", err))
		}
	}

	switch c.Sessions.Backend {
	case SessionsMemory, SessionsSQLite, SessionsRedis:
	default:
		errs = append(errs, fmt.Errorf("sessions.backend must be memory, sqlite or redis, got %q", c.Sessions.Backend))
	}

	if c.Delegation.Enabled && (c.Delegation.MaxIterations < 0 || c.Delegation.DefaultBudget < 0) {
		errs = append(errs, errors.New("delegation limits must be positive"))
	}
	if c.Tools.ArtifactThreshold < 0 {
		errs = append(errs, fmt.Errorf("tools.artifact_threshold must not be negative, got %d", c.Tools.ArtifactThreshold))
	}

	return errors.Join(errs...)
}

// DBPath returns the path of a database file under DataDir.
func (c *Config) DBPath(name string) string {
	return filepath.Join(c.DataDir, strings.TrimSuffix(name, ".db")+".db")
}
