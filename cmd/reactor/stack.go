package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for database/sql

	"github.com/nugget/reactor/internal/agent"
	"github.com/nugget/reactor/internal/artifacts"
	"github.com/nugget/reactor/internal/compaction"
	"github.com/nugget/reactor/internal/config"
	"github.com/nugget/reactor/internal/delegate"
	"github.com/nugget/reactor/internal/events"
	"github.com/nugget/reactor/internal/fetch"
	"github.com/nugget/reactor/internal/httpkit"
	"github.com/nugget/reactor/internal/llm"
	"github.com/nugget/reactor/internal/opstate"
	"github.com/nugget/reactor/internal/session"
	"github.com/nugget/reactor/internal/tools"
	"github.com/nugget/reactor/internal/usage"
)

// sessionStore is what the CLI needs from a session backend.
type sessionStore interface {
	Save(ctx context.Context, s *session.Session) error
	Load(ctx context.Context, id string) (*session.Session, error)
	List(ctx context.Context, limit int) ([]session.Summary, error)
	Close() error
}

// stack is every capability a command can use, built once from config.
// All SQLite-backed stores share one database handle.
type stack struct {
	cfg    *config.Config
	logger *slog.Logger
	bus    *events.Bus

	db          *sql.DB
	sessions    sessionStore
	usage       *usage.Store
	artifacts   *artifacts.Store
	cancel      *opstate.CancelFlags
	delegations *delegate.Store

	reasoner llm.Client
	registry *tools.Registry
	loop     *agent.Loop
}

// openStack opens the state database and session backend and wires the
// mission loop. Callers must Close the result.
func openStack(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stack, error) {
	st := &stack{cfg: cfg, logger: logger, bus: events.New()}
	if err := st.open(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func (st *stack) open(ctx context.Context) error {
	cfg := st.cfg

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	path := cfg.DBPath("reactor")
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	st.db = db
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("open state database %s: %w", path, err)
	}

	if st.usage, err = usage.NewStoreDB(db); err != nil {
		return err
	}
	if st.artifacts, err = artifacts.NewStoreDB(db); err != nil {
		return err
	}
	if st.delegations, err = delegate.NewStore(db); err != nil {
		return err
	}
	ops, err := opstate.NewStoreDB(db)
	if err != nil {
		return err
	}
	st.cancel = opstate.NewCancelFlags(ops)

	if st.sessions, err = newSessionStore(ctx, cfg, db); err != nil {
		return err
	}

	if st.reasoner, err = newReasoner(cfg, st.logger); err != nil {
		return err
	}

	st.registry = tools.NewRegistry(st.logger)
	artifacts.Register(st.registry, st.artifacts)
	st.registry.SetArtifactStore(st.artifacts, cfg.Tools.ArtifactThreshold)
	if cfg.Tools.Fetch.Enabled {
		var opts []fetch.Option
		if cfg.Tools.Fetch.MaxBytes > 0 {
			opts = append(opts, fetch.WithMaxBytes(cfg.Tools.Fetch.MaxBytes))
		}
		fetch.Register(st.registry, fetch.New(st.logger, opts...))
	}

	st.loop, err = st.newLoop(st.missionConfig(), usage.RoleMission, st.newDelegator())
	return err
}

// Close releases the session backend and the state database.
func (st *stack) Close() error {
	var errs []error
	if st.sessions != nil {
		errs = append(errs, st.sessions.Close())
	}
	if st.db != nil {
		errs = append(errs, st.db.Close())
	}
	return errors.Join(errs...)
}

func (st *stack) missionConfig() agent.Config {
	a := st.cfg.Agent
	return agent.Config{
		MaxIterations:   a.MaxIterations,
		DefaultBudget:   a.DefaultBudget,
		PersistState:    a.PersistState,
		DescribeTools:   a.DescribeTools,
		RequireReasoner: a.RequireLLM,
		RequireTools:    a.RequireTools,
		Compaction:      st.cfg.Compaction.Config,
	}
}

// newLoop builds a mission loop over the shared capabilities. A nil
// delegator leaves the loop unable to delegate.
func (st *stack) newLoop(cfg agent.Config, role string, d delegate.Delegator) (*agent.Loop, error) {
	cfg.UsageRole = role

	opts := []agent.Option{
		agent.WithTools(st.registry),
		agent.WithSessionStore(st.sessions),
		agent.WithCompressor(st.newCompressor()),
		agent.WithEvents(st.bus),
		agent.WithUsageRecorder(st.usage),
		agent.WithCancelFlags(st.cancel),
		agent.WithLogger(st.logger.With("role", role)),
	}
	if st.reasoner != nil {
		opts = append(opts, agent.WithReasoner(st.reasoner))
	}
	if d != nil {
		opts = append(opts, agent.WithDelegator(d))
	}
	return agent.New(cfg, opts...)
}

// newDelegator returns an executor that runs sub-missions on a child
// loop with the delegation limits, or nil when delegation is disabled.
// Child loops cannot delegate further.
func (st *stack) newDelegator() delegate.Delegator {
	if !st.cfg.Delegation.Enabled {
		return nil
	}

	childCfg := st.missionConfig()
	childCfg.MaxIterations = st.cfg.Delegation.MaxIterations
	childCfg.DefaultBudget = st.cfg.Delegation.DefaultBudget

	var child *agent.Loop
	run := func(ctx context.Context, goal, contextSummary string) (*delegate.ChildResult, error) {
		if child == nil {
			return nil, errors.New("delegate loop not initialized")
		}
		res, err := child.ComplexMission(ctx, agent.Mission{Goal: goal, ContextSummary: contextSummary})
		if err != nil {
			return nil, err
		}
		return &delegate.ChildResult{
			Text:             res.Text,
			SessionID:        res.SessionID,
			Iterations:       res.Iterations,
			PromptTokens:     res.PromptTokens,
			CompletionTokens: res.CompletionTokens,
		}, nil
	}

	exec := delegate.NewExecutor(run, st.logger.With("component", "delegate"))
	exec.SetStore(st.delegations)
	exec.SetEventBus(st.bus)

	var err error
	child, err = st.newLoop(childCfg, usage.RoleDelegate, nil)
	if err != nil {
		st.logger.Warn("delegation disabled", "error", err)
		return nil
	}
	return exec
}

func (st *stack) newCompressor() agent.Compressor {
	switch st.cfg.Compaction.Strategy {
	case config.CompactionOff:
		return nil
	case config.CompactionSummarize:
		var s compaction.Summarizer = compaction.SimpleSummarizer{}
		if st.reasoner != nil {
			reasoner := st.reasoner
			s = compaction.NewLLMSummarizer(func(ctx context.Context, prompt string) (string, error) {
				return llm.Complete(ctx, reasoner, prompt)
			})
		}
		return compaction.NewSummarizingCompressor(s, st.logger)
	default:
		return compaction.TruncationCompressor{}
	}
}

// newReasoner picks the reasoning backend. An empty provider returns
// nil, which makes missions answer with the mock result.
func newReasoner(cfg *config.Config, logger *slog.Logger) (llm.Client, error) {
	c := cfg.LLM
	switch c.Provider {
	case "":
		return nil, nil
	case "ollama":
		return llm.NewOllamaClient(c.URL, c.Model, logger,
			llm.WithOllamaTemperature(c.Temperature),
			llm.WithOllamaMaxTokens(c.MaxTokens),
			llm.WithOllamaHTTPClient(httpkit.NewClient(
				httpkit.WithTimeout(c.Timeout),
				httpkit.WithRetry(3, 2*time.Second),
				httpkit.WithLogger(logger),
			)),
		), nil
	default:
		g, err := llm.NewGollmClient(llm.GollmConfig{
			Provider:    c.Provider,
			Model:       c.Model,
			APIKey:      c.APIKey,
			MaxTokens:   c.MaxTokens,
			Temperature: c.Temperature,
		}, logger)
		if err != nil {
			return nil, err
		}
		return g, nil
	}
}

func newSessionStore(ctx context.Context, cfg *config.Config, db *sql.DB) (sessionStore, error) {
	switch cfg.Sessions.Backend {
	case config.SessionsSQLite:
		s, err := session.NewSQLiteStoreDB(db)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.SessionsRedis:
		s, err := session.NewRedisStore(ctx, session.RedisConfig{
			Address:   cfg.Sessions.Redis.Address,
			Password:  cfg.Sessions.Redis.Password,
			DB:        cfg.Sessions.Redis.DB,
			KeyPrefix: cfg.Sessions.KeyPrefix,
			TTL:       cfg.Sessions.TTL,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return session.NewMemoryStore(), nil
	}
}
