package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nugget/reactor/internal/action"
	"github.com/nugget/reactor/internal/agent"
	"github.com/nugget/reactor/internal/session"
)

const defaultSessionLimit = 20

// withStack loads config, opens the stack and hands it to fn.
func withStack(ctx context.Context, stderr io.Writer, configPath string, fn func(st *stack) error) error {
	cfg, logger, err := setup(stderr, configPath)
	if err != nil {
		return err
	}
	st, err := openStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("close stack", "error", err)
		}
	}()
	return fn(st)
}

// parseAskArgs splits -ref flags from the goal words.
func parseAskArgs(args []string) (goal string, refs []string, err error) {
	var words []string
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-ref" && i+1 < len(args):
			refs = append(refs, args[i+1])
			i++
		case strings.HasPrefix(args[i], "-ref="):
			refs = append(refs, strings.TrimPrefix(args[i], "-ref="))
		default:
			words = append(words, args[i])
		}
	}
	goal = strings.TrimSpace(strings.Join(words, " "))
	if goal == "" {
		return "", nil, errors.New("usage: reactor ask [-ref r]... <goal>")
	}
	return goal, refs, nil
}

// runAsk runs one mission to completion and prints its answer.
func runAsk(ctx context.Context, stdout, stderr io.Writer, configPath, outputFmt string, args []string) error {
	goal, refs, err := parseAskArgs(args)
	if err != nil {
		return err
	}
	return withStack(ctx, stderr, configPath, func(st *stack) error {
		res, err := st.runMission(ctx, agent.Mission{Goal: goal, VisualRefs: refs})
		if err != nil {
			return fmt.Errorf("ask: %w", err)
		}
		return writeResult(stdout, outputFmt, res)
	})
}

// runMission runs m while a second goroutine drains the event bus into
// the debug log.
func (st *stack) runMission(ctx context.Context, m agent.Mission) (*agent.Result, error) {
	sub := st.bus.Subscribe(64)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for e := range sub {
			st.logger.Debug("event", "source", e.Source, "kind", e.Kind, "data", e.Data)
		}
		return nil
	})

	var res *agent.Result
	g.Go(func() error {
		defer st.bus.Unsubscribe(sub)
		r, err := st.loop.ComplexMission(gctx, m)
		res = r
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

type resultView struct {
	Kind             string `json:"kind"`
	Text             string `json:"text"`
	Code             string `json:"code,omitempty"`
	SessionID        string `json:"session_id,omitempty"`
	Iterations       int    `json:"iterations,omitempty"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
}

func writeResult(w io.Writer, outputFmt string, res *agent.Result) error {
	if outputFmt == outputJSON {
		kind := "text"
		if res.IsError() {
			kind = "error"
		}
		return writeJSON(w, resultView{
			Kind:             kind,
			Text:             res.Text,
			Code:             res.Code,
			SessionID:        res.SessionID,
			Iterations:       res.Iterations,
			PromptTokens:     res.PromptTokens,
			CompletionTokens: res.CompletionTokens,
		})
	}
	return writeMarkdown(w, outputFmt, res.String())
}

// runTool executes a single tool through the fast path.
func runTool(ctx context.Context, stdout, stderr io.Writer, configPath, outputFmt string, args []string) error {
	name := args[0]
	toolArgs := action.EmptyObject()
	if len(args) > 1 {
		v, err := action.Parse(strings.Join(args[1:], " "))
		if err != nil {
			return fmt.Errorf("tool %s: arguments: %w", name, err)
		}
		toolArgs = v
	}

	return withStack(ctx, stderr, configPath, func(st *stack) error {
		res := st.loop.FastAction(ctx, name, toolArgs)
		if res.IsError() && outputFmt != outputJSON {
			return errors.New(res.String())
		}
		return writeResult(stdout, outputFmt, res)
	})
}

// runTools lists the registered tools.
func runTools(ctx context.Context, stdout, stderr io.Writer, configPath, outputFmt string) error {
	return withStack(ctx, stderr, configPath, func(st *stack) error {
		list := st.registry.List()
		if outputFmt == outputJSON {
			return writeJSON(stdout, list)
		}
		t := &table{header: []string{"NAME", "DESCRIPTION"}}
		for _, tool := range list {
			t.add(tool.Name, clip(tool.Description, 80))
		}
		return t.write(stdout, outputFmt)
	})
}

// runSessions lists stored sessions, most recently updated first.
func runSessions(ctx context.Context, stdout, stderr io.Writer, configPath, outputFmt string, args []string) error {
	limit := defaultSessionLimit
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("sessions: limit must be a positive number, got %q", args[0])
		}
		limit = n
	}

	return withStack(ctx, stderr, configPath, func(st *stack) error {
		list, err := st.sessions.List(ctx, limit)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if outputFmt == outputJSON {
			if list == nil {
				list = []session.Summary{}
			}
			return writeJSON(stdout, list)
		}
		t := &table{header: []string{"ID", "STATUS", "ITER", "TOKENS", "UPDATED", "GOAL"}}
		for _, s := range list {
			t.add(s.ID, string(s.Status), strconv.Itoa(s.Iteration), strconv.Itoa(s.TotalTokens),
				s.UpdatedAt.Local().Format(time.DateTime), clip(s.Goal, 60))
		}
		return t.write(stdout, outputFmt)
	})
}

// runShow prints one stored session as a transcript.
func runShow(ctx context.Context, stdout, stderr io.Writer, configPath, outputFmt, id string) error {
	return withStack(ctx, stderr, configPath, func(st *stack) error {
		sess, err := st.sessions.Load(ctx, id)
		if err != nil {
			return fmt.Errorf("show %s: %w", id, err)
		}
		if outputFmt == outputJSON {
			return writeJSON(stdout, sess)
		}
		return writeMarkdown(stdout, outputFmt, transcript(sess))
	})
}

// transcript renders a session as markdown.
func transcript(s *session.Session) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Session %s\n\n", s.ID)
	fmt.Fprintf(&sb, "- Status: %s\n", s.Status)
	fmt.Fprintf(&sb, "- Goal: %s\n", s.Goal())
	fmt.Fprintf(&sb, "- Iteration: %d\n", s.Iteration())
	fmt.Fprintf(&sb, "- Tokens: %d of %d\n", s.Usage.TotalTokens, s.Usage.BudgetLimit)
	for _, e := range s.History {
		fmt.Fprintf(&sb, "\n## %s\n\n", e.Role)
		if e.ToolCall != nil {
			fmt.Fprintf(&sb, "Tool call: `%s` %s\n\n", e.ToolCall.Name, e.ToolCall.Arguments.String())
		}
		fmt.Fprintf(&sb, "```\n%s\n```\n", strings.TrimRight(e.Content, "\n"))
	}
	return sb.String()
}

// runCancel flags a session for cancellation. The running mission
// stops at its next iteration boundary.
func runCancel(ctx context.Context, stdout, stderr io.Writer, configPath, id string) error {
	return withStack(ctx, stderr, configPath, func(st *stack) error {
		if err := st.cancel.Request(ctx, id); err != nil {
			return fmt.Errorf("cancel %s: %w", id, err)
		}
		fmt.Fprintf(stdout, "cancellation requested for %s\n", id)
		return nil
	})
}

type usageView struct {
	Start            time.Time        `json:"start"`
	End              time.Time        `json:"end"`
	Calls            int              `json:"calls"`
	PromptTokens     int64            `json:"prompt_tokens"`
	CompletionTokens int64            `json:"completion_tokens"`
	ByRole           map[string]int64 `json:"by_role"`
	ByModel          map[string]int64 `json:"by_model"`
}

// runUsage summarizes the token ledger over a trailing window.
func runUsage(ctx context.Context, stdout, stderr io.Writer, configPath, outputFmt string, args []string) error {
	window := 24 * time.Hour
	if len(args) > 0 {
		d, err := time.ParseDuration(args[0])
		if err != nil || d <= 0 {
			return fmt.Errorf("usage: window must be a positive duration, got %q", args[0])
		}
		window = d
	}

	return withStack(ctx, stderr, configPath, func(st *stack) error {
		end := time.Now()
		start := end.Add(-window)

		total, err := st.usage.Summary(ctx, start, end)
		if err != nil {
			return fmt.Errorf("usage summary: %w", err)
		}
		byRole, err := st.usage.SummaryByRole(ctx, start, end)
		if err != nil {
			return fmt.Errorf("usage by role: %w", err)
		}
		byModel, err := st.usage.SummaryByModel(ctx, start, end)
		if err != nil {
			return fmt.Errorf("usage by model: %w", err)
		}

		v := usageView{
			Start:            start,
			End:              end,
			Calls:            total.TotalRecords,
			PromptTokens:     total.TotalPromptTokens,
			CompletionTokens: total.TotalCompletionTokens,
			ByRole:           make(map[string]int64, len(byRole)),
			ByModel:          make(map[string]int64, len(byModel)),
		}
		for k, s := range byRole {
			v.ByRole[k] = s.TotalTokens()
		}
		for k, s := range byModel {
			v.ByModel[k] = s.TotalTokens()
		}
		if outputFmt == outputJSON {
			return writeJSON(stdout, v)
		}

		t := &table{header: []string{"GROUP", "NAME", "TOKENS"}}
		t.add("total", "", strconv.FormatInt(total.TotalTokens(), 10))
		for _, k := range sortedKeys(v.ByRole) {
			t.add("role", k, strconv.FormatInt(v.ByRole[k], 10))
		}
		for _, k := range sortedKeys(v.ByModel) {
			t.add("model", k, strconv.FormatInt(v.ByModel[k], 10))
		}
		fmt.Fprintf(stdout, "%d reasoning calls since %s\n\n", total.TotalRecords, start.Local().Format(time.DateTime))
		return t.write(stdout, outputFmt)
	})
}

// runDelegations lists recent delegation records.
func runDelegations(ctx context.Context, stdout, stderr io.Writer, configPath, outputFmt string, args []string) error {
	parent := ""
	if len(args) > 0 {
		parent = args[0]
	}
	return withStack(ctx, stderr, configPath, func(st *stack) error {
		recs, err := st.delegations.List(ctx, parent, defaultSessionLimit)
		if err != nil {
			return fmt.Errorf("list delegations: %w", err)
		}
		if outputFmt == outputJSON {
			return writeJSON(stdout, recs)
		}
		t := &table{header: []string{"ID", "PARENT", "OUTCOME", "ITER", "OBJECTIVE"}}
		for _, r := range recs {
			outcome := "ok"
			switch {
			case r.Exhausted:
				outcome = r.ExhaustReason
			case !r.Success:
				outcome = "failed"
			}
			t.add(r.ID, r.ParentSessionID, outcome, strconv.Itoa(r.Iterations), clip(r.Objective, 60))
		}
		return t.write(stdout, outputFmt)
	})
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
