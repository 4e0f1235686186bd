// Package session holds the state of one slow-path mission: its status,
// append-only history, task progress and token usage. Sessions are owned
// by a single iteration loop; stores receive snapshots.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nugget/reactor/internal/action"
	"github.com/nugget/reactor/internal/llm"
	"github.com/nugget/reactor/internal/usage"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ErrTerminal is returned when changing the status of a finished session.
var ErrTerminal = errors.New("session is in a terminal state")

// ErrNotFound is returned by stores for unknown session IDs.
var ErrNotFound = errors.New("session not found")

// ToolCallInfo records a tool invocation alongside the observation
// entry that reported it.
type ToolCallInfo struct {
	Name      string       `json:"name"`
	Arguments action.Value `json:"arguments"`
	Result    string       `json:"result"`
}

// Entry is one history record. Entries are never modified after append.
type Entry struct {
	Role      string        `json:"role"`
	Content   string        `json:"content"`
	ToolCall  *ToolCallInfo `json:"tool_call,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// TaskState is the mission's progress record.
type TaskState struct {
	Iteration      int            `json:"iteration"`
	Goal           string         `json:"goal"`
	Observations   []string       `json:"observations"`
	PendingActions []action.Value `json:"pending_actions"`
}

// Session is the state of one mission.
type Session struct {
	ID        string        `json:"id"`
	Status    Status        `json:"status"`
	History   []Entry       `json:"history"`
	Task      *TaskState    `json:"task"`
	Usage     usage.Tracker `json:"usage"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// New creates a running session whose first history entry is the
// system prompt.
func New(goal string, budget int, systemPrompt string) *Session {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	now := time.Now().UTC()
	return &Session{
		ID:     id.String(),
		Status: StatusRunning,
		History: []Entry{{
			Role:      llm.RoleSystem,
			Content:   systemPrompt,
			Timestamp: now,
		}},
		Task: &TaskState{
			Goal:           goal,
			Observations:   []string{},
			PendingActions: []action.Value{},
		},
		Usage:     usage.NewTracker(budget),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Goal returns the mission goal.
func (s *Session) Goal() string {
	if s.Task == nil {
		return ""
	}
	return s.Task.Goal
}

// Iteration returns the current task iteration.
func (s *Session) Iteration() int {
	if s.Task == nil {
		return 0
	}
	return s.Task.Iteration
}

// Append adds a plain history entry.
func (s *Session) Append(role, content string) {
	s.appendEntry(Entry{Role: role, Content: content})
}

// AppendToolObservation adds a user-role observation carrying the tool
// call that produced it.
func (s *Session) AppendToolObservation(content string, call ToolCallInfo) {
	s.appendEntry(Entry{Role: llm.RoleUser, Content: content, ToolCall: &call})
}

func (s *Session) appendEntry(e Entry) {
	now := time.Now().UTC()
	e.Timestamp = now
	s.History = append(s.History, e)
	s.UpdatedAt = now
}

// SetIteration records the iteration about to run.
func (s *Session) SetIteration(n int) {
	s.Task.Iteration = n
	s.UpdatedAt = time.Now().UTC()
}

// AddObservation appends to the task's observation list.
func (s *Session) AddObservation(obs string) {
	s.Task.Observations = append(s.Task.Observations, obs)
}

// SetPending replaces the actions decoded but not yet enacted.
func (s *Session) SetPending(actions ...action.Value) {
	s.Task.PendingActions = append(s.Task.PendingActions[:0], actions...)
}

// Complete moves a running session to Completed.
func (s *Session) Complete() error {
	return s.transition(StatusCompleted)
}

// Fail moves a running session to Failed.
func (s *Session) Fail() error {
	return s.transition(StatusFailed)
}

func (s *Session) transition(to Status) error {
	if s.Status.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrTerminal, s.Status, to)
	}
	s.Status = to
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Messages returns the ordered message view of the history.
func (s *Session) Messages() []llm.Message {
	out := make([]llm.Message, len(s.History))
	for i, e := range s.History {
		out[i] = llm.Message{Role: e.Role, Content: e.Content}
	}
	return out
}

// Clone returns a deep copy suitable for handing to a store.
func (s *Session) Clone() *Session {
	c := *s
	c.History = make([]Entry, len(s.History))
	for i, e := range s.History {
		if e.ToolCall != nil {
			tc := *e.ToolCall
			e.ToolCall = &tc
		}
		c.History[i] = e
	}
	if s.Task != nil {
		t := *s.Task
		t.Observations = append([]string{}, s.Task.Observations...)
		t.PendingActions = append([]action.Value{}, s.Task.PendingActions...)
		c.Task = &t
	}
	return &c
}

// Summary is the listing view of a stored session.
type Summary struct {
	ID          string    `json:"id"`
	Status      Status    `json:"status"`
	Goal        string    `json:"goal"`
	Iteration   int       `json:"iteration"`
	Entries     int       `json:"entries"`
	TotalTokens int       `json:"total_tokens"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Summarize returns the listing view of s.
func (s *Session) Summarize() Summary {
	return Summary{
		ID:          s.ID,
		Status:      s.Status,
		Goal:        s.Goal(),
		Iteration:   s.Iteration(),
		Entries:     len(s.History),
		TotalTokens: s.Usage.TotalTokens,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}
