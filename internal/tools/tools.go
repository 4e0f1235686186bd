package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/nugget/reactor/internal/action"
)

// Handler executes a tool. A returned error is a tool-level failure:
// it is reported to the model, not to the caller of Execute.
type Handler func(ctx context.Context, args action.Value) (string, error)

// Tool represents a callable tool.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	Handler     Handler        `json:"-"`

	// Inline results are never offloaded to the artifact store.
	Inline bool `json:"-"`
}

// Result is the outcome of one tool execution.
type Result struct {
	Success     bool     `json:"success"`
	Content     string   `json:"content"`
	CreatedRefs []string `json:"created_refs,omitempty"`
}

// ArtifactStore receives tool output too large to pass inline.
type ArtifactStore interface {
	Put(ctx context.Context, sessionID, source, content string) (string, error)
}

// Registry holds available tools. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*Tool
	logger *slog.Logger

	artifacts ArtifactStore
	threshold int
}

// NewRegistry creates a registry with the built-in tools registered.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		tools:  make(map[string]*Tool),
		logger: logger,
	}
	r.registerBuiltins()
	return r
}

// SetArtifactStore offloads successful results longer than threshold
// bytes to store. A non-positive threshold disables offloading.
func (r *Registry) SetArtifactStore(store ArtifactStore, threshold int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts = store
	r.threshold = threshold
}

// Register adds a tool to the registry, replacing any tool of the same
// name.
func (r *Registry) Register(t *Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = t
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// List returns all tools sorted by name.
func (r *Registry) List() []*Tool {
	r.mu.RLock()
	out := make([]*Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Describe renders the tool listing placed in a mission system prompt.
func (r *Registry) Describe() string {
	var sb strings.Builder
	for i, t := range r.List() {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "- %s: %s", t.Name, t.Description)
		if params := paramNames(t.Parameters); len(params) > 0 {
			fmt.Fprintf(&sb, " (args: %s)", strings.Join(params, ", "))
		}
	}
	return sb.String()
}

// paramNames lists the properties of a JSON-schema object, required
// ones first.
func paramNames(schema map[string]any) []string {
	props, _ := schema["properties"].(map[string]any)
	if len(props) == 0 {
		return nil
	}
	required := map[string]bool{}
	if req, ok := schema["required"].([]string); ok {
		for _, n := range req {
			required[n] = true
		}
	}
	names := make([]string, 0, len(props))
	for n := range props {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if required[names[i]] != required[names[j]] {
			return required[names[i]]
		}
		return names[i] < names[j]
	})
	for i, n := range names {
		if !required[n] {
			names[i] = n + "?"
		}
	}
	return names
}

// Execute runs a tool by name. Unknown tools return
// *ErrToolUnavailable; handler errors become unsuccessful results.
func (r *Registry) Execute(ctx context.Context, name string, args action.Value) (*Result, error) {
	tool := r.Get(name)
	if tool == nil {
		return nil, &ErrToolUnavailable{ToolName: name}
	}
	if args.IsNull() {
		args = action.EmptyObject()
	}

	content, err := tool.Handler(ctx, args)
	if err != nil {
		var unavailable *ErrToolUnavailable
		if errors.As(err, &unavailable) {
			return nil, err
		}
		r.logger.Debug("tool failed", "tool", name, "session_id", SessionIDFromContext(ctx), "error", err)
		return &Result{Success: false, Content: err.Error()}, nil
	}

	res := &Result{Success: true, Content: content}
	if !tool.Inline {
		r.offload(ctx, name, res)
	}
	return res, nil
}

// offload moves an oversized result into the artifact store, leaving a
// reference and a preview in its place. Store failures keep the inline
// content.
func (r *Registry) offload(ctx context.Context, name string, res *Result) {
	r.mu.RLock()
	store, threshold := r.artifacts, r.threshold
	r.mu.RUnlock()

	if store == nil || threshold <= 0 || len(res.Content) <= threshold {
		return
	}

	ref, err := store.Put(ctx, SessionIDFromContext(ctx), name, res.Content)
	if err != nil {
		r.logger.Warn("artifact offload failed, keeping inline output",
			"tool", name, "bytes", len(res.Content), "error", err)
		return
	}

	r.logger.Debug("tool output offloaded", "tool", name, "ref", ref, "bytes", len(res.Content))
	res.Content = fmt.Sprintf("Output saved as RefID: %s. %s", ref, preview(res.Content, 200))
	res.CreatedRefs = append(res.CreatedRefs, ref)
}

// preview returns the first n bytes of s on one line, cut at a rune
// boundary.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
