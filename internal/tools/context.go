package tools

import "context"

type contextKey string

const sessionIDKey contextKey = "session_id"

// WithSessionID tags ctx with the mission session a tool call belongs to.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFromContext extracts the session ID from the context.
// Returns "fast-path" if not set.
func SessionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok && id != "" {
		return id
	}
	return "fast-path"
}
