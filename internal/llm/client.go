package llm

import "context"

// Client is the interface that all reasoning backends implement.
// Implementations must be safe for concurrent use; the iteration loop
// shares one client across sessions.
type Client interface {
	// Chat sends the ordered messages and returns the model's reply.
	Chat(ctx context.Context, messages []Message) (*ChatResponse, error)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}

// Complete sends a single user prompt through c and returns the reply
// text. It adapts a Client to the func(ctx, prompt) shape used by
// summarizers.
func Complete(ctx context.Context, c Client, prompt string) (string, error) {
	resp, err := c.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
