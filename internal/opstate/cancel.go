package opstate

import (
	"context"
	"time"
)

const cancelNamespace = "cancel"

// CancelFlags records cancellation requests for missions by session ID.
// A running loop polls IsRequested at each iteration boundary, so a
// request made from another process takes effect at the next step.
type CancelFlags struct {
	store *Store
}

// NewCancelFlags returns cancel flags kept in store.
func NewCancelFlags(store *Store) *CancelFlags {
	return &CancelFlags{store: store}
}

// Request flags sessionID for cancellation.
func (c *CancelFlags) Request(ctx context.Context, sessionID string) error {
	return c.store.Set(ctx, cancelNamespace, sessionID, time.Now().UTC().Format(time.RFC3339))
}

// IsRequested reports whether sessionID has been flagged.
func (c *CancelFlags) IsRequested(ctx context.Context, sessionID string) (bool, error) {
	v, err := c.store.Get(ctx, cancelNamespace, sessionID)
	if err != nil {
		return false, err
	}
	return v != "", nil
}

// Clear removes the flag for sessionID.
func (c *CancelFlags) Clear(ctx context.Context, sessionID string) error {
	return c.store.Delete(ctx, cancelNamespace, sessionID)
}

// Pending returns the flagged session IDs with their request times.
func (c *CancelFlags) Pending(ctx context.Context) (map[string]string, error) {
	return c.store.List(ctx, cancelNamespace)
}
