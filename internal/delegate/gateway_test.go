package delegate

import (
	"context"
	"errors"
	"testing"
)

type stubDelegator struct {
	got Request
	out *Outcome
	err error
}

func (s *stubDelegator) Delegate(_ context.Context, req Request) (*Outcome, error) {
	s.got = req
	return s.out, s.err
}

func TestGatewayObserve(t *testing.T) {
	tests := []struct {
		name string
		d    *stubDelegator
		want string
	}{
		{
			name: "success",
			d:    &stubDelegator{out: &Outcome{Success: true, Result: "42 files"}},
			want: "Subagent completed successfully:\n42 files",
		},
		{
			name: "failure with message",
			d:    &stubDelegator{out: &Outcome{Error: "ran out of iterations"}},
			want: "Subagent failed: ran out of iterations",
		},
		{
			name: "failure without message",
			d:    &stubDelegator{out: &Outcome{}},
			want: "Subagent failed: ",
		},
		{
			name: "delegator error",
			d:    &stubDelegator{err: errors.New("connection reset")},
			want: "Delegation error: connection reset",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGateway(tt.d, nil)
			got := g.Observe(context.Background(), "count files", "in /tmp")
			if got != tt.want {
				t.Errorf("Observe = %q, want %q", got, tt.want)
			}
			if tt.d.got.Objective != "count files" || tt.d.got.Context != "in /tmp" {
				t.Errorf("request = %+v", tt.d.got)
			}
		})
	}
}

func TestGatewayObserve_NoDelegator(t *testing.T) {
	want := "Delegation not available (no delegator configured). Objective: count files"

	if got := NewGateway(nil, nil).Observe(context.Background(), "count files", ""); got != want {
		t.Errorf("Observe = %q, want %q", got, want)
	}

	var g *Gateway
	if got := g.Observe(context.Background(), "count files", ""); got != want {
		t.Errorf("nil gateway Observe = %q, want %q", got, want)
	}
}
