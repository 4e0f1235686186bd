package artifacts

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/nugget/reactor/internal/action"
	"github.com/nugget/reactor/internal/tools"
)

const defaultReadChars = 4000

// Register adds the artifact_read tool to r.
func Register(r *tools.Registry, s *Store) {
	r.Register(&tools.Tool{
		Name:        "artifact_read",
		Description: "Read a stored tool output by RefID, a page at a time.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"ref":       map[string]any{"type": "string"},
				"offset":    map[string]any{"type": "integer", "description": "Byte offset to start from."},
				"max_chars": map[string]any{"type": "integer"},
			},
			"required": []string{"ref"},
		},
		Handler: s.handleRead,
		Inline:  true,
	})
}

func (s *Store) handleRead(ctx context.Context, args action.Value) (string, error) {
	refVal, _ := args.Field("ref")
	ref, _ := refVal.AsString()
	if ref == "" {
		return "", fmt.Errorf("ref is required")
	}
	offset := intArg(args, "offset", 0)
	limit := intArg(args, "max_chars", defaultReadChars)
	if limit == 0 {
		limit = defaultReadChars
	}

	a, err := s.Get(ctx, ref)
	if errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("no artifact with RefID %s", ref)
	}
	if err != nil {
		return "", err
	}

	if offset >= len(a.Content) {
		return fmt.Sprintf("[RefID %s: offset %d is past the end (%d bytes)]", ref, offset, len(a.Content)), nil
	}
	offset = runeStart(a.Content, offset)
	end := min(offset+limit, len(a.Content))
	if end < len(a.Content) {
		end = runeStart(a.Content, end)
		if end <= offset {
			_, size := utf8.DecodeRuneInString(a.Content[offset:])
			end = offset + size
		}
	}
	page := a.Content[offset:end]
	if end < len(a.Content) {
		page += fmt.Sprintf("\n\n[RefID %s: bytes %d-%d of %d, continue with offset %d]", ref, offset, end, len(a.Content), end)
	}
	return page, nil
}

// runeStart moves i back to the start of the rune containing it.
func runeStart(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

func intArg(args action.Value, name string, def int) int {
	v, ok := args.Field(name)
	if !ok {
		return def
	}
	n, ok := v.AsInt()
	if !ok || n < 0 {
		return def
	}
	return int(n)
}
