package fetch

import (
	"context"
	"fmt"
	"strings"

	"github.com/nugget/reactor/internal/action"
	"github.com/nugget/reactor/internal/tools"
)

// Register adds the web_fetch tool backed by f to r.
func Register(r *tools.Registry, f *Fetcher) {
	r.Register(&tools.Tool{
		Name:        "web_fetch",
		Description: "Fetch a web page and return its title and readable text.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "URL to fetch. https:// is assumed when no scheme is given.",
				},
				"max_chars": map[string]any{
					"type":        "integer",
					"description": fmt.Sprintf("Maximum characters of text to return. Default: %d.", DefaultMaxChars),
				},
			},
			"required": []string{"url"},
		},
		Handler: f.handle,
	})
}

func (f *Fetcher) handle(ctx context.Context, args action.Value) (string, error) {
	urlVal, _ := args.Field("url")
	url, _ := urlVal.AsString()
	if url == "" {
		return "", fmt.Errorf("url is required")
	}

	maxChars := 0
	if v, ok := args.Field("max_chars"); ok {
		if n, ok := v.AsInt(); ok && n > 0 {
			maxChars = int(n)
		}
	}

	page, err := f.Fetch(ctx, url, maxChars)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if page.Title != "" {
		fmt.Fprintf(&sb, "Title: %s\n", page.Title)
	}
	fmt.Fprintf(&sb, "URL: %s\n\n", page.URL)
	sb.WriteString(page.Text)
	if page.Truncated {
		sb.WriteString("\n\n[truncated]")
	}
	return sb.String(), nil
}
