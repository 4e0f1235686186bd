// Package fetch retrieves web pages for the web_fetch tool and reduces
// them to readable text.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nugget/reactor/internal/httpkit"
)

const (
	// DefaultMaxBytes caps the downloaded body (2 MB).
	DefaultMaxBytes int64 = 2 << 20
	// DefaultMaxChars caps the extracted text handed to the model.
	DefaultMaxChars = 20000
)

// Page is the readable form of a fetched URL.
type Page struct {
	URL         string
	Title       string
	Text        string
	ContentType string
	StatusCode  int
	Truncated   bool
}

// Fetcher downloads pages and extracts their text.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
	logger   *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithMaxBytes caps the downloaded body size.
func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) { f.maxBytes = n }
}

// New creates a Fetcher.
func New(logger *slog.Logger, opts ...Option) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fetcher{
		client: httpkit.NewClient(
			httpkit.WithTimeout(30*time.Second),
			httpkit.WithLogger(logger),
		),
		maxBytes: DefaultMaxBytes,
		logger:   logger,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch downloads rawURL and extracts up to maxChars runes of text. A
// URL without a scheme is fetched over https; maxChars <= 0 means
// DefaultMaxChars.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, maxChars int) (*Page, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("url is required")
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "https://" + rawURL
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 512))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	page := &Page{
		URL:         rawURL,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}

	ct := strings.ToLower(page.ContentType)
	switch {
	case strings.Contains(ct, "html"):
		page.Title, page.Text = extractHTML(body)
	case utf8.Valid(body):
		page.Text = string(body)
	default:
		page.Text = fmt.Sprintf("Binary content (%s), %d bytes", page.ContentType, len(body))
	}

	page.Text, page.Truncated = clipRunes(page.Text, maxChars)

	f.logger.Debug("page fetched",
		"url", rawURL,
		"status", resp.StatusCode,
		"bytes", len(body),
		"chars", utf8.RuneCountInString(page.Text),
		"truncated", page.Truncated,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return page, nil
}

// clipRunes cuts s to at most n runes.
func clipRunes(s string, n int) (string, bool) {
	if len(s) <= n {
		return s, false
	}
	seen := 0
	for i := range s {
		if seen == n {
			return s[:i], true
		}
		seen++
	}
	return s, false
}
