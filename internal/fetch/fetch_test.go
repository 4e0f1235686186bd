package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nugget/reactor/internal/action"
	"github.com/nugget/reactor/internal/tools"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>  Test   Page </title></head>
<body>
<nav>Navigation stuff</nav>
<script>var x = 1;</script>
<style>.foo { color: red; }</style>
<main>
<h1>Hello World</h1>
<p>This is a test paragraph with <strong>bold text</strong>.</p>
<p>Second
   paragraph.</p>
</main>
<footer>Footer stuff</footer>
</body>
</html>`

func TestExtractHTML(t *testing.T) {
	title, text := extractHTML([]byte(samplePage))

	if title != "Test Page" {
		t.Errorf("title = %q, want %q", title, "Test Page")
	}
	want := "Hello World\n\nThis is a test paragraph with bold text .\n\nSecond paragraph."
	if text != want {
		t.Errorf("text = %q, want %q", text, want)
	}
	for _, banned := range []string{"var x", "color: red", "Navigation", "Footer"} {
		if strings.Contains(text, banned) {
			t.Errorf("text contains hidden content %q", banned)
		}
	}
}

func TestClipRunes(t *testing.T) {
	tests := []struct {
		in      string
		n       int
		want    string
		clipped bool
	}{
		{"hello", 10, "hello", false},
		{"hello", 5, "hello", false},
		{"hello", 3, "hel", true},
		{"héllo", 2, "hé", true},
		{"日本語テキスト", 3, "日本語", true},
	}
	for _, tt := range tests {
		got, clipped := clipRunes(tt.in, tt.n)
		if got != tt.want || clipped != tt.clipped {
			t.Errorf("clipRunes(%q, %d) = %q, %v; want %q, %v", tt.in, tt.n, got, clipped, tt.want, tt.clipped)
		}
	}
}

func TestFetch_HTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "reactor/") {
			t.Errorf("User-Agent = %q, want reactor/ prefix", ua)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title>Test</title></head><body><p>Hello from test server</p></body></html>`))
	}))
	defer srv.Close()

	page, err := New(nil).Fetch(context.Background(), srv.URL, 0)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if page.Title != "Test" {
		t.Errorf("Title = %q, want Test", page.Title)
	}
	if page.Text != "Hello from test server" {
		t.Errorf("Text = %q", page.Text)
	}
	if page.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d", page.StatusCode)
	}
}

func TestFetch_PlainTextTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	page, err := New(nil).Fetch(context.Background(), srv.URL, 40)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(page.Text) != 40 || !page.Truncated {
		t.Errorf("len(Text) = %d, Truncated = %v; want 40, true", len(page.Text), page.Truncated)
	}
}

func TestFetch_MaxBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(strings.Repeat("y", 1000)))
	}))
	defer srv.Close()

	page, err := New(nil, WithMaxBytes(64)).Fetch(context.Background(), srv.URL, 0)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(page.Text) != 64 {
		t.Errorf("len(Text) = %d, want 64", len(page.Text))
	}
}

func TestFetch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone fishing", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(nil).Fetch(context.Background(), srv.URL, 0)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !strings.Contains(err.Error(), "HTTP 404") || !strings.Contains(err.Error(), "gone fishing") {
		t.Errorf("error = %v", err)
	}
}

func TestFetch_EmptyURL(t *testing.T) {
	if _, err := New(nil).Fetch(context.Background(), "   ", 0); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestRegister_WebFetchTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	reg := tools.NewRegistry(nil)
	Register(reg, New(nil, WithHTTPClient(srv.Client())))

	if reg.Get("web_fetch") == nil {
		t.Fatal("web_fetch not registered")
	}

	args := action.Object(map[string]action.Value{"url": action.String(srv.URL)})
	res, err := reg.Execute(context.Background(), "web_fetch", args)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Success {
		t.Fatalf("Success = false, content %q", res.Content)
	}
	if !strings.HasPrefix(res.Content, "Title: Test Page\nURL: "+srv.URL+"\n\nHello World") {
		t.Errorf("Content = %q", res.Content)
	}

	res, err = reg.Execute(context.Background(), "web_fetch", action.EmptyObject())
	if err != nil {
		t.Fatalf("Execute without url: %v", err)
	}
	if res.Success || res.Content != "url is required" {
		t.Errorf("missing url result = %+v", res)
	}
}
