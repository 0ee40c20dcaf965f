package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/genesis/internal/model"
	"github.com/ppiankov/genesis/internal/util"
)

func testHTTPConfig(timeout time.Duration) model.HTTPConfig {
	return model.HTTPConfig{Timeout: timeout, UserAgent: model.DefaultUserAgent, MaxBodyBytes: 1 << 20}
}

func TestFetchText_StripsBoilerplate(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprint(w, `<html><head><script>track()</script><style>p{}</style></head>
<body><header>Site</header><nav>Home | About</nav>
<p>Atlas   is a
humanoid robot.</p><aside>Ads</aside><footer>Copyright</footer></body></html>`)
	}))
	defer server.Close()

	fetcher := NewFetcher(testHTTPConfig(5*time.Second), 4000)
	result := fetcher.FetchText(context.Background(), server.URL)

	if !result.OK() {
		t.Fatalf("Expected success, got %v", result.Err)
	}
	if result.Text != "Atlas is a humanoid robot." {
		t.Errorf("Unexpected text: %q", result.Text)
	}
	if gotUA != model.DefaultUserAgent {
		t.Errorf("Expected browser user agent, got %q", gotUA)
	}
	if result.Meta.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", result.Meta.StatusCode)
	}
}

func TestFetchText_Truncates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprintf(w, "<p>%s</p>", strings.Repeat("a", 100))
	}))
	defer server.Close()

	result := NewFetcher(testHTTPConfig(5*time.Second), 10).FetchText(context.Background(), server.URL)
	if result.Text != strings.Repeat("a", 10) {
		t.Errorf("Expected 10 characters, got %q", result.Text)
	}
}

func TestFetchText_CapCountsTextNotIndentation(t *testing.T) {
	indent := "\n" + strings.Repeat("\t", 18)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprintf(w, "<html><body>\n\t<div>\n\t\t<p>%s</p>\n\t</div>\n</body></html>",
			strings.Repeat("robot"+indent, 200))
	}))
	defer server.Close()

	result := NewFetcher(testHTTPConfig(5*time.Second), 500).FetchText(context.Background(), server.URL)
	if !result.OK() {
		t.Fatalf("Expected success, got %v", result.Err)
	}
	if n := len(result.Text); n < 495 || n > 500 {
		t.Errorf("Expected close to 500 characters, got %d", n)
	}
	if strings.ContainsAny(result.Text, "\n\t") || strings.Contains(result.Text, "  ") {
		t.Errorf("Whitespace should be collapsed, got %q", result.Text[:40])
	}
	if !strings.HasPrefix(result.Text, "robot robot robot") {
		t.Errorf("Unexpected text start: %q", result.Text[:40])
	}
}

func TestFetchText_PlainText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprint(w, "hello \n\n  world")
	}))
	defer server.Close()

	result := NewFetcher(testHTTPConfig(5*time.Second), 4000).FetchText(context.Background(), server.URL)
	if result.Text != "hello world" {
		t.Errorf("Unexpected text: %q", result.Text)
	}
}

func TestFetchText_Failures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/pdf":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.4"))
		case "/empty":
			w.Header().Set("Content-Type", "text/html")
			_, _ = fmt.Fprint(w, "<html><body><script>x()</script></body></html>")
		case "/loop":
			http.Redirect(w, r, "/loop", http.StatusFound)
		}
	}))
	defer server.Close()

	fetcher := NewFetcher(testHTTPConfig(5*time.Second), 4000)
	for _, path := range []string{"/missing", "/pdf", "/empty", "/loop"} {
		result := fetcher.FetchText(context.Background(), server.URL+path)
		if result.OK() || result.Err == nil {
			t.Errorf("%s: expected failure, got %q", path, result.Text)
		}
		if result.Text != "" {
			t.Errorf("%s: failed fetch must carry no text", path)
		}
	}

	result := fetcher.FetchText(context.Background(), "http://127.0.0.1:1/unreachable")
	if result.Err == nil {
		t.Error("Expected network failure")
	}
}

func TestFetchText_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	fetcher := NewFetcher(testHTTPConfig(100*time.Millisecond), 4000)
	start := time.Now()
	result := fetcher.FetchText(context.Background(), server.URL)

	if result.Err == nil {
		t.Fatal("Expected timeout failure")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Fetch should stop at its timeout, took %v", elapsed)
	}
}

func TestFetchText_RespectsRobots(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, "<p>content</p>")
	}))
	defer server.Close()

	robots := util.NewRobotsChecker(model.DefaultUserAgent, time.Second, nil)
	fetcher := NewFetcher(testHTTPConfig(5*time.Second), 4000, WithRobots(robots))

	if result := fetcher.FetchText(context.Background(), server.URL+"/private/page"); result.Err == nil {
		t.Error("Expected disallowed path to fail")
	}
	if result := fetcher.FetchText(context.Background(), server.URL+"/public"); !result.OK() {
		t.Errorf("Expected allowed path to succeed, got %v", result.Err)
	}
}
