package extract

import (
	"net/url"
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func mustParse(t *testing.T, doc string) *html.Node {
	t.Helper()
	n, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return n
}

func TestVisibleText_StripsBoilerplate(t *testing.T) {
	doc := mustParse(t, `
	<html>
	<head><title>Atlas</title><style>body{color:red}</style></head>
	<body>
		<header>Site Header</header>
		<nav><a href="/">Home</a></nav>
		<h1>Atlas <span class="mw-editsection">[edit]</span></h1>
		<p>Atlas is a   humanoid
		robot.</p>
		<script>var x = "hidden";</script>
		<!-- a comment -->
		<aside>Related</aside>
		<p>Built by <b>Boston Dynamics</b>.</p>
		<footer>Copyright</footer>
	</body>
	</html>`)

	got := VisibleText(doc)

	for _, hidden := range []string{"Site Header", "Home", "[edit]", "hidden", "comment", "Related", "Copyright", "color:red"} {
		if strings.Contains(got, hidden) {
			t.Errorf("expected %q to be stripped, got %q", hidden, got)
		}
	}
	for _, visible := range []string{"Atlas", "humanoid", "Boston Dynamics"} {
		if !strings.Contains(got, visible) {
			t.Errorf("expected %q in %q", visible, got)
		}
	}
	if strings.Count(got, "Atlas") != 2 {
		t.Errorf("title text leaked into body text: %q", got)
	}
	if strings.ContainsAny(got, "\n\t") || strings.Contains(got, "  ") {
		t.Errorf("text nodes should be joined with single spaces, got %q", got)
	}
}

func TestVisibleText_Empty(t *testing.T) {
	doc := mustParse(t, "")
	if got := VisibleText(doc); got != "" {
		t.Errorf("expected empty text, got %q", got)
	}
}

func TestFindHelpers(t *testing.T) {
	doc := mustParse(t, `<div class="result a"><a class="result__a" href="https://x.test/1">One</a></div>
		<div class="result"><a class="result__a" href="https://x.test/2">Two <b>bold</b></a></div>`)

	results := FindAll(doc, ElementWithClass("div", "result"))
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	first := FindFirst(doc, ElementWithClass("a", "result__a"))
	if first == nil {
		t.Fatal("expected anchor")
	}
	if Attr(first, "href") != "https://x.test/1" {
		t.Errorf("unexpected href %q", Attr(first, "href"))
	}
	if Attr(first, "missing") != "" {
		t.Error("missing attribute should be empty")
	}

	second := FindAll(doc, ElementWithClass("a", "result__a"))[1]
	if Text(second) != "Two bold" {
		t.Errorf("unexpected text %q", Text(second))
	}

	if FindFirst(doc, ElementWithClass("span", "nope")) != nil {
		t.Error("expected no match")
	}
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		href string
		want string
	}{
		{"https://a.test/x", "https://a.test/x"},
		{"/relative", ""},
		{"", ""},
		{"not a url at all", ""},
		{"http://b.test", "http://b.test"},
	}
	for _, tt := range tests {
		if got := ResolveURL(nil, tt.href); got != tt.want {
			t.Errorf("ResolveURL(nil, %q) = %q, want %q", tt.href, got, tt.want)
		}
	}
}

func TestResolveURL_AgainstBase(t *testing.T) {
	base, _ := url.Parse("https://duckduckgo.com/")
	tests := []struct {
		href string
		want string
	}{
		{"//duckduckgo.com/l/?uddg=x", "https://duckduckgo.com/l/?uddg=x"},
		{"/wiki/Atlas", "https://duckduckgo.com/wiki/Atlas"},
		{"#top", ""},
		{"javascript:void(0)", ""},
		{"mailto:a@b.c", ""},
		{"ftp://files.test/x", ""},
	}
	for _, tt := range tests {
		if got := ResolveURL(base, tt.href); got != tt.want {
			t.Errorf("ResolveURL(base, %q) = %q, want %q", tt.href, got, tt.want)
		}
	}
}
