package search

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ppiankov/genesis/internal/extract"
	"github.com/ppiankov/genesis/internal/model"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const defaultDuckDuckGoURL = "https://html.duckduckgo.com"

// DuckDuckGoProvider scrapes the keyless DuckDuckGo HTML endpoint
type DuckDuckGoProvider struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewDuckDuckGoProvider creates a DuckDuckGo provider
func NewDuckDuckGoProvider(cfg Config) (*DuckDuckGoProvider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultDuckDuckGoURL
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = model.DefaultUserAgent
	}
	return &DuckDuckGoProvider{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		userAgent:  ua,
		httpClient: newHTTPClient(cfg),
	}, nil
}

// Name returns the provider name
func (p *DuckDuckGoProvider) Name() string { return "duckduckgo" }

// Hosts returns the provider's own domains
func (p *DuckDuckGoProvider) Hosts() []string { return []string{"duckduckgo.com"} }

// Search runs one query
func (p *DuckDuckGoProvider) Search(ctx context.Context, query string, maxResults int) ([]model.SearchHit, error) {
	if maxResults <= 0 {
		return nil, nil
	}

	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/html/", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "duckduckgo: create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", p.userAgent)

	zap.L().Debug("duckduckgo search", zap.String("query", query))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, unavailable(p.Name(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, unavailable(p.Name(), eris.Errorf("status %d", resp.StatusCode))
	}

	doc, err := extract.Parse(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, unavailable(p.Name(), eris.Wrap(err, "parse results page"))
	}

	return parseDuckDuckGoResults(doc, maxResults), nil
}

func parseDuckDuckGoResults(doc *html.Node, maxResults int) []model.SearchHit {
	var hits []model.SearchHit
	for _, result := range extract.FindAll(doc, extract.ElementWithClass("div", "result")) {
		if extract.HasClass(result, "result--ad") {
			continue
		}
		anchor := extract.FindFirst(result, extract.ElementWithClass("a", "result__a"))
		if anchor == nil {
			continue
		}
		target := decodeRedirect(extract.Attr(anchor, "href"))
		if target == "" {
			continue
		}

		snippet := ""
		if s := extract.FindFirst(result, func(n *html.Node) bool {
			return n.Type == html.ElementNode && extract.HasClass(n, "result__snippet")
		}); s != nil {
			snippet = extract.Text(s)
		}

		hits = append(hits, model.SearchHit{Title: extract.Text(anchor), URL: target, Snippet: snippet})
		if len(hits) == maxResults {
			break
		}
	}
	return hits
}

// ddgResultsBase resolves relative result links
var ddgResultsBase = &url.URL{Scheme: "https", Host: "duckduckgo.com", Path: "/"}

// decodeRedirect unwraps DuckDuckGo's /l/?uddg= redirect links. Only
// http(s) targets survive.
func decodeRedirect(href string) string {
	resolved := extract.ResolveURL(ddgResultsBase, strings.TrimSpace(href))
	if resolved == "" {
		return ""
	}
	u, err := url.Parse(resolved)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return extract.ResolveURL(nil, target)
	}
	return resolved
}
