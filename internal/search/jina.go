package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ppiankov/genesis/internal/model"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const defaultJinaSearchURL = "https://s.jina.ai"

// JinaProvider queries the Jina AI search endpoint
type JinaProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type jinaSearchResponse struct {
	Code int `json:"code"`
	Data []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		Description string `json:"description"`
		Content     string `json:"content"`
	} `json:"data"`
}

// NewJinaProvider creates a Jina search provider. The API key is optional
// but unauthenticated calls are heavily rate limited.
func NewJinaProvider(cfg Config) (*JinaProvider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultJinaSearchURL
	}
	return &JinaProvider{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: newHTTPClient(cfg),
	}, nil
}

// Name returns the provider name
func (p *JinaProvider) Name() string { return "jina" }

// Hosts returns the provider's own domains
func (p *JinaProvider) Hosts() []string { return []string{"jina.ai"} }

// Search runs one query
func (p *JinaProvider) Search(ctx context.Context, query string, maxResults int) ([]model.SearchHit, error) {
	if maxResults <= 0 {
		return nil, nil
	}

	reqURL := p.baseURL + "/" + url.PathEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "jina: create search request")
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Respond-With", "no-content")

	zap.L().Debug("jina search", zap.String("query", query))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, unavailable(p.Name(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	// 422 means no results for the query
	if resp.StatusCode == http.StatusUnprocessableEntity {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, unavailable(p.Name(), eris.Errorf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, unavailable(p.Name(), err)
	}

	var parsed jinaSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, unavailable(p.Name(), eris.Wrap(err, "unmarshal search response"))
	}

	hits := make([]model.SearchHit, 0, len(parsed.Data))
	for _, r := range parsed.Data {
		snippet := r.Description
		if snippet == "" {
			snippet = r.Content
		}
		hits = append(hits, model.SearchHit{Title: r.Title, URL: r.URL, Snippet: snippet})
		if len(hits) == maxResults {
			break
		}
	}
	return hits, nil
}
