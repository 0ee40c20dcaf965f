package search

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/ppiankov/genesis/internal/model"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const defaultSerperURL = "https://google.serper.dev"

// SerperProvider queries the Serper Google search API
type SerperProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

// NewSerperProvider creates a Serper provider
func NewSerperProvider(cfg Config) (*SerperProvider, error) {
	if cfg.APIKey == "" {
		return nil, eris.New("serper API key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultSerperURL
	}
	return &SerperProvider{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: newHTTPClient(cfg),
	}, nil
}

// Name returns the provider name
func (p *SerperProvider) Name() string { return "serper" }

// Hosts returns the provider's own domains
func (p *SerperProvider) Hosts() []string {
	return []string{"serper.dev", "google.com"}
}

// Search runs one query
func (p *SerperProvider) Search(ctx context.Context, query string, maxResults int) ([]model.SearchHit, error) {
	if maxResults <= 0 {
		return nil, nil
	}

	body, err := json.Marshal(serperRequest{Q: query, Num: maxResults})
	if err != nil {
		return nil, eris.Wrap(err, "serper: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "serper: create request")
	}
	req.Header.Set("X-API-KEY", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	zap.L().Debug("serper search", zap.String("query", query))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, unavailable(p.Name(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, unavailable(p.Name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, unavailable(p.Name(), eris.Errorf("status %d", resp.StatusCode))
	}

	var parsed serperResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, unavailable(p.Name(), eris.Wrap(err, "unmarshal response"))
	}

	hits := make([]model.SearchHit, 0, len(parsed.Organic))
	for _, r := range parsed.Organic {
		hits = append(hits, model.SearchHit{Title: r.Title, URL: r.Link, Snippet: r.Snippet})
		if len(hits) == maxResults {
			break
		}
	}
	return hits, nil
}
