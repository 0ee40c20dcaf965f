// Package search finds candidate source URLs for an entity.
package search

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/genesis/internal/model"
	"github.com/ppiankov/genesis/internal/util"
	"github.com/rotisserie/eris"
)

// ErrUnavailable marks a search that could not be served at all, as opposed
// to one that legitimately returned no results.
var ErrUnavailable = eris.New("search provider unavailable")

// Provider runs web searches
type Provider interface {
	// Name returns the provider name
	Name() string

	// Hosts lists the provider's own domains. Hits pointing at them are dropped.
	Hosts() []string

	// Search returns up to maxResults hits for query
	Search(ctx context.Context, query string, maxResults int) ([]model.SearchHit, error)
}

// Config holds search provider settings
type Config struct {
	Provider   string
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// ConfigFromModel converts model.Config to search.Config
func ConfigFromModel(cfg model.Config) Config {
	return Config{
		Provider:   cfg.Search.Provider,
		APIKey:     cfg.Search.APIKey,
		BaseURL:    cfg.Search.BaseURL,
		Timeout:    cfg.Search.Timeout,
		UserAgent:  cfg.HTTP.UserAgent,
		HTTPProxy:  cfg.HTTP.HTTPProxy,
		HTTPSProxy: cfg.HTTP.HTTPSProxy,
		NoProxy:    cfg.HTTP.NoProxy,
	}
}

// NewProvider creates a search provider based on configuration
func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "serper":
		return NewSerperProvider(cfg)
	case "jina":
		return NewJinaProvider(cfg)
	case "duckduckgo", "ddg":
		return NewDuckDuckGoProvider(cfg)
	default:
		return nil, eris.Errorf("unknown search provider: %s (supported: serper, jina, duckduckgo)", cfg.Provider)
	}
}

func newHTTPClient(cfg Config) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// unavailable wraps cause so that eris.Is(err, ErrUnavailable) holds
func unavailable(provider string, cause error) error {
	return eris.Wrapf(ErrUnavailable, "%s: %v", provider, cause)
}

// Filter keeps well-formed absolute http(s) hits whose host is not one of
// the provider's own domains. Order is preserved and duplicates are dropped.
func Filter(hits []model.SearchHit, ownHosts []string) []model.SearchHit {
	seen := make(map[string]bool, len(hits))
	out := make([]model.SearchHit, 0, len(hits))
	for _, h := range hits {
		u, err := url.Parse(strings.TrimSpace(h.URL))
		if err != nil || !u.IsAbs() || u.Host == "" {
			continue
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			continue
		}
		if matchesHost(u.Hostname(), ownHosts) {
			continue
		}
		key := u.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		h.URL = key
		out = append(out, h)
	}
	return out
}

func matchesHost(host string, domains []string) bool {
	host = strings.ToLower(host)
	for _, d := range domains {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// Expand fills a query template with the entity's fields and tidies spacing
func Expand(template string, e model.Entity) string {
	q := strings.NewReplacer("{name}", e.Name, "{manufacturer}", e.Manufacturer).Replace(template)
	return strings.Join(strings.Fields(q), " ")
}
