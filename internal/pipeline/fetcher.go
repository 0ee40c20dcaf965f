package pipeline

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/genesis/internal/extract"
	"github.com/ppiankov/genesis/internal/metrics"
	"github.com/ppiankov/genesis/internal/model"
	"github.com/ppiankov/genesis/internal/sanitize"
	"github.com/ppiankov/genesis/internal/util"
	"github.com/ppiankov/genesis/internal/worker"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const maxRedirects = 3

// SourceText is the outcome of fetching one URL. A failed fetch carries
// Err and an empty Text; it is data, not an error return.
type SourceText struct {
	URL  string
	Text string
	Meta model.FetchMeta
	Err  error
}

// OK reports whether the fetch produced text
func (s SourceText) OK() bool {
	return s.Err == nil && s.Text != ""
}

// Fetcher reduces web pages to bounded, sanitized body text
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
	maxBytes   int64
	maxChars   int
	robots     *util.RobotsChecker
	limiter    *worker.Limiter
	logger     *zap.Logger
}

// FetcherOption customizes a Fetcher
type FetcherOption func(*Fetcher)

// WithRobots makes the fetcher skip URLs disallowed by robots.txt
func WithRobots(r *util.RobotsChecker) FetcherOption {
	return func(f *Fetcher) { f.robots = r }
}

// WithLimiter applies per-host politeness before each request
func WithLimiter(l *worker.Limiter) FetcherOption {
	return func(f *Fetcher) { f.limiter = l }
}

// WithFetchLogger sets the logger
func WithFetchLogger(l *zap.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = l }
}

// NewFetcher creates a Fetcher. perSourceChars caps the text kept per page.
func NewFetcher(cfg model.HTTPConfig, perSourceChars int, opts ...FetcherOption) *Fetcher {
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = model.DefaultUserAgent
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 4 << 20
	}

	f := &Fetcher{
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return eris.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		userAgent: userAgent,
		timeout:   timeout,
		maxBytes:  maxBytes,
		maxChars:  perSourceChars,
		logger:    zap.L(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchText retrieves rawURL and returns its visible text. Every failure
// (status, network, timeout, robots, parse) is returned inside SourceText.
// There is no retry.
func (f *Fetcher) FetchText(ctx context.Context, rawURL string) SourceText {
	start := time.Now()
	out := SourceText{URL: rawURL}

	// one budget covers politeness waits, robots lookup and the request
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	out.Text, out.Meta, out.Err = f.fetch(ctx, rawURL)
	if out.Err == nil && out.Text == "" {
		out.Err = eris.New("no visible text")
	}

	metrics.RecordFetch(out.Err == nil, time.Since(start))
	if out.Err != nil {
		f.logger.Warn("fetch failed", zap.String("url", rawURL), zap.Error(out.Err))
		out.Text = ""
	} else {
		f.logger.Debug("fetched source", zap.String("url", rawURL), zap.Int("chars", len(out.Text)))
	}
	return out
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) (string, model.FetchMeta, error) {
	var meta model.FetchMeta

	if f.robots != nil {
		allowed, delay, err := f.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return "", meta, err
		}
		if !allowed {
			return "", meta, eris.New("disallowed by robots.txt")
		}
		if f.limiter != nil {
			if err := f.limiter.WaitWithDelay(ctx, rawURL, delay); err != nil {
				return "", meta, eris.Wrap(err, "rate limit wait")
			}
		}
	} else if f.limiter != nil {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return "", meta, eris.Wrap(err, "rate limit wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", meta, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", meta, eris.Wrap(err, "fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	meta.StatusCode = resp.StatusCode
	meta.ContentType = resp.Header.Get("Content-Type")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", meta, eris.Errorf("unexpected status: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", meta, eris.Wrap(err, "read body")
	}
	meta.Bytes = len(body)

	text, err := visibleText(meta.ContentType, body)
	if err != nil {
		return "", meta, err
	}

	// sanitize first so the per-source cap counts words, not indentation
	return strings.TrimSpace(sanitize.Truncate(sanitize.Text(text), f.maxChars)), meta, nil
}

// visibleText picks a reduction by media type; an absent type is treated as HTML
func visibleText(contentType string, body []byte) (string, error) {
	mediaType := "text/html"
	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return "", eris.Wrapf(err, "content type %q", contentType)
		}
		mediaType = mt
	}

	switch {
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		doc, err := extract.Parse(bytes.NewReader(body))
		if err != nil {
			return "", eris.Wrap(err, "parse html")
		}
		return extract.VisibleText(doc), nil
	case strings.HasPrefix(mediaType, "text/"):
		return string(body), nil
	default:
		return "", eris.Errorf("unsupported content type %q", mediaType)
	}
}
