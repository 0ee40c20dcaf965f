package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/ppiankov/genesis/internal/metrics"
	"github.com/ppiankov/genesis/internal/model"
	"github.com/ppiankov/genesis/internal/sanitize"
	"github.com/ppiankov/genesis/internal/search"
	"github.com/ppiankov/genesis/internal/validate"
	"github.com/ppiankov/genesis/internal/worker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// sourceSeparator joins the texts of different pages in one blob
const sourceSeparator = "\n\n"

// Collector gathers evidence for one entity: search, filter, fetch, join
type Collector struct {
	search        search.Provider
	fetcher       *Fetcher
	authority     *validate.AuthorityClassifier
	queries       []string
	maxResults    int
	searchTimeout time.Duration
	workers       int
	maxTotalChars int
	logger        *zap.Logger
}

// NewCollector creates a Collector from the search and evidence settings
func NewCollector(cfg model.Config, provider search.Provider, fetcher *Fetcher, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.L()
	}
	return &Collector{
		search:        provider,
		fetcher:       fetcher,
		authority:     validate.NewAuthorityClassifier(&cfg.Authority),
		queries:       cfg.Search.Queries,
		maxResults:    cfg.Search.MaxResults,
		searchTimeout: cfg.Search.Timeout,
		workers:       cfg.Evidence.Workers,
		maxTotalChars: cfg.Evidence.MaxTotalChars,
		logger:        logger,
	}
}

// Collect returns the evidence blob for entity. It never fails: a blob
// with empty text means nothing usable was found. maxSources <= 0 returns
// an empty blob without any network call.
func (c *Collector) Collect(ctx context.Context, entity model.Entity, maxSources int) model.EvidenceBlob {
	blob := model.EvidenceBlob{EntityName: entity.Name, SourceURLs: []string{}}
	if maxSources <= 0 {
		return blob
	}

	log := c.logger.With(zap.String("entity", entity.Name))

	urls := c.sourceURLs(ctx, entity, log)
	if len(urls) > maxSources {
		urls = urls[:maxSources]
	}
	if len(urls) == 0 {
		log.Warn("no sources survived filtering")
		return blob
	}

	texts := worker.Map(ctx, c.workers, urls, c.fetcher.FetchText)

	parts := make([]string, 0, len(texts))
	for _, t := range texts {
		if !t.OK() {
			continue
		}
		parts = append(parts, t.Text)
		blob.SourceURLs = append(blob.SourceURLs, t.URL)
	}

	text := strings.Join(parts, sourceSeparator)
	if c.maxTotalChars > 0 {
		text = sanitize.Truncate(text, c.maxTotalChars)
	}
	blob.Text = strings.TrimSpace(text)

	metrics.EvidenceChars.Observe(float64(len(blob.Text)))
	log.Info("evidence collected",
		zap.Int("sources", len(urls)),
		zap.Int("fetched", len(blob.SourceURLs)),
		zap.Int("chars", len(blob.Text)))
	return blob
}

// sourceURLs runs every query concurrently and returns filtered URLs with
// reference sources first
func (c *Collector) sourceURLs(ctx context.Context, entity model.Entity, log *zap.Logger) []string {
	queries := c.buildQueries(entity)
	results := make([][]model.SearchHit, len(queries))

	var g errgroup.Group
	for i, q := range queries {
		g.Go(func() error {
			results[i] = c.runQuery(ctx, q, log)
			return nil
		})
	}
	_ = g.Wait()

	var merged []model.SearchHit
	for _, hits := range results {
		merged = append(merged, hits...)
	}

	filtered := search.Filter(merged, c.search.Hosts())
	urls := make([]string, len(filtered))
	for i, h := range filtered {
		urls[i] = h.URL
	}
	return c.authority.Prioritize(urls)
}

func (c *Collector) runQuery(ctx context.Context, query string, log *zap.Logger) []model.SearchHit {
	if c.searchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.searchTimeout)
		defer cancel()
	}

	hits, err := c.search.Search(ctx, query, c.maxResults)
	metrics.RecordSearch(c.search.Name(), err == nil)
	if err != nil {
		log.Warn("search failed", zap.String("query", query), zap.String("provider", c.search.Name()), zap.Error(err))
		return nil
	}
	log.Debug("search done", zap.String("query", query), zap.Int("hits", len(hits)))
	return hits
}

// buildQueries expands the templates, dropping blanks and duplicates
func (c *Collector) buildQueries(entity model.Entity) []string {
	seen := make(map[string]bool, len(c.queries))
	out := make([]string, 0, len(c.queries))
	for _, tmpl := range c.queries {
		q := search.Expand(tmpl, entity)
		key := strings.ToLower(q)
		if q == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
	}
	return out
}
