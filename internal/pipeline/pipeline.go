package pipeline

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/genesis/internal/cache"
	"github.com/ppiankov/genesis/internal/chain"
	"github.com/ppiankov/genesis/internal/llm"
	"github.com/ppiankov/genesis/internal/metrics"
	"github.com/ppiankov/genesis/internal/model"
	"github.com/ppiankov/genesis/internal/resolve"
	"github.com/ppiankov/genesis/internal/sanitize"
	"github.com/ppiankov/genesis/internal/score"
	"github.com/ppiankov/genesis/internal/search"
	"github.com/ppiankov/genesis/internal/structured"
	"github.com/ppiankov/genesis/internal/util"
	"github.com/ppiankov/genesis/internal/validate"
	"github.com/ppiankov/genesis/internal/worker"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// deepSourceSeparator joins pages in a deep analysis
const deepSourceSeparator = "\n\n--- NEW SOURCE ---\n\n"

// Pipeline orchestrates resolve, collect, reason and cache
type Pipeline struct {
	cfg       model.Config
	search    search.Provider
	provider  llm.Provider
	backend   cache.Cache
	fetcher   *Fetcher
	collector *Collector
	resolver  resolve.Resolver
	scorer    *score.Scorer
	invoker   *chain.Invoker
	chain     *chain.Chain
	cache     *cache.Analysis
	logger    *zap.Logger
	now       func() time.Time
}

// Option injects a collaborator in place of the configured one
type Option func(*Pipeline)

// WithSearchProvider replaces the configured search provider
func WithSearchProvider(s search.Provider) Option {
	return func(p *Pipeline) { p.search = s }
}

// WithLLMProvider replaces the configured reasoning provider
func WithLLMProvider(l llm.Provider) Option {
	return func(p *Pipeline) { p.provider = l }
}

// WithCacheBackend replaces the configured cache backend
func WithCacheBackend(c cache.Cache) Option {
	return func(p *Pipeline) { p.backend = c }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithClock sets the time source used for report timestamps
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New validates cfg and wires every component. A cache backend that cannot
// be reached is logged and the pipeline runs uncached.
func New(ctx context.Context, cfg model.Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, eris.Wrapf(ErrConfiguration, "%v", err)
	}

	p := &Pipeline{cfg: cfg, logger: zap.L(), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}

	if p.search == nil {
		s, err := search.NewProvider(search.ConfigFromModel(cfg))
		if err != nil {
			return nil, eris.Wrapf(ErrConfiguration, "%v", err)
		}
		p.search = s
	}
	if p.provider == nil {
		l, err := llm.NewProvider(llm.ConfigFromModel(cfg))
		if err != nil {
			return nil, eris.Wrapf(ErrConfiguration, "%v", err)
		}
		p.provider = l
	}
	if p.backend == nil {
		b, err := cache.New(ctx, cfg.Cache)
		if err != nil {
			p.logger.Warn("cache unavailable, running uncached", zap.String("backend", cfg.Cache.Backend), zap.Error(err))
		} else {
			p.backend = b
		}
	}
	p.cache = cache.NewAnalysis(p.backend, cfg.Cache.TTL)

	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	for host, rps := range cfg.RateLimiting.Hosts {
		limiter.SetHostRate(host, rps, cfg.RateLimiting.BurstSize)
	}
	fetchOpts := []FetcherOption{
		WithFetchLogger(p.logger),
		WithLimiter(limiter),
	}
	if cfg.HTTP.RespectRobots {
		proxy := util.NewProxyFunc(cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy)
		fetchOpts = append(fetchOpts, WithRobots(util.NewRobotsChecker(cfg.HTTP.UserAgent, cfg.HTTP.Timeout, proxy)))
	}
	p.fetcher = NewFetcher(cfg.HTTP, cfg.Evidence.PerSourceChars, fetchOpts...)
	p.collector = NewCollector(cfg, p.search, p.fetcher, p.logger)
	p.scorer = score.NewScorer(validate.NewAuthorityClassifier(&cfg.Authority), cfg.Evidence.MaxSources)

	p.invoker = chain.NewInvoker(p.provider, cfg.LLM.Timeout, p.logger)
	if cfg.Resolver.Strategy == "lookup" {
		p.resolver = resolve.NewLookupResolver(cfg.Resolver, p.invoker, p.cache, p.logger)
	} else {
		p.resolver = resolve.NewStaticResolver(cfg.Resolver)
	}

	c, err := chain.New(p.invoker, chain.DefaultStages(), chain.Options{
		EvidenceLimit: cfg.Pipeline.EvidenceCharLimit,
		Logger:        p.logger,
	})
	if err != nil {
		return nil, eris.Wrapf(ErrConfiguration, "%v", err)
	}
	p.chain = c

	return p, nil
}

// Close releases the cache backend
func (p *Pipeline) Close() error {
	if closer, ok := p.backend.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Analyze runs the configured orchestration mode for query
func (p *Pipeline) Analyze(ctx context.Context, query string) (*model.Report, error) {
	return p.AnalyzeWithMode(ctx, query, "")
}

// AnalyzeWithMode resolves entities, collects their evidence in parallel
// and runs the reasoning stages. Reports are cached per subject and mode;
// only fully successful reports are stored.
func (p *Pipeline) AnalyzeWithMode(ctx context.Context, query, mode string) (*model.Report, error) {
	start := time.Now()

	subject := strings.Join(strings.Fields(query), " ")
	if subject == "" {
		return nil, eris.Wrap(ErrInput, "query is empty")
	}
	if mode == "" {
		mode = p.cfg.Pipeline.Mode
	}
	if mode != model.ModeChain && mode != model.ModeSingle {
		return nil, eris.Wrapf(ErrInput, "unknown mode %q", mode)
	}

	ctx, cancel := p.requestContext(ctx)
	defer cancel()

	key := cache.ReportKey(subject, mode)
	report, hit := p.cache.LookupReport(ctx, key)
	if p.cache.Enabled() {
		metrics.RecordCache("report", hit)
	}
	if hit {
		p.logger.Debug("report cache hit", zap.String("key", key))
	} else {
		var err error
		report, err = p.compute(ctx, subject, mode)
		if err != nil {
			metrics.RecordAnalysis("report", "error", time.Since(start))
			p.logger.Error("analysis failed", zap.String("subject", subject), zap.Error(err))
			return nil, err
		}
		if report.Status == model.StatusSuccess {
			p.cache.StoreReport(ctx, key, report)
		}
	}

	metrics.RecordAnalysis("report", report.Status, time.Since(start))
	p.logger.Info("analysis complete",
		zap.String("subject", subject),
		zap.String("mode", mode),
		zap.String("status", report.Status),
		zap.Bool("cached", hit),
		zap.Duration("duration", time.Since(start)))
	return report.Served(p.now().UTC(), hit), nil
}

// Forget drops the cached report for query in mode so the next request
// recomputes it. An empty mode means the configured one.
func (p *Pipeline) Forget(ctx context.Context, query, mode string) error {
	subject := strings.Join(strings.Fields(query), " ")
	if subject == "" {
		return eris.Wrap(ErrInput, "query is empty")
	}
	if mode == "" {
		mode = p.cfg.Pipeline.Mode
	}
	if err := p.cache.Invalidate(ctx, cache.ReportKey(subject, mode)); err != nil {
		return eris.Wrapf(err, "forget report for %q", subject)
	}
	return nil
}

// ProviderAvailable reports whether the reasoning provider is configured
// and reachable
func (p *Pipeline) ProviderAvailable(ctx context.Context) bool {
	return p.provider.IsAvailable(ctx)
}

func (p *Pipeline) compute(ctx context.Context, subject, mode string) (*model.Report, error) {
	entities, err := p.resolve(ctx, subject)
	if err != nil {
		return nil, err
	}

	blobs := p.collectAll(ctx, entities)
	sources := make(map[string][]string, len(blobs))
	empty := true
	for _, b := range blobs {
		sources[b.EntityName] = b.SourceURLs
		if !b.Empty() {
			empty = false
		}
	}
	if empty {
		return nil, eris.Wrapf(ErrInsufficientEvidence, "no evidence gathered for %s", subject)
	}

	in := chain.Input{Subject: subject, Entities: entities, Evidence: blobs}
	var outputs model.StageOutputs
	if mode == model.ModeSingle {
		outputs, err = p.chain.RunSingle(ctx, in)
		if err != nil {
			return nil, err
		}
	} else {
		outputs = p.chain.Run(ctx, in)
	}

	status := model.StatusSuccess
	if outputs.Failed() > 0 {
		status = model.StatusPartial
	}

	return &model.Report{
		Subject:     subject,
		Entities:    entities,
		GeneratedAt: p.now().UTC(),
		Mode:        mode,
		Status:      status,
		SourceURLs:  sources,
		Quality:     p.scorer.Assess(blobs),
		Stages:      outputs,
	}, nil
}

// collectAll gathers evidence for every entity concurrently, one worker
// per entity, and waits for all of them
func (p *Pipeline) collectAll(ctx context.Context, entities []model.Entity) []model.EvidenceBlob {
	blobs := make([]model.EvidenceBlob, len(entities))

	var g errgroup.Group
	for i, e := range entities {
		g.Go(func() error {
			blobs[i] = p.collector.Collect(ctx, e, p.cfg.Evidence.MaxSources)
			return nil
		})
	}
	_ = g.Wait()

	return blobs
}

func (p *Pipeline) resolve(ctx context.Context, query string) ([]model.Entity, error) {
	entities, err := p.resolver.Resolve(ctx, query)
	if err != nil {
		if eris.Is(err, resolve.ErrEmptyQuery) {
			return nil, eris.Wrap(ErrInput, "query is empty")
		}
		return nil, eris.Wrap(err, "resolve entities")
	}
	return entities, nil
}

// StartAnalysis resolves the entity set and hands out a ticket without
// doing any network work
func (p *Pipeline) StartAnalysis(ctx context.Context, query string) (*model.TaskTicket, error) {
	entities, err := p.resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	return &model.TaskTicket{
		TaskID:   uuid.NewString(),
		Query:    strings.Join(strings.Fields(query), " "),
		Entities: entities,
	}, nil
}

// AnalyzeEntity profiles a single robot from search snippets. Profiles are
// cached per normalized name.
func (p *Pipeline) AnalyzeEntity(ctx context.Context, name string) (structured.Value, error) {
	start := time.Now()

	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return structured.Null(), eris.Wrap(ErrInput, "name is empty")
	}

	ctx, cancel := p.requestContext(ctx)
	defer cancel()

	profile, hit, err := cache.GetOrCompute(ctx, p.cache, cache.EntityKey(name), func(ctx context.Context) (structured.Value, bool, error) {
		v, err := p.profile(ctx, name)
		return v, err == nil, err
	})
	if p.cache.Enabled() {
		metrics.RecordCache("entity", hit)
	}
	metrics.RecordAnalysis("entity", outcomeOf(err), time.Since(start))
	if err != nil {
		p.logger.Warn("entity analysis failed", zap.String("entity", name), zap.Error(err))
		return structured.Null(), err
	}
	return profile, nil
}

func (p *Pipeline) profile(ctx context.Context, name string) (structured.Value, error) {
	searchCtx := ctx
	if p.cfg.Search.Timeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, p.cfg.Search.Timeout)
		defer cancel()
	}

	hits, err := p.search.Search(searchCtx, name+" robot specifications", p.cfg.Search.MaxResults)
	metrics.RecordSearch(p.search.Name(), err == nil)
	if err != nil {
		p.logger.Warn("search failed", zap.String("entity", name), zap.String("provider", p.search.Name()), zap.Error(err))
	}

	lines := make([]string, 0, len(hits))
	for _, h := range hits {
		title := sanitize.Text(h.Title)
		snippet := sanitize.Text(h.Snippet)
		if title == "" && snippet == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("Title: %s\nSnippet: %s", title, snippet))
	}
	if len(lines) == 0 {
		return structured.Null(), eris.Wrapf(ErrInsufficientEvidence, "search returned no content for %s", name)
	}

	return p.invoker.Invoke(ctx, "Entity_Profile", llm.GenerateRequest{
		Prompt:   fmt.Sprintf(chain.EntityProfilePrompt, name, strings.Join(lines, "\n")),
		JSONMode: true,
	})
}

// DeepAnalyze fetches caller-supplied sources and runs one technical
// breakdown over their combined text
func (p *Pipeline) DeepAnalyze(ctx context.Context, urls []string) (structured.Value, error) {
	start := time.Now()

	sources := make([]string, 0, len(urls))
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		sources = append(sources, u)
	}
	if len(sources) == 0 {
		return structured.Null(), eris.Wrap(ErrInput, "no URLs provided for deep analysis")
	}

	ctx, cancel := p.requestContext(ctx)
	defer cancel()

	texts := worker.Map(ctx, p.cfg.Pipeline.DeepWorkers, sources, p.fetcher.FetchText)
	parts := make([]string, 0, len(texts))
	for _, t := range texts {
		if t.OK() {
			parts = append(parts, t.Text)
		}
	}
	if len(parts) == 0 {
		metrics.RecordAnalysis("deep", "error", time.Since(start))
		return structured.Null(), eris.Wrap(ErrInsufficientEvidence, "could not fetch any content from the provided URLs")
	}

	text := sanitize.Truncate(strings.Join(parts, deepSourceSeparator), p.evidenceLimit())
	p.logger.Info("deep analysis sources fetched", zap.Int("requested", len(sources)), zap.Int("fetched", len(parts)))

	v, err := p.invoker.Invoke(ctx, "Deep_Analysis", llm.GenerateRequest{
		Prompt:   fmt.Sprintf(chain.DeepAnalysisPrompt, text),
		JSONMode: true,
	})
	metrics.RecordAnalysis("deep", outcomeOf(err), time.Since(start))
	return v, err
}

// FinalReport builds a strategic report from entity data the caller
// already gathered
func (p *Pipeline) FinalReport(ctx context.Context, data structured.Value) (structured.Value, error) {
	start := time.Now()

	if data.Len() == 0 {
		return structured.Null(), eris.Wrap(ErrInput, "no entity data provided for final report")
	}

	ctx, cancel := p.requestContext(ctx)
	defer cancel()

	raw, err := data.MarshalJSON()
	if err != nil {
		return structured.Null(), eris.Wrap(ErrInput, "entity data is not encodable")
	}

	v, err := p.invoker.Invoke(ctx, "Final_Report", llm.GenerateRequest{
		Prompt:   fmt.Sprintf(chain.FinalReportPrompt, sanitize.Truncate(string(raw), p.evidenceLimit())),
		JSONMode: true,
	})
	metrics.RecordAnalysis("final", outcomeOf(err), time.Since(start))
	return v, err
}

// Resolve exposes the entity resolver
func (p *Pipeline) Resolve(ctx context.Context, query string) ([]model.Entity, error) {
	return p.resolve(ctx, query)
}

// Collect gathers evidence for one entity using the configured source cap
func (p *Pipeline) Collect(ctx context.Context, entity model.Entity) model.EvidenceBlob {
	return p.collector.Collect(ctx, entity, p.cfg.Evidence.MaxSources)
}

func (p *Pipeline) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.Pipeline.RequestTimeout > 0 {
		return context.WithTimeout(ctx, p.cfg.Pipeline.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

func (p *Pipeline) evidenceLimit() int {
	if p.cfg.Pipeline.EvidenceCharLimit > 0 {
		return p.cfg.Pipeline.EvidenceCharLimit
	}
	return 30000
}

func outcomeOf(err error) string {
	if err != nil {
		return "error"
	}
	return model.StatusSuccess
}
