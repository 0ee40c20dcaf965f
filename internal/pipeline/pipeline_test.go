package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/genesis/internal/cache"
	"github.com/ppiankov/genesis/internal/chain"
	"github.com/ppiankov/genesis/internal/llm/llmtest"
	"github.com/ppiankov/genesis/internal/model"
	"github.com/ppiankov/genesis/internal/structured"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// robotSite serves one page per robot at /<normalized name>
func robotSite(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		name := strings.TrimPrefix(r.URL.Path, "/")
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprintf(w, "<html><body><nav>menu</nav><p>%s is a humanoid robot.</p></body></html>", name)
	}))
	t.Cleanup(server.Close)
	return server
}

// siteSearch returns the robot page for whichever known robot the query names
func siteSearch(server *httptest.Server) *fakeSearch {
	return &fakeSearch{fn: func(q string) ([]model.SearchHit, error) {
		lower := strings.ToLower(q)
		for _, name := range []string{"figure 02", "optimus", "atlas"} {
			if strings.Contains(lower, name) {
				return hitsFor(server.URL + "/" + model.NormalizeName(name)), nil
			}
		}
		return nil, nil
	}}
}

func testConfig() model.Config {
	cfg := model.DefaultConfig()
	cfg.LLM.APIKey = "test"
	cfg.Search.APIKey = "test"
	cfg.HTTP.Timeout = 2 * time.Second
	cfg.RateLimiting.RequestsPerSecond = 0
	return cfg
}

const strategicReply = `{"executive_summary": "Atlas leads on agility.", "competitive_landscape": [{"name": "Atlas", "strengths": ["agility"]}]}`

func newTestPipeline(t *testing.T, cfg model.Config, s *fakeSearch, p *llmtest.Provider) *Pipeline {
	t.Helper()
	pl, err := New(context.Background(), cfg,
		WithSearchProvider(s),
		WithLLMProvider(p),
		WithCacheBackend(cache.NewMemoryCache(time.Hour, time.Hour)),
		WithLogger(zap.NewNop()),
	)
	require.NoError(t, err)
	return pl
}

func TestAnalyze_EndToEnd(t *testing.T) {
	server := robotSite(t)
	s := siteSearch(server)
	p := &llmtest.Provider{
		Rules:   []llmtest.Rule{{Contains: "Strategic Report (JSON)", Reply: llmtest.Reply{Text: strategicReply}}},
		Default: llmtest.Reply{Text: `{"ok": true}`},
	}
	pl := newTestPipeline(t, testConfig(), s, p)

	report, err := pl.Analyze(context.Background(), "Atlas")
	require.NoError(t, err)

	var names []string
	for _, e := range report.Entities {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"Atlas", "Optimus", "Figure 02"}, names)
	assert.Equal(t, model.StatusSuccess, report.Status)
	assert.Equal(t, model.ModeChain, report.Mode)
	assert.False(t, report.Cached)
	assert.Len(t, report.Stages, len(chain.DefaultStages()))

	strategic := report.Stages.Get(chain.StageStrategicReport)
	assert.False(t, strategic.Get("executive_summary").IsNull())
	assert.Equal(t, 3, strategic.Get("competitive_landscape").Len())

	for _, name := range names {
		assert.Len(t, report.SourceURLs[name], 1, name)
	}
	require.Len(t, report.Quality, 3)
	for i, q := range report.Quality {
		assert.Equal(t, names[i], q.EntityName)
		assert.Equal(t, 1, q.Sources)
	}

	// evidence for every entity reaches the prompts
	first := p.Requests()[0].Prompt
	assert.Contains(t, first, "--- Data for Optimus ---")
	assert.Contains(t, first, "figure_02 is a humanoid robot.")
	assert.NotContains(t, first, "menu")
}

func TestAnalyze_CachedReport(t *testing.T) {
	server := robotSite(t)
	s := siteSearch(server)
	p := &llmtest.Provider{
		Rules:   []llmtest.Rule{{Contains: "Strategic Report (JSON)", Reply: llmtest.Reply{Text: strategicReply}}},
		Default: llmtest.Reply{Text: `{"ok": true}`},
	}
	pl := newTestPipeline(t, testConfig(), s, p)

	first, err := pl.Analyze(context.Background(), "Atlas")
	require.NoError(t, err)
	calls, searches := p.Calls(), s.calls.Load()

	second, err := pl.Analyze(context.Background(), "  atlas ")
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.Equal(t, calls, p.Calls())
	assert.Equal(t, searches, s.calls.Load())
	assert.True(t, first.GeneratedAt.Equal(second.GeneratedAt))
	assert.Equal(t, first.Stages.Keys(), second.Stages.Keys())
}

func TestForget_RecomputesReport(t *testing.T) {
	server := robotSite(t)
	s := siteSearch(server)
	p := &llmtest.Provider{
		Rules:   []llmtest.Rule{{Contains: "Strategic Report (JSON)", Reply: llmtest.Reply{Text: strategicReply}}},
		Default: llmtest.Reply{Text: `{"ok": true}`},
	}
	pl := newTestPipeline(t, testConfig(), s, p)

	_, err := pl.Analyze(context.Background(), "Atlas")
	require.NoError(t, err)
	calls := p.Calls()

	require.NoError(t, pl.Forget(context.Background(), " atlas ", ""))

	again, err := pl.Analyze(context.Background(), "Atlas")
	require.NoError(t, err)
	assert.False(t, again.Cached)
	assert.Equal(t, 2*calls, p.Calls())

	assert.True(t, IsInput(pl.Forget(context.Background(), "  ", "")))
}

func TestProviderAvailable(t *testing.T) {
	pl := newTestPipeline(t, testConfig(), &fakeSearch{}, &llmtest.Provider{})
	assert.True(t, pl.ProviderAvailable(context.Background()))

	pl = newTestPipeline(t, testConfig(), &fakeSearch{}, &llmtest.Provider{Unavailable: true})
	assert.False(t, pl.ProviderAvailable(context.Background()))
}

func TestAnalyze_PartialReportIsNotCached(t *testing.T) {
	server := robotSite(t)
	s := siteSearch(server)
	p := &llmtest.Provider{
		Rules:   []llmtest.Rule{{Contains: "Sankey", Reply: llmtest.Reply{Text: "not structured"}}},
		Default: llmtest.Reply{Text: `{"ok": true}`},
	}
	pl := newTestPipeline(t, testConfig(), s, p)

	report, err := pl.Analyze(context.Background(), "Atlas")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPartial, report.Status)
	assert.True(t, report.Stages.Get(chain.StageSankeyData).IsErrorMarker())

	again, err := pl.Analyze(context.Background(), "Atlas")
	require.NoError(t, err)
	assert.False(t, again.Cached)
}

func TestAnalyze_SharedBackendKeepsModesApart(t *testing.T) {
	server := robotSite(t)
	backend := cache.NewMemoryCache(time.Hour, time.Hour)
	build := func(mode string, p *llmtest.Provider) *Pipeline {
		cfg := testConfig()
		cfg.Pipeline.Mode = mode
		pl, err := New(context.Background(), cfg,
			WithSearchProvider(siteSearch(server)),
			WithLLMProvider(p),
			WithCacheBackend(backend),
			WithLogger(zap.NewNop()),
		)
		require.NoError(t, err)
		return pl
	}

	chained := build(model.ModeChain, &llmtest.Provider{
		Rules:   []llmtest.Rule{{Contains: "Strategic Report (JSON)", Reply: llmtest.Reply{Text: strategicReply}}},
		Default: llmtest.Reply{Text: `{"ok": true}`},
	})
	report, err := chained.Analyze(context.Background(), "Atlas")
	require.NoError(t, err)
	require.Equal(t, model.StatusSuccess, report.Status)

	// a single-mode default must not be served the chain report
	singleProvider := &llmtest.Provider{Default: llmtest.Reply{Text: "I could not do that."}}
	single := build(model.ModeSingle, singleProvider)
	_, err = single.Analyze(context.Background(), "Atlas")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNoUsableContent))
	assert.Equal(t, 1, singleProvider.Calls())

	again, err := single.AnalyzeWithMode(context.Background(), "Atlas", model.ModeChain)
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, model.ModeChain, again.Mode)
}

func TestAnalyze_InsufficientEvidence(t *testing.T) {
	s := &fakeSearch{}
	p := &llmtest.Provider{Default: llmtest.Reply{Text: `{"ok": true}`}}
	pl := newTestPipeline(t, testConfig(), s, p)

	_, err := pl.Analyze(context.Background(), "Atlas")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInsufficientEvidence))
	assert.Equal(t, 0, p.Calls())

	before := s.calls.Load()
	_, err = pl.Analyze(context.Background(), "Atlas")
	require.Error(t, err)
	assert.Greater(t, s.calls.Load(), before, "zero-evidence results must not be cached")
}

func TestAnalyze_InputErrors(t *testing.T) {
	pl := newTestPipeline(t, testConfig(), &fakeSearch{}, &llmtest.Provider{})

	_, err := pl.Analyze(context.Background(), "   ")
	assert.True(t, IsInput(err))

	_, err = pl.AnalyzeWithMode(context.Background(), "Atlas", "parallel")
	assert.True(t, IsInput(err))
}

func TestAnalyze_SingleMode(t *testing.T) {
	server := robotSite(t)

	t.Run("fatal on unusable response", func(t *testing.T) {
		p := &llmtest.Provider{Default: llmtest.Reply{Text: "I could not do that."}}
		pl := newTestPipeline(t, testConfig(), siteSearch(server), p)

		_, err := pl.AnalyzeWithMode(context.Background(), "Atlas", model.ModeSingle)
		require.Error(t, err)
		assert.True(t, eris.Is(err, ErrNoUsableContent))
		assert.Equal(t, 1, p.Calls())
	})

	t.Run("splits stages", func(t *testing.T) {
		p := &llmtest.Provider{Default: llmtest.Reply{Text: `{"strategic_report": ` + strategicReply + `}`}}
		pl := newTestPipeline(t, testConfig(), siteSearch(server), p)

		report, err := pl.AnalyzeWithMode(context.Background(), "Atlas", model.ModeSingle)
		require.NoError(t, err)
		assert.Equal(t, model.ModeSingle, report.Mode)
		assert.Equal(t, model.StatusPartial, report.Status)
		assert.Equal(t, 3, report.Stages.Get(chain.StageStrategicReport).Get("competitive_landscape").Len())
		assert.True(t, report.Stages.Get(chain.StageTechArchitecture).IsErrorMarker())
	})
}

func TestNew_ConfigurationError(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.Provider = "unknown"

	_, err := New(context.Background(), cfg, WithLogger(zap.NewNop()))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrConfiguration))
}

func TestNew_AppliesHostRates(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimiting.RequestsPerSecond = 0.001
	cfg.RateLimiting.BurstSize = 1
	cfg.RateLimiting.Hosts = map[string]float64{"en.wikipedia.org": 0}
	pl := newTestPipeline(t, cfg, &fakeSearch{}, &llmtest.Provider{})

	wait := func(rawURL string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		return pl.fetcher.limiter.Wait(ctx, rawURL)
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, wait("https://en.wikipedia.org/wiki/Atlas"))
	}
	require.NoError(t, wait("https://example.com/a"))
	assert.Error(t, wait("https://example.com/b"), "hosts without an override keep the default budget")
}

func TestNew_UnreachableCacheRunsUncached(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.Backend = "redis"
	cfg.Cache.RedisURL = "redis://127.0.0.1:1/0"
	cfg.Cache.Timeout = 200 * time.Millisecond

	pl, err := New(context.Background(), cfg,
		WithSearchProvider(&fakeSearch{}),
		WithLLMProvider(&llmtest.Provider{}),
		WithLogger(zap.NewNop()))
	require.NoError(t, err)
	assert.False(t, pl.cache.Enabled())
	assert.NoError(t, pl.Close())
}

func TestStartAnalysis(t *testing.T) {
	s := &fakeSearch{}
	p := &llmtest.Provider{}
	pl := newTestPipeline(t, testConfig(), s, p)

	ticket, err := pl.StartAnalysis(context.Background(), "Figure 02")
	require.NoError(t, err)

	_, err = uuid.Parse(ticket.TaskID)
	assert.NoError(t, err)
	assert.Equal(t, "Figure 02", ticket.Query)
	require.Len(t, ticket.Entities, 3)
	assert.Equal(t, "Optimus", ticket.Entities[1].Name)
	assert.Equal(t, int32(0), s.calls.Load())
	assert.Equal(t, 0, p.Calls())

	_, err = pl.StartAnalysis(context.Background(), "")
	assert.True(t, IsInput(err))
}

func TestAnalyzeEntity(t *testing.T) {
	s := &fakeSearch{fn: func(q string) ([]model.SearchHit, error) {
		return []model.SearchHit{{Title: "Atlas | Boston Dynamics", URL: "https://bostondynamics.com/atlas", Snippet: "Atlas weighs 89 kg."}}, nil
	}}
	p := &llmtest.Provider{Default: llmtest.Reply{Text: `{"name": "Atlas", "manufacturer": "Boston Dynamics", "summary": "A humanoid.", "specs": {"Weight": "89 kg"}}`}}
	pl := newTestPipeline(t, testConfig(), s, p)

	profile, err := pl.AnalyzeEntity(context.Background(), "Atlas")
	require.NoError(t, err)
	assert.Equal(t, "Boston Dynamics", profile.Get("manufacturer").StringOr(""))
	assert.Contains(t, p.Requests()[0].Prompt, "Snippet: Atlas weighs 89 kg.")
	assert.Equal(t, []string{"Atlas robot specifications"}, s.queries)

	again, err := pl.AnalyzeEntity(context.Background(), "atlas")
	require.NoError(t, err)
	assert.Equal(t, "89 kg", again.Path("specs", "Weight").StringOr(""))
	assert.Equal(t, 1, p.Calls())
}

func TestAnalyzeEntity_NoSearchContent(t *testing.T) {
	p := &llmtest.Provider{}
	pl := newTestPipeline(t, testConfig(), &fakeSearch{}, p)

	_, err := pl.AnalyzeEntity(context.Background(), "Atlas")
	assert.True(t, eris.Is(err, ErrInsufficientEvidence))
	assert.Equal(t, 0, p.Calls())

	_, err = pl.AnalyzeEntity(context.Background(), " ")
	assert.True(t, IsInput(err))
}

func TestDeepAnalyze(t *testing.T) {
	server := robotSite(t)
	p := &llmtest.Provider{Default: llmtest.Reply{Text: `{"technical_summary": "ok"}`}}
	pl := newTestPipeline(t, testConfig(), &fakeSearch{}, p)

	v, err := pl.DeepAnalyze(context.Background(), []string{server.URL + "/atlas", server.URL + "/missing", server.URL + "/optimus", ""})
	require.NoError(t, err)
	assert.Equal(t, "ok", v.Get("technical_summary").StringOr(""))

	prompt := p.Requests()[0].Prompt
	assert.Contains(t, prompt, "atlas is a humanoid robot.\n\n--- NEW SOURCE ---\n\noptimus is a humanoid robot.")
}

func TestDeepAnalyze_Errors(t *testing.T) {
	server := robotSite(t)
	p := &llmtest.Provider{}
	pl := newTestPipeline(t, testConfig(), &fakeSearch{}, p)

	_, err := pl.DeepAnalyze(context.Background(), nil)
	assert.True(t, IsInput(err))

	_, err = pl.DeepAnalyze(context.Background(), []string{server.URL + "/missing"})
	assert.True(t, eris.Is(err, ErrInsufficientEvidence))
	assert.Equal(t, 0, p.Calls())
}

func TestFinalReport(t *testing.T) {
	p := &llmtest.Provider{Default: llmtest.Reply{Text: "```json\n{\"executive_summary\": \"done\"}\n```"}}
	pl := newTestPipeline(t, testConfig(), &fakeSearch{}, p)

	data, err := structured.Parse([]byte(`{"Atlas": {"manufacturer": "Boston Dynamics"}}`))
	require.NoError(t, err)

	v, err := pl.FinalReport(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "done", v.Get("executive_summary").StringOr(""))
	assert.Contains(t, p.Requests()[0].Prompt, `{"Atlas":{"manufacturer":"Boston Dynamics"}}`)

	_, err = pl.FinalReport(context.Background(), structured.Object())
	assert.True(t, IsInput(err))
}
