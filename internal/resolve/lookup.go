package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/genesis/internal/cache"
	"github.com/ppiankov/genesis/internal/chain"
	"github.com/ppiankov/genesis/internal/llm"
	"github.com/ppiankov/genesis/internal/model"
	"go.uber.org/zap"
)

const (
	competitorShape = `{"competitors": [{"name": "Optimus", "manufacturer": "Tesla"}]}`
	lookupTask      = "Competitor_Lookup"
)

// LookupResolver asks the reasoning provider for competitors through the
// same invoker the reasoning stages use. Answers are
// memoized in the analysis cache so one query maps to one entity set for
// the cache window. Any failure falls back to the static rules.
type LookupResolver struct {
	invoker     *chain.Invoker
	cache       *cache.Analysis
	fallback    *StaticResolver
	maxEntities int
	logger      *zap.Logger
}

// NewLookupResolver creates a lookup resolver
func NewLookupResolver(cfg model.ResolverConfig, invoker *chain.Invoker, analysisCache *cache.Analysis, logger *zap.Logger) *LookupResolver {
	if logger == nil {
		logger = zap.L()
	}
	static := NewStaticResolver(cfg)
	return &LookupResolver{
		invoker:     invoker,
		cache:       analysisCache,
		fallback:    static,
		maxEntities: static.maxEntities,
		logger:      logger,
	}
}

// Resolve returns the subject followed by looked-up competitors
func (r *LookupResolver) Resolve(ctx context.Context, query string) ([]model.Entity, error) {
	subject := strings.Join(strings.Fields(query), " ")
	if subject == "" {
		return nil, ErrEmptyQuery
	}

	competitors, _, err := cache.GetOrCompute(ctx, r.cache, cache.CompetitorKey(subject),
		func(ctx context.Context) ([]model.Entity, bool, error) {
			found, err := r.lookup(ctx, subject)
			return found, len(found) > 0, err
		})
	if err != nil || len(competitors) == 0 {
		r.logger.Warn("competitor lookup failed, using static rules", zap.String("query", subject), zap.Error(err))
		return r.fallback.Resolve(ctx, subject)
	}

	return assemble(model.Entity{Name: subject}, competitors, r.maxEntities), nil
}

func (r *LookupResolver) lookup(ctx context.Context, subject string) ([]model.Entity, error) {
	value, err := r.invoker.Invoke(ctx, lookupTask, llm.GenerateRequest{
		Prompt:   competitorPrompt(subject),
		JSONMode: true,
		Shape:    competitorShape,
	})
	if err != nil {
		return nil, err
	}

	var out []model.Entity
	for _, item := range value.Get("competitors").Items() {
		name := strings.TrimSpace(item.Get("name").StringOr(""))
		if name == "" {
			continue
		}
		out = append(out, model.Entity{Name: name, Manufacturer: strings.TrimSpace(item.Get("manufacturer").StringOr(""))})
	}
	return out, nil
}

func competitorPrompt(subject string) string {
	return fmt.Sprintf(`I am researching the humanoid robot '%s'.
Identify its top 2-3 main competitors in the same category.
Provide the output ONLY as a JSON object with a "competitors" list of objects, each with "name" and "manufacturer".
Do not add any other text.`, subject)
}
