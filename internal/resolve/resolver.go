// Package resolve expands a query into the subject entity plus comparators.
package resolve

import (
	"context"
	"strings"

	"github.com/ppiankov/genesis/internal/model"
	"github.com/rotisserie/eris"
)

// ErrEmptyQuery is returned for a blank query
var ErrEmptyQuery = eris.New("query is empty")

// Resolver turns a query into 1..MaxEntities entities, subject first
type Resolver interface {
	Resolve(ctx context.Context, query string) ([]model.Entity, error)
}

// StaticResolver picks comparators from keyword rules. It is deterministic
// and performs no I/O.
type StaticResolver struct {
	rules       []model.ResolverRule
	fallback    []model.Entity
	maxEntities int
}

// NewStaticResolver creates a resolver from the resolver config
func NewStaticResolver(cfg model.ResolverConfig) *StaticResolver {
	maxEntities := cfg.MaxEntities
	if maxEntities <= 0 {
		maxEntities = 3
	}
	return &StaticResolver{
		rules:       cfg.Rules,
		fallback:    cfg.Fallback,
		maxEntities: maxEntities,
	}
}

// Resolve returns the subject followed by the comparators of the first rule
// whose match appears in the query, or the fallback set when none does
func (r *StaticResolver) Resolve(_ context.Context, query string) ([]model.Entity, error) {
	subject := strings.Join(strings.Fields(query), " ")
	if subject == "" {
		return nil, ErrEmptyQuery
	}

	return assemble(model.Entity{Name: subject}, r.comparators(subject), r.maxEntities), nil
}

func (r *StaticResolver) comparators(subject string) []model.Entity {
	lower := strings.ToLower(subject)
	for _, rule := range r.rules {
		match := strings.ToLower(strings.TrimSpace(rule.Match))
		if match != "" && strings.Contains(lower, match) {
			return rule.Comparators
		}
	}
	return r.fallback
}

// assemble puts subject first and appends comparators that are not the
// subject itself or repeats, up to limit entities
func assemble(subject model.Entity, comparators []model.Entity, limit int) []model.Entity {
	out := []model.Entity{subject}
	seen := map[string]bool{subject.ID(): true}
	for _, c := range comparators {
		if len(out) >= limit {
			break
		}
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" || seen[c.ID()] {
			continue
		}
		seen[c.ID()] = true
		out = append(out, c)
	}
	return out
}
