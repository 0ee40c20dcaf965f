// Package cache stores finished analyses so repeated requests for the
// same subject skip evidence collection and reasoning.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/ppiankov/genesis/internal/model"
	"github.com/rotisserie/eris"
)

// Cache defines the interface for caching
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

const (
	reportPrefix     = "report:v1:"
	entityPrefix     = "robot_entity_v2:"
	competitorPrefix = "competitors:v1:"
)

// ReportKey is the key of a full analysis for subject in mode. The mode
// is always part of the key so processes with different default modes
// can share a backend.
func ReportKey(subject, mode string) string {
	return reportPrefix + model.NormalizeName(subject) + ":" + strings.ToLower(mode)
}

// EntityKey is the key of a single-entity lookup
func EntityKey(name string) string {
	return entityPrefix + model.NormalizeName(name)
}

// CompetitorKey is the key of a resolved comparator list
func CompetitorKey(subject string) string {
	return competitorPrefix + model.NormalizeName(subject)
}

// New builds the backend selected by cfg. A disabled cache or the
// "none" backend yields a Noop.
func New(ctx context.Context, cfg model.CacheConfig) (Cache, error) {
	if !cfg.Enabled {
		return Noop{}, nil
	}

	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return NewMemoryCache(cfg.TTL, 10*time.Minute), nil
	case "disk":
		return NewDiskCache(cfg.Dir, cfg.TTL), nil
	case "layered":
		return NewLayeredCache(cfg.TTL, cfg.Dir, cfg.TTL), nil
	case "redis":
		c, err := NewRedisCache(ctx, cfg.RedisURL, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "none":
		return Noop{}, nil
	default:
		return nil, eris.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// Noop never stores anything
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Noop) Delete(context.Context, string) error { return nil }
func (Noop) Clear(context.Context) error { return nil }
