package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ppiankov/genesis/internal/model"
	"go.uber.org/zap"
)

// Analysis layers JSON encoding and failure tolerance over a backend.
// Backend errors degrade to misses; a nil backend runs uncached.
type Analysis struct {
	backend Cache
	ttl     time.Duration
}

// NewAnalysis wraps backend with the default entry ttl
func NewAnalysis(backend Cache, ttl time.Duration) *Analysis {
	return &Analysis{backend: backend, ttl: ttl}
}

// Enabled reports whether a backend is attached
func (a *Analysis) Enabled() bool {
	if a == nil || a.backend == nil {
		return false
	}
	_, noop := a.backend.(Noop)
	return !noop
}

// Lookup decodes the entry at key into a T
func Lookup[T any](ctx context.Context, a *Analysis, key string) (T, bool) {
	var zero T
	data, found := a.get(ctx, key)
	if !found {
		return zero, false
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		zap.L().Warn("cache entry undecodable, treating as miss", zap.String("key", key), zap.Error(err))
		return zero, false
	}
	return value, true
}

// Store encodes value at key. Failures are logged, never returned.
func Store[T any](ctx context.Context, a *Analysis, key string, value T) {
	data, err := json.Marshal(value)
	if err != nil {
		zap.L().Warn("cache entry unencodable", zap.String("key", key), zap.Error(err))
		return
	}
	a.set(ctx, key, data)
}

// LookupReport returns the stored report at key. Entries that no longer
// decode as a report are misses.
func (a *Analysis) LookupReport(ctx context.Context, key string) (*model.Report, bool) {
	data, found := a.get(ctx, key)
	if !found {
		return nil, false
	}

	r, err := model.DecodeReport(data)
	if err != nil {
		zap.L().Warn("cached report undecodable, treating as miss", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return r, true
}

// StoreReport stores r at key
func (a *Analysis) StoreReport(ctx context.Context, key string, r *model.Report) {
	if a == nil || a.backend == nil {
		return
	}
	data, err := r.Encode()
	if err != nil {
		zap.L().Warn("report unencodable", zap.String("key", key), zap.Error(err))
		return
	}
	a.set(ctx, key, data)
}

func (a *Analysis) get(ctx context.Context, key string) ([]byte, bool) {
	if a == nil || a.backend == nil {
		return nil, false
	}
	data, found, err := a.backend.Get(ctx, key)
	if err != nil {
		zap.L().Warn("cache read failed, treating as miss", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return data, found
}

func (a *Analysis) set(ctx context.Context, key string, data []byte) {
	if a == nil || a.backend == nil {
		return
	}
	if err := a.backend.Set(ctx, key, data, a.ttl); err != nil {
		zap.L().Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops key
func (a *Analysis) Invalidate(ctx context.Context, key string) error {
	if a == nil || a.backend == nil {
		return nil
	}
	return a.backend.Delete(ctx, key)
}

// GetOrCompute returns the cached T at key, or runs compute and stores
// its result when compute reports it cacheable. The bool result is true
// on a cache hit.
func GetOrCompute[T any](ctx context.Context, a *Analysis, key string, compute func(ctx context.Context) (T, bool, error)) (T, bool, error) {
	if value, ok := Lookup[T](ctx, a, key); ok {
		zap.L().Debug("cache hit", zap.String("key", key))
		return value, true, nil
	}

	value, cacheable, err := compute(ctx)
	if err != nil {
		return value, false, err
	}
	if cacheable {
		Store(ctx, a, key, value)
	}
	return value, false, nil
}
