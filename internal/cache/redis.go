package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

const redisKeyPrefix = "genesis:"

// RedisCache shares analyses across server replicas
type RedisCache struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisCache connects to redisURL and verifies the connection
func NewRedisCache(ctx context.Context, redisURL string, timeout time.Duration) (*RedisCache, error) {
	if redisURL == "" {
		return nil, eris.New("redis cache requires cache.redis_url")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, eris.Wrap(err, "parse redis URL")
	}

	c := NewRedisCacheFromClient(redis.NewClient(opts), timeout)

	pingCtx, cancel := c.withTimeout(ctx)
	defer cancel()
	if err := c.client.Ping(pingCtx).Err(); err != nil {
		_ = c.client.Close()
		return nil, eris.Wrap(err, "ping redis")
	}

	return c, nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client, timeout time.Duration) *RedisCache {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RedisCache{client: client, timeout: timeout}
}

// Get retrieves a value
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	val, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "redis get")
	}
	return val, true, nil
}

// Set stores a value; a non-positive ttl stores without expiry
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if ttl < 0 {
		ttl = 0
	}
	return eris.Wrap(c.client.Set(ctx, redisKeyPrefix+key, value, ttl).Err(), "redis set")
}

// Delete removes a value
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	return eris.Wrap(c.client.Del(ctx, redisKeyPrefix+key).Err(), "redis del")
}

// Clear removes every key this cache owns
func (c *RedisCache) Clear(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return eris.Wrap(err, "redis scan")
	}
	if len(keys) == 0 {
		return nil
	}
	return eris.Wrap(c.client.Del(ctx, keys...).Err(), "redis del")
}

// Close releases the connection pool
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}
