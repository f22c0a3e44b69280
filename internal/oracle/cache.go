package oracle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/holiman/uint256"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"tokenledger/internal/platform/metrics"
	"tokenledger/pkg/platform/circuit"
)

const (
	cacheKeyPrefix  = "ledger:rate:"
	defaultCacheTTL = 30 * time.Second
)

// RedisCache memoizes rates in Redis. Concurrent misses for one reference
// share a single upstream load. When Redis fails repeatedly the cache is
// bypassed until a probe succeeds.
type RedisCache struct {
	client  redis.Cmdable
	ttl     time.Duration
	group   singleflight.Group
	breaker *circuit.Breaker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type CacheOption func(*RedisCache)

func WithCacheMetrics(m *metrics.Metrics) CacheOption {
	return func(c *RedisCache) {
		c.metrics = m
	}
}

func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *RedisCache) {
		c.logger = logger
	}
}

func WithCacheBreaker(b *circuit.Breaker) CacheOption {
	return func(c *RedisCache) {
		c.breaker = b
	}
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration, opts ...CacheOption) *RedisCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	c := &RedisCache{
		client:  client,
		ttl:     ttl,
		breaker: circuit.New("rate-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Rate returns the cached rate for ref or loads and stores it.
func (c *RedisCache) Rate(ctx context.Context, ref string, load func(ctx context.Context) (*uint256.Int, error)) (*uint256.Int, error) {
	key := cacheKeyPrefix + ref
	useCache := c.breaker.Allow()

	if useCache {
		cached, err := c.client.Get(ctx, key).Result()
		switch {
		case err == nil:
			c.recordSuccess(ctx)
			if rate, perr := uint256.FromDecimal(cached); perr == nil {
				c.metrics.IncRateCache("hit")
				return rate, nil
			}
			c.metrics.IncRateCache("miss")
		case errors.Is(err, redis.Nil):
			c.recordSuccess(ctx)
			c.metrics.IncRateCache("miss")
		default:
			c.recordFailure(ctx, err)
			useCache = false
			c.metrics.IncRateCache("bypass")
		}
	} else {
		c.metrics.IncRateCache("bypass")
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		rate, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if useCache {
			if err := c.client.Set(ctx, key, rate.Dec(), c.ttl).Err(); err != nil {
				c.recordFailure(ctx, err)
			}
		}
		return rate, nil
	})
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).Set(v.(*uint256.Int)), nil
}

// Invalidate drops the cached rate for ref.
func (c *RedisCache) Invalidate(ctx context.Context, ref string) error {
	return c.client.Del(ctx, cacheKeyPrefix+ref).Err()
}

func (c *RedisCache) recordSuccess(ctx context.Context) {
	if _, change := c.breaker.RecordSuccess(); change.Closed && c.logger != nil {
		c.logger.InfoContext(ctx, "rate cache recovered")
	}
}

func (c *RedisCache) recordFailure(ctx context.Context, err error) {
	if _, change := c.breaker.RecordFailure(); change.Opened && c.logger != nil {
		c.logger.WarnContext(ctx, "rate cache unavailable, bypassing", "error", err)
	}
}
