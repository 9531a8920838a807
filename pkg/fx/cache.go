package fx

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jonboulle/clockwork"
	"github.com/platinummonkey/subledger/pkg/observability"
	"github.com/platinummonkey/subledger/pkg/storage/postgres"
)

// Cache holds the latest rate per currency pair. An entry never outlives the
// rate's ValidUntil.
type Cache interface {
	Get(ctx context.Context, base, quote string) (*Rate, bool)
	Set(ctx context.Context, rate *Rate)
	Invalidate(ctx context.Context, base, quote string) error
}

func cacheKey(base, quote string) string {
	return "fx:rate:" + base + ":" + quote
}

type memoryEntry struct {
	rate    *Rate
	expires time.Time
}

// MemoryCache is an in-process LRU with per-entry expiry
type MemoryCache struct {
	cache *lru.LRU[string, memoryEntry]
	ttl   time.Duration
	clock clockwork.Clock
}

// NewMemoryCache creates a MemoryCache holding up to size pairs for ttl
func NewMemoryCache(size int, ttl time.Duration, clock clockwork.Clock) *MemoryCache {
	if size < 1 {
		size = 1
	}
	return &MemoryCache{
		cache: lru.NewLRU[string, memoryEntry](size, nil, ttl),
		ttl:   ttl,
		clock: clock,
	}
}

// Get implements Cache
func (c *MemoryCache) Get(_ context.Context, base, quote string) (*Rate, bool) {
	key := cacheKey(base, quote)
	entry, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	if !c.clock.Now().Before(entry.expires) {
		c.cache.Remove(key)
		return nil, false
	}
	return entry.rate, true
}

// Set implements Cache
func (c *MemoryCache) Set(_ context.Context, rate *Rate) {
	now := c.clock.Now()
	ttl := rate.cacheTTL(now, c.ttl)
	if ttl <= 0 {
		return
	}
	c.cache.Add(cacheKey(rate.BaseCurrency, rate.QuoteCurrency), memoryEntry{rate: rate, expires: now.Add(ttl)})
}

// Invalidate implements Cache
func (c *MemoryCache) Invalidate(_ context.Context, base, quote string) error {
	c.cache.Remove(cacheKey(base, quote))
	return nil
}

// RedisCache shares rates between replicas of the service
type RedisCache struct {
	client *postgres.RedisClient
	ttl    time.Duration
	clock  clockwork.Clock
	logger *observability.Logger
}

// NewRedisCache creates a RedisCache
func NewRedisCache(client *postgres.RedisClient, ttl time.Duration, clock clockwork.Clock, logger *observability.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, clock: clock, logger: logger}
}

// Get implements Cache. Redis failures degrade to a miss.
func (c *RedisCache) Get(ctx context.Context, base, quote string) (*Rate, bool) {
	var rate Rate
	found, err := c.client.GetJSON(ctx, cacheKey(base, quote), &rate)
	if err != nil {
		c.logger.WithError(err).Warn("fx cache read failed")
		return nil, false
	}
	if !found {
		return nil, false
	}
	// Another instance may run on a skewed clock
	if !rate.EffectiveAt(c.clock.Now()) {
		if err := c.Invalidate(ctx, base, quote); err != nil {
			c.logger.WithError(err).Warn("fx cache eviction failed")
		}
		return nil, false
	}
	return &rate, true
}

// Set implements Cache. The key expires when the next scheduled rate takes
// effect if that comes before the ttl.
func (c *RedisCache) Set(ctx context.Context, rate *Rate) {
	ttl := rate.cacheTTL(c.clock.Now(), c.ttl)
	if ttl <= 0 {
		return
	}
	if err := c.client.SetJSON(ctx, cacheKey(rate.BaseCurrency, rate.QuoteCurrency), rate, ttl); err != nil {
		c.logger.WithError(err).Warn("fx cache write failed")
	}
}

// Invalidate implements Cache
func (c *RedisCache) Invalidate(ctx context.Context, base, quote string) error {
	return c.client.InvalidatePatterns(ctx, cacheKey(base, quote))
}

// TieredCache reads memory first, then Redis, and backfills memory on a
// Redis hit. Either tier may be nil.
type TieredCache struct {
	l1      Cache
	l2      Cache
	metrics *observability.Metrics
}

// NewTieredCache creates a TieredCache
func NewTieredCache(l1, l2 Cache, metrics *observability.Metrics) *TieredCache {
	return &TieredCache{l1: l1, l2: l2, metrics: metrics}
}

// Get implements Cache
func (c *TieredCache) Get(ctx context.Context, base, quote string) (*Rate, bool) {
	if c.l1 != nil {
		if rate, ok := c.l1.Get(ctx, base, quote); ok {
			c.metrics.IncFXCacheHit("memory")
			return rate, true
		}
	}
	if c.l2 != nil {
		if rate, ok := c.l2.Get(ctx, base, quote); ok {
			c.metrics.IncFXCacheHit("redis")
			if c.l1 != nil {
				c.l1.Set(ctx, rate)
			}
			return rate, true
		}
	}
	return nil, false
}

// Set implements Cache
func (c *TieredCache) Set(ctx context.Context, rate *Rate) {
	if c.l1 != nil {
		c.l1.Set(ctx, rate)
	}
	if c.l2 != nil {
		c.l2.Set(ctx, rate)
	}
}

// Invalidate implements Cache
func (c *TieredCache) Invalidate(ctx context.Context, base, quote string) error {
	if c.l1 != nil {
		_ = c.l1.Invalidate(ctx, base, quote)
	}
	if c.l2 != nil {
		return c.l2.Invalidate(ctx, base, quote)
	}
	return nil
}
