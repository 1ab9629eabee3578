package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gilrm92/trading-spot/internal/adapter/metrics"
	"github.com/gilrm92/trading-spot/internal/domain"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
)

const (
	catalogKey    = "catalog:items"
	catalogGenKey = "catalog:gen"
)

// Writes the listing only while catalog:gen still equals the loader's generation.
var setCatalogScript = goredis.NewScript(`
if (redis.call('GET', KEYS[1]) or '0') ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// CatalogCache is a two-layer cache for the public item listing: a short-lived
// in-process copy in front of a JSON blob in Redis shared by every instance.
type CatalogCache struct {
	rdb     goredis.Cmdable
	ttl     time.Duration
	metrics *metrics.CacheMetrics
	clock   clockwork.Clock

	mu        sync.RWMutex
	local     []domain.Item
	localGen  uint64
	expiresAt time.Time
	localTTL  time.Duration
}

var _ domain.CatalogCache = (*CatalogCache)(nil)

// NewCatalogCache creates the cache. ttl applies to the Redis copy, localTTL to the
// in-process copy (zero disables it). m may be nil.
func NewCatalogCache(rdb goredis.Cmdable, ttl, localTTL time.Duration, m *metrics.CacheMetrics, clock clockwork.Clock) *CatalogCache {
	return &CatalogCache{
		rdb:      rdb,
		ttl:      ttl,
		localTTL: localTTL,
		metrics:  m,
		clock:    clock,
	}
}

func (c *CatalogCache) Get(ctx context.Context) ([]domain.Item, bool) {
	if items, ok := c.getLocal(); ok {
		c.hit()
		return items, true
	}

	c.mu.RLock()
	localGen := c.localGen
	c.mu.RUnlock()

	data, err := c.rdb.Get(ctx, catalogKey).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			slog.Warn("Redis catalog cache GET failed", "error", err)
		}
		c.miss()
		return nil, false
	}

	var items []domain.Item
	if err := json.Unmarshal(data, &items); err != nil {
		slog.Warn("Failed to unmarshal cached catalog", "error", err)
		c.miss()
		return nil, false
	}

	c.setLocal(localGen, items)
	c.hit()
	return items, true
}

// Generation returns the shared invalidation counter. A missing key is generation 0.
func (c *CatalogCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, catalogGenKey).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read catalog generation: %w", err)
	}
	return gen, nil
}

// Set stores items in Redis and in-process, unless the catalog was invalidated
// after gen was read. It reports whether the listing was stored.
func (c *CatalogCache) Set(ctx context.Context, gen int64, items []domain.Item) bool {
	encoded, err := json.Marshal(items)
	if err != nil {
		slog.Warn("Failed to marshal catalog for Redis cache", "error", err)
		return false
	}

	c.mu.RLock()
	localGen := c.localGen
	c.mu.RUnlock()

	stored, err := setCatalogScript.Run(ctx, c.rdb,
		[]string{catalogGenKey, catalogKey},
		gen, encoded, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		slog.Warn("Failed to populate Redis catalog cache", "error", err)
		return false
	}
	if stored == 0 {
		slog.Debug("Discarded stale catalog load", "generation", gen)
		return false
	}

	c.setLocal(localGen, items)
	return true
}

// Invalidate advances the generation and drops both copies.
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	c.InvalidateLocal()

	_, err := c.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Incr(ctx, catalogGenKey)
		pipe.Del(ctx, catalogKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate catalog cache: %w", err)
	}
	return nil
}

// InvalidateLocal drops only the in-process copy. Called when another instance
// announces a catalog change.
func (c *CatalogCache) InvalidateLocal() {
	c.mu.Lock()
	c.local = nil
	c.localGen++
	c.expiresAt = time.Time{}
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.Invalidations.Inc()
	}
}

func (c *CatalogCache) getLocal() ([]domain.Item, bool) {
	if c.localTTL <= 0 {
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.local == nil || c.clock.Now().After(c.expiresAt) {
		return nil, false
	}
	return c.local, true
}

// setLocal keeps items unless a local invalidation happened since gen was read.
func (c *CatalogCache) setLocal(gen uint64, items []domain.Item) {
	if c.localTTL <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.localGen != gen {
		return
	}
	c.local = items
	c.expiresAt = c.clock.Now().Add(c.localTTL)
}

func (c *CatalogCache) hit() {
	if c.metrics != nil {
		c.metrics.Hits.Inc()
	}
}

func (c *CatalogCache) miss() {
	if c.metrics != nil {
		c.metrics.Misses.Inc()
	}
}
