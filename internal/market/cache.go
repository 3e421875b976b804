package market

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/stratevolve/stratevolve/internal/metrics"
	"github.com/stratevolve/stratevolve/pkg/ledger"
)

// TickCache stores loaded tick histories so repeated runs over the same
// window skip the source entirely. A cache failure is never fatal; it
// degrades to a miss.
type TickCache interface {
	Get(ctx context.Context, key string) ([]ledger.Tick, bool)
	Set(ctx context.Context, key string, ticks []ledger.Tick) error
}

// CacheKey builds the canonical cache key for one load request
func CacheKey(symbol, interval string, start, end time.Time) string {
	return fmt.Sprintf("ticks:%s:%s:%d:%d", symbol, interval, start.UnixMilli(), end.UnixMilli())
}

// ============================================================================
// IN-MEMORY CACHE
// ============================================================================

type memoryEntry struct {
	ticks   []ledger.Tick
	expires time.Time
}

// MemoryCache is a process-local TTL cache
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
}

// NewMemoryCache creates an in-process cache with the given TTL
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
	}
}

// Get returns the cached ticks if present and unexpired
func (c *MemoryCache) Get(ctx context.Context, key string) ([]ledger.Tick, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}
	return append([]ledger.Tick(nil), entry.ticks...), true
}

// Set stores a copy of the ticks under the key
func (c *MemoryCache) Set(ctx context.Context, key string, ticks []ledger.Tick) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{
		ticks:   append([]ledger.Tick(nil), ticks...),
		expires: time.Now().Add(c.ttl),
	}
	return nil
}

// ============================================================================
// REDIS CACHE
// ============================================================================

// RedisTickCache caches tick histories in Redis so they survive process
// restarts and are shared between instances.
type RedisTickCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTickCache creates a Redis-backed cache. A nil client returns nil;
// callers treat a nil cache as disabled.
func NewRedisTickCache(client *redis.Client, ttl time.Duration) *RedisTickCache {
	if client == nil {
		return nil
	}
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	return &RedisTickCache{client: client, ttl: ttl}
}

// Get retrieves a tick history from Redis. Any error is treated as a miss.
func (c *RedisTickCache) Get(ctx context.Context, key string) ([]ledger.Tick, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	cached, err := c.client.Get(cacheCtx, key).Result()
	if err != nil {
		if err != redis.Nil {
			log.Debug().Err(err).Str("key", key).Msg("Redis get error, treating as cache miss")
		}
		return nil, false
	}

	var ticks []ledger.Tick
	if err := json.Unmarshal([]byte(cached), &ticks); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to unmarshal cached ticks")
		return nil, false
	}
	return ticks, true
}

// Set stores a tick history in Redis with the configured TTL
func (c *RedisTickCache) Set(ctx context.Context, key string, ticks []ledger.Tick) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("cache not initialized")
	}

	data, err := json.Marshal(ticks)
	if err != nil {
		return fmt.Errorf("failed to marshal ticks: %w", err)
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.client.Set(cacheCtx, key, data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to cache ticks")
		return err
	}
	return nil
}

// ============================================================================
// CACHED LOADER
// ============================================================================

// CachedLoader wraps a Loader with a TickCache
type CachedLoader struct {
	loader Loader
	cache  TickCache
}

// NewCachedLoader wraps the loader. A nil cache passes every load through.
func NewCachedLoader(loader Loader, cache TickCache) *CachedLoader {
	return &CachedLoader{loader: loader, cache: cache}
}

// Load serves from cache when possible, loading and back-filling otherwise
func (l *CachedLoader) Load(ctx context.Context, symbol, interval string, start, end time.Time) ([]ledger.Tick, error) {
	key := CacheKey(symbol, interval, start, end)

	if l.cache != nil {
		if ticks, ok := l.cache.Get(ctx, key); ok {
			metrics.TickCacheHits.Inc()
			log.Debug().Str("key", key).Int("ticks", len(ticks)).Msg("Tick cache hit")
			return ticks, nil
		}
		metrics.TickCacheMisses.Inc()
	}

	ticks, err := l.loader.Load(ctx, symbol, interval, start, end)
	if err != nil {
		return nil, err
	}

	if l.cache != nil {
		if err := l.cache.Set(ctx, key, ticks); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Tick cache write failed")
		}
	}
	return ticks, nil
}
