package market

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/riskdash/internal/metrics"
	"github.com/ajitpratap0/riskdash/pkg/riskcalc"
)

const keyPrefix = "riskdash:prices:"

// RedisHistoryCache provides Redis-based caching for aligned price tables
type RedisHistoryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// historyCacheEntry is the JSON form of a PriceTable. Missing prices are
// stored as null since JSON has no NaN.
type historyCacheEntry struct {
	Assets    []string                       `json:"assets"`
	Dates     []time.Time                    `json:"dates"`
	Prices    [][]*float64                   `json:"prices"`
	Fields    map[string]riskcalc.PriceField `json:"fields"`
	Timestamp time.Time                      `json:"timestamp"`
}

// NewRedisHistoryCache creates a new Redis-based history cache
// If client is nil, returns nil (optional Redis support)
func NewRedisHistoryCache(client *redis.Client, ttl time.Duration) *RedisHistoryCache {
	if client == nil {
		return nil
	}

	if ttl == 0 {
		ttl = time.Hour
	}

	return &RedisHistoryCache{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves a table from cache
// Returns the table and true if found, or nil and false if not found or on error
func (c *RedisHistoryCache) Get(ctx context.Context, assets []string, start, end time.Time) (*riskcalc.PriceTable, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	key := c.buildKey(assets, start, end)

	// Use a short timeout for cache operations to prevent blocking
	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	metrics.RecordRedisOperation("get")
	cached, err := c.client.Get(cacheCtx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// Log error but don't fail - cache miss is acceptable
			log.Debug().
				Err(err).
				Str("key", key).
				Msg("Redis get error - treating as cache miss")
		}
		return nil, false
	}

	var entry historyCacheEntry
	if err := json.Unmarshal(cached, &entry); err != nil {
		log.Warn().
			Err(err).
			Str("key", key).
			Msg("Failed to unmarshal cached price history")
		return nil, false
	}

	table, err := entry.table()
	if err != nil {
		log.Warn().
			Err(err).
			Str("key", key).
			Msg("Cached price history is invalid")
		return nil, false
	}

	log.Debug().
		Str("key", key).
		Int("rows", table.Len()).
		Time("cached_at", entry.Timestamp).
		Msg("Cache hit for price history")

	return table, true
}

// Set stores a table in cache with the configured TTL
func (c *RedisHistoryCache) Set(ctx context.Context, table *riskcalc.PriceTable, start, end time.Time) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("cache not initialized")
	}

	key := c.buildKey(table.Assets, start, end)

	data, err := json.Marshal(newHistoryCacheEntry(table))
	if err != nil {
		return fmt.Errorf("failed to marshal price history: %w", err)
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	metrics.RecordRedisOperation("set")
	if err := c.client.Set(cacheCtx, key, data, c.ttl).Err(); err != nil {
		// Log but don't fail the operation - cache failure should be graceful
		log.Warn().
			Err(err).
			Str("key", key).
			Msg("Failed to cache price history")
		return err
	}

	log.Debug().
		Str("key", key).
		Int("rows", table.Len()).
		Dur("ttl", c.ttl).
		Msg("Cached price history")

	return nil
}

// Clear removes all price history entries
func (c *RedisHistoryCache) Clear(ctx context.Context) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("cache not initialized")
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	iter := c.client.Scan(cacheCtx, 0, keyPrefix+"*", 0).Iterator()
	count := 0

	for iter.Next(cacheCtx) {
		metrics.RecordRedisOperation("del")
		if err := c.client.Del(cacheCtx, iter.Val()).Err(); err != nil {
			log.Warn().
				Err(err).
				Str("key", iter.Val()).
				Msg("Failed to delete cache key")
		} else {
			count++
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan error: %w", err)
	}

	log.Info().
		Int("keys_deleted", count).
		Msg("Cleared price history cache")

	return nil
}

// Health checks if the Redis connection is healthy
func (c *RedisHistoryCache) Health(ctx context.Context) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("cache not initialized")
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.client.Ping(cacheCtx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	return nil
}

// buildKey creates a Redis key for an asset list and date range
func (c *RedisHistoryCache) buildKey(assets []string, start, end time.Time) string {
	return fmt.Sprintf("%s%s:%s:%s", keyPrefix, strings.Join(assets, ","),
		start.Format(time.DateOnly), end.Format(time.DateOnly))
}

func newHistoryCacheEntry(t *riskcalc.PriceTable) historyCacheEntry {
	prices := make([][]*float64, len(t.Prices))
	for i, row := range t.Prices {
		prices[i] = make([]*float64, len(row))
		for j, v := range row {
			if !math.IsNaN(v) {
				v := v
				prices[i][j] = &v
			}
		}
	}
	return historyCacheEntry{
		Assets:    t.Assets,
		Dates:     t.Dates,
		Prices:    prices,
		Fields:    t.Fields,
		Timestamp: time.Now(),
	}
}

func (e historyCacheEntry) table() (*riskcalc.PriceTable, error) {
	prices := make([][]float64, len(e.Prices))
	for i, row := range e.Prices {
		prices[i] = make([]float64, len(row))
		for j, v := range row {
			if v == nil {
				prices[i][j] = math.NaN()
			} else {
				prices[i][j] = *v
			}
		}
	}
	t, err := riskcalc.NewPriceTable(e.Assets, e.Dates, prices)
	if err != nil {
		return nil, err
	}
	t.Fields = e.Fields
	return t, nil
}

// ============================================================================
// CACHED PROVIDER
// ============================================================================

// CachedProvider wraps a PriceProvider with Redis caching
type CachedProvider struct {
	next  PriceProvider
	cache *RedisHistoryCache
}

// NewCachedProvider creates a new cached provider. A nil cache passes every
// request through.
func NewCachedProvider(next PriceProvider, cache *RedisHistoryCache) *CachedProvider {
	return &CachedProvider{next: next, cache: cache}
}

// FetchPrices returns a cached table when available, otherwise fetches and
// stores the result.
func (p *CachedProvider) FetchPrices(ctx context.Context, assets []string, start, end time.Time) (*riskcalc.PriceTable, error) {
	if table, ok := p.cache.Get(ctx, assets, start, end); ok {
		metrics.RecordMarketDataRequest("cache_hit")
		return table, nil
	}
	if p.cache != nil {
		metrics.RecordMarketDataRequest("cache_miss")
	}

	table, err := p.next.FetchPrices(ctx, assets, start, end)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		_ = p.cache.Set(ctx, table, start, end)
	}

	return table, nil
}
