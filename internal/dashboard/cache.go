package dashboard

import (
	"sync"
	"time"
)

type chartCacheEntry struct {
	createdAt time.Time
	image     []byte
}

// ChartCache keeps rendered PNGs for a fixed TTL
type ChartCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]chartCacheEntry
}

// NewChartCache creates a cache. A non-positive ttl disables caching.
func NewChartCache(ttl time.Duration) *ChartCache {
	return &ChartCache{ttl: ttl, entries: make(map[string]chartCacheEntry)}
}

// Get returns a copy of a fresh entry
func (c *ChartCache) Get(key string) ([]byte, bool) {
	if c == nil || c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Since(entry.createdAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	img := make([]byte, len(entry.image))
	copy(img, entry.image)
	return img, true
}

// Set stores img under key
func (c *ChartCache) Set(key string, img []byte) {
	if c == nil || c.ttl <= 0 {
		return
	}
	stored := make([]byte, len(img))
	copy(stored, img)
	c.mu.Lock()
	c.entries[key] = chartCacheEntry{createdAt: time.Now(), image: stored}
	c.mu.Unlock()
}

// Purge drops expired entries and returns how many remain
func (c *ChartCache) Purge() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if time.Since(e.createdAt) >= c.ttl {
			delete(c.entries, k)
		}
	}
	return len(c.entries)
}
