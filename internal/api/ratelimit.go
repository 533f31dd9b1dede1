package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// rateLimiterEntry tracks request timestamps for one client address
type rateLimiterEntry struct {
	requests []time.Time
	mu       sync.Mutex
}

// RateLimiter is a sliding-window limiter keyed by client IP. Refresh and
// simulate trigger full recomputation, so they sit behind one of these.
type RateLimiter struct {
	entries     sync.Map // map[string]*rateLimiterEntry
	maxRequests int
	window      time.Duration
	name        string
	now         func() time.Time
}

// NewRateLimiter creates a limiter allowing maxRequests per window per IP.
// A non-positive maxRequests disables limiting.
func NewRateLimiter(name string, maxRequests int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		name:        name,
		now:         time.Now,
	}
}

func (rl *RateLimiter) allow(ip string) bool {
	if rl.maxRequests <= 0 {
		return true
	}
	now := rl.now()

	val, _ := rl.entries.LoadOrStore(ip, &rateLimiterEntry{
		requests: make([]time.Time, 0, rl.maxRequests),
	})
	entry := val.(*rateLimiterEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	cutoff := now.Add(-rl.window)
	kept := entry.requests[:0]
	for _, req := range entry.requests {
		if req.After(cutoff) {
			kept = append(kept, req)
		}
	}
	entry.requests = kept

	if len(entry.requests) >= rl.maxRequests {
		log.Warn().
			Str("ip", ip).
			Str("limiter", rl.name).
			Int("max", rl.maxRequests).
			Dur("window", rl.window).
			Msg("Rate limit exceeded")
		return false
	}

	entry.requests = append(entry.requests, now)
	return true
}

// Middleware returns a Gin middleware that rejects requests over the limit
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"message":     fmt.Sprintf("Maximum %d requests per %v allowed", rl.maxRequests, rl.window),
				"retry_after": rl.window.Seconds(),
			})
			return
		}
		c.Next()
	}
}

// Cleanup drops clients with no requests in the last two windows
func (rl *RateLimiter) Cleanup() int {
	cutoff := rl.now().Add(-2 * rl.window)
	removed := 0
	rl.entries.Range(func(key, value interface{}) bool {
		entry := value.(*rateLimiterEntry)
		entry.mu.Lock()
		active := false
		for _, req := range entry.requests {
			if req.After(cutoff) {
				active = true
				break
			}
		}
		entry.mu.Unlock()

		if !active {
			rl.entries.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

// StartCleanup runs Cleanup every interval until ctx is done
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := rl.Cleanup(); n > 0 {
					log.Debug().Str("limiter", rl.name).Int("removed", n).Msg("Rate limiter cleanup completed")
				}
			}
		}
	}()
}
