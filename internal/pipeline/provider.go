package pipeline

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ajitpratap0/riskdash/internal/config"
	"github.com/ajitpratap0/riskdash/internal/market"
)

// NewProvider builds the configured price provider. When rdb is non-nil the
// provider is wrapped with the Redis history cache.
func NewProvider(cfg *config.Config, rdb *redis.Client) (market.PriceProvider, error) {
	var provider market.PriceProvider

	switch cfg.MarketData.Provider {
	case "yahoo":
		retry := market.DefaultRetryConfig()
		retry.MaxRetries = cfg.MarketData.MaxRetries
		provider = market.NewYahooClient(market.YahooConfig{
			Hosts:             cfg.MarketData.Hosts,
			Timeout:           cfg.MarketData.GetTimeout(),
			Retry:             retry,
			RequestsPerSecond: cfg.MarketData.RequestsPerSecond,
			Burst:             cfg.MarketData.Burst,
			UserAgent:         cfg.MarketData.UserAgent,
		})
	case "static":
		table, err := market.LoadCSVFile(cfg.MarketData.StaticFile)
		if err != nil {
			return nil, err
		}
		provider = market.NewStaticProvider(table)
	default:
		return nil, fmt.Errorf("unknown market data provider %q", cfg.MarketData.Provider)
	}

	if rdb != nil {
		ttl := cfg.MarketData.GetCacheTTL()
		if ttl <= 0 {
			ttl = time.Hour
		}
		provider = market.NewCachedProvider(provider, market.NewRedisHistoryCache(rdb, ttl))
	}

	return provider, nil
}
