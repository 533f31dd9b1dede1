package pipeline

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/riskdash/internal/alerts"
	"github.com/ajitpratap0/riskdash/internal/config"
	"github.com/ajitpratap0/riskdash/internal/events"
)

// Runtime owns a configured Service and the connections it depends on
type Runtime struct {
	Service *Service
	redis   *redis.Client
	events  *events.Publisher
}

// NewRuntime wires provider, cache, alerts and events from configuration.
// Optional backends that fail to connect are logged and skipped.
func NewRuntime(cfg *config.Config) (*Runtime, error) {
	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{}

	if cfg.Redis.Enabled {
		rt.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetRedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	provider, err := NewProvider(cfg, rt.redis)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to create market data provider: %w", err)
	}

	var serviceOpts []ServiceOption

	if cfg.Alerts.Enabled {
		alerters := []alerts.Alerter{alerts.NewLogAlerter()}
		if cfg.Alerts.Telegram.Enabled {
			tg, err := alerts.NewTelegramAlerter(cfg.Alerts.Telegram.BotToken, []int64{cfg.Alerts.Telegram.ChatID})
			if err != nil {
				log.Warn().Err(err).Msg("Telegram alerts disabled")
			} else {
				alerters = append(alerters, tg)
			}
		}
		serviceOpts = append(serviceOpts, WithAlerts(alerts.NewManager(alerters...)))
	}

	if cfg.NATS.Enabled {
		pub, err := events.NewPublisher(events.Config{
			URL:     cfg.NATS.URL,
			Subject: cfg.NATS.Subject,
			Name:    cfg.App.Name,
		})
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.NATS.URL).Msg("Report events disabled")
		} else {
			rt.events = pub
			serviceOpts = append(serviceOpts, WithEvents(pub))
		}
	}

	rt.Service = NewService(provider, opts, serviceOpts...)
	return rt, nil
}

// Close stops the refresh loop and releases connections
func (rt *Runtime) Close() {
	if rt.Service != nil {
		rt.Service.Stop()
	}
	if err := rt.events.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to drain NATS connection")
	}
	if rt.redis != nil {
		if err := rt.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
}
