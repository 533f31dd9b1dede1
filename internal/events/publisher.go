// Package events publishes pipeline results on the NATS message bus.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/riskdash/internal/metrics"
)

// DefaultSubject is the subject report summaries are published on
const DefaultSubject = "risk.report"

// ReportEvent is the JSON summary of one pipeline run
type ReportEvent struct {
	ID                  uuid.UUID `json:"id"`
	RunID               string    `json:"run_id"`
	Timestamp           time.Time `json:"timestamp"`
	Success             bool      `json:"success"`
	Assets              []string  `json:"assets"`
	Weights             []float64 `json:"weights,omitempty"`
	PortfolioReturn     float64   `json:"portfolio_return"`
	PortfolioVolatility float64   `json:"portfolio_volatility"`
	ParametricVaR       float64   `json:"parametric_var"`
	MonteCarloVaR       float64   `json:"monte_carlo_var"`
	ConfidenceLevel     float64   `json:"confidence_level"`
	Observations        int       `json:"observations"`
	Notices             []string  `json:"notices,omitempty"`
	Stage               string    `json:"stage,omitempty"`
	Error               string    `json:"error,omitempty"`
}

// Config configures the publisher connection
type Config struct {
	URL     string
	Subject string
	Name    string
}

// Publisher sends ReportEvents to NATS
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// NewPublisher connects to NATS. An empty URL yields a nil publisher whose
// methods are no-ops.
func NewPublisher(cfg Config) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.Name == "" {
		cfg.Name = "riskdash"
	}

	nc, err := nats.Connect(
		cfg.URL,
		nats.Name(cfg.Name),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.Info().
		Str("nats_url", cfg.URL).
		Str("subject", cfg.Subject).
		Msg("Event publisher initialized")

	return &Publisher{nc: nc, subject: cfg.Subject}, nil
}

// Subject returns the subject events are published on
func (p *Publisher) Subject() string {
	if p == nil {
		return ""
	}
	return p.subject
}

// Publish serializes and publishes event, filling in its ID and timestamp
func (p *Publisher) Publish(ctx context.Context, event *ReportEvent) error {
	if p == nil {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !p.nc.IsConnected() {
		return fmt.Errorf("event publisher not connected")
	}

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal report event: %w", err)
	}

	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish report event: %w", err)
	}
	metrics.RecordNATSPublish(p.subject)

	log.Debug().
		Str("event_id", event.ID.String()).
		Str("run_id", event.RunID).
		Str("subject", p.subject).
		Bool("success", event.Success).
		Msg("Published report event")

	return nil
}

// Close drains pending messages and closes the connection
func (p *Publisher) Close() error {
	if p == nil || p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
