// Package alerts delivers risk threshold alerts to log and chat channels.
package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/riskdash/internal/metrics"
)

// Severity levels for alerts
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Alert represents an alert message
type Alert struct {
	Title     string
	Message   string
	Severity  Severity
	Timestamp time.Time
	Metadata  map[string]interface{}
}

// Alerter defines the interface for sending alerts
type Alerter interface {
	Send(ctx context.Context, alert Alert) error
}

// channelNamer is implemented by alerters that report delivery metrics
type channelNamer interface {
	Channel() string
}

// Manager manages multiple alert channels
type Manager struct {
	alerters []Alerter
}

// NewManager creates a new alert manager
func NewManager(alerters ...Alerter) *Manager {
	return &Manager{
		alerters: alerters,
	}
}

// Send sends an alert to all configured alerters
func (m *Manager) Send(ctx context.Context, alert Alert) error {
	if m == nil {
		return nil
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}

	var lastErr error
	for _, alerter := range m.alerters {
		err := alerter.Send(ctx, alert)
		if named, ok := alerter.(channelNamer); ok {
			metrics.RecordAlert(named.Channel(), err == nil)
		}
		if err != nil {
			log.Error().
				Err(err).
				Str("title", alert.Title).
				Msg("Failed to send alert")
			lastErr = err
		}
	}

	return lastErr
}

// SendCritical is a convenience method for sending critical alerts
func (m *Manager) SendCritical(ctx context.Context, title, message string, metadata map[string]interface{}) error {
	return m.Send(ctx, Alert{
		Title:    title,
		Message:  message,
		Severity: SeverityCritical,
		Metadata: metadata,
	})
}

// SendWarning is a convenience method for sending warning alerts
func (m *Manager) SendWarning(ctx context.Context, title, message string, metadata map[string]interface{}) error {
	return m.Send(ctx, Alert{
		Title:    title,
		Message:  message,
		Severity: SeverityWarning,
		Metadata: metadata,
	})
}

// RiskSnapshot carries the numbers a VaR rule is evaluated against
type RiskSnapshot struct {
	RunID           string
	ParametricVaR   float64
	MonteCarloVaR   float64
	Volatility      float64
	ConfidenceLevel float64
}

// CheckVaR alerts when the parametric loss -VaR exceeds threshold. A loss
// above twice the threshold is critical. A non-positive threshold disables
// the rule. It reports whether an alert was raised.
func (m *Manager) CheckVaR(ctx context.Context, s RiskSnapshot, threshold float64) (bool, error) {
	if m == nil || threshold <= 0 {
		return false, nil
	}
	loss := -s.ParametricVaR
	if loss <= threshold {
		return false, nil
	}

	metadata := map[string]interface{}{
		"run_id":          s.RunID,
		"parametric_var":  fmt.Sprintf("%.4f", s.ParametricVaR),
		"monte_carlo_var": fmt.Sprintf("%.4f", s.MonteCarloVaR),
		"volatility":      fmt.Sprintf("%.4f", s.Volatility),
		"threshold":       fmt.Sprintf("%.4f", threshold),
	}
	message := fmt.Sprintf("%.0f%% VaR loss %.4f exceeds threshold %.4f",
		s.ConfidenceLevel*100, loss, threshold)

	if loss > 2*threshold {
		return true, m.SendCritical(ctx, "Portfolio VaR Breach", message, metadata)
	}
	return true, m.SendWarning(ctx, "Portfolio VaR Breach", message, metadata)
}

// LogAlerter logs alerts using zerolog
type LogAlerter struct{}

// NewLogAlerter creates a new log-based alerter
func NewLogAlerter() *LogAlerter {
	return &LogAlerter{}
}

// Channel names the alerter for metrics
func (l *LogAlerter) Channel() string { return metrics.ChannelLog }

// Send sends an alert by logging it
func (l *LogAlerter) Send(ctx context.Context, alert Alert) error {
	event := log.Log()

	switch alert.Severity {
	case SeverityCritical:
		event = log.Error()
	case SeverityWarning:
		event = log.Warn()
	case SeverityInfo:
		event = log.Info()
	}

	if alert.Metadata != nil {
		for key, value := range alert.Metadata {
			event = event.Interface(key, value)
		}
	}

	event.
		Str("alert_title", alert.Title).
		Str("alert_severity", string(alert.Severity)).
		Time("alert_time", alert.Timestamp).
		Msg("ALERT: " + alert.Message)

	return nil
}
