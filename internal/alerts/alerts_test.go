package alerts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockAlerter is a test implementation of Alerter
type MockAlerter struct {
	alerts []Alert
	err    error
}

func NewMockAlerter(err error) *MockAlerter {
	return &MockAlerter{
		alerts: make([]Alert, 0),
		err:    err,
	}
}

func (m *MockAlerter) Send(ctx context.Context, alert Alert) error {
	m.alerts = append(m.alerts, alert)
	return m.err
}

func TestNewManager(t *testing.T) {
	manager := NewManager(NewMockAlerter(nil), NewMockAlerter(nil))

	require.NotNil(t, manager)
	assert.Len(t, manager.alerters, 2)
}

func TestManager_Send(t *testing.T) {
	tests := []struct {
		name      string
		mockErr   error
		expectErr bool
	}{
		{name: "successful send", mockErr: nil, expectErr: false},
		{name: "failed send", mockErr: errors.New("send failed"), expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockAlerter(tt.mockErr)
			manager := NewManager(mock)

			err := manager.Send(context.Background(), Alert{
				Title:    "Test Alert",
				Message:  "Test Message",
				Severity: SeverityInfo,
			})

			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			require.Len(t, mock.alerts, 1)
			assert.False(t, mock.alerts[0].Timestamp.IsZero())
		})
	}
}

func TestManager_SendToMultipleAlerters(t *testing.T) {
	failing := NewMockAlerter(errors.New("boom"))
	healthy := NewMockAlerter(nil)
	manager := NewManager(failing, healthy)

	err := manager.SendWarning(context.Background(), "Title", "Message", nil)

	assert.Error(t, err)
	assert.Len(t, failing.alerts, 1)
	assert.Len(t, healthy.alerts, 1)
	assert.Equal(t, SeverityWarning, healthy.alerts[0].Severity)
}

func TestManager_SendCritical(t *testing.T) {
	mock := NewMockAlerter(nil)
	manager := NewManager(mock)

	require.NoError(t, manager.SendCritical(context.Background(), "Down", "Feed down", map[string]interface{}{"host": "query1"}))

	require.Len(t, mock.alerts, 1)
	assert.Equal(t, SeverityCritical, mock.alerts[0].Severity)
	assert.Equal(t, "query1", mock.alerts[0].Metadata["host"])
}

func TestNilManager(t *testing.T) {
	var manager *Manager

	assert.NoError(t, manager.Send(context.Background(), Alert{Title: "ignored"}))
	fired, err := manager.CheckVaR(context.Background(), RiskSnapshot{ParametricVaR: -1}, 0.05)
	assert.NoError(t, err)
	assert.False(t, fired)
}

func TestManager_CheckVaR(t *testing.T) {
	tests := []struct {
		name      string
		varValue  float64
		threshold float64
		fired     bool
		severity  Severity
	}{
		{name: "below threshold", varValue: -0.02, threshold: 0.05, fired: false},
		{name: "exactly at threshold", varValue: -0.05, threshold: 0.05, fired: false},
		{name: "warning breach", varValue: -0.07, threshold: 0.05, fired: true, severity: SeverityWarning},
		{name: "critical breach", varValue: -0.12, threshold: 0.05, fired: true, severity: SeverityCritical},
		{name: "disabled rule", varValue: -0.5, threshold: 0, fired: false},
		{name: "positive var is no loss", varValue: 0.03, threshold: 0.01, fired: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockAlerter(nil)
			manager := NewManager(mock)

			fired, err := manager.CheckVaR(context.Background(), RiskSnapshot{
				RunID:           "run-1",
				ParametricVaR:   tt.varValue,
				MonteCarloVaR:   0.91,
				Volatility:      0.02,
				ConfidenceLevel: 0.95,
			}, tt.threshold)

			require.NoError(t, err)
			assert.Equal(t, tt.fired, fired)
			if !tt.fired {
				assert.Empty(t, mock.alerts)
				return
			}
			require.Len(t, mock.alerts, 1)
			assert.Equal(t, tt.severity, mock.alerts[0].Severity)
			assert.Contains(t, mock.alerts[0].Message, "95% VaR loss")
			assert.Equal(t, "run-1", mock.alerts[0].Metadata["run_id"])
		})
	}
}

func TestLogAlerter_Send(t *testing.T) {
	alerter := NewLogAlerter()

	for _, severity := range []Severity{SeverityInfo, SeverityWarning, SeverityCritical, "UNKNOWN"} {
		err := alerter.Send(context.Background(), Alert{
			Title:    "Test",
			Message:  "message",
			Severity: severity,
			Metadata: map[string]interface{}{"key": "value"},
		})
		assert.NoError(t, err)
	}
	assert.Equal(t, "log", alerter.Channel())
}

func TestSeverityConstants(t *testing.T) {
	assert.Equal(t, Severity("INFO"), SeverityInfo)
	assert.Equal(t, Severity("WARNING"), SeverityWarning)
	assert.Equal(t, Severity("CRITICAL"), SeverityCritical)
}
