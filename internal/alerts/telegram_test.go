package alerts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "123:abc"

// fakeBotAPI records sendMessage calls and fails for chat IDs in reject
type fakeBotAPI struct {
	mu     sync.Mutex
	sent   map[string]string
	reject map[string]bool
}

func newFakeBotAPI(t *testing.T, reject ...string) (*fakeBotAPI, string) {
	t.Helper()
	f := &fakeBotAPI{sent: map[string]string{}, reject: map[string]bool{}}
	for _, id := range reject {
		f.reject[id] = true
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"riskdash","username":"riskdash_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			require.NoError(t, r.ParseForm())
			chatID := r.PostForm.Get("chat_id")
			if f.reject[chatID] {
				w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
				return
			}
			f.mu.Lock()
			f.sent[chatID] = r.PostForm.Get("text")
			f.mu.Unlock()
			w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":1,"type":"private"}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
		}
	}))
	t.Cleanup(server.Close)

	return f, server.URL + "/bot%s/%s"
}

func TestNewTelegramAlerter(t *testing.T) {
	_, err := NewTelegramAlerter("", []int64{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bot token is required")

	_, endpoint := newFakeBotAPI(t)
	alerter, err := NewTelegramAlerterWithEndpoint(testToken, endpoint, []int64{42})
	require.NoError(t, err)
	assert.Equal(t, "riskdash_bot", alerter.api.Self.UserName)
	assert.Equal(t, []int64{42}, alerter.ChatIDs())
	assert.Equal(t, "telegram", alerter.Channel())
}

func TestTelegramAlerter_Send(t *testing.T) {
	fake, endpoint := newFakeBotAPI(t)
	alerter, err := NewTelegramAlerterWithEndpoint(testToken, endpoint, []int64{42, 43})
	require.NoError(t, err)

	err = alerter.Send(context.Background(), Alert{
		Title:     "Portfolio VaR Breach",
		Message:   "95% VaR loss 0.0700 exceeds threshold 0.0500",
		Severity:  SeverityWarning,
		Timestamp: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Len(t, fake.sent, 2)
	assert.Contains(t, fake.sent["42"], "Portfolio VaR Breach")
	assert.Contains(t, fake.sent["43"], "2024-03-01 09:30:00")
}

func TestTelegramAlerter_SendPartialFailure(t *testing.T) {
	fake, endpoint := newFakeBotAPI(t, "43")
	alerter, err := NewTelegramAlerterWithEndpoint(testToken, endpoint, []int64{42, 43})
	require.NoError(t, err)

	require.NoError(t, alerter.Send(context.Background(), Alert{Title: "t", Message: "m"}))
	assert.Len(t, fake.sent, 1)
}

func TestTelegramAlerter_SendAllFail(t *testing.T) {
	_, endpoint := newFakeBotAPI(t, "42")
	alerter, err := NewTelegramAlerterWithEndpoint(testToken, endpoint, []int64{42})
	require.NoError(t, err)

	err = alerter.Send(context.Background(), Alert{Title: "t", Message: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send alert to any chat")
}

func TestTelegramAlerter_Send_NoChatIDs(t *testing.T) {
	alerter := &TelegramAlerter{chatIDs: []int64{}}

	assert.NoError(t, alerter.Send(context.Background(), Alert{Title: "Test Alert"}))
}

func TestFormatAlert(t *testing.T) {
	tests := []struct {
		name     string
		alert    Alert
		contains []string
	}{
		{
			name:     "critical alert",
			alert:    Alert{Title: "Feed Down", Message: "Yahoo unavailable", Severity: SeverityCritical},
			contains: []string{"🚨", "*Feed Down*", "Yahoo unavailable"},
		},
		{
			name:     "warning alert",
			alert:    Alert{Title: "VaR", Message: "loss above threshold", Severity: SeverityWarning},
			contains: []string{"⚠️", "loss above threshold"},
		},
		{
			name: "alert with metadata",
			alert: Alert{
				Title:    "VaR",
				Message:  "breach",
				Severity: SeverityInfo,
				Metadata: map[string]interface{}{"threshold": "0.0500", "parametric_var": "-0.0700"},
			},
			contains: []string{"ℹ️", "Details:", "• parametric_var: `-0.0700`\n• threshold: `0.0500`"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatAlert(tt.alert)
			for _, s := range tt.contains {
				assert.Contains(t, result, s)
			}
		})
	}
}
