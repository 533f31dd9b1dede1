package metrics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T) *Server {
	t.Helper()
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	server := NewServer(0, "1.2.3", log)
	require.NoError(t, server.Start())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, server.Shutdown(ctx))
	})
	return server
}

func TestNewServer(t *testing.T) {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	server := NewServer(9999, "dev", log)

	assert.NotNil(t, server)
	assert.Equal(t, 9999, server.port)
	assert.Nil(t, server.server)
	assert.Empty(t, server.Addr())
}

func TestHealthEndpoint(t *testing.T) {
	server := startTestServer(t)

	resp, err := http.Get("http://" + server.Addr() + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "1.2.3", body["version"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestMetricsEndpoint(t *testing.T) {
	RecordRiskMetrics(0.001, 0.01, -0.0155, 10, false)
	server := startTestServer(t)

	resp, err := http.Get("http://" + server.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "# HELP riskdash_parametric_var")
	assert.Contains(t, string(body), "riskdash_portfolio_volatility 0.01")
}

func TestServerShutdown(t *testing.T) {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	server := NewServer(0, "dev", log)
	require.NoError(t, server.Start())
	addr := server.Addr()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))

	resp, err := http.Get("http://" + addr + "/health")
	if resp != nil {
		resp.Body.Close()
	}
	assert.Error(t, err)
}

func TestShutdownWithoutStart(t *testing.T) {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	server := NewServer(0, "dev", log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, server.Shutdown(ctx))
}

func TestStartFailsOnBusyPort(t *testing.T) {
	first := startTestServer(t)
	_, port, err := splitPort(first.Addr())
	require.NoError(t, err)

	log := zerolog.New(io.Discard)
	second := NewServer(port, "dev", log)
	assert.Error(t, second.Start())
}
