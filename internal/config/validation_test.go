//nolint:goconst // Test files use repeated strings for clarity
package config

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getValidConfig returns a valid configuration for testing
func getValidConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "RiskDash",
			Version:     Version,
			Environment: "development",
			LogLevel:    "info",
			LogFormat:   "json",
		},
		Portfolio: PortfolioConfig{
			Assets:    []string{"BLK", "AAPL", "GOOGL", "MSFT", "TSLA"},
			Weights:   []float64{0.3, 0.2, 0.2, 0.2, 0.1},
			StartDate: "2020-01-01",
			EndDate:   "2024-01-01",
		},
		Risk: RiskConfig{
			ConfidenceLevel: 0.95,
			Simulations:     10000,
			Horizon:         252,
			TailPercentile:  5.0,
		},
		MarketData: MarketDataConfig{
			Provider:          "yahoo",
			Hosts:             []string{"query1.finance.yahoo.com"},
			Timeout:           10000,
			MaxRetries:        3,
			RequestsPerSecond: 2,
			Burst:             2,
			CacheTTL:          3600,
		},
		Redis: RedisConfig{
			Enabled: true,
			Host:    "localhost",
			Port:    6379,
		},
		NATS: NATSConfig{
			Enabled: true,
			URL:     "nats://localhost:4222",
			Subject: "risk.report",
		},
		Alerts: AlertsConfig{
			Enabled:      true,
			VaRThreshold: 0.05,
		},
		API: APIConfig{
			Host:          "0.0.0.0",
			Port:          8080,
			ChartCacheTTL: 300,
			ChartWidth:    900,
			ChartHeight:   450,
		},
		Monitoring: MonitoringConfig{
			PrometheusPort: 9100,
			EnableMetrics:  true,
		},
	}
}

func TestValidateValidConfig(t *testing.T) {
	cfg := getValidConfig()
	err := cfg.Validate()
	assert.NoError(t, err, "Valid configuration should not produce errors")
}

func TestValidateApp(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError string
	}{
		{
			name:        "missing app name",
			modify:      func(c *Config) { c.App.Name = "" },
			expectError: "app.name",
		},
		{
			name:        "missing environment",
			modify:      func(c *Config) { c.App.Environment = "" },
			expectError: "app.environment",
		},
		{
			name:        "invalid environment",
			modify:      func(c *Config) { c.App.Environment = "invalid_env" },
			expectError: "Invalid environment",
		},
		{
			name:        "missing log level",
			modify:      func(c *Config) { c.App.LogLevel = "" },
			expectError: "app.log_level",
		},
		{
			name:        "invalid log format",
			modify:      func(c *Config) { c.App.LogFormat = "xml" },
			expectError: "app.log_format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getValidConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestValidatePortfolio(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError string
	}{
		{
			name:        "no assets",
			modify:      func(c *Config) { c.Portfolio.Assets = nil },
			expectError: "At least one asset",
		},
		{
			name:        "blank asset",
			modify:      func(c *Config) { c.Portfolio.Assets = []string{"AAPL", " "} },
			expectError: "must not be empty",
		},
		{
			name:        "duplicate asset",
			modify:      func(c *Config) { c.Portfolio.Assets = []string{"AAPL", "AAPL"} },
			expectError: "Duplicate asset 'AAPL'",
		},
		{
			name:        "negative weight",
			modify:      func(c *Config) { c.Portfolio.Weights = []float64{0.5, -0.1, 0.2, 0.2, 0.2} },
			expectError: "portfolio.weights",
		},
		{
			name:        "NaN weight",
			modify:      func(c *Config) { c.Portfolio.Weights = []float64{math.NaN(), 0.2, 0.2, 0.2, 0.2} },
			expectError: "portfolio.weights",
		},
		{
			name:        "bad start date",
			modify:      func(c *Config) { c.Portfolio.StartDate = "01/01/2020" },
			expectError: "portfolio.start_date",
		},
		{
			name:        "bad end date",
			modify:      func(c *Config) { c.Portfolio.EndDate = "" },
			expectError: "portfolio.end_date",
		},
		{
			name:        "end before start",
			modify:      func(c *Config) { c.Portfolio.EndDate = "2019-12-31" },
			expectError: "End date must be after start date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getValidConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestValidatePortfolioWeightLengthMismatchAllowed(t *testing.T) {
	cfg := getValidConfig()
	cfg.Portfolio.Weights = []float64{1.0}
	assert.NoError(t, cfg.Validate())

	cfg.Portfolio.Weights = nil
	assert.NoError(t, cfg.Validate())
}

func TestValidateRisk(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError string
	}{
		{
			name:        "confidence above one",
			modify:      func(c *Config) { c.Risk.ConfidenceLevel = 1.5 },
			expectError: "risk.confidence_level",
		},
		{
			name:        "negative confidence",
			modify:      func(c *Config) { c.Risk.ConfidenceLevel = -0.1 },
			expectError: "risk.confidence_level",
		},
		{
			name:        "zero simulations",
			modify:      func(c *Config) { c.Risk.Simulations = 0 },
			expectError: "risk.simulations",
		},
		{
			name:        "zero horizon",
			modify:      func(c *Config) { c.Risk.Horizon = 0 },
			expectError: "risk.horizon",
		},
		{
			name:        "tail percentile of 100",
			modify:      func(c *Config) { c.Risk.TailPercentile = 100 },
			expectError: "risk.tail_percentile",
		},
		{
			name:        "negative workers",
			modify:      func(c *Config) { c.Risk.Workers = -2 },
			expectError: "risk.workers",
		},
		{
			name:        "negative refresh interval",
			modify:      func(c *Config) { c.Risk.RefreshInterval = -1 },
			expectError: "risk.refresh_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getValidConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestValidateMarketData(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError string
	}{
		{
			name:        "unknown provider",
			modify:      func(c *Config) { c.MarketData.Provider = "bloomberg" },
			expectError: "Invalid provider 'bloomberg'",
		},
		{
			name:        "missing provider",
			modify:      func(c *Config) { c.MarketData.Provider = "" },
			expectError: "market_data.provider",
		},
		{
			name:        "yahoo without hosts",
			modify:      func(c *Config) { c.MarketData.Hosts = nil },
			expectError: "market_data.hosts",
		},
		{
			name:        "timeout too low",
			modify:      func(c *Config) { c.MarketData.Timeout = 10 },
			expectError: "market_data.timeout",
		},
		{
			name:        "negative retries",
			modify:      func(c *Config) { c.MarketData.MaxRetries = -1 },
			expectError: "market_data.max_retries",
		},
		{
			name:        "zero rate",
			modify:      func(c *Config) { c.MarketData.RequestsPerSecond = 0 },
			expectError: "market_data.requests_per_second",
		},
		{
			name:        "zero burst",
			modify:      func(c *Config) { c.MarketData.Burst = 0 },
			expectError: "market_data.burst",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getValidConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestValidateStaticProviderNeedsNoHosts(t *testing.T) {
	cfg := getValidConfig()
	cfg.MarketData.Provider = "static"
	cfg.MarketData.Hosts = nil
	cfg.MarketData.StaticFile = "testdata/prices.csv"
	assert.NoError(t, cfg.Validate())

	cfg.MarketData.StaticFile = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "market_data.static_file")
}

func TestValidateOptionalBackends(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError string
	}{
		{
			name:        "redis without host",
			modify:      func(c *Config) { c.Redis.Host = "" },
			expectError: "redis.host",
		},
		{
			name:        "redis bad port",
			modify:      func(c *Config) { c.Redis.Port = 70000 },
			expectError: "Invalid port",
		},
		{
			name:        "nats without url",
			modify:      func(c *Config) { c.NATS.URL = "" },
			expectError: "nats.url",
		},
		{
			name:        "nats wrong scheme",
			modify:      func(c *Config) { c.NATS.URL = "http://localhost:4222" },
			expectError: "must start with 'nats://'",
		},
		{
			name:        "nats without subject",
			modify:      func(c *Config) { c.NATS.Subject = "" },
			expectError: "nats.subject",
		},
		{
			name:        "negative var threshold",
			modify:      func(c *Config) { c.Alerts.VaRThreshold = -1 },
			expectError: "alerts.var_threshold",
		},
		{
			name: "telegram without token",
			modify: func(c *Config) {
				c.Alerts.Telegram.Enabled = true
				c.Alerts.Telegram.ChatID = 42
			},
			expectError: "alerts.telegram.bot_token",
		},
		{
			name: "telegram without chat",
			modify: func(c *Config) {
				c.Alerts.Telegram.Enabled = true
				c.Alerts.Telegram.BotToken = "123:abc"
			},
			expectError: "alerts.telegram.chat_id",
		},
		{
			name:        "api port missing",
			modify:      func(c *Config) { c.API.Port = 0 },
			expectError: "api.port",
		},
		{
			name:        "chart too small",
			modify:      func(c *Config) { c.API.ChartHeight = 10 },
			expectError: "Chart dimensions",
		},
		{
			name:        "metrics port invalid",
			modify:      func(c *Config) { c.Monitoring.PrometheusPort = -5 },
			expectError: "monitoring.prometheus_port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getValidConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestDisabledBackendsSkipValidation(t *testing.T) {
	cfg := getValidConfig()
	cfg.Redis = RedisConfig{}
	cfg.NATS = NATSConfig{}
	cfg.Monitoring = MonitoringConfig{}
	assert.NoError(t, cfg.Validate())
}

func TestValidationErrorsFormat(t *testing.T) {
	errs := ValidationErrors{
		{Field: "risk.horizon", Message: "Horizon must be at least 1 day"},
		{Field: "risk.simulations", Message: "Simulations must be at least 1"},
	}

	msg := errs.Error()
	assert.True(t, strings.HasPrefix(msg, "Configuration validation failed with 2 error(s)"))
	assert.Contains(t, msg, "1. risk.horizon: Horizon must be at least 1 day")
	assert.Contains(t, msg, "2. risk.simulations")
	assert.Equal(t, "", ValidationErrors{}.Error())
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := getValidConfig()
	cfg.Risk.Simulations = 0
	cfg.Risk.Horizon = 0
	cfg.Portfolio.Assets = nil

	err := cfg.Validate()
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 3)
}
