package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Portfolio  PortfolioConfig  `mapstructure:"portfolio"`
	Risk       RiskConfig       `mapstructure:"risk"`
	MarketData MarketDataConfig `mapstructure:"market_data"`
	Redis      RedisConfig      `mapstructure:"redis"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
	API        APIConfig        `mapstructure:"api"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // json or console
}

// PortfolioConfig describes the basket of assets under analysis
type PortfolioConfig struct {
	Assets    []string  `mapstructure:"assets"`
	Weights   []float64 `mapstructure:"weights"`    // aligned to Assets; uniform when absent
	StartDate string    `mapstructure:"start_date"` // YYYY-MM-DD
	EndDate   string    `mapstructure:"end_date"`   // YYYY-MM-DD
}

// RiskConfig contains risk computation settings
type RiskConfig struct {
	ConfidenceLevel float64 `mapstructure:"confidence_level"` // 0.95
	Simulations     int     `mapstructure:"simulations"`      // 10000
	Horizon         int     `mapstructure:"horizon"`          // 252 trading days
	TailPercentile  float64 `mapstructure:"tail_percentile"`  // 5.0
	Seed            uint64  `mapstructure:"seed"`             // 0 = time based
	Workers         int     `mapstructure:"workers"`          // 0 = one per CPU
	RefreshInterval int     `mapstructure:"refresh_interval"` // seconds, 0 disables periodic refresh
}

// MarketDataConfig contains upstream price provider settings
type MarketDataConfig struct {
	Provider          string   `mapstructure:"provider"` // "yahoo" or "static"
	Hosts             []string `mapstructure:"hosts"`
	Timeout           int      `mapstructure:"timeout"` // ms
	MaxRetries        int      `mapstructure:"max_retries"`
	RequestsPerSecond float64  `mapstructure:"requests_per_second"`
	Burst             int      `mapstructure:"burst"`
	CacheTTL          int      `mapstructure:"cache_ttl"` // seconds
	UserAgent         string   `mapstructure:"user_agent"`
	StaticFile        string   `mapstructure:"static_file"` // CSV of daily prices for the static provider
}

// RedisConfig contains Redis settings
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NATSConfig contains NATS messaging settings
type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

// AlertsConfig contains VaR breach alerting settings
type AlertsConfig struct {
	Enabled      bool           `mapstructure:"enabled"`
	VaRThreshold float64        `mapstructure:"var_threshold"` // alert when -VaR exceeds this
	Telegram     TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig contains Telegram bot settings for alerts
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// APIConfig contains dashboard HTTP settings
type APIConfig struct {
	Host          string   `mapstructure:"host"`
	Port          int      `mapstructure:"port"`
	CORSOrigins   []string `mapstructure:"cors_origins"`
	ChartCacheTTL int      `mapstructure:"chart_cache_ttl"` // seconds
	ChartWidth    int      `mapstructure:"chart_width"`
	ChartHeight   int      `mapstructure:"chart_height"`
	// Refresh/simulate requests per client per minute, 0 = unlimited
	RecomputeLimit int `mapstructure:"recompute_limit"`
}

// MonitoringConfig contains monitoring settings
type MonitoringConfig struct {
	PrometheusPort int  `mapstructure:"prometheus_port"`
	EnableMetrics  bool `mapstructure:"enable_metrics"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// RISKDASH_RISK_SIMULATIONS overrides risk.simulations
	v.SetEnvPrefix("RISKDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "RiskDash")
	v.SetDefault("app.version", Version)
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "console")

	// Portfolio defaults
	v.SetDefault("portfolio.assets", []string{"BLK", "AAPL", "GOOGL", "MSFT", "TSLA"})
	v.SetDefault("portfolio.weights", []float64{0.3, 0.2, 0.2, 0.2, 0.1})
	v.SetDefault("portfolio.start_date", "2020-01-01")
	v.SetDefault("portfolio.end_date", "2024-01-01")

	// Risk defaults
	v.SetDefault("risk.confidence_level", 0.95)
	v.SetDefault("risk.simulations", 10000)
	v.SetDefault("risk.horizon", 252)
	v.SetDefault("risk.tail_percentile", 5.0)
	v.SetDefault("risk.seed", 0)
	v.SetDefault("risk.workers", 0)
	v.SetDefault("risk.refresh_interval", 0)

	// Market data defaults
	v.SetDefault("market_data.provider", "yahoo")
	v.SetDefault("market_data.hosts", []string{"query1.finance.yahoo.com", "query2.finance.yahoo.com"})
	v.SetDefault("market_data.timeout", 10000)
	v.SetDefault("market_data.max_retries", 3)
	v.SetDefault("market_data.requests_per_second", 2.0)
	v.SetDefault("market_data.burst", 2)
	v.SetDefault("market_data.cache_ttl", 3600)
	v.SetDefault("market_data.user_agent", "Mozilla/5.0 (compatible; riskdash/"+Version+")")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", RedisPort)
	v.SetDefault("redis.db", 0)

	// NATS defaults
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", fmt.Sprintf("nats://localhost:%d", NATSPort))
	v.SetDefault("nats.subject", "risk.report")

	// Alert defaults
	v.SetDefault("alerts.enabled", true)
	v.SetDefault("alerts.var_threshold", 0.05)
	v.SetDefault("alerts.telegram.enabled", false)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", DashboardPort)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("api.chart_cache_ttl", 300)
	v.SetDefault("api.chart_width", 900)
	v.SetDefault("api.chart_height", 450)
	v.SetDefault("api.recompute_limit", 10)

	// Monitoring defaults
	v.SetDefault("monitoring.prometheus_port", MetricsPort)
	v.SetDefault("monitoring.enable_metrics", true)
}

// Start parses the portfolio start date
func (c *PortfolioConfig) Start() (time.Time, error) {
	return time.Parse(time.DateOnly, c.StartDate)
}

// End parses the portfolio end date
func (c *PortfolioConfig) End() (time.Time, error) {
	return time.Parse(time.DateOnly, c.EndDate)
}

// GetRedisAddr returns the Redis address
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAPIAddr returns the API server address
func (c *APIConfig) GetAPIAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetChartCacheTTL returns the chart cache TTL as time.Duration
func (c *APIConfig) GetChartCacheTTL() time.Duration {
	return time.Duration(c.ChartCacheTTL) * time.Second
}

// GetTimeout returns the market data timeout as time.Duration
func (c *MarketDataConfig) GetTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// GetCacheTTL returns the price cache TTL as time.Duration
func (c *MarketDataConfig) GetCacheTTL() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// GetRefreshInterval returns the periodic refresh interval, zero when disabled
func (c *RiskConfig) GetRefreshInterval() time.Duration {
	return time.Duration(c.RefreshInterval) * time.Second
}
