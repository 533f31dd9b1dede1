package config

import (
	"fmt"
	"math"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Configuration validation failed with %d error(s):\n\n", len(ve)))
	for i, err := range ve {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	sb.WriteString("\nPlease fix the above errors and try again.\n")
	return sb.String()
}

// Validate performs comprehensive configuration validation
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateApp()...)
	errors = append(errors, c.validatePortfolio()...)
	errors = append(errors, c.validateRisk()...)
	errors = append(errors, c.validateMarketData()...)
	errors = append(errors, c.validateRedis()...)
	errors = append(errors, c.validateNATS()...)
	errors = append(errors, c.validateAlerts()...)
	errors = append(errors, c.validateAPI()...)
	errors = append(errors, c.validateMonitoring()...)

	if len(errors) > 0 {
		return errors
	}

	return nil
}

func (c *Config) validateApp() ValidationErrors {
	var errors ValidationErrors

	if c.App.Name == "" {
		errors = append(errors, ValidationError{
			Field:   "app.name",
			Message: "Application name is required",
		})
	}

	if c.App.Environment == "" {
		errors = append(errors, ValidationError{
			Field:   "app.environment",
			Message: "Environment is required (development, staging, or production)",
		})
	} else if !contains([]string{"development", "staging", "production"}, c.App.Environment) {
		errors = append(errors, ValidationError{
			Field:   "app.environment",
			Message: fmt.Sprintf("Invalid environment '%s'. Must be one of: [development staging production]", c.App.Environment),
		})
	}

	if c.App.LogLevel == "" {
		errors = append(errors, ValidationError{
			Field:   "app.log_level",
			Message: "Log level is required (debug, info, warn, error)",
		})
	}

	if c.App.LogFormat != "" && c.App.LogFormat != "json" && c.App.LogFormat != "console" {
		errors = append(errors, ValidationError{
			Field:   "app.log_format",
			Message: fmt.Sprintf("Invalid log format '%s'. Must be 'json' or 'console'", c.App.LogFormat),
		})
	}

	return errors
}

func (c *Config) validatePortfolio() ValidationErrors {
	var errors ValidationErrors

	if len(c.Portfolio.Assets) == 0 {
		errors = append(errors, ValidationError{
			Field:   "portfolio.assets",
			Message: "At least one asset is required",
		})
	}

	seen := make(map[string]bool, len(c.Portfolio.Assets))
	for _, asset := range c.Portfolio.Assets {
		if strings.TrimSpace(asset) == "" {
			errors = append(errors, ValidationError{
				Field:   "portfolio.assets",
				Message: "Asset symbols must not be empty",
			})
			continue
		}
		if seen[asset] {
			errors = append(errors, ValidationError{
				Field:   "portfolio.assets",
				Message: fmt.Sprintf("Duplicate asset '%s'", asset),
			})
		}
		seen[asset] = true
	}

	// A length mismatch is tolerated: the risk engine substitutes uniform weights.
	for i, w := range c.Portfolio.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			errors = append(errors, ValidationError{
				Field:   "portfolio.weights",
				Message: fmt.Sprintf("Weight %d must be a non-negative number, got %v", i, w),
			})
		}
	}

	start, startErr := c.Portfolio.Start()
	if startErr != nil {
		errors = append(errors, ValidationError{
			Field:   "portfolio.start_date",
			Message: fmt.Sprintf("Invalid start date '%s'. Expected YYYY-MM-DD", c.Portfolio.StartDate),
		})
	}
	end, endErr := c.Portfolio.End()
	if endErr != nil {
		errors = append(errors, ValidationError{
			Field:   "portfolio.end_date",
			Message: fmt.Sprintf("Invalid end date '%s'. Expected YYYY-MM-DD", c.Portfolio.EndDate),
		})
	}
	if startErr == nil && endErr == nil && !end.After(start) {
		errors = append(errors, ValidationError{
			Field:   "portfolio.end_date",
			Message: "End date must be after start date",
		})
	}

	return errors
}

func (c *Config) validateRisk() ValidationErrors {
	var errors ValidationErrors

	if c.Risk.ConfidenceLevel <= 0 || c.Risk.ConfidenceLevel >= 1 {
		errors = append(errors, ValidationError{
			Field:   "risk.confidence_level",
			Message: fmt.Sprintf("Invalid confidence_level %.4f. Must be between 0 and 1 (exclusive)", c.Risk.ConfidenceLevel),
		})
	}

	if c.Risk.Simulations < 1 {
		errors = append(errors, ValidationError{
			Field:   "risk.simulations",
			Message: "Simulations must be at least 1",
		})
	}

	if c.Risk.Horizon < 1 {
		errors = append(errors, ValidationError{
			Field:   "risk.horizon",
			Message: "Horizon must be at least 1 day",
		})
	}

	if c.Risk.TailPercentile <= 0 || c.Risk.TailPercentile >= 100 {
		errors = append(errors, ValidationError{
			Field:   "risk.tail_percentile",
			Message: fmt.Sprintf("Invalid tail_percentile %.2f. Must be between 0 and 100 (exclusive)", c.Risk.TailPercentile),
		})
	}

	if c.Risk.Workers < 0 {
		errors = append(errors, ValidationError{
			Field:   "risk.workers",
			Message: "Workers must be non-negative (0 selects one per CPU)",
		})
	}

	if c.Risk.RefreshInterval < 0 {
		errors = append(errors, ValidationError{
			Field:   "risk.refresh_interval",
			Message: "Refresh interval must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateMarketData() ValidationErrors {
	var errors ValidationErrors

	switch c.MarketData.Provider {
	case "yahoo":
		if len(c.MarketData.Hosts) == 0 {
			errors = append(errors, ValidationError{
				Field:   "market_data.hosts",
				Message: "At least one Yahoo Finance host is required",
			})
		}
	case "static":
		if c.MarketData.StaticFile == "" {
			errors = append(errors, ValidationError{
				Field:   "market_data.static_file",
				Message: "A price CSV is required for the static provider",
			})
		}
	case "":
		errors = append(errors, ValidationError{
			Field:   "market_data.provider",
			Message: "Market data provider is required (yahoo or static)",
		})
	default:
		errors = append(errors, ValidationError{
			Field:   "market_data.provider",
			Message: fmt.Sprintf("Invalid provider '%s'. Must be 'yahoo' or 'static'", c.MarketData.Provider),
		})
	}

	if c.MarketData.Timeout < 1000 {
		errors = append(errors, ValidationError{
			Field:   "market_data.timeout",
			Message: "Market data timeout must be at least 1000ms",
		})
	}

	if c.MarketData.MaxRetries < 0 {
		errors = append(errors, ValidationError{
			Field:   "market_data.max_retries",
			Message: "Max retries must be non-negative",
		})
	}

	if c.MarketData.RequestsPerSecond <= 0 {
		errors = append(errors, ValidationError{
			Field:   "market_data.requests_per_second",
			Message: "Requests per second must be greater than 0",
		})
	}

	if c.MarketData.Burst < 1 {
		errors = append(errors, ValidationError{
			Field:   "market_data.burst",
			Message: "Burst must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateRedis() ValidationErrors {
	var errors ValidationErrors

	if !c.Redis.Enabled {
		return errors
	}

	if c.Redis.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "redis.host",
			Message: "Redis host is required when the price cache is enabled",
		})
	}

	if !IsValidPort(c.Redis.Port) {
		errors = append(errors, ValidationError{
			Field:   "redis.port",
			Message: fmt.Sprintf("Invalid port %d. Must be between 1-65535", c.Redis.Port),
		})
	}

	return errors
}

func (c *Config) validateNATS() ValidationErrors {
	var errors ValidationErrors

	if !c.NATS.Enabled {
		return errors
	}

	if c.NATS.URL == "" {
		errors = append(errors, ValidationError{
			Field:   "nats.url",
			Message: "NATS URL is required when event publishing is enabled",
		})
	} else if !strings.HasPrefix(c.NATS.URL, "nats://") {
		errors = append(errors, ValidationError{
			Field:   "nats.url",
			Message: "NATS URL must start with 'nats://'",
		})
	}

	if c.NATS.Subject == "" {
		errors = append(errors, ValidationError{
			Field:   "nats.subject",
			Message: "NATS subject is required",
		})
	}

	return errors
}

func (c *Config) validateAlerts() ValidationErrors {
	var errors ValidationErrors

	if c.Alerts.VaRThreshold < 0 {
		errors = append(errors, ValidationError{
			Field:   "alerts.var_threshold",
			Message: "VaR threshold must be non-negative",
		})
	}

	if c.Alerts.Telegram.Enabled {
		if c.Alerts.Telegram.BotToken == "" {
			errors = append(errors, ValidationError{
				Field:   "alerts.telegram.bot_token",
				Message: "Telegram bot token is required when Telegram alerts are enabled",
			})
		}
		if c.Alerts.Telegram.ChatID == 0 {
			errors = append(errors, ValidationError{
				Field:   "alerts.telegram.chat_id",
				Message: "Telegram chat ID is required when Telegram alerts are enabled",
			})
		}
	}

	return errors
}

func (c *Config) validateAPI() ValidationErrors {
	var errors ValidationErrors

	if c.API.Port == 0 {
		errors = append(errors, ValidationError{
			Field:   "api.port",
			Message: "API port is required",
		})
	} else if !IsValidPort(c.API.Port) {
		errors = append(errors, ValidationError{
			Field:   "api.port",
			Message: fmt.Sprintf("Invalid port %d. Must be between 1-65535", c.API.Port),
		})
	}

	if c.API.ChartWidth < 100 || c.API.ChartHeight < 100 {
		errors = append(errors, ValidationError{
			Field:   "api.chart_width",
			Message: "Chart dimensions must be at least 100x100",
		})
	}

	if c.API.ChartCacheTTL < 0 {
		errors = append(errors, ValidationError{
			Field:   "api.chart_cache_ttl",
			Message: "Chart cache TTL must be non-negative",
		})
	}

	if c.API.RecomputeLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "api.recompute_limit",
			Message: "Recompute limit must be non-negative (0 disables it)",
		})
	}

	return errors
}

func (c *Config) validateMonitoring() ValidationErrors {
	var errors ValidationErrors

	if c.Monitoring.EnableMetrics && !IsValidPort(c.Monitoring.PrometheusPort) {
		errors = append(errors, ValidationError{
			Field:   "monitoring.prometheus_port",
			Message: fmt.Sprintf("Invalid port %d. Must be between 1-65535", c.Monitoring.PrometheusPort),
		})
	}

	return errors
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
