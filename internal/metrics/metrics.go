package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bounded cardinality constants for metric labels.
// These ensure metrics don't have unbounded label values which can cause memory issues.
const (
	// Market data request outcomes (bounded set)
	RequestStatusSuccess   = "success"
	RequestStatusError     = "error"
	RequestStatusCacheHit  = "cache_hit"
	RequestStatusCacheMiss = "cache_miss"
	RequestStatusOther     = "other"

	// Pipeline stages (bounded set)
	StageFetch      = "fetch"
	StageReturns    = "returns"
	StageMetrics    = "metrics"
	StageSimulation = "simulation"
	StageOther      = "other"

	// Alert channels (bounded set)
	ChannelLog      = "log"
	ChannelTelegram = "telegram"
	ChannelOther    = "other"
)

// NormalizeRequestStatus maps arbitrary request outcomes to bounded set
func NormalizeRequestStatus(status string) string {
	switch strings.ToLower(status) {
	case RequestStatusSuccess, "ok":
		return RequestStatusSuccess
	case RequestStatusError, "failure", "failed":
		return RequestStatusError
	case RequestStatusCacheHit, "hit":
		return RequestStatusCacheHit
	case RequestStatusCacheMiss, "miss":
		return RequestStatusCacheMiss
	default:
		return RequestStatusOther
	}
}

// NormalizeStage maps arbitrary stage names to bounded set
func NormalizeStage(stage string) string {
	lower := strings.ToLower(stage)
	switch {
	case strings.Contains(lower, "fetch") || strings.Contains(lower, "market"):
		return StageFetch
	case strings.Contains(lower, "return"):
		return StageReturns
	case strings.Contains(lower, "metric"):
		return StageMetrics
	case strings.Contains(lower, "simulat") || strings.Contains(lower, "monte"):
		return StageSimulation
	default:
		return StageOther
	}
}

// NormalizeChannel maps alert channel names to bounded set
func NormalizeChannel(channel string) string {
	switch strings.ToLower(channel) {
	case ChannelLog, "console":
		return ChannelLog
	case ChannelTelegram:
		return ChannelTelegram
	default:
		return ChannelOther
	}
}

// Portfolio Risk Metrics
var (
	// Parametric (variance-covariance) VaR, signed as computed
	ParametricVaR = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "riskdash_parametric_var",
		Help: "Parametric value-at-risk of the portfolio return (signed)",
	})

	// Monte Carlo VaR of simulated terminal values
	MonteCarloVaR = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "riskdash_monte_carlo_var",
		Help: "Tail percentile of simulated terminal portfolio values",
	})

	// Portfolio volatility
	PortfolioVolatility = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "riskdash_portfolio_volatility",
		Help: "Daily portfolio volatility (standard deviation of returns)",
	})

	// Portfolio expected return
	PortfolioReturn = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "riskdash_portfolio_return",
		Help: "Daily expected portfolio return",
	})

	// Mean daily return per asset
	AssetMeanReturn = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "riskdash_asset_mean_return",
		Help: "Mean daily return by asset",
	}, []string{"asset"})

	// Observations used for the last computation
	ReturnObservations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "riskdash_return_observations",
		Help: "Number of return rows used in the last risk computation",
	})

	// Whether the last computation fell back to uniform weights
	DefaultWeightsUsed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "riskdash_default_weights_used",
		Help: "1 if the last computation used uniform fallback weights, 0 otherwise",
	})
)

// Pipeline Metrics
var (
	// Monte Carlo duration
	SimulationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "riskdash_simulation_duration_seconds",
		Help:    "Monte Carlo simulation wall time in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// Full pipeline duration
	PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "riskdash_pipeline_duration_seconds",
		Help:    "End-to-end pipeline run time in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	// Pipeline runs by outcome
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskdash_pipeline_runs_total",
		Help: "Total pipeline runs by status",
	}, []string{"status"})

	// Pipeline errors by stage
	PipelineErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskdash_pipeline_errors_total",
		Help: "Total pipeline failures by stage",
	}, []string{"stage"})

	// Last successful run
	LastSuccessTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "riskdash_last_success_timestamp_seconds",
		Help: "Unix time of the last successful pipeline run",
	})
)

// Market Data Metrics
var (
	// Market data requests by status
	MarketDataRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskdash_market_data_requests_total",
		Help: "Total market data requests by status",
	}, []string{"status"})

	// Circuit breaker state (0 = closed, 1 = half-open, 2 = open)
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "riskdash_circuit_breaker_state",
		Help: "Circuit breaker state (0 = closed, 1 = half-open, 2 = open)",
	}, []string{"service"})

	// Redis operations
	RedisOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskdash_redis_operations_total",
		Help: "Total number of Redis operations",
	}, []string{"operation"})
)

// System Health Metrics
var (
	// API request duration
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "riskdash_api_request_duration_ms",
		Help:    "API request duration in milliseconds",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	}, []string{"method", "path", "status"})

	// HTTP requests total
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskdash_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	// NATS messages published
	NATSMessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskdash_nats_messages_published_total",
		Help: "Total number of NATS messages published",
	}, []string{"subject"})

	// Alerts sent
	AlertsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskdash_alerts_sent_total",
		Help: "Total number of alerts sent by channel and status",
	}, []string{"channel", "status"})

	// MCP tool calls
	MCPToolCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "riskdash_mcp_tool_call_duration_ms",
		Help:    "MCP tool call duration in milliseconds",
		Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
	}, []string{"tool"})
)

// RecordRiskMetrics publishes the headline numbers of a risk computation
func RecordRiskMetrics(portfolioReturn, volatility, parametricVaR float64, observations int, defaultWeights bool) {
	PortfolioReturn.Set(portfolioReturn)
	PortfolioVolatility.Set(volatility)
	ParametricVaR.Set(parametricVaR)
	ReturnObservations.Set(float64(observations))
	if defaultWeights {
		DefaultWeightsUsed.Set(1)
	} else {
		DefaultWeightsUsed.Set(0)
	}
}

// RecordAssetMeanReturn records the mean daily return of one asset
func RecordAssetMeanReturn(asset string, mean float64) {
	AssetMeanReturn.WithLabelValues(asset).Set(mean)
}

// RecordSimulation records a Monte Carlo result and its wall time
func RecordSimulation(monteCarloVaR, durationSeconds float64) {
	MonteCarloVaR.Set(monteCarloVaR)
	SimulationDuration.Observe(durationSeconds)
}

// RecordPipelineRun records a completed pipeline run
func RecordPipelineRun(success bool, durationSeconds float64, finishedUnix int64) {
	PipelineDuration.Observe(durationSeconds)
	if success {
		PipelineRuns.WithLabelValues("success").Inc()
		LastSuccessTimestamp.Set(float64(finishedUnix))
		return
	}
	PipelineRuns.WithLabelValues("failure").Inc()
}

// RecordPipelineError records a failure in a pipeline stage with normalized stage
func RecordPipelineError(stage string) {
	PipelineErrors.WithLabelValues(NormalizeStage(stage)).Inc()
}

// RecordMarketDataRequest records a market data request with normalized status
func RecordMarketDataRequest(status string) {
	MarketDataRequests.WithLabelValues(NormalizeRequestStatus(status)).Inc()
}

// SetCircuitBreakerState records a breaker's state as reported by gobreaker
func SetCircuitBreakerState(service string, state int) {
	CircuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// RecordRedisOperation records a Redis operation
func RecordRedisOperation(operation string) {
	RedisOperations.WithLabelValues(operation).Inc()
}

// RecordAPIRequest records an API request
func RecordAPIRequest(method, path, statusCode string, durationMs float64) {
	APIRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationMs)
	HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
}

// RecordNATSPublish records a message published on subject
func RecordNATSPublish(subject string) {
	NATSMessagesPublished.WithLabelValues(subject).Inc()
}

// RecordAlert records an alert delivery attempt
func RecordAlert(channel string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	AlertsSent.WithLabelValues(NormalizeChannel(channel), status).Inc()
}

// RecordMCPToolCall records an MCP tool call
func RecordMCPToolCall(toolName string, durationMs float64) {
	MCPToolCallDuration.WithLabelValues(toolName).Observe(durationMs)
}
