// Package config provides configuration management for the risk dashboard.
// This file centralizes default port assignments.
package config

// ============================================================================
// PORT CONFIGURATION
// ============================================================================
//
//   8080-8099: dashboard HTTP API
//   9100-9199: Prometheus metrics endpoints
//
// ============================================================================

const (
	// DashboardPort is the default port for the dashboard HTTP API.
	DashboardPort = 8080

	// MetricsPort is the default port for the standalone metrics server.
	MetricsPort = 9100
)

// Infrastructure Service Ports
const (
	// RedisPort is the default port for Redis.
	RedisPort = 6379

	// NATSPort is the default port for NATS messaging.
	NATSPort = 4222
)

// IsValidPort reports whether port is a usable TCP port number.
func IsValidPort(port int) bool {
	return port >= 1 && port <= 65535
}
