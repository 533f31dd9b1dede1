package config

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ServiceName is attached to every log line
const ServiceName = "riskdash"

// InitLogger initializes the global logger writing to stdout
func InitLogger(level, format string) {
	InitLoggerTo(os.Stdout, level, format)
}

// InitLoggerTo initializes the global logger writing to out. Stdio MCP
// servers and the CLI pass os.Stderr so stdout carries only their output.
// Unknown levels fall back to info, unknown formats to json.
func InitLoggerTo(out io.Writer, level, format string) {
	logLevel, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || logLevel == zerolog.NoLevel {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond

	var output io.Writer = out
	if strings.EqualFold(format, "console") {
		output = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	ctx := zerolog.New(output).With().
		Timestamp().
		Str("service", ServiceName).
		Str("version", GetVersion())
	// Caller info only at debug level
	if logLevel <= zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()

	log.Debug().
		Str("level", logLevel.String()).
		Str("format", format).
		Msg("Logger initialized")
}

// NewLogger creates a new logger with a component name
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// NewMCPLogger creates a logger for an MCP server
func NewMCPLogger(serverName string) zerolog.Logger {
	return log.With().
		Str("component", "mcp_server").
		Str("server_name", serverName).
		Logger()
}

// NewRunLogger scopes a pipeline logger to one run
func NewRunLogger(runID string) zerolog.Logger {
	return log.With().
		Str("component", "pipeline").
		Str("run_id", runID).
		Logger()
}
