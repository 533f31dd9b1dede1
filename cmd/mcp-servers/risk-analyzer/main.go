package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/riskdash/internal/config"
)

func main() {
	level := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	workers := flag.Int("workers", 0, "Simulation workers (0 = one per CPU)")
	flag.Parse()

	// Stdout is reserved for the MCP protocol
	config.InitLoggerTo(os.Stderr, *level, "json")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := NewRiskAnalyzer(*workers)
	log.Info().Str("version", config.GetVersion()).Msg("Risk Analyzer MCP server ready, listening on stdio")

	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
	log.Info().Msg("Risk Analyzer MCP server stopped")
}
