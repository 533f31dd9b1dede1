package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/riskdash/internal/api"
	"github.com/ajitpratap0/riskdash/internal/config"
	"github.com/ajitpratap0/riskdash/internal/metrics"
	"github.com/ajitpratap0/riskdash/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default ./configs/config.yaml)")
	skipChecks := flag.Bool("skip-checks", false, "Skip Redis/NATS connectivity checks at startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		config.InitLogger("info", "console")
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	log.Info().
		Str("version", config.GetVersion()).
		Str("environment", cfg.App.Environment).
		Strs("assets", cfg.Portfolio.Assets).
		Msg("Starting risk dashboard")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	opts := config.DefaultValidatorOptions()
	opts.VerifyConnectivity = !*skipChecks
	if err := config.NewValidator(cfg, opts).ValidateStartup(ctx); err != nil {
		log.Fatal().Err(err).Msg("Startup validation failed")
	}

	rt, err := pipeline.NewRuntime(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize risk pipeline")
	}
	defer rt.Close()

	var metricsServer *metrics.Server
	if cfg.Monitoring.EnableMetrics {
		metricsServer = metrics.NewServer(cfg.Monitoring.PrometheusPort, config.GetVersion(), config.NewLogger("metrics"))
		if err := metricsServer.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start metrics server")
			metricsServer = nil
		}
	}

	// First run happens before serving so the dashboard opens with data
	if _, err := rt.Service.Run(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial risk computation failed")
	}
	if interval := cfg.Risk.GetRefreshInterval(); interval > 0 {
		go func() {
			timer := time.NewTimer(interval)
			defer timer.Stop()
			select {
			case <-timer.C:
				rt.Service.Start(ctx, interval)
			case <-ctx.Done():
			}
		}()
	}

	server := api.NewServer(api.Config{
		Host:           cfg.API.Host,
		Port:           cfg.API.Port,
		CORSOrigins:    cfg.API.CORSOrigins,
		Version:        config.GetVersion(),
		ChartCacheTTL:  cfg.API.GetChartCacheTTL(),
		ChartWidth:     cfg.API.ChartWidth,
		ChartHeight:    cfg.API.ChartHeight,
		RecomputeLimit: cfg.API.RecomputeLimit,
	}, rt.Service)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	select {
	case err := <-serverErrors:
		log.Error().Err(err).Msg("Server error")
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	}

	log.Info().Msg("Shutting down risk dashboard...")
	cancel()
	rt.Service.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to stop server gracefully")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to stop metrics server")
		}
	}

	log.Info().Msg("Risk dashboard stopped")
}
