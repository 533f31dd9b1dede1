// Package api serves the risk dashboard over HTTP: per-asset series and
// charts, the portfolio risk figures, and on-demand refresh and simulation.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/riskdash/internal/dashboard"
	"github.com/ajitpratap0/riskdash/internal/metrics"
	"github.com/ajitpratap0/riskdash/internal/pipeline"
	"github.com/ajitpratap0/riskdash/pkg/riskcalc"
)

// RiskService is the part of the pipeline the API depends on
type RiskService interface {
	Options() pipeline.Options
	Latest() (*pipeline.Report, error)
	LastError() error
	Run(ctx context.Context) (*pipeline.Report, error)
	Simulate(ctx context.Context, p riskcalc.SimulationParams, seed uint64) (riskcalc.SimulationResult, error)
}

// Server represents the REST API server
type Server struct {
	router    *gin.Engine
	service   RiskService
	charts    *dashboard.ChartCache
	limiter   *RateLimiter
	chartW    int
	chartH    int
	version   string
	addr      string
	server    *http.Server
	listener  net.Listener
	startTime time.Time
}

// Config contains server configuration
type Config struct {
	Host          string
	Port          int
	CORSOrigins   []string
	Version       string
	ChartCacheTTL time.Duration
	ChartWidth    int
	ChartHeight   int

	// RecomputeLimit caps refresh and simulate calls per client per minute.
	// Zero disables the limit.
	RecomputeLimit int
}

// NewServer creates a new API server
func NewServer(config Config, service RiskService) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware())
	router.Use(metrics.GinMiddleware())
	router.Use(cors.New(corsConfig(config.CORSOrigins)))

	server := &Server{
		router:    router,
		service:   service,
		charts:    dashboard.NewChartCache(config.ChartCacheTTL),
		limiter:   NewRateLimiter("recompute", config.RecomputeLimit, time.Minute),
		chartW:    config.ChartWidth,
		chartH:    config.ChartHeight,
		version:   config.Version,
		addr:      fmt.Sprintf("%s:%d", config.Host, config.Port),
		startTime: time.Now(),
	}

	server.setupRoutes()

	return server
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the bound address once the server has started
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Listen binds the server address. Port 0 picks a free port.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return nil
}

// Serve handles requests on the bound listener until Stop is called
func (s *Server) Serve() error {
	if s.listener == nil {
		return fmt.Errorf("server is not listening")
	}

	log.Info().Str("addr", s.listener.Addr().String()).Msg("Starting API server")

	cleanupCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.limiter.StartCleanup(cleanupCtx, 5*time.Minute)

	if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Start binds the listener and serves until Stop is called
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("Stopping API server")

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}
	}

	return nil
}

// adapter builds the dashboard view of the most recent run. A failed last
// run hides older results so the UI shows which stage broke.
func (s *Server) adapter() *dashboard.Adapter {
	opts := []dashboard.Option{
		dashboard.WithChartCache(s.charts),
		dashboard.WithChartSize(s.chartW, s.chartH),
	}
	if err := s.service.LastError(); err != nil {
		return dashboard.NewFailedAdapter(err, opts...)
	}
	report, err := s.service.Latest()
	if err != nil {
		return dashboard.NewFailedAdapter(err, opts...)
	}
	return dashboard.NewAdapter(report, opts...)
}

// LoggerMiddleware is a custom logging middleware for Gin
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		logEvent := log.Info()
		if statusCode >= http.StatusInternalServerError {
			logEvent = log.Warn()
		}
		logEvent = logEvent.
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", statusCode).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP())

		if len(c.Errors) > 0 {
			logEvent.Str("errors", c.Errors.String())
		}

		logEvent.Msg("API request")
	}
}
