package api

import "github.com/ajitpratap0/riskdash/internal/metrics"

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/health", s.handleGetHealth)

		assets := v1.Group("/assets")
		{
			assets.GET("", s.handleListAssets)
			assets.GET("/:symbol", s.handleGetAsset)
			assets.GET("/:symbol/chart.png", s.handleGetAssetChart)
		}

		v1.GET("/risk", s.handleGetRisk)
		v1.GET("/montecarlo", s.handleGetMonteCarlo)

		recompute := v1.Group("", s.limiter.Middleware())
		{
			recompute.POST("/refresh", s.handleRefresh)
			recompute.POST("/simulate", s.handleSimulate)
		}
	}

	s.router.GET("/metrics", metrics.GinHandler())
	s.router.GET("/", s.handleRoot)
}
