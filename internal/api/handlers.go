package api

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/riskdash/internal/dashboard"
	"github.com/ajitpratap0/riskdash/internal/pipeline"
	"github.com/ajitpratap0/riskdash/pkg/riskcalc"
)

// Root handler
func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "Risk Dashboard API",
		"version": s.version,
		"status":  "running",
		"time":    time.Now().UTC(),
	})
}

// handleGetHealth reports liveness plus the state of the last pipeline run
func (s *Server) handleGetHealth(c *gin.Context) {
	status := "healthy"
	lastRun := gin.H{"status": "pending"}

	if err := s.service.LastError(); err != nil {
		status = "degraded"
		lastRun = gin.H{"status": "failed", "error": err.Error()}
	} else if report, err := s.service.Latest(); err == nil {
		lastRun = gin.H{
			"status":      "succeeded",
			"run_id":      report.RunID,
			"finished_at": report.FinishedAt,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     status,
		"time":       time.Now().UTC(),
		"version":    s.version,
		"uptime":     time.Since(s.startTime).Seconds(),
		"goroutines": runtime.NumGoroutine(),
		"last_run":   lastRun,
	})
}

func (s *Server) handleListAssets(c *gin.Context) {
	a := s.adapter()
	if msg := a.FailureMessage(); msg != "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"assets": []string{},
			"error":  msg,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"assets":   a.Assets(),
		"var_text": a.VaRText(),
	})
}

func (s *Server) handleGetAsset(c *gin.Context) {
	a := s.adapter()
	sel := a.SelectAsset(c.Param("symbol"))

	switch {
	case sel.OK():
		c.JSON(http.StatusOK, sel)
	case a.FailureMessage() != "":
		c.JSON(http.StatusServiceUnavailable, sel)
	default:
		c.JSON(http.StatusNotFound, sel)
	}
}

func (s *Server) handleGetAssetChart(c *gin.Context) {
	symbol := c.Param("symbol")
	a := s.adapter()

	img, err := a.RenderChart(symbol)
	if err != nil {
		code := http.StatusInternalServerError
		switch {
		case a.FailureMessage() != "":
			code = http.StatusServiceUnavailable
		case errors.Is(err, dashboard.ErrUnknownAsset):
			code = http.StatusNotFound
		default:
			log.Error().Err(err).Str("asset", symbol).Msg("Failed to render chart")
		}
		c.JSON(code, gin.H{"error": err.Error()})
		return
	}

	c.Data(http.StatusOK, "image/png", img)
}

func (s *Server) handleGetRisk(c *gin.Context) {
	report, ok := s.latestReport(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":   report.RunID,
		"start":    report.Start,
		"end":      report.End,
		"metrics":  report.Metrics,
		"var_text": dashboard.FormatVaR(report.Metrics.ConfidenceLevel, report.Metrics.ParametricVaR),
		"notices":  report.Notices,
	})
}

func (s *Server) handleGetMonteCarlo(c *gin.Context) {
	report, ok := s.latestReport(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":      report.RunID,
		"monte_carlo": report.MonteCarlo,
		"loss":        -report.MonteCarlo.VaR,
	})
}

// latestReport writes a 503 and returns false when there is nothing to show
func (s *Server) latestReport(c *gin.Context) (*pipeline.Report, bool) {
	if msg := s.adapter().FailureMessage(); msg != "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": msg})
		return nil, false
	}
	report, err := s.service.Latest()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return nil, false
	}
	return report, true
}

func (s *Server) handleRefresh(c *gin.Context) {
	report, err := s.service.Run(c.Request.Context())
	if err != nil {
		resp := gin.H{"error": err.Error()}
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) {
			resp["stage"] = stageErr.Stage
		}
		c.JSON(http.StatusInternalServerError, resp)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":          report.RunID,
		"duration_ms":     report.Duration().Milliseconds(),
		"parametric_var":  report.Metrics.ParametricVaR,
		"monte_carlo_var": report.MonteCarlo.VaR,
		"notices":         report.Notices,
	})
}

// simulateRequest overrides the configured simulation. Return and
// volatility default to the latest report's portfolio figures.
type simulateRequest struct {
	PortfolioReturn     *float64 `json:"portfolio_return"`
	PortfolioVolatility *float64 `json:"portfolio_volatility"`
	Simulations         int      `json:"simulations"`
	Horizon             int      `json:"horizon"`
	TailPercentile      float64  `json:"tail_percentile"`
	Seed                uint64   `json:"seed"`
}

func (s *Server) handleSimulate(c *gin.Context) {
	var req simulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("invalid request: %v", err),
		})
		return
	}

	opts := s.service.Options()
	params := riskcalc.SimulationParams{
		Simulations:    opts.Simulations,
		Horizon:        opts.Horizon,
		TailPercentile: opts.TailPercentile,
	}
	if req.Simulations != 0 {
		params.Simulations = req.Simulations
	}
	if req.Horizon != 0 {
		params.Horizon = req.Horizon
	}
	if req.TailPercentile != 0 {
		params.TailPercentile = req.TailPercentile
	}

	if req.PortfolioReturn == nil || req.PortfolioVolatility == nil {
		report, err := s.service.Latest()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "portfolio_return and portfolio_volatility are required until a risk report is available",
			})
			return
		}
		params.PortfolioReturn = report.Metrics.PortfolioReturn
		params.PortfolioVolatility = report.Metrics.PortfolioVolatility
	}
	if req.PortfolioReturn != nil {
		params.PortfolioReturn = *req.PortfolioReturn
	}
	if req.PortfolioVolatility != nil {
		params.PortfolioVolatility = *req.PortfolioVolatility
	}

	result, err := s.service.Simulate(c.Request.Context(), params, req.Seed)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, riskcalc.ErrInvalidParameter) {
			code = http.StatusBadRequest
		}
		c.JSON(code, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"params":      params,
		"monte_carlo": result,
		"loss":        -result.VaR,
	})
}
