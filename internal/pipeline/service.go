// Package pipeline runs the fetch, returns, metrics and simulation steps
// that produce a portfolio risk report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/riskdash/internal/alerts"
	"github.com/ajitpratap0/riskdash/internal/config"
	"github.com/ajitpratap0/riskdash/internal/events"
	"github.com/ajitpratap0/riskdash/internal/market"
	"github.com/ajitpratap0/riskdash/internal/metrics"
	"github.com/ajitpratap0/riskdash/pkg/riskcalc"
)

// ErrNoReport is returned by Latest before any run has succeeded
var ErrNoReport = errors.New("no risk report available yet")

// Options configures what a run computes
type Options struct {
	Assets          []string
	Weights         []float64
	Start           time.Time
	End             time.Time
	ConfidenceLevel float64
	Simulations     int
	Horizon         int
	TailPercentile  float64
	Seed            uint64 // 0 draws a time based seed per run
	Workers         int
	VaRThreshold    float64
}

// OptionsFromConfig builds run options from loaded configuration
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	start, err := cfg.Portfolio.Start()
	if err != nil {
		return Options{}, err
	}
	end, err := cfg.Portfolio.End()
	if err != nil {
		return Options{}, err
	}

	opts := Options{
		Assets:          cfg.Portfolio.Assets,
		Weights:         cfg.Portfolio.Weights,
		Start:           start,
		End:             end,
		ConfidenceLevel: cfg.Risk.ConfidenceLevel,
		Simulations:     cfg.Risk.Simulations,
		Horizon:         cfg.Risk.Horizon,
		TailPercentile:  cfg.Risk.TailPercentile,
		Seed:            cfg.Risk.Seed,
		Workers:         cfg.Risk.Workers,
	}
	if cfg.Alerts.Enabled {
		opts.VaRThreshold = cfg.Alerts.VaRThreshold
	}
	return opts, nil
}

// ServiceOption configures optional collaborators
type ServiceOption func(*Service)

// WithAlerts evaluates the VaR rule after each successful run
func WithAlerts(m *alerts.Manager) ServiceOption {
	return func(s *Service) { s.alerts = m }
}

// WithEvents publishes a summary of every run
func WithEvents(p *events.Publisher) ServiceOption {
	return func(s *Service) { s.events = p }
}

// WithSamplerFactory overrides the Monte Carlo sampler
func WithSamplerFactory(f riskcalc.SamplerFactory) ServiceOption {
	return func(s *Service) { s.factory = f }
}

// Service runs the risk pipeline and keeps the latest successful report
type Service struct {
	provider market.PriceProvider
	opts     Options
	alerts   *alerts.Manager
	events   *events.Publisher
	factory  riskcalc.SamplerFactory

	runMu   sync.Mutex
	mu      sync.RWMutex
	latest  *Report
	lastErr error
	stopCh  chan struct{}
	stopped sync.Once
}

// NewService creates a pipeline service over provider
func NewService(provider market.PriceProvider, opts Options, options ...ServiceOption) *Service {
	s := &Service{
		provider: provider,
		opts:     opts,
		stopCh:   make(chan struct{}),
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Options returns the run configuration
func (s *Service) Options() Options {
	return s.opts
}

// Latest returns the last successful report
func (s *Service) Latest() (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil, ErrNoReport
	}
	return s.latest, nil
}

// LastError returns the error of the most recent run, nil if it succeeded
func (s *Service) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Run executes one pipeline pass. Runs are serialized.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	runID := uuid.New().String()
	started := time.Now()
	logger := config.NewRunLogger(runID)

	report, err := s.run(ctx, runID, started)
	finished := time.Now()
	metrics.RecordPipelineRun(err == nil, finished.Sub(started).Seconds(), finished.Unix())

	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()

		var stageErr *StageError
		if errors.As(err, &stageErr) {
			metrics.RecordPipelineError(string(stageErr.Stage))
		}
		logger.Error().Err(err).Dur("duration", finished.Sub(started)).Msg("Risk pipeline failed")
		s.publish(ctx, failureEvent(runID, s.opts.Assets, err))
		return nil, err
	}

	// The report must be complete before readers can see it through Latest
	if s.alerts != nil {
		fired, alertErr := s.alerts.CheckVaR(ctx, alerts.RiskSnapshot{
			RunID:           runID,
			ParametricVaR:   report.Metrics.ParametricVaR,
			MonteCarloVaR:   report.MonteCarlo.VaR,
			Volatility:      report.Metrics.PortfolioVolatility,
			ConfidenceLevel: report.Metrics.ConfidenceLevel,
		}, s.opts.VaRThreshold)
		if alertErr != nil {
			logger.Warn().Err(alertErr).Msg("Failed to deliver VaR alert")
		}
		if fired {
			report.Notices = append(report.Notices, Notice{
				Code:    NoticeAlertRaised,
				Message: fmt.Sprintf("parametric VaR %.4f breached threshold %.4f", report.Metrics.ParametricVaR, s.opts.VaRThreshold),
			})
		}
	}

	s.mu.Lock()
	s.lastErr = nil
	s.latest = report
	s.mu.Unlock()

	s.publish(ctx, successEvent(report))

	logger.Info().
		Int("assets", len(report.Metrics.Assets)).
		Int("observations", report.Metrics.Observations).
		Float64("parametric_var", report.Metrics.ParametricVaR).
		Float64("monte_carlo_var", report.MonteCarlo.VaR).
		Int("notices", len(report.Notices)).
		Dur("duration", report.Duration()).
		Msg("Risk pipeline completed")

	return report, nil
}

func (s *Service) run(ctx context.Context, runID string, started time.Time) (*Report, error) {
	if len(s.opts.Assets) == 0 {
		return nil, &StageError{Stage: StageFetch, Err: fmt.Errorf("no assets configured")}
	}

	prices, err := s.provider.FetchPrices(ctx, s.opts.Assets, s.opts.Start, s.opts.End)
	if err != nil {
		return nil, &StageError{Stage: StageFetch, Err: err}
	}

	report := &Report{
		RunID:     runID,
		StartedAt: started,
		Start:     s.opts.Start,
		End:       s.opts.End,
		Prices:    prices,
	}

	if fallbacks := prices.CloseFallbacks(); len(fallbacks) > 0 {
		report.Notices = append(report.Notices, Notice{
			Code:    NoticeCloseFallback,
			Message: "adjusted close unavailable, using close for " + strings.Join(fallbacks, ", "),
		})
	}

	returns, err := riskcalc.BuildReturns(prices)
	if err != nil {
		return nil, &StageError{Stage: StageReturns, Err: err}
	}
	report.Returns = returns
	if returns.DroppedRows > 0 {
		report.Notices = append(report.Notices, Notice{
			Code:    NoticeDroppedRows,
			Message: fmt.Sprintf("%d rows with missing prices were dropped", returns.DroppedRows),
		})
	}

	riskMetrics, err := riskcalc.ComputeRiskMetrics(returns, s.opts.Weights, s.opts.ConfidenceLevel)
	if err != nil {
		return nil, &StageError{Stage: StageMetrics, Err: err}
	}
	report.Metrics = riskMetrics
	if riskMetrics.UsedDefaultWeights {
		report.Notices = append(report.Notices, Notice{
			Code:    NoticeDefaultWeights,
			Message: fmt.Sprintf("%d weights given for %d assets, using equal weights", len(s.opts.Weights), len(riskMetrics.Assets)),
		})
	}

	metrics.RecordRiskMetrics(riskMetrics.PortfolioReturn, riskMetrics.PortfolioVolatility,
		riskMetrics.ParametricVaR, riskMetrics.Observations, riskMetrics.UsedDefaultWeights)
	for i, a := range riskMetrics.Assets {
		metrics.RecordAssetMeanReturn(a, riskMetrics.MeanReturns[i])
	}

	simStart := time.Now()
	result, err := s.Simulate(ctx, riskcalc.SimulationParams{
		PortfolioReturn:     riskMetrics.PortfolioReturn,
		PortfolioVolatility: riskMetrics.PortfolioVolatility,
		Simulations:         s.opts.Simulations,
		Horizon:             s.opts.Horizon,
		TailPercentile:      s.opts.TailPercentile,
	}, s.opts.Seed)
	if err != nil {
		return nil, &StageError{Stage: StageSimulation, Err: err}
	}
	metrics.RecordSimulation(result.VaR, time.Since(simStart).Seconds())
	report.MonteCarlo = result

	report.FinishedAt = time.Now()
	return report, nil
}

// Simulate runs an ad-hoc Monte Carlo estimate with the service's worker
// and sampler settings. A zero seed draws a time based one.
func (s *Service) Simulate(ctx context.Context, p riskcalc.SimulationParams, seed uint64) (riskcalc.SimulationResult, error) {
	var opts []riskcalc.SimulatorOption
	if s.opts.Workers > 0 {
		opts = append(opts, riskcalc.WithWorkers(s.opts.Workers))
	}
	if seed != 0 {
		opts = append(opts, riskcalc.WithSeed(seed))
	}
	if s.factory != nil {
		opts = append(opts, riskcalc.WithSamplerFactory(s.factory))
	}
	return riskcalc.NewSimulator(opts...).SimulateVaR(ctx, p)
}

// Start re-runs the pipeline every interval until ctx is cancelled or Stop
// is called. The first run happens immediately.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	_, _ = s.Run(ctx)

	for {
		select {
		case <-ticker.C:
			_, _ = s.Run(ctx)
		case <-s.stopCh:
			log.Info().Msg("Risk pipeline refresh stopped")
			return
		case <-ctx.Done():
			log.Info().Msg("Risk pipeline refresh context cancelled")
			return
		}
	}
}

// Stop ends a refresh loop started with Start
func (s *Service) Stop() {
	s.stopped.Do(func() { close(s.stopCh) })
}

func (s *Service) publish(ctx context.Context, event *events.ReportEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("run_id", event.RunID).Msg("Failed to publish report event")
	}
}

func successEvent(r *Report) *events.ReportEvent {
	notices := make([]string, len(r.Notices))
	for i, n := range r.Notices {
		notices[i] = n.Code
	}
	return &events.ReportEvent{
		RunID:               r.RunID,
		Timestamp:           r.FinishedAt.UTC(),
		Success:             true,
		Assets:              r.Metrics.Assets,
		Weights:             r.Metrics.Weights,
		PortfolioReturn:     r.Metrics.PortfolioReturn,
		PortfolioVolatility: r.Metrics.PortfolioVolatility,
		ParametricVaR:       r.Metrics.ParametricVaR,
		MonteCarloVaR:       r.MonteCarlo.VaR,
		ConfidenceLevel:     r.Metrics.ConfidenceLevel,
		Observations:        r.Metrics.Observations,
		Notices:             notices,
	}
}

func failureEvent(runID string, assets []string, err error) *events.ReportEvent {
	event := &events.ReportEvent{
		RunID:  runID,
		Assets: assets,
		Error:  err.Error(),
	}
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		event.Stage = string(stageErr.Stage)
	}
	return event
}
