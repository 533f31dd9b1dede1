// Monte Carlo simulation of cumulative portfolio returns
package riskcalc

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	DefaultSimulations    = 10000
	DefaultHorizon        = 252
	DefaultTailPercentile = 5.0

	defaultBatchSize = 256
)

// Sampler draws one daily portfolio return.
type Sampler interface {
	Sample() float64
}

// SamplerFunc adapts a function to Sampler.
type SamplerFunc func() float64

func (f SamplerFunc) Sample() float64 { return f() }

// SamplerFactory creates the Sampler used by one block of paths. Each
// block receives a distinct seed.
type SamplerFactory func(mu, sigma float64, seed uint64) Sampler

// NormalSamplerFactory draws from Normal(mu, sigma) over a seeded PCG source.
func NormalSamplerFactory(mu, sigma float64, seed uint64) Sampler {
	dist := distuv.Normal{Mu: mu, Sigma: sigma, Src: rand.NewSource(seed)}
	return SamplerFunc(dist.Rand)
}

// SimulationParams configures one SimulateVaR call.
type SimulationParams struct {
	PortfolioReturn     float64 `json:"portfolio_return"`
	PortfolioVolatility float64 `json:"portfolio_volatility"`
	Simulations         int     `json:"simulations"`
	Horizon             int     `json:"horizon"`
	TailPercentile      float64 `json:"tail_percentile"`
}

// DefaultSimulationParams returns 10000 paths over 252 days at the 5th
// percentile.
func DefaultSimulationParams(mu, sigma float64) SimulationParams {
	return SimulationParams{
		PortfolioReturn:     mu,
		PortfolioVolatility: sigma,
		Simulations:         DefaultSimulations,
		Horizon:             DefaultHorizon,
		TailPercentile:      DefaultTailPercentile,
	}
}

// Validate checks the simulation preconditions.
func (p SimulationParams) Validate() error {
	const op = "SimulateVaR"

	switch {
	case p.Simulations < 1:
		return newError(KindInvalidParameter, StageSimulation, op, "simulations must be at least 1, got %d", p.Simulations)
	case p.Horizon < 1:
		return newError(KindInvalidParameter, StageSimulation, op, "horizon must be at least 1, got %d", p.Horizon)
	case math.IsNaN(p.TailPercentile) || p.TailPercentile <= 0 || p.TailPercentile >= 100:
		return newError(KindInvalidParameter, StageSimulation, op,
			"tail percentile must be between 0 and 100 (exclusive), got %v", p.TailPercentile)
	case math.IsNaN(p.PortfolioReturn) || math.IsInf(p.PortfolioReturn, 0):
		return newError(KindInvalidParameter, StageSimulation, op, "portfolio return must be finite")
	case math.IsNaN(p.PortfolioVolatility) || math.IsInf(p.PortfolioVolatility, 0) || p.PortfolioVolatility < 0:
		return newError(KindInvalidParameter, StageSimulation, op,
			"portfolio volatility must be finite and non-negative, got %v", p.PortfolioVolatility)
	}
	return nil
}

// ============================================================================
// SIMULATOR
// ============================================================================

// Simulator runs Monte Carlo VaR estimates. Paths are cut into blocks of
// batchSize; block i draws from a sampler seeded with seed+i. Workers only
// schedule blocks, so a seeded result does not depend on the worker count.
type Simulator struct {
	workers   int
	batchSize int
	seed      uint64
	seeded    bool
	factory   SamplerFactory
}

// SimulatorOption configures a Simulator.
type SimulatorOption func(*Simulator)

// WithWorkers sets how many blocks run concurrently. Values below 1 are
// ignored.
func WithWorkers(n int) SimulatorOption {
	return func(s *Simulator) {
		if n >= 1 {
			s.workers = n
		}
	}
}

// WithSeed makes runs reproducible.
func WithSeed(seed uint64) SimulatorOption {
	return func(s *Simulator) {
		s.seed = seed
		s.seeded = true
	}
}

// WithSamplerFactory replaces the normal sampler, e.g. with a fixed source
// in tests.
func WithSamplerFactory(f SamplerFactory) SimulatorOption {
	return func(s *Simulator) {
		if f != nil {
			s.factory = f
		}
	}
}

// WithBatchSize sets the paths per block. A block is the unit of seeding
// and of cancellation checks, so seeded results depend on it.
func WithBatchSize(n int) SimulatorOption {
	return func(s *Simulator) {
		if n >= 1 {
			s.batchSize = n
		}
	}
}

// NewSimulator creates a simulator using one worker per CPU and a
// time-based seed unless configured otherwise.
func NewSimulator(opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		workers:   runtime.GOMAXPROCS(0),
		batchSize: defaultBatchSize,
		factory:   NormalSamplerFactory,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SimulateVaR draws Simulations paths of Horizon i.i.d. Normal daily returns,
// compounds each path to its terminal value Π(1+r), and returns the
// TailPercentile-th percentile of the terminal values.
func (s *Simulator) SimulateVaR(ctx context.Context, p SimulationParams) (SimulationResult, error) {
	if err := p.Validate(); err != nil {
		return SimulationResult{}, err
	}

	seed := s.seed
	if !s.seeded {
		seed = uint64(time.Now().UnixNano())
	}

	blocks := (p.Simulations + s.batchSize - 1) / s.batchSize
	workers := s.workers
	if workers > blocks {
		workers = blocks
	}

	start := time.Now()
	terminals := make([]float64, p.Simulations)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for block := 0; block < blocks; block++ {
		lo := block * s.batchSize
		hi := min(lo+s.batchSize, p.Simulations)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("simulation cancelled after block %d of %d: %w", block, blocks, err)
			}
			sampler := s.factory(p.PortfolioReturn, p.PortfolioVolatility, seed+uint64(block))
			runPaths(sampler, terminals[lo:hi], p.Horizon)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return SimulationResult{}, err
	}

	for _, v := range terminals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return SimulationResult{}, newError(KindNumerical, StageSimulation, "SimulateVaR",
				"simulated terminal value is not finite")
		}
	}

	varValue := Percentile(terminals, p.TailPercentile)

	log.Debug().
		Int("simulations", p.Simulations).
		Int("horizon", p.Horizon).
		Int("workers", workers).
		Float64("tail_percentile", p.TailPercentile).
		Float64("var", varValue).
		Dur("duration", time.Since(start)).
		Msg("Monte Carlo simulation completed")

	return SimulationResult{
		VaR:            varValue,
		Simulations:    p.Simulations,
		Horizon:        p.Horizon,
		TailPercentile: p.TailPercentile,
		Seed:           seed,
	}, nil
}

func runPaths(sampler Sampler, out []float64, horizon int) {
	for i := range out {
		cumulative := 1.0
		for t := 0; t < horizon; t++ {
			cumulative *= 1 + sampler.Sample()
		}
		out[i] = cumulative
	}
}

// SimulateVaR runs a simulation with a default Simulator.
func SimulateVaR(ctx context.Context, p SimulationParams) (SimulationResult, error) {
	return NewSimulator().SimulateVaR(ctx, p)
}
