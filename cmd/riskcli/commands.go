package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/subcommands"

	"github.com/ajitpratap0/riskdash/internal/config"
	"github.com/ajitpratap0/riskdash/internal/pipeline"
	"github.com/ajitpratap0/riskdash/pkg/riskcalc"
)

func commands(out io.Writer) []subcommands.Command {
	return []subcommands.Command{
		&reportCmd{out: out},
		&simulateCmd{out: out},
		&versionCmd{out: out},
	}
}

// ============================================================================
// REPORT
// ============================================================================

type reportCmd struct {
	out io.Writer

	configPath  string
	assets      string
	weights     string
	start       string
	end         string
	pricesFile  string
	confidence  float64
	simulations int
	horizon     int
	seed        uint64
	format      string
	verbose     bool
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "fetch prices and print the portfolio risk report" }
func (*reportCmd) Usage() string {
	return `riskcli report [-config <file>] [-assets A,B] [-weights 0.5,0.5] [-start YYYY-MM-DD] [-end YYYY-MM-DD]
               [-prices <csv>] [-confidence 0.95] [-simulations n] [-horizon days] [-seed n]
               [-format text|json|yaml|markdown] [-verbose]

  Runs the risk pipeline once and prints per-asset mean returns, the
  covariance matrix, portfolio return and volatility, parametric VaR and
  Monte Carlo VaR. Flags override the configuration file.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "Path to config file (default ./configs/config.yaml)")
	f.StringVar(&c.assets, "assets", "", "Comma separated asset symbols")
	f.StringVar(&c.weights, "weights", "", "Comma separated weights aligned to -assets")
	f.StringVar(&c.start, "start", "", "First day of history (YYYY-MM-DD)")
	f.StringVar(&c.end, "end", "", "Day after the last day of history (YYYY-MM-DD)")
	f.StringVar(&c.pricesFile, "prices", "", "Read prices from a CSV file instead of Yahoo Finance")
	f.Float64Var(&c.confidence, "confidence", 0, "VaR confidence level")
	f.IntVar(&c.simulations, "simulations", 0, "Monte Carlo paths")
	f.IntVar(&c.horizon, "horizon", 0, "Monte Carlo horizon in trading days")
	f.Uint64Var(&c.seed, "seed", 0, "Monte Carlo seed (0 = time based)")
	f.StringVar(&c.format, "format", "text", "Output format: text, json, yaml or markdown")
	f.BoolVar(&c.verbose, "verbose", false, "Log pipeline progress to stderr")
}

func (c *reportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	level := "warn"
	if c.verbose {
		level = "debug"
	}
	config.InitLoggerTo(os.Stderr, level, "console")

	renderer, ok := reportRenderers[c.format]
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown format %q\n", c.format)
		return subcommands.ExitUsageError
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if err := c.apply(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	rt, err := pipeline.NewRuntime(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer rt.Close()

	report, err := rt.Service.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	if err := renderer(c.out, newReportView(report)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// apply copies flag overrides onto the loaded configuration
func (c *reportCmd) apply(cfg *config.Config) error {
	if c.assets != "" {
		cfg.Portfolio.Assets = splitList(c.assets)
		// Configured weights belong to the configured assets
		cfg.Portfolio.Weights = nil
	}
	if c.weights != "" {
		weights, err := parseFloats(c.weights)
		if err != nil {
			return fmt.Errorf("invalid -weights: %w", err)
		}
		cfg.Portfolio.Weights = weights
	}
	if c.start != "" {
		cfg.Portfolio.StartDate = c.start
	}
	if c.end != "" {
		cfg.Portfolio.EndDate = c.end
	}
	if c.pricesFile != "" {
		cfg.MarketData.Provider = "static"
		cfg.MarketData.StaticFile = c.pricesFile
	}
	if c.confidence != 0 {
		cfg.Risk.ConfidenceLevel = c.confidence
	}
	if c.simulations != 0 {
		cfg.Risk.Simulations = c.simulations
	}
	if c.horizon != 0 {
		cfg.Risk.Horizon = c.horizon
	}
	if c.seed != 0 {
		cfg.Risk.Seed = c.seed
	}
	return nil
}

// ============================================================================
// SIMULATE
// ============================================================================

type simulateCmd struct {
	out io.Writer

	mu          float64
	sigma       float64
	simulations int
	horizon     int
	tail        float64
	seed        uint64
	workers     int
	format      string
}

func (*simulateCmd) Name() string     { return "simulate" }
func (*simulateCmd) Synopsis() string { return "run a Monte Carlo VaR estimate without market data" }
func (*simulateCmd) Usage() string {
	return `riskcli simulate -mu <daily return> -sigma <daily volatility> [-simulations n] [-horizon days] [-tail pct] [-seed n]

  Simulates compounded portfolio value over the horizon from normal daily
  returns and prints the tail percentile.
`
}

func (c *simulateCmd) SetFlags(f *flag.FlagSet) {
	f.Float64Var(&c.mu, "mu", 0, "Mean daily portfolio return")
	f.Float64Var(&c.sigma, "sigma", 0, "Daily portfolio volatility")
	f.IntVar(&c.simulations, "simulations", riskcalc.DefaultSimulations, "Number of paths")
	f.IntVar(&c.horizon, "horizon", riskcalc.DefaultHorizon, "Trading days per path")
	f.Float64Var(&c.tail, "tail", riskcalc.DefaultTailPercentile, "Tail percentile")
	f.Uint64Var(&c.seed, "seed", 0, "Random seed (0 = time based)")
	f.IntVar(&c.workers, "workers", 0, "Worker goroutines (0 = one per CPU)")
	f.StringVar(&c.format, "format", "text", "Output format: text, json or yaml")
}

func (c *simulateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	config.InitLoggerTo(os.Stderr, "warn", "console")

	renderer, ok := simulationRenderers[c.format]
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown format %q\n", c.format)
		return subcommands.ExitUsageError
	}

	params := riskcalc.SimulationParams{
		PortfolioReturn:     c.mu,
		PortfolioVolatility: c.sigma,
		Simulations:         c.simulations,
		Horizon:             c.horizon,
		TailPercentile:      c.tail,
	}
	if err := params.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	var opts []riskcalc.SimulatorOption
	if c.workers > 0 {
		opts = append(opts, riskcalc.WithWorkers(c.workers))
	}
	if c.seed != 0 {
		opts = append(opts, riskcalc.WithSeed(c.seed))
	}

	result, err := riskcalc.NewSimulator(opts...).SimulateVaR(ctx, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	if err := renderer(c.out, newSimulationView(params, result)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// ============================================================================
// VERSION
// ============================================================================

type versionCmd struct {
	out io.Writer
}

func (*versionCmd) Name() string             { return "version" }
func (*versionCmd) Synopsis() string         { return "print the version" }
func (*versionCmd) Usage() string            { return "riskcli version\n" }
func (*versionCmd) SetFlags(_ *flag.FlagSet) {}

func (c *versionCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	fmt.Fprintf(c.out, "riskcli %s\n", config.GetVersion())
	return subcommands.ExitSuccess
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseFloats(s string) ([]float64, error) {
	parts := splitList(s)
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
