package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/ajitpratap0/riskdash/internal/config"
	"github.com/ajitpratap0/riskdash/internal/dashboard"
	"github.com/ajitpratap0/riskdash/internal/metrics"
	"github.com/ajitpratap0/riskdash/pkg/riskcalc"
)

const serverName = "risk-analyzer"

// PriceInput is a price table in wire form. A null price marks a missing
// observation.
type PriceInput struct {
	Assets []string     `json:"assets" jsonschema:"asset symbols, one per price column"`
	Dates  []string     `json:"dates" jsonschema:"ascending trading days as YYYY-MM-DD"`
	Prices [][]*float64 `json:"prices" jsonschema:"one row per date, one column per asset; null for a missing price"`
}

// ReturnsOutput is the result of build_returns
type ReturnsOutput struct {
	Assets       []string    `json:"assets"`
	Dates        []string    `json:"dates"`
	Returns      [][]float64 `json:"returns"`
	DroppedRows  int         `json:"dropped_rows"`
	Observations int         `json:"observations"`
}

// MetricsInput is the argument of compute_risk_metrics
type MetricsInput struct {
	PriceInput
	Weights         []float64 `json:"weights,omitempty" jsonschema:"portfolio weights aligned to assets; equal weights when omitted or mismatched"`
	ConfidenceLevel float64   `json:"confidence_level,omitempty" jsonschema:"VaR confidence level in (0,1), default 0.95"`
}

// MetricsOutput is the result of compute_risk_metrics
type MetricsOutput struct {
	Metrics     *riskcalc.RiskMetrics `json:"metrics"`
	VaRText     string                `json:"var_text"`
	DroppedRows int                   `json:"dropped_rows"`
	Notices     []string              `json:"notices"`
}

// SimulateInput is the argument of simulate_var
type SimulateInput struct {
	PortfolioReturn     float64 `json:"portfolio_return" jsonschema:"mean daily portfolio return"`
	PortfolioVolatility float64 `json:"portfolio_volatility" jsonschema:"daily portfolio volatility"`
	Simulations         int     `json:"simulations,omitempty" jsonschema:"number of paths, default 10000"`
	Horizon             int     `json:"horizon,omitempty" jsonschema:"trading days per path, default 252"`
	TailPercentile      float64 `json:"tail_percentile,omitempty" jsonschema:"tail percentile in (0,100), default 5"`
	Seed                uint64  `json:"seed,omitempty" jsonschema:"random seed; 0 picks a time based seed"`
}

// SimulateOutput is the result of simulate_var
type SimulateOutput struct {
	riskcalc.SimulationResult
	Loss float64 `json:"loss"`
}

// RiskAnalyzer exposes the risk core as MCP tools
type RiskAnalyzer struct {
	server  *mcp.Server
	workers int
	log     zerolog.Logger
}

// NewRiskAnalyzer creates the server and registers its tools
func NewRiskAnalyzer(workers int) *RiskAnalyzer {
	ra := &RiskAnalyzer{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    serverName,
			Version: config.GetVersion(),
		}, nil),
		workers: workers,
		log:     config.NewMCPLogger(serverName),
	}

	mcp.AddTool(ra.server, &mcp.Tool{
		Name:        "build_returns",
		Description: "Convert a daily price table into simple returns, dropping rows with missing prices",
	}, ra.buildReturns)
	mcp.AddTool(ra.server, &mcp.Tool{
		Name:        "compute_risk_metrics",
		Description: "Compute mean returns, covariance, portfolio return, volatility and parametric VaR from daily prices",
	}, ra.computeRiskMetrics)
	mcp.AddTool(ra.server, &mcp.Tool{
		Name:        "simulate_var",
		Description: "Monte Carlo VaR: tail percentile of compounded portfolio value over a horizon of normal daily returns",
	}, ra.simulateVaR)

	return ra
}

// Run serves over stdio until the client disconnects or ctx ends
func (ra *RiskAnalyzer) Run(ctx context.Context) error {
	return ra.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves one session over t
func (ra *RiskAnalyzer) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return ra.server.Connect(ctx, t, nil)
}

func (ra *RiskAnalyzer) observe(tool string, start time.Time, err error) {
	elapsed := time.Since(start)
	metrics.RecordMCPToolCall(tool, float64(elapsed.Microseconds())/1000)

	event := ra.log.Debug()
	if err != nil {
		event = ra.log.Warn().Err(err)
	}
	event.Str("tool", tool).Dur("duration", elapsed).Msg("Tool call completed")
}

func (ra *RiskAnalyzer) buildReturns(_ context.Context, _ *mcp.CallToolRequest, in PriceInput) (_ *mcp.CallToolResult, out ReturnsOutput, err error) {
	defer func(start time.Time) { ra.observe("build_returns", start, err) }(time.Now())

	table, err := in.table()
	if err != nil {
		return nil, out, err
	}
	returns, err := riskcalc.BuildReturns(table)
	if err != nil {
		return nil, out, err
	}

	out = ReturnsOutput{
		Assets:       returns.Assets,
		Dates:        formatDates(returns.Dates),
		Returns:      returns.Returns,
		DroppedRows:  returns.DroppedRows,
		Observations: returns.Len(),
	}
	return nil, out, nil
}

func (ra *RiskAnalyzer) computeRiskMetrics(_ context.Context, _ *mcp.CallToolRequest, in MetricsInput) (_ *mcp.CallToolResult, out MetricsOutput, err error) {
	defer func(start time.Time) { ra.observe("compute_risk_metrics", start, err) }(time.Now())

	table, err := in.table()
	if err != nil {
		return nil, out, err
	}
	returns, err := riskcalc.BuildReturns(table)
	if err != nil {
		return nil, out, err
	}

	confidence := in.ConfidenceLevel
	if confidence == 0 {
		confidence = riskcalc.DefaultConfidenceLevel
	}
	m, err := riskcalc.ComputeRiskMetrics(returns, in.Weights, confidence)
	if err != nil {
		return nil, out, err
	}

	out = MetricsOutput{
		Metrics:     m,
		VaRText:     dashboard.FormatVaR(m.ConfidenceLevel, m.ParametricVaR),
		DroppedRows: returns.DroppedRows,
		Notices:     []string{},
	}
	if m.UsedDefaultWeights {
		out.Notices = append(out.Notices,
			fmt.Sprintf("%d weights given for %d assets, using equal weights", len(in.Weights), len(m.Assets)))
	}
	if returns.DroppedRows > 0 {
		out.Notices = append(out.Notices, fmt.Sprintf("%d rows with missing prices were dropped", returns.DroppedRows))
	}
	return nil, out, nil
}

func (ra *RiskAnalyzer) simulateVaR(ctx context.Context, _ *mcp.CallToolRequest, in SimulateInput) (_ *mcp.CallToolResult, out SimulateOutput, err error) {
	defer func(start time.Time) { ra.observe("simulate_var", start, err) }(time.Now())

	params := riskcalc.DefaultSimulationParams(in.PortfolioReturn, in.PortfolioVolatility)
	if in.Simulations != 0 {
		params.Simulations = in.Simulations
	}
	if in.Horizon != 0 {
		params.Horizon = in.Horizon
	}
	if in.TailPercentile != 0 {
		params.TailPercentile = in.TailPercentile
	}

	var opts []riskcalc.SimulatorOption
	if ra.workers > 0 {
		opts = append(opts, riskcalc.WithWorkers(ra.workers))
	}
	if in.Seed != 0 {
		opts = append(opts, riskcalc.WithSeed(in.Seed))
	}

	result, err := riskcalc.NewSimulator(opts...).SimulateVaR(ctx, params)
	if err != nil {
		return nil, out, err
	}
	return nil, SimulateOutput{SimulationResult: result, Loss: -result.VaR}, nil
}

func (in PriceInput) table() (*riskcalc.PriceTable, error) {
	dates := make([]time.Time, len(in.Dates))
	for i, s := range in.Dates {
		d, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q at row %d: %w", s, i, err)
		}
		dates[i] = d
	}

	prices := make([][]float64, len(in.Prices))
	for i, row := range in.Prices {
		prices[i] = make([]float64, len(row))
		for j, p := range row {
			if p == nil {
				prices[i][j] = math.NaN()
			} else {
				prices[i][j] = *p
			}
		}
	}

	return riskcalc.NewPriceTable(in.Assets, dates, prices)
}

func formatDates(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(time.DateOnly)
	}
	return out
}
