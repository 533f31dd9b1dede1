package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/riskdash/internal/dashboard"
	"github.com/ajitpratap0/riskdash/internal/pipeline"
	"github.com/ajitpratap0/riskdash/pkg/riskcalc"
)

type assetView struct {
	Asset      string  `json:"asset" yaml:"asset"`
	Weight     float64 `json:"weight" yaml:"weight"`
	MeanReturn float64 `json:"mean_return" yaml:"mean_return"`
}

type simulationView struct {
	PortfolioReturn     float64 `json:"portfolio_return" yaml:"portfolio_return"`
	PortfolioVolatility float64 `json:"portfolio_volatility" yaml:"portfolio_volatility"`
	Simulations         int     `json:"simulations" yaml:"simulations"`
	Horizon             int     `json:"horizon" yaml:"horizon"`
	TailPercentile      float64 `json:"tail_percentile" yaml:"tail_percentile"`
	Seed                uint64  `json:"seed" yaml:"seed"`
	VaR                 float64 `json:"var" yaml:"var"`
	Loss                float64 `json:"loss" yaml:"loss"`
}

type reportView struct {
	RunID               string         `json:"run_id" yaml:"run_id"`
	Start               string         `json:"start" yaml:"start"`
	End                 string         `json:"end" yaml:"end"`
	Observations        int            `json:"observations" yaml:"observations"`
	Assets              []assetView    `json:"assets" yaml:"assets"`
	UsedDefaultWeights  bool           `json:"used_default_weights" yaml:"used_default_weights"`
	Covariance          [][]float64    `json:"covariance" yaml:"covariance"`
	PortfolioReturn     float64        `json:"portfolio_return" yaml:"portfolio_return"`
	PortfolioVolatility float64        `json:"portfolio_volatility" yaml:"portfolio_volatility"`
	ConfidenceLevel     float64        `json:"confidence_level" yaml:"confidence_level"`
	ParametricVaR       float64        `json:"parametric_var" yaml:"parametric_var"`
	VaRText             string         `json:"var_text" yaml:"var_text"`
	MonteCarlo          simulationView `json:"monte_carlo" yaml:"monte_carlo"`
	Notices             []string       `json:"notices" yaml:"notices"`
}

func newSimulationView(p riskcalc.SimulationParams, r riskcalc.SimulationResult) simulationView {
	return simulationView{
		PortfolioReturn:     p.PortfolioReturn,
		PortfolioVolatility: p.PortfolioVolatility,
		Simulations:         r.Simulations,
		Horizon:             r.Horizon,
		TailPercentile:      r.TailPercentile,
		Seed:                r.Seed,
		VaR:                 r.VaR,
		Loss:                -r.VaR,
	}
}

func newReportView(r *pipeline.Report) reportView {
	m := r.Metrics
	v := reportView{
		RunID:               r.RunID,
		Start:               r.Start.Format(time.DateOnly),
		End:                 r.End.Format(time.DateOnly),
		Observations:        m.Observations,
		UsedDefaultWeights:  m.UsedDefaultWeights,
		Covariance:          m.Covariance,
		PortfolioReturn:     m.PortfolioReturn,
		PortfolioVolatility: m.PortfolioVolatility,
		ConfidenceLevel:     m.ConfidenceLevel,
		ParametricVaR:       m.ParametricVaR,
		VaRText:             dashboard.FormatVaR(m.ConfidenceLevel, m.ParametricVaR),
		MonteCarlo: newSimulationView(riskcalc.SimulationParams{
			PortfolioReturn:     m.PortfolioReturn,
			PortfolioVolatility: m.PortfolioVolatility,
		}, r.MonteCarlo),
		Notices: make([]string, len(r.Notices)),
	}
	for i, a := range m.Assets {
		v.Assets = append(v.Assets, assetView{Asset: a, Weight: m.Weights[i], MeanReturn: m.MeanReturns[i]})
	}
	for i, n := range r.Notices {
		v.Notices[i] = n.Message
	}
	return v
}

// monteCarloLine renders "Monte Carlo VaR (95% confidence): 0.8123" where the
// confidence is the complement of the tail percentile.
func monteCarloLine(s simulationView) string {
	confidence := decimal.NewFromInt(100).Sub(decimal.NewFromFloat(s.TailPercentile))
	return fmt.Sprintf("Monte Carlo VaR (%s%% confidence): %.4f", confidence.String(), s.Loss)
}

var reportRenderers = map[string]func(io.Writer, reportView) error{
	"text":     renderReportText,
	"json":     renderJSON[reportView],
	"yaml":     renderYAML[reportView],
	"markdown": renderReportMarkdown,
}

var simulationRenderers = map[string]func(io.Writer, simulationView) error{
	"text": renderSimulationText,
	"json": renderJSON[simulationView],
	"yaml": renderYAML[simulationView],
}

func renderJSON[T any](w io.Writer, v T) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderYAML[T any](w io.Writer, v T) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func renderReportText(w io.Writer, v reportView) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Portfolio risk report %s to %s (%d observations)\n\n", v.Start, v.End, v.Observations)

	fmt.Fprintln(tw, "Asset\tWeight\tMean daily return")
	for _, a := range v.Assets {
		fmt.Fprintf(tw, "%s\t%.4f\t%.6f\n", a.Asset, a.Weight, a.MeanReturn)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "Covariance matrix:")
	fmt.Fprint(tw, "\t")
	for _, a := range v.Assets {
		fmt.Fprintf(tw, "%s\t", a.Asset)
	}
	fmt.Fprintln(tw)
	for i, row := range v.Covariance {
		fmt.Fprintf(tw, "%s\t", v.Assets[i].Asset)
		for _, c := range row {
			fmt.Fprintf(tw, "%.8f\t", c)
		}
		fmt.Fprintln(tw)
	}
	fmt.Fprintln(tw)

	fmt.Fprintf(tw, "Portfolio return:\t%.6f\n", v.PortfolioReturn)
	fmt.Fprintf(tw, "Portfolio volatility:\t%.6f\n", v.PortfolioVolatility)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, v.VaRText)
	fmt.Fprintln(tw, monteCarloLine(v.MonteCarlo))

	if len(v.Notices) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "Notices:")
		for _, n := range v.Notices {
			fmt.Fprintf(tw, "  - %s\n", n)
		}
	}

	return tw.Flush()
}

func renderSimulationText(w io.Writer, v simulationView) error {
	_, err := fmt.Fprintf(w, "%d paths over %d days (mu %.6f, sigma %.6f, seed %d)\n%s\n",
		v.Simulations, v.Horizon, v.PortfolioReturn, v.PortfolioVolatility, v.Seed, monteCarloLine(v))
	return err
}

// reportMarkdown builds the markdown form of the report
func reportMarkdown(v reportView) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Portfolio risk report\n\n%s to %s, %d observations\n\n", v.Start, v.End, v.Observations)

	b.WriteString("## Assets\n\n| Asset | Weight | Mean daily return |\n|---|---:|---:|\n")
	for _, a := range v.Assets {
		fmt.Fprintf(&b, "| %s | %.4f | %.6f |\n", a.Asset, a.Weight, a.MeanReturn)
	}

	b.WriteString("\n## Covariance\n\n|  |")
	for _, a := range v.Assets {
		fmt.Fprintf(&b, " %s |", a.Asset)
	}
	b.WriteString("\n|---|")
	for range v.Assets {
		b.WriteString("---:|")
	}
	b.WriteString("\n")
	for i, row := range v.Covariance {
		fmt.Fprintf(&b, "| **%s** |", v.Assets[i].Asset)
		for _, c := range row {
			fmt.Fprintf(&b, " %.8f |", c)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\n## Portfolio\n\n- Return: %.6f\n- Volatility: %.6f\n- %s\n- %s\n",
		v.PortfolioReturn, v.PortfolioVolatility, v.VaRText, monteCarloLine(v.MonteCarlo))

	if len(v.Notices) > 0 {
		b.WriteString("\n## Notices\n\n")
		for _, n := range v.Notices {
			fmt.Fprintf(&b, "- %s\n", n)
		}
	}

	return b.String()
}

func renderReportMarkdown(w io.Writer, v reportView) error {
	return renderMarkdown(w, reportMarkdown(v), glamour.WithAutoStyle())
}

func renderMarkdown(w io.Writer, md string, style glamour.TermRendererOption) error {
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(100))
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}
