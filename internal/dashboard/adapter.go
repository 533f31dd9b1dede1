// Package dashboard turns pipeline output into per-asset chart series,
// PNG charts and the portfolio VaR line.
package dashboard

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vicanso/go-charts/v2"

	"github.com/ajitpratap0/riskdash/internal/pipeline"
	"github.com/ajitpratap0/riskdash/pkg/riskcalc"
)

const (
	defaultChartWidth  = 900
	defaultChartHeight = 450
	chartXAxisSplit    = 8
	dateLayout         = "2006-01-02"
)

var (
	// ErrUnknownAsset is returned for an asset outside the portfolio
	ErrUnknownAsset = errors.New("asset not in portfolio")
	// ErrNoData is returned when no pipeline result is available
	ErrNoData = errors.New("no risk data available")
)

// Selection is the plotting data for one asset
type Selection struct {
	Asset       string      `json:"asset"`
	Dates       []time.Time `json:"dates"`
	Prices      []float64   `json:"prices"`
	ReturnDates []time.Time `json:"return_dates"`
	Returns     []float64   `json:"returns"`
	VaRText     string      `json:"var_text"`
	Err         string      `json:"error,omitempty"`
}

// OK reports whether the selection carries data
func (s Selection) OK() bool {
	return s.Err == ""
}

// Option configures an Adapter
type Option func(*Adapter)

// WithChartCache shares a rendered chart cache between adapters
func WithChartCache(c *ChartCache) Option {
	return func(a *Adapter) { a.cache = c }
}

// WithChartSize sets the PNG dimensions
func WithChartSize(width, height int) Option {
	return func(a *Adapter) {
		if width > 0 {
			a.width = width
		}
		if height > 0 {
			a.height = height
		}
	}
}

// Adapter answers dashboard queries from one pipeline report. It never
// returns an error to the UI for a missing asset or a failed run; the
// Selection carries a message instead.
type Adapter struct {
	runID   string
	prices  *riskcalc.PriceTable
	returns *riskcalc.ReturnSeries
	metrics *riskcalc.RiskMetrics
	failure error

	cache  *ChartCache
	width  int
	height int
}

func newAdapter(opts []Option) *Adapter {
	a := &Adapter{width: defaultChartWidth, height: defaultChartHeight}
	for _, o := range opts {
		o(a)
	}
	return a
}

// NewAdapter builds an adapter over a successful report
func NewAdapter(report *pipeline.Report, opts ...Option) *Adapter {
	a := newAdapter(opts)
	if report == nil {
		a.failure = ErrNoData
		return a
	}
	a.runID = report.RunID
	a.prices = report.Prices
	a.returns = report.Returns
	a.metrics = report.Metrics
	return a
}

// NewFailedAdapter builds an adapter that reports err for every query
func NewFailedAdapter(err error, opts ...Option) *Adapter {
	a := newAdapter(opts)
	if err == nil {
		err = ErrNoData
	}
	a.failure = err
	return a
}

// Assets returns the portfolio assets, empty after a failure
func (a *Adapter) Assets() []string {
	if a.metrics == nil {
		return []string{}
	}
	return append([]string(nil), a.metrics.Assets...)
}

// Metrics returns the risk metrics, nil after a failure
func (a *Adapter) Metrics() *riskcalc.RiskMetrics {
	return a.metrics
}

// FailureMessage explains why no data is shown, naming the failed stage
func (a *Adapter) FailureMessage() string {
	if a.failure == nil {
		return ""
	}
	var stageErr *pipeline.StageError
	if errors.As(a.failure, &stageErr) {
		return fmt.Sprintf("risk computation failed at %s stage: %v", stageErr.Stage, stageErr.Err)
	}
	return a.failure.Error()
}

// VaRText formats the portfolio VaR line, empty after a failure
func (a *Adapter) VaRText() string {
	if a.metrics == nil {
		return ""
	}
	return FormatVaR(a.metrics.ConfidenceLevel, a.metrics.ParametricVaR)
}

// SelectAsset returns the price and return series of name with the VaR line
func (a *Adapter) SelectAsset(name string) Selection {
	sel := Selection{
		Asset:       name,
		Dates:       []time.Time{},
		Prices:      []float64{},
		ReturnDates: []time.Time{},
		Returns:     []float64{},
	}

	if a.failure != nil || a.metrics == nil || a.returns == nil {
		sel.Err = a.FailureMessage()
		if sel.Err == "" {
			sel.Err = ErrNoData.Error()
		}
		return sel
	}

	returns, ok := a.returns.Column(name)
	if !ok {
		sel.Err = fmt.Sprintf("%s: %v", name, ErrUnknownAsset)
		return sel
	}

	sel.VaRText = a.VaRText()
	sel.ReturnDates = append(sel.ReturnDates, a.returns.Dates...)
	sel.Returns = returns

	if a.prices != nil {
		if col, ok := a.prices.Column(name); ok {
			for i, p := range col {
				if math.IsNaN(p) || math.IsInf(p, 0) {
					continue
				}
				sel.Dates = append(sel.Dates, a.prices.Dates[i])
				sel.Prices = append(sel.Prices, p)
			}
		}
	}

	return sel
}

// RenderChart draws a PNG line chart of name's prices
func (a *Adapter) RenderChart(name string) ([]byte, error) {
	if a.failure != nil {
		return nil, fmt.Errorf("%s", a.FailureMessage())
	}
	if a.metrics == nil {
		return nil, ErrNoData
	}

	key := fmt.Sprintf("%s|%s|%dx%d", a.runID, name, a.width, a.height)
	if img, ok := a.cache.Get(key); ok {
		return img, nil
	}

	sel := a.SelectAsset(name)
	if !sel.OK() {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownAsset)
	}
	if len(sel.Prices) < 2 {
		return nil, fmt.Errorf("%s: not enough data points to chart", name)
	}

	labels := make([]string, len(sel.Dates))
	yMin, yMax := sel.Prices[0], sel.Prices[0]
	for i, d := range sel.Dates {
		labels[i] = d.Format(dateLayout)
		v := sel.Prices[i]
		if v < yMin {
			yMin = v
		}
		if v > yMax {
			yMax = v
		}
	}
	pad := (yMax - yMin) * 0.05
	if pad < yMax*0.002 {
		pad = yMax * 0.002
	}
	yMin -= pad
	if yMin < 0 {
		yMin = 0
	}
	yMax += pad

	painter, err := charts.LineRender([][]float64{sel.Prices},
		charts.TitleTextOptionFunc(name, sel.VaRText),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: labels, BoundaryGap: charts.FalseFlag(), SplitNumber: chartXAxisSplit}),
		charts.YAxisOptionFunc(charts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: 5}),
		charts.WidthOptionFunc(a.width),
		charts.HeightOptionFunc(a.height),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart for %s: %w", name, err)
	}
	img, err := painter.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to encode chart for %s: %w", name, err)
	}

	a.cache.Set(key, img)
	log.Debug().
		Str("asset", name).
		Int("points", len(sel.Prices)).
		Int("bytes", len(img)).
		Msg("Rendered price chart")

	return img, nil
}

// FormatVaR renders "95% Confidence VaR for Portfolio: 0.0123" where the
// number is the loss -VaR with four decimals.
func FormatVaR(confidence, varValue float64) string {
	pct := decimal.NewFromFloat(confidence).Mul(decimal.NewFromInt(100))
	loss := decimal.NewFromFloat(-varValue)
	return fmt.Sprintf("%s%% Confidence VaR for Portfolio: %s", pct.String(), loss.StringFixed(4))
}
