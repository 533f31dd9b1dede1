package riskcalc

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
)

// PriceField identifies which upstream quote a price column was taken from.
type PriceField string

const (
	FieldAdjClose PriceField = "adjclose"
	FieldClose    PriceField = "close"
)

// ============================================================================
// PRICE TABLE
// ============================================================================

// PriceTable holds daily prices for a fixed list of assets. Prices[i][j] is
// the price of Assets[j] on Dates[i]; a missing price is NaN.
type PriceTable struct {
	Assets []string              `json:"assets"`
	Dates  []time.Time           `json:"dates"`
	Prices [][]float64           `json:"prices"`
	Fields map[string]PriceField `json:"fields,omitempty"`
}

// NewPriceTable builds a table and validates its ordering invariants.
func NewPriceTable(assets []string, dates []time.Time, prices [][]float64) (*PriceTable, error) {
	pt := &PriceTable{
		Assets: assets,
		Dates:  dates,
		Prices: prices,
	}
	if err := pt.Validate(); err != nil {
		return nil, err
	}
	return pt, nil
}

// Validate checks that dates strictly increase and that every row is
// aligned to the asset list.
func (pt *PriceTable) Validate() error {
	const op = "PriceTable.Validate"

	if len(pt.Assets) == 0 {
		return newError(KindInvalidParameter, StageReturns, op, "price table has no assets")
	}
	seen := make(map[string]struct{}, len(pt.Assets))
	for _, a := range pt.Assets {
		if _, dup := seen[a]; dup {
			return newError(KindInvalidParameter, StageReturns, op, "duplicate asset %q", a)
		}
		seen[a] = struct{}{}
	}
	if len(pt.Dates) != len(pt.Prices) {
		return newError(KindInvalidParameter, StageReturns, op,
			"%d dates but %d price rows", len(pt.Dates), len(pt.Prices))
	}
	for i, row := range pt.Prices {
		if len(row) != len(pt.Assets) {
			return newError(KindInvalidParameter, StageReturns, op,
				"row %d has %d prices, expected %d", i, len(row), len(pt.Assets))
		}
		if i > 0 && !pt.Dates[i].After(pt.Dates[i-1]) {
			return newError(KindInvalidParameter, StageReturns, op,
				"dates not strictly increasing at row %d (%s after %s)",
				i, pt.Dates[i].Format(time.DateOnly), pt.Dates[i-1].Format(time.DateOnly))
		}
	}
	return nil
}

// Len returns the number of rows.
func (pt *PriceTable) Len() int {
	return len(pt.Dates)
}

// AssetIndex returns the column of asset, or -1.
func (pt *PriceTable) AssetIndex(asset string) int {
	return indexOf(pt.Assets, asset)
}

// Column returns a copy of one asset's prices.
func (pt *PriceTable) Column(asset string) ([]float64, bool) {
	j := pt.AssetIndex(asset)
	if j < 0 {
		return nil, false
	}
	out := make([]float64, len(pt.Prices))
	for i, row := range pt.Prices {
		out[i] = row[j]
	}
	return out, true
}

// CloseFallbacks lists assets whose prices came from unadjusted closes.
func (pt *PriceTable) CloseFallbacks() []string {
	var out []string
	for asset, f := range pt.Fields {
		if f == FieldClose {
			out = append(out, asset)
		}
	}
	sort.Strings(out)
	return out
}

// ============================================================================
// RETURN SERIES
// ============================================================================

// ReturnSeries holds simple daily returns. No value is NaN or infinite.
type ReturnSeries struct {
	Assets      []string    `json:"assets"`
	Dates       []time.Time `json:"dates"`
	Returns     [][]float64 `json:"returns"`
	DroppedRows int         `json:"dropped_rows"`
}

// Len returns the number of observations.
func (rs *ReturnSeries) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Returns)
}

// AssetIndex returns the column of asset, or -1.
func (rs *ReturnSeries) AssetIndex(asset string) int {
	return indexOf(rs.Assets, asset)
}

// Column returns a copy of one asset's returns.
func (rs *ReturnSeries) Column(asset string) ([]float64, bool) {
	j := rs.AssetIndex(asset)
	if j < 0 {
		return nil, false
	}
	out := make([]float64, len(rs.Returns))
	for i, row := range rs.Returns {
		out[i] = row[j]
	}
	return out, true
}

// Matrix returns the observations as a rows x assets dense matrix.
func (rs *ReturnSeries) Matrix() *mat.Dense {
	data := make([]float64, 0, len(rs.Returns)*len(rs.Assets))
	for _, row := range rs.Returns {
		data = append(data, row...)
	}
	return mat.NewDense(len(rs.Returns), len(rs.Assets), data)
}

// ============================================================================
// WEIGHTS AND RESULTS
// ============================================================================

// WeightVector holds portfolio weights aligned to the asset order of a
// ReturnSeries.
type WeightVector []float64

// UniformWeights returns 1/n for each of n assets.
func UniformWeights(n int) WeightVector {
	w := make(WeightVector, n)
	for i := range w {
		w[i] = 1.0 / float64(n)
	}
	return w
}

// RiskMetrics is the output of ComputeRiskMetrics. The engine never shares
// its slices with the caller's inputs.
type RiskMetrics struct {
	Assets              []string     `json:"assets"`
	MeanReturns         []float64    `json:"mean_returns"`
	Covariance          [][]float64  `json:"covariance"`
	Weights             WeightVector `json:"weights"`
	UsedDefaultWeights  bool         `json:"used_default_weights"`
	PortfolioReturn     float64      `json:"portfolio_return"`
	PortfolioVolatility float64      `json:"portfolio_volatility"`
	ParametricVaR       float64      `json:"parametric_var"`
	ConfidenceLevel     float64      `json:"confidence_level"`
	Observations        int          `json:"observations"`
}

// MeanReturn returns the mean daily return of asset.
func (m *RiskMetrics) MeanReturn(asset string) (float64, bool) {
	j := indexOf(m.Assets, asset)
	if j < 0 {
		return math.NaN(), false
	}
	return m.MeanReturns[j], true
}

// CovarianceOf returns the sample covariance between assets a and b.
func (m *RiskMetrics) CovarianceOf(a, b string) (float64, bool) {
	i, j := indexOf(m.Assets, a), indexOf(m.Assets, b)
	if i < 0 || j < 0 {
		return math.NaN(), false
	}
	return m.Covariance[i][j], true
}

// SimulationResult is the outcome of one Monte Carlo run.
type SimulationResult struct {
	VaR            float64 `json:"var"`
	Simulations    int     `json:"simulations"`
	Horizon        int     `json:"horizon"`
	TailPercentile float64 `json:"tail_percentile"`
	Seed           uint64  `json:"seed"`
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
