package riskcalc

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const z05 = -1.6448536269514722

func twoAssetSeries() *ReturnSeries {
	return &ReturnSeries{
		Assets: []string{"AAA", "BBB"},
		Dates:  []time.Time{day(1), day(2), day(3)},
		Returns: [][]float64{
			{0.01, 0.02},
			{0.03, -0.01},
			{-0.01, 0.02},
		},
	}
}

func TestComputeRiskMetricsTwoAssets(t *testing.T) {
	m, err := ComputeRiskMetrics(twoAssetSeries(), WeightVector{0.6, 0.4}, 0.95)
	require.NoError(t, err)

	assert.InDelta(t, 0.01, m.MeanReturns[0], 1e-12)
	assert.InDelta(t, 0.01, m.MeanReturns[1], 1e-12)

	assert.InDelta(t, 0.0004, m.Covariance[0][0], 1e-12)
	assert.InDelta(t, 0.0003, m.Covariance[1][1], 1e-12)
	assert.InDelta(t, -0.0003, m.Covariance[0][1], 1e-12)

	expectedVol := math.Sqrt(0.36*0.0004 + 0.16*0.0003 + 2*0.6*0.4*-0.0003)
	assert.InDelta(t, 0.01, m.PortfolioReturn, 1e-9)
	assert.InDelta(t, expectedVol, m.PortfolioVolatility, 1e-9)
	assert.InDelta(t, z05*expectedVol, m.ParametricVaR, 1e-6)
	assert.Less(t, m.ParametricVaR, 0.0)

	assert.False(t, m.UsedDefaultWeights)
	assert.Equal(t, 3, m.Observations)
	assert.Equal(t, 0.95, m.ConfidenceLevel)

	mean, ok := m.MeanReturn("BBB")
	require.True(t, ok)
	assert.InDelta(t, 0.01, mean, 1e-12)
	_, ok = m.MeanReturn("ZZZ")
	assert.False(t, ok)

	cov, ok := m.CovarianceOf("BBB", "AAA")
	require.True(t, ok)
	assert.InDelta(t, -0.0003, cov, 1e-12)
	_, ok = m.CovarianceOf("AAA", "ZZZ")
	assert.False(t, ok)
}

func TestComputeRiskMetricsCovarianceSymmetric(t *testing.T) {
	rs := &ReturnSeries{
		Assets: []string{"A", "B", "C"},
		Returns: [][]float64{
			{0.010, -0.004, 0.020},
			{-0.003, 0.012, 0.001},
			{0.007, 0.002, -0.015},
			{0.001, -0.009, 0.004},
		},
	}
	m, err := ComputeRiskMetrics(rs, nil, 0.99)
	require.NoError(t, err)

	for i := range m.Covariance {
		assert.GreaterOrEqual(t, m.Covariance[i][i], 0.0)
		for j := range m.Covariance {
			assert.Equal(t, m.Covariance[i][j], m.Covariance[j][i])
		}
	}
}

func TestComputeRiskMetricsVolatilityBound(t *testing.T) {
	rs := twoAssetSeries()
	w := WeightVector{0.6, 0.4}
	m, err := ComputeRiskMetrics(rs, w, 0.95)
	require.NoError(t, err)

	bound := 0.0
	for i, wi := range w {
		bound += wi * math.Sqrt(m.Covariance[i][i])
	}
	assert.LessOrEqual(t, m.PortfolioVolatility, bound+1e-12)
}

func TestComputeRiskMetricsDefaultWeights(t *testing.T) {
	tests := []struct {
		name    string
		weights WeightVector
	}{
		{name: "nil weights", weights: nil},
		{name: "too few weights", weights: WeightVector{1.0}},
		{name: "too many weights", weights: WeightVector{0.2, 0.3, 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ComputeRiskMetrics(twoAssetSeries(), tt.weights, 0.95)
			require.NoError(t, err)
			assert.True(t, m.UsedDefaultWeights)
			assert.Equal(t, WeightVector{0.5, 0.5}, m.Weights)
		})
	}
}

func TestComputeRiskMetricsDoesNotAliasWeights(t *testing.T) {
	w := WeightVector{0.6, 0.4}
	m, err := ComputeRiskMetrics(twoAssetSeries(), w, 0.95)
	require.NoError(t, err)

	w[0] = 99
	assert.Equal(t, 0.6, m.Weights[0])
}

func TestComputeRiskMetricsInvalidConfidence(t *testing.T) {
	for _, cl := range []float64{1.5, -0.1, 0, 1, math.NaN()} {
		m, err := ComputeRiskMetrics(twoAssetSeries(), nil, cl)
		require.Error(t, err, "confidence %v", cl)
		assert.Nil(t, m)
		assert.True(t, errors.Is(err, ErrInvalidParameter))
		assert.False(t, errors.Is(err, ErrInsufficientData))
	}
}

func TestComputeRiskMetricsInvalidWeights(t *testing.T) {
	for _, w := range []WeightVector{{-0.1, 1.1}, {math.NaN(), 0.5}, {math.Inf(1), 0}} {
		_, err := ComputeRiskMetrics(twoAssetSeries(), w, 0.95)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidParameter)
	}
}

func TestComputeRiskMetricsInsufficientData(t *testing.T) {
	_, err := ComputeRiskMetrics(&ReturnSeries{Assets: []string{"A"}}, nil, 0.95)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = ComputeRiskMetrics(nil, nil, 0.95)
	assert.ErrorIs(t, err, ErrInsufficientData)

	single := &ReturnSeries{Assets: []string{"A"}, Returns: [][]float64{{0.01}}}
	_, err = ComputeRiskMetrics(single, nil, 0.95)
	assert.ErrorIs(t, err, ErrInsufficientData)

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindInsufficientData, kind)
}

func TestComputeRiskMetricsMalformedSeries(t *testing.T) {
	tests := []struct {
		name    string
		series  *ReturnSeries
		wantErr error
	}{
		{
			name:    "no assets",
			series:  &ReturnSeries{Assets: []string{}, Returns: [][]float64{{}, {}}},
			wantErr: ErrInsufficientData,
		},
		{
			name:    "nil assets with values",
			series:  &ReturnSeries{Returns: [][]float64{{0.01}, {0.02}}},
			wantErr: ErrInsufficientData,
		},
		{
			name: "short row",
			series: &ReturnSeries{
				Assets:  []string{"A", "B"},
				Returns: [][]float64{{0.01, 0.02}, {0.03}, {0.01, -0.01}},
			},
			wantErr: ErrInvalidParameter,
		},
		{
			name: "long row",
			series: &ReturnSeries{
				Assets:  []string{"A"},
				Returns: [][]float64{{0.01}, {0.03, 0.02}},
			},
			wantErr: ErrInvalidParameter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m *RiskMetrics
			var err error
			require.NotPanics(t, func() {
				m, err = ComputeRiskMetrics(tt.series, nil, 0.95)
			})
			require.Error(t, err)
			assert.Nil(t, m)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestComputeRiskMetricsPortfolioReturn(t *testing.T) {
	scenario := &ReturnSeries{
		Assets: []string{"A", "B"},
		Returns: [][]float64{
			{0.01, 0.02},
			{-0.02, 0.01},
			{0.03, -0.01},
		},
	}
	meanA := (0.01 - 0.02 + 0.03) / 3
	meanB := (0.02 + 0.01 - 0.01) / 3

	tests := []struct {
		name    string
		weights WeightVector
		want    float64
	}{
		{"equal weights", WeightVector{0.5, 0.5}, 0.5*meanA + 0.5*meanB},
		{"all in A", WeightVector{1, 0}, meanA},
		{"all in B", WeightVector{0, 1}, meanB},
		{"tilted", WeightVector{0.2, 0.8}, 0.2*meanA + 0.8*meanB},
		{"mostly A", WeightVector{0.9, 0.1}, 0.9*meanA + 0.1*meanB},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ComputeRiskMetrics(scenario, tt.weights, 0.95)
			require.NoError(t, err)

			assert.InDelta(t, tt.want, m.PortfolioReturn, 1e-9)

			lo := math.Min(m.MeanReturns[0], m.MeanReturns[1])
			hi := math.Max(m.MeanReturns[0], m.MeanReturns[1])
			assert.GreaterOrEqual(t, m.PortfolioReturn, lo-1e-12)
			assert.LessOrEqual(t, m.PortfolioReturn, hi+1e-12)
		})
	}

	m, err := ComputeRiskMetrics(scenario, WeightVector{0.5, 0.5}, 0.95)
	require.NoError(t, err)
	assert.InDelta(t, 0.02/3, m.PortfolioReturn, 1e-9)
}

func TestComputeRiskMetricsConvexityThreeAssets(t *testing.T) {
	rs := &ReturnSeries{
		Assets: []string{"A", "B", "C"},
		Returns: [][]float64{
			{0.010, -0.004, 0.020},
			{-0.003, 0.012, 0.001},
			{0.007, 0.002, -0.015},
			{0.001, -0.009, 0.004},
		},
	}
	for _, w := range []WeightVector{
		{1.0 / 3, 1.0 / 3, 1.0 / 3},
		{0.7, 0.2, 0.1},
		{0, 0.5, 0.5},
		{0.05, 0.05, 0.9},
	} {
		m, err := ComputeRiskMetrics(rs, w, 0.95)
		require.NoError(t, err)
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, mean := range m.MeanReturns {
			lo = math.Min(lo, mean)
			hi = math.Max(hi, mean)
		}
		assert.GreaterOrEqual(t, m.PortfolioReturn, lo-1e-12, "weights %v", w)
		assert.LessOrEqual(t, m.PortfolioReturn, hi+1e-12, "weights %v", w)
	}
}

func TestVolatilityFromVariance(t *testing.T) {
	tests := []struct {
		name     string
		variance float64
		want     float64
		wantErr  bool
	}{
		{"positive", 0.0004, 0.02, false},
		{"zero", 0, 0, false},
		{"rounding noise", -1e-13, 0, false},
		{"at tolerance", -varianceTolerance, 0, false},
		{"beyond tolerance", -1e-10, 0, true},
		{"clearly negative", -0.01, 0, true},
		{"nan", math.NaN(), 0, true},
		{"inf", math.Inf(1), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := volatilityFromVariance(tt.variance)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrNumerical)
				stage, ok := StageOf(err)
				require.True(t, ok)
				assert.Equal(t, StageMetrics, stage)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-15)
		})
	}
}

func TestComputeRiskMetricsZeroVolatility(t *testing.T) {
	rs := &ReturnSeries{
		Assets:  []string{"A"},
		Returns: [][]float64{{0.01}, {0.01}, {0.01}},
	}
	m, err := ComputeRiskMetrics(rs, WeightVector{1}, 0.95)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, m.PortfolioVolatility, 1e-12)
	assert.InDelta(t, 0.0, m.ParametricVaR, 1e-12)
}

func TestComputeRiskMetricsFromPrices(t *testing.T) {
	pt := makeTable(t, []string{"AAA", "BBB"},
		[]float64{100, 200},
		[]float64{101, 204},
		[]float64{102.01, 201.96},
		[]float64{100.99, 203.98},
	)
	rs, err := BuildReturns(pt)
	require.NoError(t, err)

	m, err := ComputeRiskMetrics(rs, WeightVector{0.5, 0.5}, 0.95)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Observations)
	assert.Greater(t, m.PortfolioVolatility, 0.0)
	assert.InDelta(t, z05*m.PortfolioVolatility, m.ParametricVaR, 1e-6)
}
