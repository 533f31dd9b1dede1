// Portfolio risk metrics: moments, volatility and parametric VaR
package riskcalc

import (
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultConfidenceLevel is the VaR confidence used when none is configured.
const DefaultConfidenceLevel = 0.95

// varianceTolerance bounds how negative w'Σw may be from rounding before it
// is reported as a numerical failure.
const varianceTolerance = 1e-12

// ComputeRiskMetrics derives per-asset mean returns, the sample covariance
// matrix, the weighted portfolio return and volatility, and the parametric
// VaR at the given confidence level.
//
// When weights is nil or its length does not match the number of assets,
// uniform weights are used and RiskMetrics.UsedDefaultWeights is set.
// The returned VaR is signed: a loss is negative.
func ComputeRiskMetrics(returns *ReturnSeries, weights WeightVector, confidence float64) (*RiskMetrics, error) {
	const op = "ComputeRiskMetrics"

	if returns.Len() == 0 {
		return nil, newError(KindInsufficientData, StageMetrics, op, "return series is empty")
	}
	if math.IsNaN(confidence) || confidence <= 0 || confidence >= 1 {
		return nil, newError(KindInvalidParameter, StageMetrics, op,
			"confidence level must be between 0 and 1 (exclusive), got %v", confidence)
	}
	if returns.Len() < 2 {
		return nil, newError(KindInsufficientData, StageMetrics, op,
			"sample covariance needs at least 2 observations, got %d", returns.Len())
	}

	nAssets := len(returns.Assets)
	if nAssets == 0 {
		return nil, newError(KindInsufficientData, StageMetrics, op, "return series has no assets")
	}
	for i, row := range returns.Returns {
		if len(row) != nAssets {
			return nil, newError(KindInvalidParameter, StageMetrics, op,
				"return row %d has %d values for %d assets", i, len(row), nAssets)
		}
	}

	w, usedDefault, err := resolveWeights(weights, nAssets)
	if err != nil {
		return nil, err
	}
	if usedDefault {
		log.Warn().
			Int("weights", len(weights)).
			Int("assets", nAssets).
			Msg("Weight vector does not match asset count, using uniform weights")
	}

	x := returns.Matrix()

	means := make([]float64, nAssets)
	for j := 0; j < nAssets; j++ {
		means[j] = stat.Mean(mat.Col(nil, j, x), nil)
	}

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, x, nil)

	portfolioReturn := 0.0
	for j, m := range means {
		portfolioReturn += w[j] * m
	}

	wv := mat.NewVecDense(nAssets, append([]float64(nil), w...))
	variance := mat.Inner(wv, &cov, wv)
	volatility, err := volatilityFromVariance(variance)
	if err != nil {
		return nil, err
	}

	z := distuv.UnitNormal.Quantile(1 - confidence)
	parametricVaR := z * volatility
	if math.IsNaN(portfolioReturn) || math.IsInf(portfolioReturn, 0) || math.IsNaN(parametricVaR) {
		return nil, newError(KindNumerical, StageMetrics, op, "portfolio statistics are not finite")
	}

	covRows := make([][]float64, nAssets)
	for i := 0; i < nAssets; i++ {
		covRows[i] = make([]float64, nAssets)
		for j := 0; j < nAssets; j++ {
			covRows[i][j] = cov.At(i, j)
		}
	}

	log.Debug().
		Int("observations", returns.Len()).
		Int("assets", nAssets).
		Float64("portfolio_return", portfolioReturn).
		Float64("portfolio_volatility", volatility).
		Float64("parametric_var", parametricVaR).
		Float64("confidence", confidence).
		Msg("Risk metrics computed")

	return &RiskMetrics{
		Assets:              append([]string(nil), returns.Assets...),
		MeanReturns:         means,
		Covariance:          covRows,
		Weights:             w,
		UsedDefaultWeights:  usedDefault,
		PortfolioReturn:     portfolioReturn,
		PortfolioVolatility: volatility,
		ParametricVaR:       parametricVaR,
		ConfidenceLevel:     confidence,
		Observations:        returns.Len(),
	}, nil
}

// volatilityFromVariance takes the square root of w'Σw. Rounding may push
// the variance slightly below zero; anything under -varianceTolerance is a
// numerical failure.
func volatilityFromVariance(variance float64) (float64, error) {
	const op = "ComputeRiskMetrics"
	if math.IsNaN(variance) || math.IsInf(variance, 0) {
		return 0, newError(KindNumerical, StageMetrics, op, "portfolio variance is not finite")
	}
	if variance < -varianceTolerance {
		return 0, newError(KindNumerical, StageMetrics, op,
			"portfolio variance %g is negative beyond tolerance", variance)
	}
	if variance < 0 {
		return 0, nil
	}
	return math.Sqrt(variance), nil
}

// resolveWeights copies weights, or substitutes uniform weights when the
// length does not match.
func resolveWeights(weights WeightVector, nAssets int) (WeightVector, bool, error) {
	if len(weights) != nAssets {
		return UniformWeights(nAssets), true, nil
	}
	w := make(WeightVector, nAssets)
	for i, v := range weights {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return nil, false, newError(KindInvalidParameter, StageMetrics, "ComputeRiskMetrics",
				"weight %d must be a non-negative finite number, got %v", i, v)
		}
		w[i] = v
	}
	return w, false, nil
}
