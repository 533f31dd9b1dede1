package riskcalc

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

// BuildReturns converts a price table into simple daily returns,
// r[t] = p[t]/p[t-1] - 1 for every asset.
//
// The first row has no predecessor and is dropped. Any row in which at least
// one asset's return is NaN or infinite (a missing price on either day, or a
// zero previous price) is dropped as a whole; gaps are never imputed.
func BuildReturns(prices *PriceTable) (*ReturnSeries, error) {
	const op = "BuildReturns"

	if prices == nil || prices.Len() < 2 {
		n := 0
		if prices != nil {
			n = prices.Len()
		}
		return nil, newError(KindInsufficientData, StageReturns, op,
			"need at least 2 price rows, got %d", n)
	}
	if err := prices.Validate(); err != nil {
		return nil, err
	}

	nAssets := len(prices.Assets)
	series := &ReturnSeries{
		Assets:  append([]string(nil), prices.Assets...),
		Dates:   make([]time.Time, 0, prices.Len()-1),
		Returns: make([][]float64, 0, prices.Len()-1),
	}

	for i := 1; i < prices.Len(); i++ {
		prev, cur := prices.Prices[i-1], prices.Prices[i]
		row := make([]float64, nAssets)
		valid := true
		for j := 0; j < nAssets; j++ {
			r := cur[j]/prev[j] - 1
			if math.IsNaN(r) || math.IsInf(r, 0) {
				valid = false
				break
			}
			row[j] = r
		}
		if !valid {
			series.DroppedRows++
			continue
		}
		series.Dates = append(series.Dates, prices.Dates[i])
		series.Returns = append(series.Returns, row)
	}

	if series.Len() == 0 {
		return nil, newError(KindInsufficientData, StageReturns, op,
			"no complete return rows out of %d price rows", prices.Len())
	}

	if series.DroppedRows > 0 {
		log.Warn().
			Int("dropped_rows", series.DroppedRows).
			Int("observations", series.Len()).
			Msg("Dropped return rows with missing or invalid prices")
	}

	log.Debug().
		Int("assets", nAssets).
		Int("price_rows", prices.Len()).
		Int("observations", series.Len()).
		Msg("Return series built")

	return series, nil
}
