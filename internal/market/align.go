package market

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ajitpratap0/riskdash/pkg/riskcalc"
)

// AlignPrices merges per-asset histories onto the union of their trading
// days. A day an asset did not trade is left as NaN for the return builder
// to drop.
func AlignPrices(series []AssetSeries) (*riskcalc.PriceTable, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("no series to align")
	}

	byAsset := make([]map[time.Time]float64, len(series))
	daySet := make(map[time.Time]struct{})
	assets := make([]string, len(series))
	fields := make(map[string]riskcalc.PriceField, len(series))

	for i, s := range series {
		if len(s.Dates) != len(s.Prices) {
			return nil, fmt.Errorf("series %s has %d dates but %d prices", s.Symbol, len(s.Dates), len(s.Prices))
		}
		assets[i] = s.Symbol
		fields[s.Symbol] = s.Field
		m := make(map[time.Time]float64, len(s.Dates))
		for k, d := range s.Dates {
			day := truncateDay(d)
			m[day] = s.Prices[k]
			daySet[day] = struct{}{}
		}
		byAsset[i] = m
	}

	days := make([]time.Time, 0, len(daySet))
	for d := range daySet {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	prices := make([][]float64, len(days))
	for r, d := range days {
		row := make([]float64, len(series))
		for c, m := range byAsset {
			if v, ok := m[d]; ok {
				row[c] = v
			} else {
				row[c] = math.NaN()
			}
		}
		prices[r] = row
	}

	table, err := riskcalc.NewPriceTable(assets, days, prices)
	if err != nil {
		return nil, err
	}
	table.Fields = fields
	return table, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
