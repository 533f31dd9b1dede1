// Package market supplies daily price tables for the risk pipeline.
package market

import (
	"context"
	"fmt"
	"time"

	"github.com/ajitpratap0/riskdash/pkg/riskcalc"
)

// PriceProvider returns a PriceTable of daily prices for assets over
// [start, end). Columns follow the order of assets.
type PriceProvider interface {
	FetchPrices(ctx context.Context, assets []string, start, end time.Time) (*riskcalc.PriceTable, error)
}

// AssetSeries is the raw daily history of one asset before alignment.
type AssetSeries struct {
	Symbol string
	Dates  []time.Time
	Prices []float64
	Field  riskcalc.PriceField
}

// StaticProvider serves a fixed in-memory table.
type StaticProvider struct {
	table *riskcalc.PriceTable
}

// NewStaticProvider creates a provider backed by table.
func NewStaticProvider(table *riskcalc.PriceTable) *StaticProvider {
	return &StaticProvider{table: table}
}

// FetchPrices selects the requested columns and the rows dated in [start, end).
// A zero start or end leaves that side unbounded.
func (p *StaticProvider) FetchPrices(_ context.Context, assets []string, start, end time.Time) (*riskcalc.PriceTable, error) {
	if p.table == nil {
		return nil, fmt.Errorf("static provider has no price table")
	}

	cols := make([]int, len(assets))
	for i, a := range assets {
		j := p.table.AssetIndex(a)
		if j < 0 {
			return nil, fmt.Errorf("asset %s not available from static provider", a)
		}
		cols[i] = j
	}

	out := &riskcalc.PriceTable{
		Assets: append([]string(nil), assets...),
		Fields: make(map[string]riskcalc.PriceField, len(assets)),
	}
	for _, a := range assets {
		field := riskcalc.FieldAdjClose
		if f, ok := p.table.Fields[a]; ok {
			field = f
		}
		out.Fields[a] = field
	}

	for i, d := range p.table.Dates {
		if !start.IsZero() && d.Before(start) {
			continue
		}
		if !end.IsZero() && !d.Before(end) {
			continue
		}
		row := make([]float64, len(cols))
		for k, j := range cols {
			row[k] = p.table.Prices[i][j]
		}
		out.Dates = append(out.Dates, d)
		out.Prices = append(out.Prices, row)
	}

	return out, nil
}
