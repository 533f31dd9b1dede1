package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/riskdash/pkg/riskcalc"
)

// LoadCSV reads a price table with a header row "date,<asset>,<asset>..."
// and one row per day. Empty cells become NaN.
func LoadCSV(r io.Reader) (*riskcalc.PriceTable, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("csv header needs a date column and at least one asset")
	}
	assets := header[1:]

	var dates []time.Time
	var prices [][]float64
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}

		d, err := time.Parse(time.DateOnly, strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid date %q", line, rec[0])
		}

		row := make([]float64, len(assets))
		for j := range assets {
			cell := strings.TrimSpace(rec[j+1])
			if cell == "" {
				row[j] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid price %q for %s", line, cell, assets[j])
			}
			row[j] = v
		}
		dates = append(dates, d)
		prices = append(prices, row)
	}

	return riskcalc.NewPriceTable(assets, dates, prices)
}

// LoadCSVFile opens path and reads it with LoadCSV.
func LoadCSVFile(path string) (*riskcalc.PriceTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open price file: %w", err)
	}
	defer f.Close()
	return LoadCSV(f)
}
