package market

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `date,AAA,BBB
2024-01-01,100,50
2024-01-02,101,
2024-01-03, 102.5 ,51
`

func TestLoadCSV(t *testing.T) {
	table, err := LoadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	assert.Equal(t, []string{"AAA", "BBB"}, table.Assets)
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, day(0), table.Dates[0])
	assert.Equal(t, 102.5, table.Prices[2][0])
	assert.True(t, math.IsNaN(table.Prices[1][1]))
}

func TestLoadCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"no assets", "date\n2024-01-01\n"},
		{"bad date", "date,AAA\n01/02/2024,1\n"},
		{"bad price", "date,AAA\n2024-01-01,abc\n"},
		{"ragged", "date,AAA,BBB\n2024-01-01,1\n"},
		{"unsorted", "date,AAA\n2024-01-02,1\n2024-01-01,2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCSV(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestLoadCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))

	table, err := LoadCSVFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())

	_, err = LoadCSVFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
