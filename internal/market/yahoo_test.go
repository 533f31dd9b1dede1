package market

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/riskdash/pkg/riskcalc"
)

const nyOffset = -5 * 3600

func marketOpen(n int) int64 {
	return day(n).Add(14*time.Hour + 30*time.Minute).Unix()
}

func ptr(v float64) *float64 { return &v }

type chartFixture struct {
	timestamps []int64
	close      []*float64
	adjClose   []*float64
}

func (f chartFixture) body() []byte {
	indicators := map[string]interface{}{
		"quote": []map[string]interface{}{{"close": f.close}},
	}
	if f.adjClose != nil {
		indicators["adjclose"] = []map[string]interface{}{{"adjclose": f.adjClose}}
	}
	b, _ := json.Marshal(map[string]interface{}{
		"chart": map[string]interface{}{
			"result": []map[string]interface{}{{
				"meta":       map[string]interface{}{"symbol": "X", "gmtoffset": nyOffset},
				"timestamp":  f.timestamps,
				"indicators": indicators,
			}},
			"error": nil,
		},
	})
	return b
}

func symbolFromPath(path string) string {
	return strings.TrimPrefix(path, "/v8/finance/chart/")
}

func newTestClient(hosts ...string) *YahooClient {
	return NewYahooClient(YahooConfig{
		Scheme:            "http",
		Hosts:             hosts,
		Timeout:           2 * time.Second,
		Retry:             fastRetry(1),
		RequestsPerSecond: 1000,
		Burst:             100,
		UserAgent:         "riskdash-test",
	})
}

func hostOf(s *httptest.Server) string {
	return strings.TrimPrefix(s.URL, "http://")
}

func TestFetchSeriesPrefersAdjustedClose(t *testing.T) {
	var gotUA, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotQuery = r.URL.RawQuery
		w.Write(chartFixture{
			timestamps: []int64{marketOpen(0), marketOpen(1), marketOpen(2)},
			close:      []*float64{ptr(100), ptr(101), ptr(102)},
			adjClose:   []*float64{ptr(99), nil, ptr(101)},
		}.body())
	}))
	defer server.Close()

	client := newTestClient(hostOf(server))
	series, err := client.FetchSeries(context.Background(), "AAPL", day(0), day(3))
	require.NoError(t, err)

	assert.Equal(t, "riskdash-test", gotUA)
	assert.Contains(t, gotQuery, "interval=1d")
	assert.Contains(t, gotQuery, "period1=")
	assert.Equal(t, riskcalc.FieldAdjClose, series.Field)
	assert.Equal(t, []time.Time{day(0), day(1), day(2)}, series.Dates)
	assert.Equal(t, 99.0, series.Prices[0])
	assert.True(t, math.IsNaN(series.Prices[1]))
}

func TestFetchSeriesFallsBackToClose(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(chartFixture{
			timestamps: []int64{marketOpen(0), marketOpen(1)},
			close:      []*float64{ptr(10), ptr(11)},
		}.body())
	}))
	defer server.Close()

	series, err := newTestClient(hostOf(server)).FetchSeries(context.Background(), "BLK", day(0), day(2))
	require.NoError(t, err)

	assert.Equal(t, riskcalc.FieldClose, series.Field)
	assert.Equal(t, []float64{10, 11}, series.Prices)
}

func TestFetchSeriesIntradayDuplicateReplacesDay(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(chartFixture{
			timestamps: []int64{marketOpen(0), marketOpen(1), marketOpen(1) + 3600},
			close:      []*float64{ptr(10), ptr(11), ptr(11.5)},
			adjClose:   []*float64{ptr(10), ptr(11), ptr(11.5)},
		}.body())
	}))
	defer server.Close()

	series, err := newTestClient(hostOf(server)).FetchSeries(context.Background(), "MSFT", day(0), day(2))
	require.NoError(t, err)

	assert.Equal(t, []float64{10, 11.5}, series.Prices)
}

func TestFetchSeriesFailsOverToSecondHost(t *testing.T) {
	var badCalls int32
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&badCalls, 1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(chartFixture{
			timestamps: []int64{marketOpen(0)},
			close:      []*float64{ptr(5)},
			adjClose:   []*float64{ptr(5)},
		}.body())
	}))
	defer good.Close()

	series, err := newTestClient(hostOf(bad), hostOf(good)).FetchSeries(context.Background(), "TSLA", day(0), day(1))
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&badCalls))
	assert.Equal(t, []float64{5}, series.Prices)
}

func TestFetchSeriesErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"not found", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusNotFound)
		}},
		{"chart error", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
		}},
		{"empty result", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"chart":{"result":[],"error":null}}`))
		}},
		{"no prices", func(w http.ResponseWriter, r *http.Request) {
			w.Write(chartFixture{timestamps: []int64{marketOpen(0)}, close: []*float64{nil}}.body())
		}},
		{"html body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>consent</html>"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := newTestClient(hostOf(server)).FetchSeries(context.Background(), "XXX", day(0), day(1))
			assert.Error(t, err)
		})
	}
}

func TestFetchPricesAlignsAssets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch symbolFromPath(r.URL.Path) {
		case "AAA":
			w.Write(chartFixture{
				timestamps: []int64{marketOpen(0), marketOpen(1), marketOpen(2)},
				close:      []*float64{ptr(1), ptr(2), ptr(3)},
				adjClose:   []*float64{ptr(1), ptr(2), ptr(3)},
			}.body())
		case "BBB":
			w.Write(chartFixture{
				timestamps: []int64{marketOpen(0), marketOpen(2)},
				close:      []*float64{ptr(10), ptr(30)},
			}.body())
		default:
			http.Error(w, "unknown", http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newTestClient(hostOf(server))
	table, err := client.FetchPrices(context.Background(), []string{"AAA", "BBB"}, day(0), day(3))
	require.NoError(t, err)

	assert.Equal(t, []string{"AAA", "BBB"}, table.Assets)
	assert.Equal(t, 3, table.Len())
	assert.True(t, math.IsNaN(table.Prices[1][1]))
	assert.Equal(t, []string{"BBB"}, table.CloseFallbacks())

	_, err = client.FetchPrices(context.Background(), []string{"AAA", "ZZZ"}, day(0), day(3))
	assert.Error(t, err)

	_, err = client.FetchPrices(context.Background(), nil, day(0), day(3))
	assert.Error(t, err)
}

func TestNewYahooClientDefaults(t *testing.T) {
	client := NewYahooClient(YahooConfig{Retry: RetryConfig{MaxRetries: 5}})

	assert.Equal(t, "https", client.cfg.Scheme)
	assert.Len(t, client.cfg.Hosts, 2)
	assert.Equal(t, 10*time.Second, client.cfg.Timeout)
	assert.Equal(t, 5, client.cfg.Retry.MaxRetries)
	assert.Equal(t, DefaultRetryConfig().InitialBackoff, client.cfg.Retry.InitialBackoff)
}
