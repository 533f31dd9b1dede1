package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ajitpratap0/riskdash/internal/metrics"
	"github.com/ajitpratap0/riskdash/pkg/riskcalc"
)

// Circuit breaker thresholds for the Yahoo chart API
const (
	YahooMinRequests     = 5
	YahooFailureRatio    = 0.6
	YahooOpenTimeout     = 30 * time.Second
	YahooHalfOpenMaxReqs = 2
	YahooCountInterval   = time.Minute

	maxConcurrentFetches = 4
	previewLength        = 120
)

// YahooConfig configures the Yahoo Finance client
type YahooConfig struct {
	Scheme            string // https unless testing against a local server
	Hosts             []string
	Timeout           time.Duration
	Retry             RetryConfig
	RequestsPerSecond float64
	Burst             int
	UserAgent         string
}

// YahooClient fetches daily history from the Yahoo Finance v8 chart API
type YahooClient struct {
	httpClient *http.Client
	cfg        YahooConfig
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

// NewYahooClient creates a client with rate limiting and a circuit breaker
func NewYahooClient(cfg YahooConfig) *YahooClient {
	if cfg.Scheme == "" {
		cfg.Scheme = "https"
	}
	if len(cfg.Hosts) == 0 {
		cfg.Hosts = []string{"query1.finance.yahoo.com", "query2.finance.yahoo.com"}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.Retry.InitialBackoff == 0 {
		retry := DefaultRetryConfig()
		retry.MaxRetries = cfg.Retry.MaxRetries
		cfg.Retry = retry
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "yahoo",
		MaxRequests: YahooHalfOpenMaxReqs,
		Interval:    YahooCountInterval,
		Timeout:     YahooOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= YahooMinRequests && failureRatio >= YahooFailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Market data circuit breaker state changed")
			metrics.SetCircuitBreakerState(name, int(to))
		},
	})

	return &YahooClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker:    breaker,
	}
}

// FetchPrices fetches every asset concurrently and aligns them into one table
func (c *YahooClient) FetchPrices(ctx context.Context, assets []string, start, end time.Time) (*riskcalc.PriceTable, error) {
	if len(assets) == 0 {
		return nil, fmt.Errorf("no assets requested")
	}

	series := make([]AssetSeries, len(assets))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for i, symbol := range assets {
		g.Go(func() error {
			s, err := c.FetchSeries(gctx, symbol, start, end)
			if err != nil {
				return fmt.Errorf("failed to fetch %s: %w", symbol, err)
			}
			mu.Lock()
			series[i] = *s
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	table, err := AlignPrices(series)
	if err != nil {
		return nil, fmt.Errorf("failed to align prices: %w", err)
	}

	log.Info().
		Int("assets", len(assets)).
		Int("rows", table.Len()).
		Strs("close_fallback", table.CloseFallbacks()).
		Msg("Fetched price history from Yahoo Finance")

	return table, nil
}

// FetchSeries fetches daily prices for one symbol, preferring adjusted
// closes and falling back to raw closes when none are published.
func (c *YahooClient) FetchSeries(ctx context.Context, symbol string, start, end time.Time) (*AssetSeries, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		var resp *chartResponse
		err := WithRetry(ctx, c.cfg.Retry, func() error {
			var err error
			resp, err = c.fetchChart(ctx, symbol, start, end)
			return err
		})
		return resp, err
	})
	if err != nil {
		metrics.RecordMarketDataRequest("error")
		return nil, err
	}
	metrics.RecordMarketDataRequest("success")

	return parseChart(symbol, result.(*chartResponse))
}

// fetchChart tries each host once
func (c *YahooClient) fetchChart(ctx context.Context, symbol string, start, end time.Time) (*chartResponse, error) {
	var lastErr error
	for _, host := range c.cfg.Hosts {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := c.fetchFromHost(ctx, host, symbol, start, end)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *YahooClient) fetchFromHost(ctx context.Context, host, symbol string, start, end time.Time) (*chartResponse, error) {
	u := fmt.Sprintf("%s://%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d&events=div,splits",
		c.cfg.Scheme, host, url.PathEscape(symbol), start.Unix(), end.Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read yahoo response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Host: host, StatusCode: resp.StatusCode, Preview: preview(body)}
	}
	if strings.HasPrefix(string(body), "<") || strings.HasPrefix(string(body), "Edge:") {
		return nil, fmt.Errorf("yahoo returned non-json body: %s", preview(body))
	}

	var cr chartResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, fmt.Errorf("failed to parse yahoo json: %w; body: %s", err, preview(body))
	}
	if cr.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart error for %s: %s: %s", symbol, cr.Chart.Error.Code, cr.Chart.Error.Description)
	}
	return &cr, nil
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > previewLength {
		s = s[:previewLength]
	}
	return s
}

// ============================================================================
// CHART RESPONSE
// ============================================================================

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		GMTOffset int64  `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

var errNoData = errors.New("no data")

func parseChart(symbol string, cr *chartResponse) (*AssetSeries, error) {
	if cr == nil || len(cr.Chart.Result) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, errNoData)
	}
	res := cr.Chart.Result[0]
	if len(res.Timestamp) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, errNoData)
	}

	var values []*float64
	field := riskcalc.FieldAdjClose
	if len(res.Indicators.AdjClose) > 0 && usable(res.Indicators.AdjClose[0].AdjClose, len(res.Timestamp)) {
		values = res.Indicators.AdjClose[0].AdjClose
	} else if len(res.Indicators.Quote) > 0 && usable(res.Indicators.Quote[0].Close, len(res.Timestamp)) {
		values = res.Indicators.Quote[0].Close
		field = riskcalc.FieldClose
		log.Warn().
			Str("symbol", symbol).
			Msg("Adjusted close not available, using close instead")
	} else {
		return nil, fmt.Errorf("%s: no close prices in response: %w", symbol, errNoData)
	}

	series := &AssetSeries{Symbol: symbol, Field: field}
	index := make(map[time.Time]int, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		day := truncateDay(time.Unix(ts+res.Meta.GMTOffset, 0).UTC())
		price := math.NaN()
		if values[i] != nil {
			price = *values[i]
		}
		// Yahoo may append an intraday row for the current session
		if k, dup := index[day]; dup {
			series.Prices[k] = price
			continue
		}
		index[day] = len(series.Dates)
		series.Dates = append(series.Dates, day)
		series.Prices = append(series.Prices, price)
	}

	return series, nil
}

func usable(values []*float64, n int) bool {
	if len(values) != n {
		return false
	}
	for _, v := range values {
		if v != nil {
			return true
		}
	}
	return false
}
