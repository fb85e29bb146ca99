// Package marketdata provides daily price sources for the digest.
// It includes the Yahoo Finance chart/spark client and a circuit breaker wrapper.
package marketdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eddiefleurent/portfolio_digest/internal/models"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

const userAgent = "Mozilla/5.0 (compatible; portfolio-digest/1.0)"

// APIError represents an API error with status code and response body
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Status, e.Body)
}

// RateLimits bounds the request rate against the provider.
type RateLimits struct {
	PerMinute int // requests per minute
	Burst     int
}

// DefaultRateLimits keeps well under the public endpoint's throttling.
var DefaultRateLimits = RateLimits{PerMinute: 120, Burst: 5}

// YahooAPI is a client for the Yahoo Finance chart and spark endpoints.
type YahooAPI struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	limits  RateLimits
}

// Ensure YahooAPI implements Source at compile time.
var _ Source = (*YahooAPI)(nil)

// NewYahooAPI creates a client against the public endpoint with default limits.
func NewYahooAPI() *YahooAPI {
	return NewYahooAPIWithBaseURL("", RateLimits{})
}

// NewYahooAPIWithBaseURL creates a client with optional custom baseURL and rate limits.
// The HTTP client carries no timeout unless WithTimeout is used.
func NewYahooAPIWithBaseURL(baseURL string, limits RateLimits) *YahooAPI {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	// Normalize once
	baseURL = strings.TrimRight(baseURL, "/")

	if limits.PerMinute <= 0 {
		limits.PerMinute = DefaultRateLimits.PerMinute
	}
	if limits.Burst <= 0 {
		limits.Burst = DefaultRateLimits.Burst
	}

	return &YahooAPI{
		client:  &http.Client{},
		baseURL: baseURL,
		limiter: rate.NewLimiter(rate.Limit(float64(limits.PerMinute)/60.0), limits.Burst),
		limits:  limits,
	}
}

// WithHTTPClient allows overriding the HTTP client (tests, custom transport).
func (y *YahooAPI) WithHTTPClient(c *http.Client) *YahooAPI {
	if c != nil {
		y.client = c
	}
	return y
}

// WithTimeout sets the HTTP client timeout duration. Zero leaves the
// transport defaults in place.
func (y *YahooAPI) WithTimeout(timeout time.Duration) *YahooAPI {
	if timeout > 0 && y.client != nil {
		y.client.Timeout = timeout
	}
	return y
}

// ============ API Response Structures ============

// Handle single-object vs array responses
type singleOrArray[T any] []T

func (s *singleOrArray[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '[' {
		return json.Unmarshal(b, (*[]T)(s))
	}
	var one T
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*s = append(*s, one)
	return nil
}

// ChartResult is one symbol's bar table.
type ChartResult struct {
	Meta struct {
		Symbol             string  `json:"symbol"`
		Currency           string  `json:"currency"`
		RegularMarketPrice float64 `json:"regularMarketPrice"`
		PreviousClose      float64 `json:"previousClose"`
	} `json:"meta"`
	Timestamps []int64 `json:"timestamp"`
	Indicators struct {
		Quote singleOrArray[QuoteIndicator] `json:"quote"`
	} `json:"indicators"`
}

// QuoteIndicator carries the close column of a chart result; nil entries are
// days without a close.
type QuoteIndicator struct {
	Close []*float64 `json:"close"`
}

// ResponseError is the error object embedded in Yahoo payloads.
type ResponseError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// ChartBody holds chart results or the provider's error.
type ChartBody struct {
	Result singleOrArray[ChartResult] `json:"result"`
	Error  *ResponseError             `json:"error"`
}

// SparkBody holds spark results or the provider's error.
type SparkBody struct {
	Result singleOrArray[SparkItem] `json:"result"`
	Error  *ResponseError           `json:"error"`
}

// ChartResponse is the payload of the single-symbol chart endpoint.
type ChartResponse struct {
	Chart ChartBody `json:"chart"`
}

// SparkItem is one symbol inside a spark payload.
type SparkItem struct {
	Symbol   string                     `json:"symbol"`
	Response singleOrArray[ChartResult] `json:"response"`
}

// batchResponse accepts either the keyed spark shape or a bare chart table.
type batchResponse struct {
	Spark *SparkBody `json:"spark"`
	Chart *ChartBody `json:"chart"`
}

// Series converts the result into bars. Closes without a matching timestamp
// are dropped.
func (r ChartResult) Series() models.Series {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	closes := r.Indicators.Quote[0].Close
	n := len(r.Timestamps)
	if len(closes) < n {
		n = len(closes)
	}
	out := make(models.Series, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Bar{
			Date:  time.Unix(r.Timestamps[i], 0).UTC(),
			Close: closes[i],
		})
	}
	return out
}

// ============ API Methods ============

// DailyBatch retrieves bars for all symbols in one spark request.
func (y *YahooAPI) DailyBatch(ctx context.Context, symbols []string, w Window) (Batch, error) {
	if len(symbols) == 0 {
		return NewKeyedBatch(nil), nil
	}
	params := url.Values{}
	params.Set("symbols", strings.Join(symbols, ","))
	params.Set("range", w.Range)
	params.Set("interval", w.Interval)
	endpoint := y.baseURL + "/v7/finance/spark?" + params.Encode()

	var response batchResponse
	if err := y.makeRequestCtx(ctx, http.MethodGet, endpoint, &response); err != nil {
		return Batch{}, fmt.Errorf("batch history for %d symbols: %w", len(symbols), err)
	}

	switch {
	case response.Spark != nil:
		if e := response.Spark.Error; e != nil {
			return Batch{}, fmt.Errorf("spark: %s: %s", e.Code, e.Description)
		}
		keyed := make(map[string]models.Series, len(response.Spark.Result))
		for _, item := range response.Spark.Result {
			if len(item.Response) == 0 {
				continue
			}
			sym := item.Symbol
			if sym == "" {
				sym = item.Response[0].Meta.Symbol
			}
			keyed[sym] = item.Response[0].Series()
		}
		return NewKeyedBatch(keyed), nil
	case response.Chart != nil:
		if e := response.Chart.Error; e != nil {
			return Batch{}, fmt.Errorf("chart: %s: %s", e.Code, e.Description)
		}
		if len(response.Chart.Result) == 0 {
			return Batch{}, ErrNoData
		}
		if len(symbols) == 1 {
			return NewSingleBatch(response.Chart.Result[0].Series()), nil
		}
		keyed := make(map[string]models.Series, len(response.Chart.Result))
		for _, r := range response.Chart.Result {
			keyed[r.Meta.Symbol] = r.Series()
		}
		return NewKeyedBatch(keyed), nil
	}
	return Batch{}, ErrNoData
}

// DailySeries retrieves bars for one symbol from the chart endpoint.
func (y *YahooAPI) DailySeries(ctx context.Context, symbol string, w Window) (models.Series, error) {
	params := url.Values{}
	params.Set("range", w.Range)
	params.Set("interval", w.Interval)
	endpoint := y.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol) + "?" + params.Encode()

	var response ChartResponse
	if err := y.makeRequestCtx(ctx, http.MethodGet, endpoint, &response); err != nil {
		return nil, fmt.Errorf("history for %s: %w", symbol, err)
	}
	if e := response.Chart.Error; e != nil {
		return nil, fmt.Errorf("history for %s: %s: %s", symbol, e.Code, e.Description)
	}
	if len(response.Chart.Result) == 0 {
		return nil, fmt.Errorf("history for %s: %w", symbol, ErrNoData)
	}
	return response.Chart.Result[0].Series(), nil
}

// makeRequestCtx makes a rate-limited HTTP request and decodes the JSON body.
func (y *YahooAPI) makeRequestCtx(ctx context.Context, method, endpoint string, response interface{}) error {
	if err := y.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Add("Accept", "application/json")
	req.Header.Add("User-Agent", userAgent)

	resp, err := y.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)) // 64KB cap to avoid huge payloads
		if err != nil {
			return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("%s %s -> failed to read error body", method, endpoint)}
		}
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("%s %s -> %s (retry-after: %s)", method, endpoint, string(body), ra)}
		}
		return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("%s %s -> %s", method, endpoint, string(body))}
	}

	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(response); err != nil && err != io.EOF {
		return err
	}
	return nil
}
