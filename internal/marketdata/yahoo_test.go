package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const sparkPayload = `{
  "spark": {
    "result": [
      {"symbol": "AAPL", "response": [{
        "meta": {"symbol": "AAPL", "currency": "USD"},
        "timestamp": [1741003800, 1741090200, 1741176600],
        "indicators": {"quote": [{"close": [140.0, 145.0, 150.0]}]}
      }]},
      {"symbol": "QQQ", "response": [{
        "meta": {"symbol": "QQQ"},
        "timestamp": [1741003800, 1741090200],
        "indicators": {"quote": [{"close": [480.5, null]}]}
      }]}
    ],
    "error": null
  }
}`

const chartPayload = `{
  "chart": {
    "result": [{
      "meta": {"symbol": "TQQQ"},
      "timestamp": [1741003800, 1741090200],
      "indicators": {"quote": [{"close": [44.12, 45.67]}]}
    }],
    "error": null
  }
}`

func TestAPIError_Error(t *testing.T) {
	err := &APIError{Status: 429, Body: "too many requests"}
	want := "API error 429: too many requests"
	if got := err.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestNewYahooAPIWithBaseURL_DefaultsAndNormalization(t *testing.T) {
	tests := []struct {
		name        string
		baseURL     string
		limits      RateLimits
		wantBaseURL string
		wantLimits  RateLimits
	}{
		{
			name:        "default baseURL and limits",
			wantBaseURL: "https://query1.finance.yahoo.com",
			wantLimits:  DefaultRateLimits,
		},
		{
			name:        "custom baseURL preserved and trimmed",
			baseURL:     "https://example.test/api/",
			wantBaseURL: "https://example.test/api",
			wantLimits:  DefaultRateLimits,
		},
		{
			name:        "custom limits override",
			limits:      RateLimits{PerMinute: 30, Burst: 1},
			wantBaseURL: "https://query1.finance.yahoo.com",
			wantLimits:  RateLimits{PerMinute: 30, Burst: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := NewYahooAPIWithBaseURL(tt.baseURL, tt.limits)
			if api.baseURL != tt.wantBaseURL {
				t.Fatalf("baseURL = %q, want %q", api.baseURL, tt.wantBaseURL)
			}
			if api.limits != tt.wantLimits {
				t.Fatalf("limits = %+v, want %+v", api.limits, tt.wantLimits)
			}
			if api.client.Timeout != 0 {
				t.Fatalf("timeout = %v, want transport default", api.client.Timeout)
			}
		})
	}
}

func newTestAPI(t *testing.T, handler http.HandlerFunc) *YahooAPI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewYahooAPIWithBaseURL(srv.URL, RateLimits{PerMinute: 6000, Burst: 100})
}

func TestDailyBatch_KeyedSpark(t *testing.T) {
	var gotQuery string
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v7/finance/spark" {
			t.Errorf("path = %s, want /v7/finance/spark", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sparkPayload))
	})

	batch, err := api.DailyBatch(context.Background(), []string{"AAPL", "QQQ"}, DefaultWindow)
	if err != nil {
		t.Fatalf("DailyBatch error: %v", err)
	}
	for _, want := range []string{"symbols=AAPL%2CQQQ", "range=5d", "interval=1d"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}

	aapl, err := batch.Series("AAPL")
	if err != nil {
		t.Fatalf("Series(AAPL): %v", err)
	}
	if len(aapl) != 3 || *aapl[2].Close != 150.0 {
		t.Fatalf("AAPL series = %+v", aapl)
	}

	qqq, err := batch.Series("qqq")
	if err != nil {
		t.Fatalf("Series(qqq): %v", err)
	}
	if len(qqq) != 2 || qqq[1].Close != nil {
		t.Fatalf("QQQ second close should be missing, got %+v", qqq)
	}

	if _, err := batch.Series("MSFT"); !errors.Is(err, ErrSymbolNotInBatch) {
		t.Fatalf("Series(MSFT) err = %v, want ErrSymbolNotInBatch", err)
	}
}

func TestDailyBatch_BareChartForSingleSymbol(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chartPayload))
	})

	batch, err := api.DailyBatch(context.Background(), []string{"TQQQ"}, DefaultWindow)
	if err != nil {
		t.Fatalf("DailyBatch error: %v", err)
	}
	s, err := batch.Series("TQQQ")
	if err != nil {
		t.Fatalf("Series: %v", err)
	}
	if len(s) != 2 || *s[1].Close != 45.67 {
		t.Fatalf("series = %+v", s)
	}
}

func TestDailyBatch_HTTPErrorIsAPIError(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})

	_, err := api.DailyBatch(context.Background(), []string{"AAPL"}, DefaultWindow)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusTooManyRequests {
		t.Fatalf("status = %d", apiErr.Status)
	}
	if !strings.Contains(apiErr.Body, "retry-after: 30") {
		t.Fatalf("body = %q, want retry-after hint", apiErr.Body)
	}
}

func TestDailyBatch_ProviderErrorObject(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"spark":{"result":null,"error":{"code":"Bad Request","description":"Missing value for the \"symbols\" argument"}}}`))
	})

	_, err := api.DailyBatch(context.Background(), []string{"AAPL"}, DefaultWindow)
	if err == nil || !strings.Contains(err.Error(), "Bad Request") {
		t.Fatalf("err = %v, want provider error", err)
	}
}

func TestDailyBatch_EmptySymbolsNoRequest(t *testing.T) {
	called := false
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	if _, err := api.DailyBatch(context.Background(), nil, DefaultWindow); err != nil {
		t.Fatalf("DailyBatch(nil) error: %v", err)
	}
	if called {
		t.Fatal("no request expected for empty symbol list")
	}
}

func TestDailySeries(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v8/finance/chart/TQQQ" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(chartPayload))
	})

	s, err := api.DailySeries(context.Background(), "TQQQ", DefaultWindow)
	if err != nil {
		t.Fatalf("DailySeries error: %v", err)
	}
	if len(s) != 2 || *s[0].Close != 44.12 {
		t.Fatalf("series = %+v", s)
	}
}

func TestDailySeries_NotFound(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	})

	_, err := api.DailySeries(context.Background(), "ZZZZ", DefaultWindow)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Fatalf("err = %v, want 404 APIError", err)
	}
}

func TestDailySeries_EmptyResult(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":[],"error":null}}`))
	})

	_, err := api.DailySeries(context.Background(), "AAPL", DefaultWindow)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestSingleOrArray(t *testing.T) {
	var arr singleOrArray[SparkItem]
	if err := json.Unmarshal([]byte(`{"symbol":"A"}`), &arr); err != nil {
		t.Fatalf("object: %v", err)
	}
	if len(arr) != 1 || arr[0].Symbol != "A" {
		t.Fatalf("object decoded to %+v", arr)
	}

	arr = nil
	if err := json.Unmarshal([]byte(`[{"symbol":"A"},{"symbol":"B"}]`), &arr); err != nil {
		t.Fatalf("array: %v", err)
	}
	if len(arr) != 2 {
		t.Fatalf("array decoded to %+v", arr)
	}

	arr = nil
	if err := json.Unmarshal([]byte(`null`), &arr); err != nil || len(arr) != 0 {
		t.Fatalf("null decoded to %+v, %v", arr, err)
	}
}
