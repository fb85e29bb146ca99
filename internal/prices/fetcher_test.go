package prices

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eddiefleurent/portfolio_digest/internal/marketdata"
	"github.com/eddiefleurent/portfolio_digest/internal/metrics"
	"github.com/eddiefleurent/portfolio_digest/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) DailyBatch(ctx context.Context, symbols []string, w marketdata.Window) (marketdata.Batch, error) {
	args := m.Called(ctx, symbols, w)
	return args.Get(0).(marketdata.Batch), args.Error(1)
}

func (m *mockSource) DailySeries(ctx context.Context, symbol string, w marketdata.Window) (models.Series, error) {
	args := m.Called(ctx, symbol, w)
	s, _ := args.Get(0).(models.Series)
	return s, args.Error(1)
}

func day(d int) time.Time { return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC) }

func series(closes ...float64) models.Series {
	out := make(models.Series, 0, len(closes))
	for i, c := range closes {
		out = append(out, models.Bar{Date: day(i + 1), Close: models.Float(c)})
	}
	return out
}

func TestFetch_EmptyInputMakesNoCall(t *testing.T) {
	src := &mockSource{}
	f := NewFetcher(src, marketdata.Window{}, nil, nil)

	got := f.Fetch(context.Background(), []string{"", "   "})

	assert.Empty(t, got)
	src.AssertNotCalled(t, "DailyBatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestFetch_NormalizesAndBatchesOnce(t *testing.T) {
	src := &mockSource{}
	batch := marketdata.NewKeyedBatch(map[string]models.Series{
		"AAPL": series(140, 145, 150),
		"SPY":  series(500, 505),
	})
	src.On("DailyBatch", mock.Anything, []string{"AAPL", "SPY"}, marketdata.DefaultWindow).Return(batch, nil).Once()

	f := NewFetcher(src, marketdata.Window{}, nil, nil)
	got := f.Fetch(context.Background(), []string{" spy", "AAPL", "aapl", ""})

	require.Len(t, got, 2)
	assert.Equal(t, models.PricePoint{Symbol: "AAPL", Price: 150, PrevClose: 145}, got["AAPL"])
	assert.Equal(t, models.PricePoint{Symbol: "SPY", Price: 505, PrevClose: 500}, got["SPY"])
	src.AssertExpectations(t)
	src.AssertNotCalled(t, "DailySeries", mock.Anything, mock.Anything, mock.Anything)
}

func TestFetch_SingleObservationFallbackLaw(t *testing.T) {
	src := &mockSource{}
	src.On("DailyBatch", mock.Anything, []string{"NEW"}, mock.Anything).
		Return(marketdata.NewSingleBatch(series(12.5)), nil)

	got := NewFetcher(src, marketdata.DefaultWindow, nil, nil).Fetch(context.Background(), []string{"new"})

	require.Contains(t, got, "NEW")
	assert.Equal(t, got["NEW"].Price, got["NEW"].PrevClose)
	assert.Equal(t, 12.5, got["NEW"].Price)
}

func TestFetch_MissingClosesDroppedBeforePicking(t *testing.T) {
	src := &mockSource{}
	s := models.Series{
		{Date: day(1), Close: models.Float(10)},
		{Date: day(2), Close: models.Float(11)},
		{Date: day(3), Close: nil},
	}
	src.On("DailyBatch", mock.Anything, []string{"QQQ"}, mock.Anything).
		Return(marketdata.NewKeyedBatch(map[string]models.Series{"QQQ": s}), nil)

	got := NewFetcher(src, marketdata.DefaultWindow, nil, nil).Fetch(context.Background(), []string{"QQQ"})

	assert.Equal(t, models.PricePoint{Symbol: "QQQ", Price: 11, PrevClose: 10}, got["QQQ"])
}

func TestFetch_BatchMissingSymbolRetriesThenOmits(t *testing.T) {
	src := &mockSource{}
	batch := marketdata.NewKeyedBatch(map[string]models.Series{"Y": series(20, 21)})
	src.On("DailyBatch", mock.Anything, []string{"X", "Y"}, mock.Anything).Return(batch, nil)
	src.On("DailySeries", mock.Anything, "X", mock.Anything).Return(nil, errors.New("404")).Once()

	rec := metrics.New()
	f := NewFetcher(src, marketdata.DefaultWindow, nil, rec)
	report := f.FetchWithReport(context.Background(), []string{"X", "Y"})

	require.Len(t, report, 2)
	assert.Equal(t, "X", report[0].Symbol)
	assert.Equal(t, Omitted, report[0].Outcome)
	assert.Error(t, report[0].Err)
	assert.Equal(t, Fetched, report[1].Outcome)

	points := report.Points()
	assert.NotContains(t, points, "X")
	assert.Equal(t, models.PricePoint{Symbol: "Y", Price: 21, PrevClose: 20}, points["Y"])

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.PriceOutcomes.WithLabelValues("omitted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.PriceOutcomes.WithLabelValues("fetched")))
	src.AssertExpectations(t)
}

func TestFetch_BatchErrorRecoveredBySingleRequests(t *testing.T) {
	src := &mockSource{}
	src.On("DailyBatch", mock.Anything, []string{"X", "Y"}, mock.Anything).
		Return(marketdata.Batch{}, errors.New("connection reset"))
	src.On("DailySeries", mock.Anything, "X", mock.Anything).Return(models.Series{}, nil)
	src.On("DailySeries", mock.Anything, "Y", mock.Anything).Return(series(7, 8), nil)

	report := NewFetcher(src, marketdata.DefaultWindow, nil, nil).
		FetchWithReport(context.Background(), []string{"Y", "X"})

	require.Len(t, report, 2)
	assert.Equal(t, Omitted, report[0].Outcome, "empty single-symbol result still omits")
	assert.Equal(t, Retrying, report[1].Outcome)
	assert.Equal(t, models.PricePoint{Symbol: "Y", Price: 8, PrevClose: 7}, report[1].Point)
}

func TestFetch_KeysSubsetOfNormalizedInput(t *testing.T) {
	src := &mockSource{}
	batch := marketdata.NewKeyedBatch(map[string]models.Series{
		"A":     series(1, 2),
		"EXTRA": series(3, 4),
	})
	src.On("DailyBatch", mock.Anything, mock.Anything, mock.Anything).Return(batch, nil)
	src.On("DailySeries", mock.Anything, mock.Anything, mock.Anything).Return(nil, marketdata.ErrNoData)

	input := []string{"a", "b", "B ", "c"}
	got := NewFetcher(src, marketdata.DefaultWindow, nil, nil).Fetch(context.Background(), input)

	allowed := map[string]bool{}
	for _, s := range models.NormalizeSymbols(input) {
		allowed[s] = true
	}
	for k := range got {
		assert.True(t, allowed[k], "unexpected key %q", k)
	}
	assert.Len(t, got, 1)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "fetched", Fetched.String())
	assert.Equal(t, "retrying", Retrying.String())
	assert.Equal(t, "omitted", Omitted.String())
	assert.Equal(t, "unknown", Outcome(9).String())
}
