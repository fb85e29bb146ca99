package marketdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/eddiefleurent/portfolio_digest/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// ErrNoData is returned when the source answered but carried no bars.
var ErrNoData = errors.New("no price data")

// ErrSymbolNotInBatch is returned when a batch result has no table for a symbol.
var ErrSymbolNotInBatch = errors.New("symbol not in batch result")

// Window is the trailing history requested from a source.
type Window struct {
	Range    string // e.g. "5d"
	Interval string // e.g. "1d"
}

// DefaultWindow is five daily bars, enough to see two trading days whenever
// the market has been open during the week.
var DefaultWindow = Window{Range: "5d", Interval: "1d"}

// Source retrieves daily bars.
type Source interface {
	// DailyBatch fetches all symbols in one request.
	DailyBatch(ctx context.Context, symbols []string, w Window) (Batch, error)
	// DailySeries fetches one symbol.
	DailySeries(ctx context.Context, symbol string, w Window) (models.Series, error)
}

// Batch is the result of a batched retrieval. Providers answer either with a
// table per symbol or, when one symbol was requested, with a single bare
// table; both shapes are held here.
type Batch struct {
	keyed  map[string]models.Series
	single models.Series
	bare   bool
}

// NewKeyedBatch builds a batch keyed by symbol.
func NewKeyedBatch(bySymbol map[string]models.Series) Batch {
	keyed := make(map[string]models.Series, len(bySymbol))
	for sym, s := range bySymbol {
		keyed[models.NormalizeSymbol(sym)] = s
	}
	return Batch{keyed: keyed}
}

// NewSingleBatch builds a batch from a bare table. It answers for whichever
// symbol is asked, so it must only be used when exactly one was requested.
func NewSingleBatch(s models.Series) Batch {
	return Batch{single: s, bare: true}
}

// Series extracts the table for symbol.
func (b Batch) Series(symbol string) (models.Series, error) {
	if b.bare {
		return b.single, nil
	}
	s, ok := b.keyed[models.NormalizeSymbol(symbol)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, ErrSymbolNotInBatch)
	}
	return s, nil
}

// CircuitBreakerSource wraps a Source with circuit breaker functionality
type CircuitBreakerSource struct {
	source  Source
	breaker *gobreaker.CircuitBreaker
}

// Ensure CircuitBreakerSource implements Source at compile time.
var _ Source = (*CircuitBreakerSource)(nil)

// CircuitBreakerSettings configures circuit breaker behavior
type CircuitBreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// DefaultCircuitBreakerSettings trips after a clear majority of failures.
var DefaultCircuitBreakerSettings = CircuitBreakerSettings{
	MaxRequests:  3,
	Interval:     60 * time.Second,
	Timeout:      30 * time.Second,
	MinRequests:  5,
	FailureRatio: 0.6,
}

// execCircuitBreaker is a generic helper for circuit breaker wrapper methods
func execCircuitBreaker[T any](
	breaker *gobreaker.CircuitBreaker,
	source Source,
	fn func(Source) (T, error),
) (T, error) {
	var zero T
	res, err := breaker.Execute(func() (interface{}, error) { return fn(source) })
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, errors.New("circuit breaker: type assertion failed")
	}
	return v, nil
}

// NewCircuitBreakerSource creates a CircuitBreakerSource with default settings.
func NewCircuitBreakerSource(source Source, logger logrus.FieldLogger) *CircuitBreakerSource {
	return NewCircuitBreakerSourceWithSettings(source, DefaultCircuitBreakerSettings, logger)
}

// NewCircuitBreakerSourceWithSettings creates a CircuitBreakerSource with custom settings.
func NewCircuitBreakerSourceWithSettings(
	source Source,
	settings CircuitBreakerSettings,
	logger logrus.FieldLogger,
) *CircuitBreakerSource {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	gbSettings := gobreaker.Settings{
		Name:        "MarketDataCircuitBreaker",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	}

	return &CircuitBreakerSource{
		source:  source,
		breaker: gobreaker.NewCircuitBreaker(gbSettings),
	}
}

// DailyBatch wraps the underlying source call with circuit breaker
func (c *CircuitBreakerSource) DailyBatch(ctx context.Context, symbols []string, w Window) (Batch, error) {
	return execCircuitBreaker(c.breaker, c.source, func(s Source) (Batch, error) {
		return s.DailyBatch(ctx, symbols, w)
	})
}

// DailySeries wraps the underlying source call with circuit breaker
func (c *CircuitBreakerSource) DailySeries(ctx context.Context, symbol string, w Window) (models.Series, error) {
	return execCircuitBreaker(c.breaker, c.source, func(s Source) (models.Series, error) {
		return s.DailySeries(ctx, symbol, w)
	})
}
