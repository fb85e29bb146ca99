// Package prices resolves latest and previous closes for a set of symbols.
//
// Retrieval is best effort: one batched request is attempted for all
// symbols, any symbol the batch could not answer is retried once on its own,
// and symbols that still have no data are omitted from the result.
package prices

import (
	"context"
	"io"

	"github.com/eddiefleurent/portfolio_digest/internal/marketdata"
	"github.com/eddiefleurent/portfolio_digest/internal/metrics"
	"github.com/eddiefleurent/portfolio_digest/internal/models"
	"github.com/sirupsen/logrus"
)

// Outcome is the per-symbol state of one fetch.
type Outcome int

const (
	// Fetched means the batch answered for the symbol.
	Fetched Outcome = iota
	// Retrying means the batch failed for the symbol and a single-symbol
	// request is (or was) made. A symbol that ends a fetch in this state
	// was recovered by that request.
	Retrying
	// Omitted means neither request produced data; the symbol is absent
	// from the result.
	Omitted
)

func (o Outcome) String() string {
	switch o {
	case Fetched:
		return "fetched"
	case Retrying:
		return "retrying"
	case Omitted:
		return "omitted"
	default:
		return "unknown"
	}
}

// Result is the outcome of one symbol. Err is the last retrieval error seen,
// if any.
type Result struct {
	Symbol string
	Outcome
	Point models.PricePoint
	Err   error
}

// Report lists every normalized input symbol with its outcome, in sorted order.
type Report []Result

// Points returns the price map for the symbols that resolved.
func (r Report) Points() map[string]models.PricePoint {
	out := make(map[string]models.PricePoint, len(r))
	for _, res := range r {
		if res.Outcome == Omitted {
			continue
		}
		out[res.Symbol] = res.Point
	}
	return out
}

// Fetcher resolves price points through a marketdata.Source.
type Fetcher struct {
	source  marketdata.Source
	window  marketdata.Window
	logger  logrus.FieldLogger
	metrics *metrics.Recorder
}

// NewFetcher creates a Fetcher. A zero window falls back to
// marketdata.DefaultWindow; nil logger and recorder are allowed.
func NewFetcher(source marketdata.Source, window marketdata.Window, logger logrus.FieldLogger, rec *metrics.Recorder) *Fetcher {
	if window.Range == "" {
		window.Range = marketdata.DefaultWindow.Range
	}
	if window.Interval == "" {
		window.Interval = marketdata.DefaultWindow.Interval
	}
	// Guard against nil logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Fetcher{
		source:  source,
		window:  window,
		logger:  logger,
		metrics: rec,
	}
}

// Fetch returns the latest close and previous close for each symbol that
// could be resolved. It never fails; unresolved symbols are simply absent.
func (f *Fetcher) Fetch(ctx context.Context, symbols []string) map[string]models.PricePoint {
	return f.FetchWithReport(ctx, symbols).Points()
}

// FetchWithReport is Fetch with the per-symbol outcomes kept.
func (f *Fetcher) FetchWithReport(ctx context.Context, symbols []string) Report {
	syms := models.NormalizeSymbols(symbols)
	if len(syms) == 0 {
		return Report{}
	}

	batch, batchErr := f.source.DailyBatch(ctx, syms, f.window)
	if batchErr != nil {
		f.logger.WithError(batchErr).WithField("symbols", len(syms)).
			Info("batch price request failed; falling back to single-symbol requests")
	}

	report := make(Report, 0, len(syms))
	for _, sym := range syms {
		res := Result{Symbol: sym, Outcome: Fetched}

		var series models.Series
		err := batchErr
		if err == nil {
			series, err = batch.Series(sym)
		}
		point, ok := series.Clean().PricePoint(sym)

		if err != nil || !ok {
			res.Outcome = Retrying
			res.Err = err
			f.logger.WithFields(logrus.Fields{
				"symbol":  sym,
				"outcome": res.Outcome.String(),
			}).Debug("batch had no usable bars; requesting symbol on its own")

			single, serr := f.source.DailySeries(ctx, sym, f.window)
			if serr != nil {
				res.Err = serr
			}
			point, ok = single.Clean().PricePoint(sym)
			if serr != nil || !ok {
				res.Outcome = Omitted
			}
		}

		if res.Outcome == Omitted {
			entry := f.logger.WithFields(logrus.Fields{
				"symbol":  sym,
				"outcome": res.Outcome.String(),
			})
			if res.Err != nil {
				entry = entry.WithError(res.Err)
			}
			entry.Warn("no price data; symbol omitted")
		} else {
			res.Point = point
		}
		f.metrics.PriceOutcome(res.Outcome.String())
		report = append(report, res)
	}
	return report
}
