// Package mock provides a deterministic offline price source.
package mock

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/eddiefleurent/portfolio_digest/internal/marketdata"
	"github.com/eddiefleurent/portfolio_digest/internal/models"
)

// DataProvider serves synthetic daily bars. The same symbol and as-of date
// always produce the same series.
type DataProvider struct {
	asOf        time.Time
	unavailable map[string]bool
}

// Ensure DataProvider implements marketdata.Source at compile time.
var _ marketdata.Source = (*DataProvider)(nil)

// NewDataProvider creates a provider whose last bar falls on the most recent
// weekday at or before asOf. Symbols listed in unavailable never have data.
func NewDataProvider(asOf time.Time, unavailable ...string) *DataProvider {
	if asOf.IsZero() {
		asOf = time.Now()
	}
	d := &DataProvider{
		asOf:        time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC),
		unavailable: make(map[string]bool, len(unavailable)),
	}
	for _, s := range unavailable {
		d.unavailable[models.NormalizeSymbol(s)] = true
	}
	return d
}

// DailyBatch returns a keyed batch with every available symbol.
func (d *DataProvider) DailyBatch(ctx context.Context, symbols []string, w marketdata.Window) (marketdata.Batch, error) {
	if err := ctx.Err(); err != nil {
		return marketdata.Batch{}, err
	}
	bars, err := barsForRange(w.Range)
	if err != nil {
		return marketdata.Batch{}, err
	}
	keyed := make(map[string]models.Series, len(symbols))
	for _, s := range symbols {
		sym := models.NormalizeSymbol(s)
		if sym == "" || d.unavailable[sym] {
			continue
		}
		keyed[sym] = d.series(sym, bars)
	}
	return marketdata.NewKeyedBatch(keyed), nil
}

// DailySeries returns one symbol's bars.
func (d *DataProvider) DailySeries(ctx context.Context, symbol string, w marketdata.Window) (models.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sym := models.NormalizeSymbol(symbol)
	if d.unavailable[sym] {
		return nil, fmt.Errorf("%s: %w", sym, marketdata.ErrNoData)
	}
	bars, err := barsForRange(w.Range)
	if err != nil {
		return nil, err
	}
	return d.series(sym, bars), nil
}

// series walks a price from a symbol-specific base. Each step moves at most
// two percent.
func (d *DataProvider) series(symbol string, bars int) models.Series {
	seed := hash(symbol)
	price := 20 + float64(seed%48000)/100 // 20.00 to 499.99

	days := tradingDays(d.asOf, bars)
	out := make(models.Series, 0, len(days))
	for i, day := range days {
		if i > 0 {
			step := float64(hash(symbol+day.Format("20060102"))%401)/100 - 2 // -2.00 to +2.00 percent
			price *= 1 + step/100
		}
		out = append(out, models.Bar{Date: day, Close: models.Float(math.Round(price*100) / 100)})
	}
	return out
}

func hash(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// tradingDays returns n weekdays ending at or before end, oldest first.
func tradingDays(end time.Time, n int) []time.Time {
	days := make([]time.Time, n)
	day := end
	for i := n - 1; i >= 0; {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days[i] = day
			i--
		}
		day = day.AddDate(0, 0, -1)
	}
	return days
}

// barsForRange maps a range like "5d" to a bar count.
func barsForRange(r string) (int, error) {
	if r == "" {
		r = marketdata.DefaultWindow.Range
	}
	n, err := strconv.Atoi(strings.TrimSuffix(r, "d"))
	if err != nil || n <= 0 || !strings.HasSuffix(r, "d") {
		return 0, fmt.Errorf("unsupported range %q", r)
	}
	return n, nil
}
