// Package watchlist joins fetched prices onto watchlist entries.
package watchlist

import (
	"context"
	"io"
	"sync"

	"github.com/eddiefleurent/portfolio_digest/internal/models"
	"github.com/eddiefleurent/portfolio_digest/internal/util"
	"github.com/sirupsen/logrus"
)

// PriceFetcher resolves price points for a set of symbols. Symbols without
// data are absent from the returned map.
type PriceFetcher interface {
	Fetch(ctx context.Context, symbols []string) map[string]models.PricePoint
}

// Snapshotter builds watchlist snapshots.
type Snapshotter struct {
	fetcher PriceFetcher
	logger  logrus.FieldLogger
}

// NewSnapshotter creates a Snapshotter. A nil logger discards output.
func NewSnapshotter(fetcher PriceFetcher, logger logrus.FieldLogger) *Snapshotter {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Snapshotter{fetcher: fetcher, logger: logger}
}

// FilterActive returns the active entries in their original order.
func FilterActive(entries []models.WatchlistEntry) []models.WatchlistEntry {
	out := make([]models.WatchlistEntry, 0, len(entries))
	for _, e := range entries {
		if e.Active {
			out = append(out, e)
		}
	}
	return out
}

// Snapshot returns one row per entry, in entry order. Prices for all entries
// come from a single fetch. An entry without a price keeps its row with nil
// price fields; entries with an empty symbol are skipped.
func (s *Snapshotter) Snapshot(ctx context.Context, entries []models.WatchlistEntry) []models.SnapshotRow {
	if len(entries) == 0 {
		return []models.SnapshotRow{}
	}

	symbols := make([]string, 0, len(entries))
	notes := make(map[string]string, len(entries))
	for _, e := range entries {
		sym := models.NormalizeSymbol(e.Symbol)
		if sym == "" {
			continue
		}
		symbols = append(symbols, sym)
		if _, seen := notes[sym]; !seen {
			notes[sym] = e.Note
		}
	}

	points := s.fetcher.Fetch(ctx, symbols)

	rows := make([]models.SnapshotRow, 0, len(symbols))
	for _, sym := range symbols {
		row := models.SnapshotRow{Symbol: sym, Note: notes[sym]}
		if p, ok := points[sym]; ok {
			row.Price = models.Float(p.Price)
			row.PrevClose = models.Float(p.PrevClose)
			row.Change, row.ChangePct = util.Change(row.Price, row.PrevClose)
		}
		rows = append(rows, row)
	}

	s.logger.WithFields(logrus.Fields{
		"entries": len(rows),
		"priced":  len(points),
	}).Debug("watchlist snapshot built")
	return rows
}

// Memo computes a snapshot at most once and hands the same rows to every
// caller. One Memo covers one distribution run.
type Memo struct {
	snapshotter *Snapshotter
	entries     []models.WatchlistEntry

	once sync.Once
	rows []models.SnapshotRow
}

// NewMemo binds a snapshotter to the run's watchlist entries.
func NewMemo(s *Snapshotter, entries []models.WatchlistEntry) *Memo {
	return &Memo{snapshotter: s, entries: entries}
}

// Rows returns the run's snapshot, computing it on first use.
func (m *Memo) Rows(ctx context.Context) []models.SnapshotRow {
	m.once.Do(func() {
		m.rows = m.snapshotter.Snapshot(ctx, m.entries)
	})
	return m.rows
}
