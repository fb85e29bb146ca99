package storage

import (
	"github.com/eddiefleurent/portfolio_digest/internal/models"
)

// Interface defines the contract for the report's file-backed inputs and the
// watchlist it maintains.
//
// Missing files are not errors: loaders return an empty feed or a placeholder
// text so a report can still be built. Errors mean a file exists but could not
// be read or parsed.
//
// Implementations must be safe for concurrent use.
type Interface interface {
	// Portfolio feeds
	LoadPositions() (models.Positions, error)
	LoadTrades() (models.Table, error)

	// Free-text artifacts
	LoadSummary() (string, error)
	LoadLatestAnalysis() (string, error)

	// Watchlist
	LoadWatchlist() ([]models.WatchlistEntry, error)
	UpsertWatchlist(entry models.WatchlistEntry) error
}

// Ensure FileStorage implements Interface
var _ Interface = (*FileStorage)(nil)

// Ensure MockStorage implements Interface
var _ Interface = (*MockStorage)(nil)
