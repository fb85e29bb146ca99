package storage

import (
	"sync"

	"github.com/eddiefleurent/portfolio_digest/internal/models"
)

// MockStorage implements Interface in memory for testing
type MockStorage struct {
	mu sync.Mutex

	Positions models.Positions
	Trades    models.Table
	Summary   string
	Analysis  string
	Watchlist []models.WatchlistEntry

	// Errors returned by the matching loader when set
	PositionsErr error
	TradesErr    error
	SummaryErr   error
	AnalysisErr  error
	WatchlistErr error
	UpsertErr    error

	upsertCallCount int
}

// NewMockStorage creates a mock storage seeded with the placeholder texts
func NewMockStorage() *MockStorage {
	return &MockStorage{
		Summary:  SummaryPlaceholder,
		Analysis: AnalysisPlaceholder,
	}
}

func (m *MockStorage) LoadPositions() (models.Positions, error) {
	return m.Positions, m.PositionsErr
}

func (m *MockStorage) LoadTrades() (models.Table, error) {
	return m.Trades, m.TradesErr
}

func (m *MockStorage) LoadSummary() (string, error) {
	return m.Summary, m.SummaryErr
}

func (m *MockStorage) LoadLatestAnalysis() (string, error) {
	return m.Analysis, m.AnalysisErr
}

func (m *MockStorage) LoadWatchlist() ([]models.WatchlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WatchlistErr != nil {
		return nil, m.WatchlistErr
	}
	out := make([]models.WatchlistEntry, len(m.Watchlist))
	copy(out, m.Watchlist)
	return out, nil
}

func (m *MockStorage) UpsertWatchlist(entry models.WatchlistEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCallCount++
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	entry.Symbol = models.NormalizeSymbol(entry.Symbol)
	if entry.Symbol == "" {
		return ErrEmptySymbol
	}
	for i := range m.Watchlist {
		if m.Watchlist[i].Symbol == entry.Symbol {
			m.Watchlist[i] = entry
			return nil
		}
	}
	m.Watchlist = append(m.Watchlist, entry)
	return nil
}

// UpsertCallCount returns the number of UpsertWatchlist calls
func (m *MockStorage) UpsertCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertCallCount
}
