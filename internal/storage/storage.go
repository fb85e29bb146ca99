// Package storage reads the report's inputs from disk and maintains the
// watchlist file.
package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/eddiefleurent/portfolio_digest/internal/models"
)

// Placeholder texts returned when an artifact does not exist.
const (
	SummaryPlaceholder  = "(no daily summary found; run the daily step first)"
	AnalysisPlaceholder = "(no custom analysis found)"
)

// Paths locates the input files.
type Paths struct {
	Positions    string
	Trades       string
	Summary      string
	AnalysisGlob string
	Watchlist    string
}

// DefaultPaths mirrors the layout the daily job writes.
var DefaultPaths = Paths{
	Positions:    "reports/positions_latest.csv",
	Trades:       "reports/trades.csv",
	Summary:      "reports/daily_summary.txt",
	AnalysisGlob: "reports/analysis_*.txt",
	Watchlist:    "data/watchlist.csv",
}

// FileStorage reads CSV and text artifacts from disk.
type FileStorage struct {
	mu    sync.RWMutex
	paths Paths
}

// NewFileStorage creates a FileStorage. Empty paths fall back to DefaultPaths.
func NewFileStorage(paths Paths) *FileStorage {
	if paths.Positions == "" {
		paths.Positions = DefaultPaths.Positions
	}
	if paths.Trades == "" {
		paths.Trades = DefaultPaths.Trades
	}
	if paths.Summary == "" {
		paths.Summary = DefaultPaths.Summary
	}
	if paths.AnalysisGlob == "" {
		paths.AnalysisGlob = DefaultPaths.AnalysisGlob
	}
	if paths.Watchlist == "" {
		paths.Watchlist = DefaultPaths.Watchlist
	}
	return &FileStorage{paths: paths}
}

// Paths returns the resolved input locations.
func (s *FileStorage) Paths() Paths {
	return s.paths
}

// LoadPositions reads the positions CSV. Known columns are mapped onto
// PositionRow; unknown columns are ignored and missing ones stay nil.
func (s *FileStorage) LoadPositions() (models.Positions, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	table, err := readCSV(s.paths.Positions)
	if err != nil {
		return models.Positions{}, err
	}
	if len(table.Columns) == 0 {
		return models.Positions{}, nil
	}
	pos, err := positionsFromTable(table)
	if err != nil {
		return models.Positions{}, fmt.Errorf("positions %s: %w", s.paths.Positions, err)
	}
	return pos, nil
}

// LoadTrades reads the trades CSV as an untyped table.
func (s *FileStorage) LoadTrades() (models.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return readCSV(s.paths.Trades)
}

// LoadSummary returns the daily summary, or SummaryPlaceholder if there is none.
func (s *FileStorage) LoadSummary() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.paths.Summary)
	if errors.Is(err, fs.ErrNotExist) {
		return SummaryPlaceholder, nil
	}
	if err != nil {
		return SummaryPlaceholder, fmt.Errorf("reading summary: %w", err)
	}
	return string(data), nil
}

// LoadLatestAnalysis returns the lexicographically last file matching the
// analysis glob, or AnalysisPlaceholder if none match.
func (s *FileStorage) LoadLatestAnalysis() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files, err := filepath.Glob(s.paths.AnalysisGlob)
	if err != nil {
		return AnalysisPlaceholder, fmt.Errorf("analysis glob %q: %w", s.paths.AnalysisGlob, err)
	}
	if len(files) == 0 {
		return AnalysisPlaceholder, nil
	}
	sort.Strings(files)
	data, err := os.ReadFile(files[len(files)-1])
	if err != nil {
		return AnalysisPlaceholder, fmt.Errorf("reading analysis: %w", err)
	}
	return string(data), nil
}

// LoadWatchlist reads every watchlist entry. A feed without an active column
// treats every entry as active.
func (s *FileStorage) LoadWatchlist() ([]models.WatchlistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadWatchlist()
}

func (s *FileStorage) loadWatchlist() ([]models.WatchlistEntry, error) {
	table, err := readCSV(s.paths.Watchlist)
	if err != nil {
		return nil, err
	}
	if len(table.Columns) == 0 {
		return []models.WatchlistEntry{}, nil
	}
	idx := columnIndex(table.Columns)
	symCol, ok := idx[models.ColSymbol]
	if !ok {
		return nil, fmt.Errorf("watchlist %s: %w", s.paths.Watchlist, ErrNoSymbolColumn)
	}
	noteCol, hasNote := idx[models.ColNote]
	activeCol, hasActive := idx[models.ColActive]

	entries := make([]models.WatchlistEntry, 0, len(table.Rows))
	for _, r := range table.Rows {
		e := models.WatchlistEntry{Symbol: strings.TrimSpace(cell(r, symCol)), Active: true}
		if hasNote {
			e.Note = cell(r, noteCol)
		}
		if hasActive {
			e.Active = models.ParseActive(cell(r, activeCol))
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// UpsertWatchlist updates the note and active flag of an existing symbol or
// appends a new entry. The file is rewritten atomically.
func (s *FileStorage) UpsertWatchlist(entry models.WatchlistEntry) error {
	entry.Symbol = models.NormalizeSymbol(entry.Symbol)
	if entry.Symbol == "" {
		return ErrEmptySymbol
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadWatchlist()
	if err != nil {
		return err
	}
	found := false
	for i := range entries {
		if models.NormalizeSymbol(entries[i].Symbol) == entry.Symbol {
			entries[i].Symbol = entry.Symbol
			entries[i].Note = entry.Note
			entries[i].Active = entry.Active
			found = true
		}
	}
	if !found {
		entries = append(entries, entry)
	}
	return s.saveWatchlist(entries)
}

func (s *FileStorage) saveWatchlist(entries []models.WatchlistEntry) error {
	if dir := filepath.Dir(s.paths.Watchlist); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating watchlist dir: %w", err)
		}
	}

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	_ = w.Write([]string{models.ColSymbol, models.ColNote, models.ColActive})
	for _, e := range entries {
		_ = w.Write([]string{e.Symbol, e.Note, strconv.FormatBool(e.Active)})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encoding watchlist: %w", err)
	}

	// Write to temp file first
	tmpFile := s.paths.Watchlist + ".tmp"
	if err := os.WriteFile(tmpFile, []byte(sb.String()), 0o644); err != nil {
		return err
	}

	// Atomic rename
	return os.Rename(tmpFile, s.paths.Watchlist)
}

// readCSV loads a headed CSV file. A missing file yields an empty table.
func readCSV(path string) (models.Table, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.Table{}, nil
	}
	if err != nil {
		return models.Table{}, err
	}
	defer func() {
		_ = f.Close()
	}()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return models.Table{}, nil
	}
	if err != nil {
		return models.Table{}, fmt.Errorf("reading %s: %w", path, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	table := models.Table{Columns: header}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return models.Table{}, fmt.Errorf("reading %s: %w", path, err)
		}
		if blankRecord(rec) {
			continue
		}
		table.Rows = append(table.Rows, rec)
	}
	return table, nil
}

// positionsFromTable adapts an untyped table to PositionRow, selecting the
// known columns and leaving the rest behind.
func positionsFromTable(t models.Table) (models.Positions, error) {
	idx := columnIndex(t.Columns)
	symCol, ok := idx[models.ColSymbol]
	if !ok {
		return models.Positions{}, ErrNoSymbolColumn
	}

	known := []string{
		models.ColSymbol, models.ColShares, models.ColPrice, models.ColMarketValue,
		models.ColTodayPnL, models.ColTotalPnL, models.ColStrategyTag, models.ColAccount,
	}
	knownSet := make(map[string]bool, len(known))
	for _, c := range known {
		knownSet[c] = true
	}
	var cols []string
	for _, c := range t.Columns {
		if knownSet[c] {
			cols = append(cols, c)
		}
	}

	num := func(rec []string, col string) *float64 {
		i, ok := idx[col]
		if !ok {
			return nil
		}
		return parseNumber(cell(rec, i))
	}
	text := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok {
			return ""
		}
		return strings.TrimSpace(cell(rec, i))
	}

	rows := make([]models.PositionRow, 0, len(t.Rows))
	for _, rec := range t.Rows {
		rows = append(rows, models.PositionRow{
			Symbol:      strings.TrimSpace(cell(rec, symCol)),
			Shares:      num(rec, models.ColShares),
			Price:       num(rec, models.ColPrice),
			MarketValue: num(rec, models.ColMarketValue),
			TodayPnL:    num(rec, models.ColTodayPnL),
			TotalPnL:    num(rec, models.ColTotalPnL),
			StrategyTag: text(rec, models.ColStrategyTag),
			Account:     text(rec, models.ColAccount),
		})
	}
	return models.Positions{Columns: cols, Rows: rows}, nil
}

// parseNumber accepts plain and $-formatted numbers; anything else is null.
func parseNumber(s string) *float64 {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.Replace(s, "$", "", 1)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func columnIndex(cols []string) map[string]int {
	idx := make(map[string]int, len(cols))
	for i, c := range cols {
		if _, dup := idx[c]; !dup {
			idx[c] = i
		}
	}
	return idx
}

func cell(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}

func blankRecord(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
