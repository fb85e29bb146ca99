package models

import "strings"

// WatchlistEntry is one tracked symbol with a human note.
type WatchlistEntry struct {
	Symbol string
	Note   string
	Active bool
}

// ParseActive coerces the textual active flag. true/1/yes/y in any case are
// active, everything else is not.
func ParseActive(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y":
		return true
	}
	return false
}

// SnapshotRow is a watchlist entry enriched with prices. Price fields are nil
// when no price could be fetched.
type SnapshotRow struct {
	Symbol    string
	Price     *float64
	PrevClose *float64
	Change    *float64
	ChangePct *float64
	Note      string
}

// Value returns the cell for a known column.
func (r SnapshotRow) Value(col string) (Value, bool) {
	switch col {
	case ColSymbol:
		return Text(r.Symbol), true
	case ColPrice:
		return Num(r.Price), true
	case ColPrevClose:
		return Num(r.PrevClose), true
	case ColChange:
		return Num(r.Change), true
	case ColChangePct:
		return Num(r.ChangePct), true
	case ColNote:
		return Text(r.Note), true
	}
	return Value{}, false
}
