package models

// Position column names as they appear in the positions feed.
const (
	ColSymbol      = "symbol"
	ColShares      = "shares"
	ColPrice       = "price"
	ColPrevClose   = "prev_close"
	ColChange      = "change"
	ColChangePct   = "change_pct"
	ColMarketValue = "market_value"
	ColTodayPnL    = "today_pnl"
	ColTotalPnL    = "total_pnl"
	ColStrategyTag = "strategy_tag"
	ColAccount     = "account"
	ColNote        = "note"
	ColActive      = "active"
)

// PositionRow is one held portfolio line. Numeric fields are nil when the
// feed left them blank or omitted the column.
type PositionRow struct {
	Symbol      string
	Shares      *float64
	Price       *float64
	MarketValue *float64
	TodayPnL    *float64
	TotalPnL    *float64
	StrategyTag string
	Account     string
}

// Value returns the cell for a known column.
func (p PositionRow) Value(col string) (Value, bool) {
	switch col {
	case ColSymbol:
		return Text(p.Symbol), true
	case ColShares:
		return Num(p.Shares), true
	case ColPrice:
		return Num(p.Price), true
	case ColMarketValue:
		return Num(p.MarketValue), true
	case ColTodayPnL:
		return Num(p.TodayPnL), true
	case ColTotalPnL:
		return Num(p.TotalPnL), true
	case ColStrategyTag:
		return Text(p.StrategyTag), true
	case ColAccount:
		return Text(p.Account), true
	}
	return Value{}, false
}

// Positions is the positions feed. Columns lists the known columns that were
// present in the source, in source order.
type Positions struct {
	Columns []string
	Rows    []PositionRow
}

// HasColumn reports whether the feed carried col.
func (p Positions) HasColumn(col string) bool {
	for _, c := range p.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Value is one table cell: a nullable number or a string.
type Value struct {
	Number  *float64
	Text    string
	Numeric bool
}

// Num wraps a nullable number.
func Num(v *float64) Value { return Value{Number: v, Numeric: true} }

// Text wraps a string.
func Text(s string) Value { return Value{Text: s} }

// Table is a schema-less feed used for trades, where only the last row matters.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Empty reports whether the table has no data rows.
func (t Table) Empty() bool { return len(t.Rows) == 0 }

// Tail returns a table holding only the last n rows.
func (t Table) Tail(n int) Table {
	if n >= len(t.Rows) {
		return t
	}
	return Table{Columns: t.Columns, Rows: t.Rows[len(t.Rows)-n:]}
}
