// Package util provides common formatting helpers for prices and changes.
package util

import (
	"strconv"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatMoney renders v as US dollars with thousands separators and two
// decimals, e.g. $1,234.50. A nil value renders as "".
func FormatMoney(v *float64) string {
	if v == nil {
		return ""
	}
	cents := decimal.NewFromFloat(*v).Round(2).Shift(2).IntPart()
	return money.New(cents, money.USD).Display()
}

// FormatPct renders v with two decimals and a percent sign. A nil value
// renders as "".
func FormatPct(v *float64) string {
	if v == nil {
		return ""
	}
	return decimal.NewFromFloat(*v).StringFixed(2) + "%"
}

// FormatNumber renders a plain number with the shortest exact representation.
func FormatNumber(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// Change returns price-prev and the percent change relative to prev, computed
// in decimal arithmetic. Either result is nil when it cannot be computed.
func Change(price, prev *float64) (change, pct *float64) {
	if price == nil || prev == nil {
		return nil, nil
	}
	p := decimal.NewFromFloat(*price)
	q := decimal.NewFromFloat(*prev)
	diff := p.Sub(q)
	c := diff.InexactFloat64()
	change = &c
	if q.IsZero() {
		return change, nil
	}
	r := diff.Div(q).Mul(decimal.NewFromInt(100)).InexactFloat64()
	return change, &r
}
