package models

import (
	"math"
	"sort"
	"time"
)

// PricePoint is the latest close and the close before it for one symbol.
// When only one observation exists PrevClose equals Price.
type PricePoint struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	PrevClose float64 `json:"prev_close"`
}

// Bar is a single daily observation. Close is nil when the source reported no
// close for that day.
type Bar struct {
	Date  time.Time `json:"date"`
	Close *float64  `json:"close"`
}

// Series is a run of daily bars for one symbol.
type Series []Bar

// Clean drops bars with a missing or non-finite close and returns the rest in
// date order.
func (s Series) Clean() Series {
	out := make(Series, 0, len(s))
	for _, b := range s {
		if b.Close == nil || math.IsNaN(*b.Close) || math.IsInf(*b.Close, 0) {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// PricePoint builds a PricePoint from a cleaned series. The second return is
// false when the series is empty.
func (s Series) PricePoint(symbol string) (PricePoint, bool) {
	if len(s) == 0 {
		return PricePoint{}, false
	}
	last := *s[len(s)-1].Close
	prev := last
	if len(s) >= 2 {
		prev = *s[len(s)-2].Close
	}
	return PricePoint{Symbol: symbol, Price: last, PrevClose: prev}, true
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
