// Package models defines the data types shared by the price fetcher, the
// watchlist snapshotter, the position filter and the report renderer.
package models

import (
	"sort"
	"strings"
)

// NormalizeSymbol trims and uppercases a ticker. It returns "" for input that
// cannot be a symbol.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeSymbols trims, uppercases, drops empty entries, deduplicates and
// sorts the given tickers.
func NormalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		n := NormalizeSymbol(s)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
