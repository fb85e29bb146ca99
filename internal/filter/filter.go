// Package filter narrows a positions table to what one recipient group should see.
package filter

import (
	"regexp"

	"github.com/eddiefleurent/portfolio_digest/internal/models"
)

// Positions returns the rows that satisfy every non-empty dimension of spec,
// in their original order. A nil or empty spec returns rows unchanged.
func Positions(rows []models.PositionRow, spec *models.FilterSpec) []models.PositionRow {
	if spec.IsEmpty() {
		return rows
	}

	tags := toSet(spec.StrategyTag)
	accounts := toSet(spec.Account)
	symbols := NewSymbolMatcher(spec.Symbols)

	out := make([]models.PositionRow, 0, len(rows))
	for _, r := range rows {
		if tags != nil && !tags[r.StrategyTag] {
			continue
		}
		if accounts != nil && !accounts[r.Account] {
			continue
		}
		if !symbols.Empty() && !symbols.Match(r.Symbol) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// SymbolMatcher matches a symbol against a list of literals and patterns.
// A member matches when it equals the symbol or, read as a regular
// expression, is found anywhere in it. Members that do not compile only
// match literally.
type SymbolMatcher struct {
	literals map[string]bool
	patterns []*regexp.Regexp
}

// NewSymbolMatcher compiles members once.
func NewSymbolMatcher(members []string) SymbolMatcher {
	m := SymbolMatcher{literals: make(map[string]bool, len(members))}
	for _, p := range members {
		m.literals[p] = true
		if re, err := regexp.Compile(p); err == nil {
			m.patterns = append(m.patterns, re)
		}
	}
	return m
}

// Empty reports whether the matcher has no members.
func (m SymbolMatcher) Empty() bool {
	return len(m.literals) == 0
}

// Match reports whether symbol is selected.
func (m SymbolMatcher) Match(symbol string) bool {
	if m.literals[symbol] {
		return true
	}
	for _, re := range m.patterns {
		if re.MatchString(symbol) {
			return true
		}
	}
	return false
}

// InvalidPatterns returns the members that are not valid regular
// expressions. They still work as literals.
func InvalidPatterns(members []string) []string {
	var bad []string
	for _, p := range members {
		if _, err := regexp.Compile(p); err != nil {
			bad = append(bad, p)
		}
	}
	return bad
}
