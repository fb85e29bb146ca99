package models

// Section names accepted in a group's include list.
const (
	SectionSummary      = "summary"
	SectionAnalysis     = "analysis"
	SectionTradesLatest = "trades_latest"
	SectionPositions    = "positions"
	SectionWatchlist    = "watchlist"
)

// Sections lists every recognized section name.
var Sections = []string{
	SectionSummary,
	SectionAnalysis,
	SectionTradesLatest,
	SectionPositions,
	SectionWatchlist,
}

// FilterSpec restricts the positions shown to a group. Empty fields place no
// constraint; non-empty fields combine with AND.
type FilterSpec struct {
	StrategyTag []string `yaml:"strategy_tag"`
	Account     []string `yaml:"account"`
	// Symbols holds literal tickers or regular expressions.
	Symbols []string `yaml:"symbols"`
}

// IsEmpty reports whether the spec constrains nothing.
func (f *FilterSpec) IsEmpty() bool {
	return f == nil || (len(f.StrategyTag) == 0 && len(f.Account) == 0 && len(f.Symbols) == 0)
}

// RecipientGroup is a named distribution target.
type RecipientGroup struct {
	Name        string      `yaml:"name"`
	To          []string    `yaml:"to"`
	Subject     string      `yaml:"subject"`
	Include     []string    `yaml:"include"`
	Filters     *FilterSpec `yaml:"filters"`
	Attachments []string    `yaml:"attachments"`
}

// DisplayName returns the group name or a stand-in for unnamed groups.
func (g RecipientGroup) DisplayName() string {
	if g.Name == "" {
		return "(unnamed group)"
	}
	return g.Name
}

// Includes reports whether the group asked for section.
func (g RecipientGroup) Includes(section string) bool {
	for _, s := range g.Include {
		if s == section {
			return true
		}
	}
	return false
}
