// Package report renders a recipient group's message body from the run's
// positions, trades, summary, analysis and watchlist snapshot.
package report

import (
	"context"
	"io"
	"regexp"
	"strings"

	"github.com/eddiefleurent/portfolio_digest/internal/filter"
	"github.com/eddiefleurent/portfolio_digest/internal/models"
	"github.com/sirupsen/logrus"
)

// Section headers.
const (
	HeaderSummary   = "=== Daily Summary ==="
	HeaderAnalysis  = "=== Custom Analysis ==="
	HeaderTrades    = "=== Latest Signal ==="
	HeaderPositions = "=== Positions (filtered) ==="
	HeaderWatchlist = "=== Watchlist Movers ==="
)

// Placeholders for sections without data.
const (
	NoTrades    = "(no trades yet)"
	NoPositions = "(no matching positions)"
)

// PositionColumns is the display whitelist for positions, in display order.
var PositionColumns = []string{
	models.ColSymbol,
	models.ColShares,
	models.ColPrice,
	models.ColMarketValue,
	models.ColTodayPnL,
	models.ColTotalPnL,
	models.ColStrategyTag,
	models.ColAccount,
}

// WatchlistColumns is the display order for the watchlist snapshot.
var WatchlistColumns = []string{
	models.ColSymbol,
	models.ColPrice,
	models.ColChange,
	models.ColChangePct,
	models.ColNote,
}

// Snapshot supplies the run's watchlist rows on demand, so groups that do not
// include the watchlist never trigger a price fetch.
type Snapshot interface {
	Rows(ctx context.Context) []models.SnapshotRow
}

// Input is the data shared by every group in a run.
type Input struct {
	Positions models.Positions
	Trades    models.Table
	Summary   string
	Analysis  string
	Watchlist Snapshot
}

// Renderer builds message bodies.
type Renderer struct {
	logger logrus.FieldLogger
}

// NewRenderer creates a Renderer. A nil logger discards output.
func NewRenderer(logger logrus.FieldLogger) *Renderer {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Renderer{logger: logger}
}

var blankRun = regexp.MustCompile(`\n[ \t]*\n(?:[ \t]*\n)+`)

// lineEnds folds CRLF and lone CR into LF.
var lineEnds = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Render builds the body for group. Sections follow the group's include
// order; each appears once. Sections are separated by one blank line and the
// body ends with exactly one newline.
func (r *Renderer) Render(ctx context.Context, group models.RecipientGroup, in Input) string {
	seen := make(map[string]bool, len(group.Include))
	parts := make([]string, 0, len(group.Include))
	for _, name := range group.Include {
		if seen[name] {
			continue
		}
		seen[name] = true

		header, content, ok := r.section(ctx, name, group, in)
		if !ok {
			r.logger.WithFields(logrus.Fields{
				"group":   group.DisplayName(),
				"section": name,
			}).Debug("ignoring unknown section")
			continue
		}
		parts = append(parts, header+"\n"+strings.TrimSpace(lineEnds.Replace(content)))
	}

	body := strings.TrimSpace(strings.Join(parts, "\n\n"))
	body = blankRun.ReplaceAllString(body, "\n\n")
	return body + "\n"
}

// Bodies renders every group against the same input, keyed by group display
// name. When two groups share a name the later one wins.
func (r *Renderer) Bodies(ctx context.Context, groups []models.RecipientGroup, in Input) map[string]string {
	out := make(map[string]string, len(groups))
	for _, g := range groups {
		out[g.DisplayName()] = r.Render(ctx, g, in)
	}
	return out
}

func (r *Renderer) section(ctx context.Context, name string, group models.RecipientGroup, in Input) (string, string, bool) {
	switch name {
	case models.SectionSummary:
		return HeaderSummary, in.Summary, true

	case models.SectionAnalysis:
		return HeaderAnalysis, in.Analysis, true

	case models.SectionTradesLatest:
		if in.Trades.Empty() {
			return HeaderTrades, NoTrades, true
		}
		return HeaderTrades, RenderTable(in.Trades.Tail(1)), true

	case models.SectionPositions:
		rows := filter.Positions(in.Positions.Rows, group.Filters)
		if len(rows) == 0 {
			return HeaderPositions, NoPositions, true
		}
		return HeaderPositions, RenderRows(presentColumns(in.Positions, PositionColumns), rows), true

	case models.SectionWatchlist:
		var rows []models.SnapshotRow
		if in.Watchlist != nil {
			rows = in.Watchlist.Rows(ctx)
		}
		return HeaderWatchlist, RenderRows(WatchlistColumns, rows), true
	}
	return "", "", false
}

func presentColumns(p models.Positions, whitelist []string) []string {
	out := make([]string, 0, len(whitelist))
	for _, c := range whitelist {
		if p.HasColumn(c) {
			out = append(out, c)
		}
	}
	return out
}
