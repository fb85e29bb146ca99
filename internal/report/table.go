package report

import (
	"strconv"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/eddiefleurent/portfolio_digest/internal/models"
	"github.com/eddiefleurent/portfolio_digest/internal/util"
)

// EmptyTable is rendered in place of a table with no rows.
const EmptyTable = "(no rows)"

// Row is any record that can answer for a column by name.
type Row interface {
	Value(col string) (models.Value, bool)
}

var moneyColumns = map[string]bool{
	models.ColPrice:       true,
	models.ColPrevClose:   true,
	models.ColChange:      true,
	models.ColMarketValue: true,
	models.ColTodayPnL:    true,
	models.ColTotalPnL:    true,
}

// FormatCell renders one cell. Money columns read $X,XXX.XX, change_pct reads
// X.XX% and other numbers print as-is; null numbers are blank.
func FormatCell(col string, v models.Value) string {
	if !v.Numeric {
		return v.Text
	}
	switch {
	case moneyColumns[col]:
		return util.FormatMoney(v.Number)
	case col == models.ColChangePct:
		return util.FormatPct(v.Number)
	default:
		return util.FormatNumber(v.Number)
	}
}

// RenderRows renders rows under the given columns, dropping any column no row
// can answer for. The header is the column names; there is no index column.
func RenderRows[R Row](columns []string, rows []R) string {
	if len(rows) == 0 {
		return EmptyTable
	}
	cols := make([]string, 0, len(columns))
	for _, c := range columns {
		if _, ok := rows[0].Value(c); ok {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return EmptyTable
	}
	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		line := make([]string, len(cols))
		for i, c := range cols {
			v, _ := r.Value(c)
			line[i] = FormatCell(c, v)
		}
		cells = append(cells, line)
	}
	return align(cols, cells)
}

// RenderTable renders a schema-less table verbatim.
func RenderTable(t models.Table) string {
	if t.Empty() {
		return EmptyTable
	}
	return align(t.Columns, t.Rows)
}

// align lays cells out in space-padded columns. Numeric columns are
// right-aligned, everything else is left-aligned.
func align(header []string, rows [][]string) string {
	header, rows = padNumeric(header, rows)

	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	writeLine(w, header)
	for _, r := range rows {
		writeLine(w, r)
	}
	_ = w.Flush()

	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	return strings.Join(lines, "\n")
}

// padNumeric left-pads every cell of a numeric column, header included, to
// the column width so tabwriter's left alignment keeps them flush right.
func padNumeric(header []string, rows [][]string) ([]string, [][]string) {
	outHeader := append([]string(nil), header...)
	outRows := make([][]string, len(rows))
	for i, r := range rows {
		outRows[i] = make([]string, len(r))
		for j, c := range r {
			outRows[i][j] = cellReplacer.Replace(c)
		}
	}

	for col := range header {
		numeric := false
		width := utf8.RuneCountInString(outHeader[col])
		for _, r := range outRows {
			if col >= len(r) || r[col] == "" {
				continue
			}
			if !isNumericCell(r[col]) {
				numeric = false
				break
			}
			numeric = true
			if n := utf8.RuneCountInString(r[col]); n > width {
				width = n
			}
		}
		if !numeric {
			continue
		}
		outHeader[col] = padLeft(outHeader[col], width)
		for _, r := range outRows {
			if col < len(r) {
				r[col] = padLeft(r[col], width)
			}
		}
	}
	return outHeader, outRows
}

func padLeft(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return strings.Repeat(" ", width-n) + s
	}
	return s
}

// isNumericCell reports whether a formatted cell holds a number, money
// amount or percentage.
func isNumericCell(s string) bool {
	s = strings.TrimPrefix(strings.TrimSpace(s), "-")
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSuffix(strings.ReplaceAll(s, ",", ""), "%")
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

var cellReplacer = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ")

func writeLine(w *tabwriter.Writer, cells []string) {
	for i, c := range cells {
		if i > 0 {
			_, _ = w.Write([]byte{'\t'})
		}
		_, _ = w.Write([]byte(cellReplacer.Replace(c)))
	}
	_, _ = w.Write([]byte{'\n'})
}
