package main

import (
	"fmt"

	"github.com/eddiefleurent/portfolio_digest/internal/models"
	"github.com/eddiefleurent/portfolio_digest/internal/prices"
	"github.com/eddiefleurent/portfolio_digest/internal/report"
	"github.com/eddiefleurent/portfolio_digest/internal/util"
	"github.com/spf13/cobra"
)

func newPricesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "prices SYMBOL...",
		Short: "Fetch latest and previous closes for the given symbols",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			res := a.fetcher.FetchWithReport(cmd.Context(), args)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), priceTable(res))
			return err
		},
	}
}

// priceTable lists every requested symbol, including omitted ones.
func priceTable(res prices.Report) string {
	t := models.Table{Columns: []string{"symbol", "price", "prev_close", "change", "change_pct", "outcome"}}
	for _, r := range res {
		row := []string{r.Symbol, "", "", "", "", r.Outcome.String()}
		if r.Outcome != prices.Omitted {
			price, prev := r.Point.Price, r.Point.PrevClose
			change, pct := util.Change(&price, &prev)
			row[1] = util.FormatMoney(&price)
			row[2] = util.FormatMoney(&prev)
			row[3] = util.FormatMoney(change)
			row[4] = util.FormatPct(pct)
		}
		t.Rows = append(t.Rows, row)
	}
	return report.RenderTable(t)
}
