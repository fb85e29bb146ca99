package main

import (
	"fmt"
	"io"

	"github.com/eddiefleurent/portfolio_digest/internal/models"
	"github.com/spf13/cobra"
)

func newWatchCmd(opts *options) *cobra.Command {
	watch := &cobra.Command{
		Use:   "watch",
		Short: "Manage the watchlist",
	}

	add := &cobra.Command{
		Use:   "add SYMBOL NOTE [ACTIVE]",
		Short: "Add a symbol to the watchlist or update its note",
		Long: `Add a symbol to the watchlist, or update the note and active flag of an
existing entry. ACTIVE accepts 1, true, yes or y; anything else deactivates
the entry. It defaults to true.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}

			return a.addToWatchlist(cmd.OutOrStdout(), args)
		},
	}

	watch.AddCommand(add)
	return watch
}

// addToWatchlist upserts SYMBOL NOTE [ACTIVE] and confirms on out.
func (a *app) addToWatchlist(out io.Writer, args []string) error {
	entry := models.WatchlistEntry{
		Symbol: models.NormalizeSymbol(args[0]),
		Note:   args[1],
		Active: true,
	}
	if len(args) == 3 {
		entry.Active = models.ParseActive(args[2])
	}
	if err := a.store.UpsertWatchlist(entry); err != nil {
		return fmt.Errorf("updating watchlist: %w", err)
	}

	_, err := fmt.Fprintf(out, "Saved %s (active=%t)\n", entry.Symbol, entry.Active)
	return err
}
