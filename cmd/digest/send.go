package main

import (
	"fmt"
	"strings"

	"github.com/eddiefleurent/portfolio_digest/internal/config"
	"github.com/eddiefleurent/portfolio_digest/internal/distribute"
	"github.com/eddiefleurent/portfolio_digest/internal/models"
	"github.com/eddiefleurent/portfolio_digest/internal/notify"
	"github.com/eddiefleurent/portfolio_digest/internal/report"
	"github.com/spf13/cobra"
)

func newSendCmd(opts *options) *cobra.Command {
	var (
		dryRun bool
		groups []string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Render and mail the report to every recipient group",
		Long: `Render one report body per recipient group and mail it.

A group that fails to send is logged and skipped; the remaining groups are
still attempted. The command exits non-zero when any group failed or when
the recipient group file is missing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}

			selected, err := loadGroups(a, groups)
			if err != nil {
				return err
			}

			var sender notify.Sender
			if dryRun {
				sender = notify.NewWriterSender(cmd.OutOrStdout())
			} else {
				sender = notify.NewSMTPSender(notify.SMTPSettings{
					Host:     a.cfg.SMTP.Host,
					Port:     a.cfg.SMTP.Port,
					Username: a.cfg.SMTP.Username,
					Password: a.cfg.SMTP.Password,
					From:     a.cfg.SMTP.From,
				}, a.logger)
			}

			driver := distribute.NewDriver(sender, report.NewRenderer(a.logger),
				distribute.Options{Cc: a.cfg.SMTP.Cc, Bcc: a.cfg.SMTP.Bcc}, a.logger, a.metrics)
			outcomes := driver.Distribute(cmd.Context(), selected, a.buildInput())

			if failed := distribute.Failed(outcomes); len(failed) > 0 {
				names := make([]string, 0, len(failed))
				for _, o := range failed {
					names = append(names, o.Group)
				}
				return fmt.Errorf("%d of %d groups failed: %s", len(failed), len(outcomes), strings.Join(names, ", "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print messages to stdout instead of sending")
	cmd.Flags().StringArrayVar(&groups, "group", nil, "Limit the run to the named group (repeatable)")
	return cmd
}

// loadGroups reads the recipient group file and applies a name selection.
// Load warnings are logged; a missing file is an error.
func loadGroups(a *app, names []string) ([]models.RecipientGroup, error) {
	all, warnings, err := config.LoadGroups(a.cfg.Notify.Path)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		a.logger.WithField("path", a.cfg.Notify.Path).Warn(w)
	}

	selected := config.SelectGroups(all, names)
	if len(names) > 0 && len(selected) == 0 {
		return nil, fmt.Errorf("no recipient group matches %s", strings.Join(names, ", "))
	}
	return selected, nil
}
