// Command digest builds the daily investment report and mails one tailored
// copy to each configured recipient group.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	configPath string
	notifyPath string
	logLevel   string
	envFile    string
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "digest",
		Short: "Build and distribute the daily portfolio report",
		Long: `Build the daily portfolio report from the latest positions, trades,
summary and analysis files, then send one tailored copy per recipient group.

Examples:
  digest send
  digest send --dry-run --group family
  digest preview
  digest prices SPY QQQ
  digest watch add NVDA "AI bellwether"`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			// A missing .env is normal outside development.
			if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("loading %s: %w", opts.envFile, err)
			}
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "config.yaml", "Path to configuration file")
	flags.StringVar(&opts.notifyPath, "notify", "", "Path to recipient group file (default: notify.path from config)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Override log level (debug|info|warn|error)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "Dotenv file loaded before the config")

	root.AddCommand(
		newSendCmd(opts),
		newPreviewCmd(opts),
		newPricesCmd(opts),
		newWatchCmd(opts),
	)
	return root
}
