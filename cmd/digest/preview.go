package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eddiefleurent/portfolio_digest/internal/preview"
	"github.com/eddiefleurent/portfolio_digest/internal/report"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newPreviewCmd(opts *options) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Serve every group's rendered report over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			groups, err := loadGroups(a, nil)
			if err != nil {
				return err
			}
			if port == 0 {
				port = a.cfg.Preview.Port
			}

			srv := preview.NewServer(preview.Config{Port: port, AuthToken: a.cfg.Preview.AuthToken},
				groups, report.NewRenderer(a.logger), a.inputFunc(), a.metrics, a.logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				a.logger.Info("Shutting down preview server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Listen port (default: preview.port from config)")
	return cmd
}
