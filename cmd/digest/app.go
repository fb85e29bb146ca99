package main

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/eddiefleurent/portfolio_digest/internal/config"
	"github.com/eddiefleurent/portfolio_digest/internal/marketdata"
	"github.com/eddiefleurent/portfolio_digest/internal/metrics"
	"github.com/eddiefleurent/portfolio_digest/internal/mock"
	"github.com/eddiefleurent/portfolio_digest/internal/models"
	"github.com/eddiefleurent/portfolio_digest/internal/prices"
	"github.com/eddiefleurent/portfolio_digest/internal/report"
	"github.com/eddiefleurent/portfolio_digest/internal/storage"
	"github.com/eddiefleurent/portfolio_digest/internal/watchlist"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// app holds the wiring shared by the subcommands.
type app struct {
	cfg     *config.Config
	logger  *logrus.Logger
	store   storage.Interface
	metrics *metrics.Recorder
	fetcher *prices.Fetcher
}

// newApp loads configuration and builds the components. The config file is
// only required when --config was given explicitly.
func newApp(cmd *cobra.Command, opts *options) (*app, error) {
	cfg, err := config.LoadOrDefault(opts.configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Environment.LogLevel = opts.logLevel
	}
	if opts.notifyPath != "" {
		cfg.Notify.Path = opts.notifyPath
	}

	logger, err := newLogger(cfg.Environment, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	files := storage.NewFileStorage(storagePaths(cfg.Paths))
	paths := files.Paths()
	logger.WithFields(logrus.Fields{
		"positions": paths.Positions,
		"trades":    paths.Trades,
		"summary":   paths.Summary,
		"analysis":  paths.AnalysisGlob,
		"watchlist": paths.Watchlist,
		"groups":    cfg.Notify.Path,
	}).Debug("resolved input files")

	rec := metrics.New()
	source := newSource(cfg, logger)
	window := marketdata.Window{Range: cfg.MarketData.WindowRange, Interval: cfg.MarketData.Interval}

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   files,
		metrics: rec,
		fetcher: prices.NewFetcher(source, window, logger, rec),
	}, nil
}

func newLogger(env config.EnvironmentConfig, out io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)

	level, err := logrus.ParseLevel(strings.ToLower(env.LogLevel))
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)

	if env.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

// newSource picks the price source for the configured mode.
func newSource(cfg *config.Config, logger logrus.FieldLogger) marketdata.Source {
	if cfg.IsOffline() {
		logger.Info("offline mode: using synthetic prices")
		return mock.NewDataProvider(time.Now())
	}

	md := cfg.MarketData
	var source marketdata.Source = marketdata.NewYahooAPIWithBaseURL(md.BaseURL, marketdata.RateLimits{
		PerMinute: md.RequestsPerMinute,
		Burst:     md.Burst,
	}).WithTimeout(cfg.GetTimeout())

	if md.CircuitBreaker.Enabled {
		source = marketdata.NewCircuitBreakerSourceWithSettings(source, breakerSettings(md.CircuitBreaker), logger)
	}
	return source
}

// breakerSettings overlays configured values on the defaults.
func breakerSettings(c config.CircuitBreakerConfig) marketdata.CircuitBreakerSettings {
	s := marketdata.DefaultCircuitBreakerSettings
	if c.MaxRequests > 0 {
		s.MaxRequests = c.MaxRequests
	}
	if d, err := time.ParseDuration(c.Interval); err == nil {
		s.Interval = d
	}
	if d, err := time.ParseDuration(c.Timeout); err == nil {
		s.Timeout = d
	}
	if c.MinRequests > 0 {
		s.MinRequests = c.MinRequests
	}
	if c.FailureRatio > 0 {
		s.FailureRatio = c.FailureRatio
	}
	return s
}

func storagePaths(p config.PathsConfig) storage.Paths {
	paths := storage.DefaultPaths
	if p.Positions != "" {
		paths.Positions = p.Positions
	}
	if p.Trades != "" {
		paths.Trades = p.Trades
	}
	if p.Summary != "" {
		paths.Summary = p.Summary
	}
	if p.AnalysisGlob != "" {
		paths.AnalysisGlob = p.AnalysisGlob
	}
	if p.Watchlist != "" {
		paths.Watchlist = p.Watchlist
	}
	return paths
}

// buildInput loads every artifact once for a run. Load failures degrade to
// an empty feed or placeholder text; they never abort the run.
func (a *app) buildInput() report.Input {
	var in report.Input
	var err error

	if in.Positions, err = a.store.LoadPositions(); err != nil {
		a.logger.WithError(err).Warn("positions unavailable")
		in.Positions = models.Positions{}
	}
	if in.Trades, err = a.store.LoadTrades(); err != nil {
		a.logger.WithError(err).Warn("trades unavailable")
		in.Trades = models.Table{}
	}
	if in.Summary, err = a.store.LoadSummary(); err != nil {
		a.logger.WithError(err).Warn("daily summary unavailable")
		in.Summary = storage.SummaryPlaceholder
	}
	if in.Analysis, err = a.store.LoadLatestAnalysis(); err != nil {
		a.logger.WithError(err).Warn("custom analysis unavailable")
		in.Analysis = storage.AnalysisPlaceholder
	}

	entries, err := a.store.LoadWatchlist()
	if err != nil {
		a.logger.WithError(err).Warn("watchlist unavailable")
		entries = nil
	}
	snapshotter := watchlist.NewSnapshotter(a.fetcher, a.logger)
	in.Watchlist = watchlist.NewMemo(snapshotter, watchlist.FilterActive(entries))

	return in
}

// inputFunc adapts buildInput for callers that build per request.
func (a *app) inputFunc() func(context.Context) report.Input {
	return func(context.Context) report.Input { return a.buildInput() }
}
