package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"watchlist-compare/cache"
	"watchlist-compare/compare"
	"watchlist-compare/config"
	"watchlist-compare/db"
	"watchlist-compare/fetcher"
	"watchlist-compare/logger"
	"watchlist-compare/metrics"
	"watchlist-compare/parser"
	"watchlist-compare/scraper"
)

const version = "1.0.0"

var (
	configPath string
	debug      bool
)

func main() {
	// Missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "watchlist-compare",
		Short:         "Find the films shared by several Letterboxd watchlists",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		serveCommand(),
		compareCommand(),
		botCommand(),
		historyCommand(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("watchlist-compare version %s\n", version)
			},
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the components shared by every command
type app struct {
	cfg         *config.Config
	log         logger.Logger
	registry    *prometheus.Registry
	metrics     *metrics.Metrics
	fetcher     fetcher.Fetcher
	coordinator *compare.Coordinator
	db          *db.DB

	closers []func() error
}

// newApp loads the configuration and builds the comparison pipeline
func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if debug {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	f, err := fetcher.New(cfg.Scrape, log)
	if err != nil {
		return nil, err
	}
	a.fetcher = f
	a.closers = append(a.closers, func() error { return fetcher.Close(f) })

	store, closeCache, err := cache.New(cfg, log)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	a.closers = append(a.closers, closeCache)

	s := scraper.New(f, parser.NewParser(cfg.Scrape.BaseURL), cfg.Scrape, log)
	s.OnPage = func(string, int, int) { a.metrics.PageFetched() }

	a.coordinator = compare.NewCoordinator(store, s, cfg.Scrape.MaxWorkers, log).WithMetrics(a.metrics)

	if cfg.Database.URL != "" {
		database, err := db.NewDB(cfg.Database.URL, log)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		a.db = database
		a.closers = append(a.closers, database.Close)
		a.coordinator.WithHistory(database)
	}

	log.Info("Configuration loaded",
		logger.String("strategy", cfg.Scrape.Strategy),
		logger.String("cache", cfg.Cache.Backend),
		logger.Int("max_workers", cfg.Scrape.MaxWorkers),
		logger.Bool("history", a.db != nil),
	)
	return a, nil
}

// Close releases resources in reverse order of creation
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	_ = a.log.Sync()
	return errors.Join(errs...)
}
