package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/driveindex/driveindex/internal/cache"
	"github.com/driveindex/driveindex/internal/config"
	"github.com/driveindex/driveindex/internal/crawl"
	"github.com/driveindex/driveindex/internal/drive"
	"github.com/driveindex/driveindex/internal/index"
	"github.com/driveindex/driveindex/internal/jobs"
	"github.com/driveindex/driveindex/internal/service"
	syncengine "github.com/driveindex/driveindex/internal/sync"
)

// version is set at build time via ldflags.
var version = "dev"

// indexFileName is the SQLite database file under the data dir.
const indexFileName = "driveindex.db"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// newRootCmd builds the fully-assembled root command. Called once from
// main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "driveindex",
		Short:   "Google Drive local index and analytics",
		Long:    "Index a Google Drive into local SQLite and derive storage analytics from it.",
		Version: version,
		// Silence Cobra's default error/usage printing; exitOnError
		// handles it.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "driveindex.toml", "config file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newHealthCmd())
	cmd.AddCommand(newDuplicatesCmd())
	cmd.AddCommand(newLargeCmd())
	cmd.AddCommand(newAnalyticsCmd())
	cmd.AddCommand(newCacheCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newWatchCmd())

	return cmd
}

// app bundles everything a command needs: config, logger, the open
// store, and the service facade. Built per command invocation.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *index.Store
	remote    *drive.Service
	caches    *cache.Coordinator
	scheduler *jobs.Scheduler
	svc       *service.Service
}

// newApp loads config, opens the store, and wires the service. Remote
// access is optional: local-only commands (status, health, duplicates)
// work without credentials.
func newApp(ctx context.Context, needRemote bool) (*app, error) {
	cfg, err := config.LoadOrDefault(flagConfigPath)
	if err != nil {
		return nil, err
	}

	logger := buildLogger(cfg)

	store, err := index.Open(ctx, filepath.Join(cfg.DataDir, indexFileName), logger)
	if err != nil {
		return nil, err
	}

	caches, err := cache.New(cfg.CacheDir, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	var remote *drive.Service

	if needRemote {
		remote, err = drive.NewAuthenticatedService(ctx, cfg.CredentialsFile, cfg.TokenFile, cfg.FetchPageSize, logger)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	registry := jobs.NewRegistry()
	analyticsRunner := jobs.NewAnalyticsRunner(caches, logger)

	crawler := crawl.NewEngine(remote, store, cfg.CommitBatchCrawl, logger)
	syncer := syncengine.NewEngine(remote, store, cfg.CommitBatchSync, logger)
	scheduler := jobs.NewScheduler(store, crawler, syncer, caches, analyticsRunner, registry, logger)

	svc := service.New(cfg, store, remote, caches, scheduler, analyticsRunner, registry, logger)

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		remote:    remote,
		caches:    caches,
		scheduler: scheduler,
		svc:       svc,
	}, nil
}

// Close releases the app's resources.
func (a *app) Close() error {
	return a.store.Close()
}

// buildLogger creates an slog.Logger from the config, with CLI flags
// taking priority over the configured level. Format "auto" picks text
// on a terminal and JSON otherwise.
func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo

	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	format := cfg.LogFormat
	if format == "auto" {
		format = "json"
		if isatty.IsTerminal(os.Stderr.Fd()) {
			format = "text"
		}
	}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
