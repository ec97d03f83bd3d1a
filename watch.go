package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/driveindex/driveindex/internal/cache"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep analytics in step with the snapshot cache",
		Long: `Watch the cache directory and recompute analytics whenever the
snapshot cache is rewritten, for example by a sync running in another
process. Runs until interrupted.`,
		RunE: runWatch,
	}
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	watcher, err := cache.NewWatcher(a.caches, a.logger)
	if err != nil {
		return err
	}
	defer watcher.Close()

	statusf("Watching %s (ctrl-c to stop)\n", a.caches.Dir())

	a.scheduler.Watch(ctx, watcher)

	return nil
}
