package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driveindex/driveindex/internal/crawl"
	"github.com/driveindex/driveindex/internal/service"
	syncengine "github.com/driveindex/driveindex/internal/sync"
)

var flagCrawlForce bool

func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Rebuild the index with a full enumeration",
		Long: `Enumerate every file in the drive and rebuild the local index.

A crawl establishes the baseline for incremental syncs: the changes
continuation token is stored once the enumeration completes. Use sync
for day-to-day updates; crawl again only when the token has expired or
the index should be rebuilt from scratch.`,
		RunE: runCrawl,
	}

	cmd.Flags().BoolVar(&flagCrawlForce, "force", false, "crawl even when a valid snapshot cache exists")

	return cmd
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if !flagCrawlForce {
		_, meta, err := a.svc.GetCachedSnapshot(ctx)
		if err == nil {
			fmt.Printf("Snapshot cache from %s is still valid; use --force to crawl anyway.\n",
				formatWhen(meta.Timestamp))

			return nil
		}

		if !errors.Is(err, service.ErrNotFound) {
			return err
		}

		if info, err := crawl.LastCrawlInfo(ctx, a.store); err == nil && info != nil {
			fmt.Printf("Replacing crawl from %s (%d files).\n",
				formatWhen(info.LastFullCrawlTime), info.FileCount)
		}
	}

	result, err := a.svc.SmartSync(ctx, true, crawlProgressPrinter(), syncProgressPrinter())
	if err != nil {
		return err
	}

	statusf("\n")

	if flagJSON {
		return printJSON(result)
	}

	fmt.Printf("Crawl complete: %d files indexed, %d errors\n",
		result.Crawl.FilesProcessed, result.Crawl.Errors)

	return nil
}

// crawlProgressPrinter renders crawl progress on one stderr line.
func crawlProgressPrinter() crawl.ProgressFunc {
	return func(p crawl.Progress) {
		statusf("\r%-12s %5.1f%%  fetched=%-7d processed=%-7d %s",
			p.Stage, p.ProgressPct, p.FilesFetched, p.FilesProcessed, p.Message)
	}
}

// syncProgressPrinter renders sync progress on one stderr line.
func syncProgressPrinter() syncengine.ProgressFunc {
	return func(p syncengine.Progress) {
		statusf("\r%-12s %5.1f%%  changes=%-6d +%d ~%d -%d  %s",
			p.Stage, p.ProgressPct, p.ChangesProcessed,
			p.FilesAdded, p.FilesUpdated, p.FilesRemoved, p.Message)
	}
}
