package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driveindex/driveindex/internal/jobs"
)

var flagSyncFull bool

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Bring the index up to date",
		Long: `Converge the local index with the drive.

Applies the changes feed incrementally when a continuation token exists,
and falls back to a full crawl when it does not (first run, cleared
index, or an expired token). After converging, the snapshot cache and
analytics are refreshed.`,
		RunE: runSync,
	}

	cmd.Flags().BoolVar(&flagSyncFull, "full", false, "force a full crawl instead of an incremental sync")

	return cmd
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.svc.SmartSync(ctx, flagSyncFull, crawlProgressPrinter(), syncProgressPrinter())
	if err != nil {
		return err
	}

	statusf("\n")

	if flagJSON {
		return printJSON(result)
	}

	if result.Type == jobs.ResultFullCrawl {
		if result.Recovered {
			fmt.Println("Continuation token expired; rebuilt the index with a full crawl.")
		}

		fmt.Printf("Full crawl: %d files indexed, %d errors\n",
			result.Crawl.FilesProcessed, result.Crawl.Errors)

		return nil
	}

	p := result.Sync
	if p.TotalChanges == 0 {
		fmt.Println("Already up to date.")
		return nil
	}

	fmt.Printf("Sync complete: %d changes (%d added, %d updated, %d removed), %d errors\n",
		p.ChangesProcessed, p.FilesAdded, p.FilesUpdated, p.FilesRemoved, p.Errors)

	return nil
}
