package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index and sync state",
		Long: `Display the local index state: file counts, the times of the last
full crawl and incremental sync, and whether incremental sync is
possible. Local only, never calls the Drive API.`,
		RunE: runStatus,
	}

	cmd.Flags().Bool("types", false, "also list indexed entries by MIME type")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	status, err := a.svc.GetIndexStatus(ctx)
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(status)
	}

	if !status.Exists {
		fmt.Println("Index is empty. Run 'driveindex sync' to build it.")
		return nil
	}

	fmt.Printf("Indexed files:   %d\n", status.FileCount)
	fmt.Printf("Last full crawl: %s\n", formatWhen(status.LastFullCrawlTime))
	fmt.Printf("Last sync:       %s\n", formatWhen(status.LastSyncTime))

	if status.ErrorCount > 0 {
		fmt.Printf("Record errors:   %d (see the file_errors table)\n", status.ErrorCount)
	}

	if status.NeedsFullCrawl {
		fmt.Println("No continuation token: the next sync will run a full crawl.")
	}

	if showTypes, _ := cmd.Flags().GetBool("types"); showTypes {
		fmt.Println()

		if err := printMimeBreakdown(ctx, a); err != nil {
			return err
		}
	}

	return nil
}

func printMimeBreakdown(ctx context.Context, a *app) error {
	breakdown, err := a.svc.GetMimeBreakdown(ctx)
	if err != nil {
		return err
	}

	mimes := make([]string, 0, len(breakdown))
	for mime := range breakdown {
		mimes = append(mimes, mime)
	}

	// Largest footprint first, count breaks ties.
	sort.Slice(mimes, func(i, j int) bool {
		left, right := breakdown[mimes[i]], breakdown[mimes[j]]
		if left.TotalSize != right.TotalSize {
			return left.TotalSize > right.TotalSize
		}
		if left.Count != right.Count {
			return left.Count > right.Count
		}
		return mimes[i] < mimes[j]
	})

	rows := make([][]string, 0, len(mimes))
	for _, mime := range mimes {
		stat := breakdown[mime]
		rows = append(rows, []string{mime, strconv.FormatInt(stat.Count, 10), formatSize(stat.TotalSize)})
	}

	printTable(os.Stdout, []string{"MIME TYPE", "COUNT", "SIZE"}, rows)

	return nil
}
