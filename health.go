package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check index integrity",
		Long: `Run integrity checks over the local index: dangling parent edges,
unresolved shortcuts, and folder containment cycles. Cycles fail the
check; everything else is reported as a warning.`,
		RunE: runHealth,
	}
}

func runHealth(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.svc.GetHealth(ctx)
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(result)
	}

	stats := result.Stats

	fmt.Printf("Entries:   %d total (%d active, %d trashed, %d removed)\n",
		stats.TotalFiles, stats.ActiveFiles, stats.TrashedFiles, stats.RemovedFiles)
	fmt.Printf("Breakdown: %d folders, %d files, %d shortcuts\n",
		stats.Folders, stats.Files, stats.Shortcuts)
	fmt.Printf("Content:   %d binary (%s, %d with checksums), %d Google-native\n",
		stats.BinaryFiles, formatSize(stats.TotalSizeBytes), stats.WithMD5, stats.GoogleNative)
	fmt.Printf("Edges:     %d parent-child links\n", stats.ParentEdges)

	for _, warning := range result.Warnings {
		fmt.Printf("warning: %s\n", warning)
	}

	for _, errMsg := range result.Errors {
		fmt.Printf("error: %s\n", errMsg)
	}

	for _, cycle := range result.Cycles.Cycles {
		fmt.Printf("  cycle: %s\n", strings.Join(cycle, " -> "))
	}

	if result.Passed {
		fmt.Println("Health check passed.")
		return nil
	}

	return fmt.Errorf("health check failed")
}
