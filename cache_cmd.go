package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driveindex/driveindex/internal/cache"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear the on-disk caches",
	}

	cmd.AddCommand(newCacheStatusCmd())
	cmd.AddCommand(newCacheClearCmd())

	return cmd
}

func newCacheStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show cache freshness",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			type cacheLine struct {
				Type           string `json:"type"`
				Present        bool   `json:"present"`
				Timestamp      string `json:"timestamp,omitempty"`
				ValidatedCount int    `json:"validated_count,omitempty"`
			}

			lines := make([]cacheLine, 0, 3)

			for _, scanType := range []string{cache.ScanQuick, cache.ScanFull, cache.ScanFullAnalytics} {
				line := cacheLine{Type: scanType}

				var meta cache.Metadata
				if found, err := a.caches.LoadMetadata(scanType, &meta); err == nil && found {
					line.Present = true
					line.Timestamp = meta.Timestamp
					line.ValidatedCount = meta.ValidatedCount
				}

				lines = append(lines, line)
			}

			if flagJSON {
				return printJSON(lines)
			}

			for _, line := range lines {
				if !line.Present {
					fmt.Printf("%-25s missing\n", line.Type)
					continue
				}

				fmt.Printf("%-25s written %s, validated %d times\n",
					line.Type, formatWhen(line.Timestamp), line.ValidatedCount)
			}

			return nil
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear [type]",
		Short: "Remove cached scans",
		Long: `Remove cached scan payloads and their metadata sidecars.

With no argument every cache is removed. A type argument
(quick_scan, full_scan, or full_scan_analytics) removes just that one.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			kind := ""
			if len(args) == 1 {
				kind = args[0]
			}

			if err := a.svc.ClearCache(kind); err != nil {
				return err
			}

			if kind == "" {
				fmt.Println("All caches cleared.")
			} else {
				fmt.Printf("Cache %s cleared.\n", kind)
			}

			return nil
		},
	}
}
