package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/driveindex/driveindex/internal/analytics"
	"github.com/driveindex/driveindex/internal/jobs"
	"github.com/driveindex/driveindex/internal/service"
)

var (
	flagViewLimit    int
	flagViewOffset   int
	flagViewCategory string
	flagViewFileType string
	flagViewWait     bool
)

func newAnalyticsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Derived analytics over the indexed drive",
	}

	cmd.AddCommand(newAnalyticsStatusCmd())
	cmd.AddCommand(newAnalyticsComputeCmd())
	cmd.AddCommand(newAnalyticsViewCmd())

	return cmd
}

func newAnalyticsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the analytics worker state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			status := a.svc.GetAnalyticsStatus()

			if flagJSON {
				return printJSON(status)
			}

			printAnalyticsStatus(status)

			return nil
		},
	}
}

func newAnalyticsComputeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compute",
		Short: "Recompute analytics from the cached snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			status := a.svc.StartAnalytics(cmd.Context())
			status, err = waitForAnalytics(cmd, a, status)
			if err != nil {
				return err
			}

			if flagJSON {
				return printJSON(status)
			}

			printAnalyticsStatus(status)

			return nil
		},
	}
}

func newAnalyticsViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view <name>",
		Short: "Print one analytics view as JSON",
		Long: fmt.Sprintf(`Print one derived analytics view as JSON.

Available views: %s.

The duplicates view is paginated with --limit and --offset. For the
type_semantic view, --category and --file-type together drill into one
cell of the matrix and list its files, largest first.

Semantic categories: %s.`,
				strings.Join(analytics.ViewNames, ", "),
				strings.Join(analytics.CategoryNames(), ", ")),
		Args: cobra.ExactArgs(1),
		RunE: runAnalyticsView,
	}

	cmd.Flags().IntVar(&flagViewLimit, "limit", 100, "page size for paginated views")
	cmd.Flags().IntVar(&flagViewOffset, "offset", 0, "page offset for paginated views")
	cmd.Flags().StringVar(&flagViewCategory, "category", "", "semantic category for the type matrix drill-down")
	cmd.Flags().StringVar(&flagViewFileType, "file-type", "", "type group for the type matrix drill-down")
	cmd.Flags().BoolVar(&flagViewWait, "wait", false, "wait for a running compute instead of failing")

	return cmd
}

func runAnalyticsView(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := service.ViewOptions{
		Limit:    flagViewLimit,
		Offset:   flagViewOffset,
		Category: flagViewCategory,
		FileType: flagViewFileType,
	}

	resp, err := a.svc.GetAnalyticsView(ctx, args[0], opts)

	for flagViewWait && errors.Is(err, service.ErrNotReady) {
		status := a.svc.GetAnalyticsStatus()
		if status.Status == jobs.AnalyticsError {
			return fmt.Errorf("analytics compute failed: %s", status.Error)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}

		resp, err = a.svc.GetAnalyticsView(ctx, args[0], opts)
	}

	if err != nil {
		return err
	}

	return printJSON(resp)
}

// waitForAnalytics blocks until the worker leaves the running state.
func waitForAnalytics(cmd *cobra.Command, a *app, status jobs.AnalyticsStatus) (jobs.AnalyticsStatus, error) {
	for status.Status == jobs.AnalyticsRunning {
		select {
		case <-cmd.Context().Done():
			return status, cmd.Context().Err()
		case <-time.After(200 * time.Millisecond):
		}

		status = a.svc.GetAnalyticsStatus()
	}

	return status, nil
}

func printAnalyticsStatus(status jobs.AnalyticsStatus) {
	fmt.Printf("Analytics: %s\n", status.Status)

	if status.CompletedAt != nil {
		fmt.Printf("Computed:  %s\n", formatWhen(status.CompletedAt.Format(time.RFC3339)))
	}

	if status.Error != "" {
		fmt.Printf("Error:     %s\n", status.Error)
	}
}
