package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagDupLimit   int
	flagDupMinSize int64
	flagDupDetail  bool
)

func newDuplicatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "duplicates",
		Short: "Find files with identical content",
		Long: `Find groups of files sharing the same content checksum and size.

Groups are ordered by reclaimable bytes: deleting all but one copy per
group frees the reported amount. Local only, never calls the Drive API.`,
		RunE: runDuplicates,
	}

	cmd.Flags().IntVar(&flagDupLimit, "limit", 20, "maximum number of groups to show (0 for all)")
	cmd.Flags().Int64Var(&flagDupMinSize, "min-size", 0, "ignore files smaller than this many bytes")
	cmd.Flags().BoolVar(&flagDupDetail, "detail", false, "list every file in each group with its path")

	return cmd
}

func runDuplicates(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	minSize := flagDupMinSize
	if !cmd.Flags().Changed("min-size") {
		minSize = a.cfg.DuplicateMinSize
	}

	result, err := a.svc.GetDuplicates(ctx, flagDupLimit, minSize)
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(result)
	}

	if len(result.Groups) == 0 {
		fmt.Println("No duplicates found.")
		return nil
	}

	fmt.Printf("%d duplicate groups, %s reclaimable across %d files\n\n",
		result.Savings.TotalGroups,
		formatSize(result.Savings.TotalWastedBytes),
		result.Savings.TotalDuplicateFiles)

	headers := []string{"COPIES", "SIZE", "WASTED", "MD5"}
	rows := make([][]string, 0, len(result.Groups))

	for _, group := range result.Groups {
		rows = append(rows, []string{
			fmt.Sprintf("%d", group.Count),
			formatSize(group.Size),
			formatSize(group.TotalWasted),
			group.MD5,
		})
	}

	printTable(os.Stdout, headers, rows)

	if !flagDupDetail {
		return nil
	}

	for _, group := range result.Groups {
		details, err := a.svc.GetDuplicateDetail(ctx, group.FileIDs)
		if err != nil {
			return err
		}

		fmt.Printf("\n%s (%s each):\n", group.MD5, formatSize(group.Size))

		for _, d := range details {
			fmt.Printf("  %s\n", d.Path)
		}
	}

	return nil
}
