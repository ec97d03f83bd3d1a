package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagLargeLimit   int
	flagLargeMinSize int64
)

func newLargeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "large",
		Short: "List the largest files",
		RunE:  runLarge,
	}

	cmd.Flags().IntVar(&flagLargeLimit, "limit", 20, "maximum number of files to show")
	cmd.Flags().Int64Var(&flagLargeMinSize, "min-size", 0, "ignore files smaller than this many bytes")

	return cmd
}

func runLarge(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	files, err := a.svc.GetLargeFiles(ctx, flagLargeLimit, flagLargeMinSize)
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(files)
	}

	if len(files) == 0 {
		fmt.Println("No files found.")
		return nil
	}

	headers := []string{"SIZE", "MODIFIED", "PATH"}
	rows := make([][]string, 0, len(files))

	for _, f := range files {
		rows = append(rows, []string{
			formatSize(f.Size),
			formatWhen(f.ModifiedTime),
			f.Path + "/" + f.Name,
		})
	}

	printTable(os.Stdout, headers, rows)

	return nil
}
