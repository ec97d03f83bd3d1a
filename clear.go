package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var flagClearYes bool

func newClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the local index",
		Long: `Delete every indexed record: files, parent edges, sync bookkeeping,
and logged record errors. The caches are cleared too, since they were
derived from the deleted index. The next sync runs a full crawl.`,
		RunE: runClear,
	}

	cmd.Flags().BoolVarP(&flagClearYes, "yes", "y", false, "skip the confirmation prompt")

	return cmd
}

func runClear(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if !flagClearYes {
		fmt.Print("Delete the local index and caches? [y/N] ")

		reader := bufio.NewReader(os.Stdin)

		answer, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading confirmation: %w", err)
		}

		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := a.svc.ClearIndex(ctx); err != nil {
		return err
	}

	if err := a.svc.ClearCache(""); err != nil {
		return err
	}

	fmt.Println("Index and caches cleared.")

	return nil
}
