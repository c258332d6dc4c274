package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/trialgraph/internal/data/runs"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent pipeline runs from the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ledger, err := runs.Open(cfg.LedgerPath, log)
		if err != nil {
			return err
		}
		entries, err := ledger.Recent(ctx, runsLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("no runs recorded")
			return nil
		}
		for _, e := range entries {
			finished := "-"
			if e.FinishedAt != nil {
				finished = e.FinishedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%s  %-8s %-9s started=%s finished=%s",
				e.ID, e.Stage, e.Status, e.StartedAt.Format("2006-01-02 15:04:05"), finished)
			if e.Error != "" {
				fmt.Printf(" error=%q", e.Error)
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "number of runs to show")
}
