package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/trialgraph/internal/data/runs"
	"github.com/yungbote/trialgraph/internal/graph"
	"github.com/yungbote/trialgraph/internal/platform/neo4jdb"
)

var loadDir string

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Apply the extracted tables to the graph store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		dir := loadDir
		if dir == "" {
			dir = cfg.OutDir
		}

		client, err := neo4jdb.New(cfg.Neo4j, log)
		if err != nil {
			return err
		}
		store := graph.NewNeo4jStore(client, log)
		defer store.Close(ctx)

		ledger, err := runs.Open(cfg.LedgerPath, log)
		if err != nil {
			return err
		}
		run, err := ledger.Begin(ctx, runs.StageLoad)
		if err != nil {
			return err
		}

		loader := graph.NewLoader(store, log)
		loader.BatchSize = cfg.BatchSize
		loader.MaxRetries = cfg.MaxRetries
		loader.RetryBackoff = cfg.RetryBackoff
		loader.BatchTimeout = cfg.BatchTimeout

		report, err := loader.Load(ctx, dir)
		if err != nil {
			_ = ledger.Finish(ctx, run.ID, runs.StatusFailed, report, err)
			return err
		}

		rows, committed, failed := report.Totals()
		status := runs.StatusSucceeded
		if report.Failed() {
			status = runs.StatusPartial
		}
		if err := ledger.Finish(ctx, run.ID, status, report, nil); err != nil {
			return err
		}

		fmt.Printf("load: %d rows, %d batches committed, %d batches failed\n", rows, committed, failed)
		if report.Failed() {
			return fmt.Errorf("%d batches failed after retries", failed)
		}
		return nil
	},
}

func init() {
	loadCmd.Flags().StringVarP(&loadDir, "dir", "d", "", "staging directory with the extracted tables")
}
