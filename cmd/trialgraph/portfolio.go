package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yungbote/trialgraph/internal/metrics"
	"github.com/yungbote/trialgraph/internal/platform/neo4jdb"
)

var portfolioName string

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Summarize every trial touching one intervention",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if portfolioName == "" {
			return fmt.Errorf("--name is required")
		}

		client, err := neo4jdb.New(cfg.Neo4j, log)
		if err != nil {
			return err
		}
		defer client.Close(ctx)

		report, err := metrics.Compute(ctx, client, log, portfolioName)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	portfolioCmd.Flags().StringVarP(&portfolioName, "name", "n", "", "intervention name (exact match, case-insensitive)")
}
