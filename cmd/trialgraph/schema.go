package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/trialgraph/internal/graph"
	"github.com/yungbote/trialgraph/internal/platform/neo4jdb"
)

var initSchemaCmd = &cobra.Command{
	Use:   "init-schema",
	Short: "Declare uniqueness constraints for every node label",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		client, err := neo4jdb.New(cfg.Neo4j, log)
		if err != nil {
			return err
		}
		store := graph.NewNeo4jStore(client, log)
		defer store.Close(ctx)

		if err := graph.EnsureConstraints(ctx, store, log); err != nil {
			return err
		}
		fmt.Println("schema: constraints ensured")
		return nil
	},
}
