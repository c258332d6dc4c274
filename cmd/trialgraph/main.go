package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yungbote/trialgraph/internal/app"
	"github.com/yungbote/trialgraph/internal/platform/envutil"
	"github.com/yungbote/trialgraph/internal/platform/logger"
)

var (
	cfgPath string
	cfg     app.Config
	log     *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "trialgraph",
	Short: "Stream clinical-trial records into normalized tables and a Neo4j knowledge graph",
	Long: `trialgraph is a two-stage ETL: "extract" streams a large JSON dump of
trial records into per-entity CSV tables with bounded memory, and "load"
builds an idempotent property graph from those tables. Repeated runs never
duplicate nodes or relationships.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		log, err = logger.New(envutil.Str("LOG_MODE", "development"))
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		cfg, err = app.Load(cfgPath)
		if err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "YAML config file (env vars fill gaps)")
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(initSchemaCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(portfolioCmd)
	rootCmd.AddCommand(runsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	if log != nil {
		log.Sync()
	}
}
