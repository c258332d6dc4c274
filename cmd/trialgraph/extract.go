package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yungbote/trialgraph/internal/data/runs"
	"github.com/yungbote/trialgraph/internal/extract"
	"github.com/yungbote/trialgraph/internal/ontology"
)

var (
	extractInput string
	extractOut   string
	extractMesh  string
	extractAbort bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Stream trial records into normalized CSV tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		input := extractInput
		if input == "" {
			input = cfg.Input
		}
		if input == "" {
			return fmt.Errorf("no input: pass --input or set it in the config")
		}
		outDir := extractOut
		if outDir == "" {
			outDir = cfg.OutDir
		}
		meshPath := extractMesh
		if meshPath == "" {
			meshPath = cfg.MeshTable
		}

		ledger, err := runs.Open(cfg.LedgerPath, log)
		if err != nil {
			return err
		}
		run, err := ledger.Begin(ctx, runs.StageExtract)
		if err != nil {
			return err
		}

		dead, err := extract.NewDeadLetter(outDir)
		if err != nil {
			return err
		}
		defer dead.Close()

		policy := extract.SkipBadRecords
		if extractAbort || cfg.OnBadRecord == "abort" {
			policy = extract.AbortOnBadRecord
		}
		reader, closer, err := extract.Open(input, log,
			extract.WithBadRecordPolicy(policy),
			extract.WithSkipHandler(func(index int, raw string, err error) {
				dead.Write(index, "parse", raw)
			}),
		)
		if err != nil {
			_ = ledger.Finish(ctx, run.ID, runs.StatusFailed, nil, err)
			return err
		}
		defer closer.Close()

		var resolver *ontology.Resolver
		if meshPath != "" {
			f, err := os.Open(meshPath)
			if err != nil {
				_ = ledger.Finish(ctx, run.ID, runs.StatusFailed, nil, err)
				return fmt.Errorf("open mesh ancestor table: %w", err)
			}
			resolver, err = ontology.LoadAncestorTable(f, log)
			f.Close()
			if err != nil {
				_ = ledger.Finish(ctx, run.ID, runs.StatusFailed, nil, err)
				return err
			}
		}

		writer, err := extract.NewTableWriter(outDir, cfg.FlushThreshold, log)
		if err != nil {
			_ = ledger.Finish(ctx, run.ID, runs.StatusFailed, nil, err)
			return err
		}

		pipeline := &extract.Pipeline{
			Reader:     reader,
			Decomposer: extract.NewDecomposer(log),
			Writer:     writer,
			Resolver:   resolver,
			DeadLetter: dead,
			Log:        log,
		}
		summary, err := pipeline.Run(ctx)
		if err != nil {
			_ = ledger.Finish(ctx, run.ID, runs.StatusFailed, summary, err)
			return err
		}

		status := runs.StatusSucceeded
		if summary.RecordsSkipped > 0 || summary.DecompErrors > 0 {
			status = runs.StatusPartial
		}
		if err := ledger.Finish(ctx, run.ID, status, summary, nil); err != nil {
			return err
		}

		fmt.Printf("extract: %d records processed, %d skipped, %d decomposition errors, %d unknown ontology refs\n",
			summary.RecordsProcessed, summary.RecordsSkipped, summary.DecompErrors, summary.UnknownOntology)
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVarP(&extractInput, "input", "i", "", "input JSON array / JSONL file (optionally .gz)")
	extractCmd.Flags().StringVarP(&extractOut, "out", "o", "", "output staging directory")
	extractCmd.Flags().StringVar(&extractMesh, "mesh", "", "MeSH ancestor table CSV")
	extractCmd.Flags().BoolVar(&extractAbort, "abort-on-bad-record", false, "abort the stream on the first malformed record")
}
