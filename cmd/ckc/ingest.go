package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ckc/internal/ingest"
	"ckc/internal/model"
	"ckc/internal/storage"
)

var ingestFlags struct {
	scip string
	yaml string
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load a SCIP index or YAML edge list into the store",
	Long: `Ingest converts an already-extracted artifact into entities and raw
signal edges and stores them under a fresh run id.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFlags.scip, "scip", "", "SCIP index file")
	ingestCmd.Flags().StringVar(&ingestFlags.yaml, "yaml", "", "YAML edge list file")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	_, log, err := setup()
	if err != nil {
		return err
	}

	var entities []model.Entity
	var edges []model.RawEdge
	switch {
	case ingestFlags.scip != "" && ingestFlags.yaml != "":
		return fmt.Errorf("--scip and --yaml are mutually exclusive")
	case ingestFlags.scip != "":
		entities, edges, err = ingest.LoadSCIP(ingestFlags.scip, log)
	case ingestFlags.yaml != "":
		entities, edges, err = ingest.LoadEdgeList(ingestFlags.yaml)
	default:
		return fmt.Errorf("one of --scip or --yaml is required")
	}
	if err != nil {
		return err
	}

	db, err := storage.Open(rootFlag, log)
	if err != nil {
		return err
	}
	defer db.Close()

	runID := uuid.NewString()
	ctx := cmd.Context()
	if err := db.CreateRun(ctx, runID); err != nil {
		return err
	}
	if err := db.SaveGraph(ctx, runID, entities, edges); err != nil {
		return err
	}

	log.Info("graph ingested",
		"run", runID, "entities", len(entities), "edges", len(edges))
	fmt.Fprintln(cmd.OutOrStdout(), runID)
	return nil
}
