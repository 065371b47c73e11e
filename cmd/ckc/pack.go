package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ckc/internal/contextpack"
	"ckc/internal/export"
	"ckc/internal/model"
)

var packFlags struct {
	source sourceFlags
	focus  string
	budget int
	task   string
	out    string
}

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Assemble a budget-constrained context pack around a focus entity",
	Long: `Pack rebuilds the hierarchy for the selected source, then greedily
expands from the focus entity's cluster along task-weighted cluster edges
until the token budget is filled. The result is written to
context_pack.json.`,
	RunE: runPack,
}

func init() {
	packFlags.source.register(packCmd)
	packCmd.Flags().StringVar(&packFlags.focus, "focus", "", "Focus entity id (required)")
	packCmd.Flags().IntVar(&packFlags.budget, "budget", 4000, "Token budget")
	packCmd.Flags().StringVar(&packFlags.task, "task", string(model.TaskExplain),
		"Task kind: bug_fix, refactor, feature, or explain")
	packCmd.Flags().StringVar(&packFlags.out, "out", "",
		"Output directory (default from config)")
	packCmd.MarkFlagRequired("focus")
	rootCmd.AddCommand(packCmd)
}

func runPack(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	task, err := parseTask(packFlags.task)
	if err != nil {
		return err
	}

	src, db, err := packFlags.source.open(log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	ctx := cmd.Context()
	h, err := buildHierarchy(ctx, src, cfg, cfg.Signals.Coefficients(), log)
	if err != nil {
		return err
	}

	opts := contextpack.Options{GainFloor: cfg.Pack.GainFloor}
	pack, err := contextpack.Assemble(ctx, h, packFlags.focus, packFlags.budget, task, opts, log)
	if err != nil {
		return err
	}

	dir := cfg.Export.Dir
	if packFlags.out != "" {
		dir = packFlags.out
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	w := &export.Writer{Dir: dir, Compress: cfg.Export.Gzip, Log: log}
	if err := w.WritePack(pack); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s (%d clusters, %d entities, %d/%d tokens",
		packFlags.focus, len(pack.SelectedClusters), len(pack.SelectedEntities),
		pack.TokenEstimate, pack.BudgetTokens)
	if pack.Truncated {
		fmt.Fprint(cmd.OutOrStdout(), ", truncated")
	}
	fmt.Fprintln(cmd.OutOrStdout(), ")")
	return nil
}

func parseTask(s string) (model.TaskKind, error) {
	switch model.TaskKind(s) {
	case model.TaskBugFix, model.TaskRefactor, model.TaskFeature, model.TaskExplain:
		return model.TaskKind(s), nil
	default:
		return "", fmt.Errorf("unknown task kind %q", s)
	}
}
