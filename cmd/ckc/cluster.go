package main

import (
	"os"

	"github.com/spf13/cobra"

	"ckc/internal/export"
	"ckc/internal/ingest"
)

var clusterFlags struct {
	source  sourceFlags
	profile string
	out     string
	gzip    bool
	indent  bool
}

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Build the cluster hierarchy and export it",
	Long: `Cluster builds the affinity graph from the selected source, runs the
configured partitioning strategy with refinement at every resolution level,
and writes clusters.json, cluster_edges.json, and cluster_assignments.json.`,
	RunE: runCluster,
}

func init() {
	clusterFlags.source.register(clusterCmd)
	clusterCmd.Flags().StringVar(&clusterFlags.profile, "profile", "",
		"TOML signal profile overriding the configured coefficients")
	clusterCmd.Flags().StringVar(&clusterFlags.out, "out", "",
		"Output directory (default from config)")
	clusterCmd.Flags().BoolVar(&clusterFlags.gzip, "gzip", false,
		"Compress the exported documents")
	clusterCmd.Flags().BoolVar(&clusterFlags.indent, "indent", false,
		"Indent the exported documents")
	rootCmd.AddCommand(clusterCmd)
}

func runCluster(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	coeffs := cfg.Signals.Coefficients()
	if clusterFlags.profile != "" {
		_, coeffs, err = ingest.LoadProfile(clusterFlags.profile)
		if err != nil {
			return err
		}
	}

	src, db, err := clusterFlags.source.open(log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	ctx := cmd.Context()
	h, err := buildHierarchy(ctx, src, cfg, coeffs, log)
	if err != nil {
		return err
	}

	if db != nil {
		if err := db.SaveHierarchy(ctx, clusterFlags.source.run, h); err != nil {
			return err
		}
	}

	dir := cfg.Export.Dir
	if clusterFlags.out != "" {
		dir = clusterFlags.out
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	w := &export.Writer{
		Dir:      dir,
		Compress: clusterFlags.gzip || cfg.Export.Gzip,
		Indent:   clusterFlags.indent,
		Log:      log,
	}
	if err := w.WriteHierarchy(h); err != nil {
		return err
	}

	degraded, cancelled := false, false
	for _, lv := range h.Levels {
		degraded = degraded || lv.Degraded
		cancelled = cancelled || lv.Cancelled
	}
	log.Info("hierarchy exported",
		"dir", dir,
		"levels", len(h.Levels),
		"clusters", len(h.Finest().Clusters),
		"degraded", degraded,
		"cancelled", cancelled)
	return nil
}
