package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"ckc/internal/affinity"
	"ckc/internal/cluster"
	"ckc/internal/config"
	"ckc/internal/hierarchy"
	"ckc/internal/ingest"
	"ckc/internal/mdl"
	"ckc/internal/model"
	"ckc/internal/quality"
	"ckc/internal/storage"
)

// sourceFlags are the shared input selectors: exactly one of a stored run,
// a YAML edge list, or a SCIP index.
type sourceFlags struct {
	run  string
	yaml string
	scip string
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.run, "run", "", "Stored run id to load the graph from")
	cmd.Flags().StringVar(&f.yaml, "yaml", "", "YAML edge list to load the graph from")
	cmd.Flags().StringVar(&f.scip, "scip", "", "SCIP index to load the graph from")
}

// open resolves the flags to a graph source. A stored run needs the
// database; file sources do not.
func (f *sourceFlags) open(log *slog.Logger) (model.GraphSource, *storage.DB, error) {
	selected := 0
	for _, v := range []string{f.run, f.yaml, f.scip} {
		if v != "" {
			selected++
		}
	}
	if selected != 1 {
		return nil, nil, fmt.Errorf("exactly one of --run, --yaml, or --scip is required")
	}

	switch {
	case f.run != "":
		db, err := storage.Open(rootFlag, log)
		if err != nil {
			return nil, nil, err
		}
		return db.Source(f.run), db, nil
	case f.yaml != "":
		entities, edges, err := ingest.LoadEdgeList(f.yaml)
		if err != nil {
			return nil, nil, err
		}
		return &model.SliceSource{EntityList: entities, EdgeList: edges}, nil, nil
	default:
		entities, edges, err := ingest.LoadSCIP(f.scip, log)
		if err != nil {
			return nil, nil, err
		}
		return &model.SliceSource{EntityList: entities, EdgeList: edges}, nil, nil
	}
}

// buildHierarchy runs the full pipeline: source -> affinity graph ->
// clustered, refined, labeled hierarchy.
func buildHierarchy(ctx context.Context, src model.GraphSource, cfg *config.Config, coeffs map[model.SignalKind]float64, log *slog.Logger) (*hierarchy.Hierarchy, error) {
	entities, err := src.Entities(ctx)
	if err != nil {
		return nil, err
	}
	edges, err := src.RawEdges(ctx)
	if err != nil {
		return nil, err
	}

	g, report, err := affinity.Build(ctx, entities, edges, coeffs, log)
	if err != nil {
		return nil, err
	}
	if len(report.DanglingEdges) > 0 {
		log.Warn("dropped dangling edges", "count", len(report.DanglingEdges))
	}

	builder := &hierarchy.Builder{
		Cluster:   clusterOptions(cfg),
		Refine:    refineOptions(cfg),
		UseRefine: cfg.Refinement.Enabled,
		Thresholds: quality.Thresholds{
			MinCohesion: cfg.Thresholds.MinCohesion,
			MaxCoupling: cfg.Thresholds.MaxCoupling,
		},
		Levels: cfg.Hierarchy.Levels,
		Coeffs: coeffs,
		Log:    log,
	}
	return builder.Build(ctx, g)
}

func clusterOptions(cfg *config.Config) cluster.Options {
	return cluster.Options{
		Strategy:    cluster.Strategy(cfg.Strategy.Name),
		Gamma:       cfg.Strategy.Gamma,
		Epsilon:     cfg.Strategy.Epsilon,
		MaxPasses:   cfg.Strategy.MaxPasses,
		K:           cfg.Strategy.K,
		MaxEigen:    cfg.Strategy.MaxEigen,
		GapRatio:    cfg.Strategy.GapRatio,
		KMeansIters: cfg.Strategy.KMeansIters,
		Constraints: cluster.SizeConstraints{
			MinSize:      cfg.Constraints.MinSize,
			MaxSize:      cfg.Constraints.MaxSize,
			TargetTokens: cfg.Constraints.TargetTokens,
			MaxDepth:     cfg.Constraints.MaxDepth,
		},
	}
}

func refineOptions(cfg *config.Config) mdl.Options {
	return mdl.Options{
		MaxPasses:         cfg.Refinement.MaxPasses,
		BoundaryTolerance: cfg.Refinement.BoundaryTolerance,
	}
}
