// Package contextpack assembles budget-constrained bundles of clusters and
// entities around a focus entity for downstream consumption.
package contextpack

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"ckc/internal/errors"
	"ckc/internal/hierarchy"
	"ckc/internal/model"
)

// Options tunes pack assembly.
type Options struct {
	// GainFloor stops frontier expansion once the best candidate's
	// information gain per normalized token cost drops below it.
	GainFloor float64
}

// DefaultOptions returns the assembly defaults.
func DefaultOptions() Options {
	return Options{GainFloor: 0.05}
}

// Pack is the ephemeral result of one assembly query. It is never persisted.
type Pack struct {
	Focus            string              `json:"focus"`
	BudgetTokens     int                 `json:"budgetTokens"`
	Task             model.TaskKind      `json:"taskKind"`
	SelectedClusters []string            `json:"selectedClusters"` // in selection order
	SelectedEntities []string            `json:"selectedEntities"` // sorted
	TokenEstimate    int                 `json:"tokenEstimate"`
	Truncated        bool                `json:"truncated"`
	Warnings         []model.WarningCode `json:"warnings,omitempty"`
	Justification    string              `json:"justification"`
}

// taskWeights biases the frontier score per task kind. Dependency and data
// flow dominate bug fixing, co-change history dominates refactoring, and
// semantic similarity matters most when explaining or extending.
var taskWeights = map[model.TaskKind]map[model.SignalKind]float64{
	model.TaskBugFix: {
		model.SignalDependency: 1.0, model.SignalDataFlow: 0.8,
		model.SignalTemporal: 0.4, model.SignalSemantic: 0.3,
	},
	model.TaskRefactor: {
		model.SignalDependency: 0.6, model.SignalDataFlow: 0.6,
		model.SignalTemporal: 1.0, model.SignalSemantic: 0.4,
	},
	model.TaskFeature: {
		model.SignalDependency: 0.8, model.SignalDataFlow: 0.6,
		model.SignalTemporal: 0.4, model.SignalSemantic: 0.9,
	},
	model.TaskExplain: {
		model.SignalDependency: 0.7, model.SignalDataFlow: 0.7,
		model.SignalTemporal: 0.5, model.SignalSemantic: 0.9,
	},
}

func weightsFor(task model.TaskKind) map[model.SignalKind]float64 {
	if w, ok := taskWeights[task]; ok {
		return w
	}
	return taskWeights[model.TaskExplain]
}

// Assemble builds a context pack around focus from the hierarchy's finest
// level. Expansion is greedy over the cluster frontier, ordered by a
// task-weighted affinity score; it stops when the budget is exhausted, the
// frontier is empty, the marginal gain falls below the floor, or ctx is
// cancelled (the pack built so far is returned).
func Assemble(ctx context.Context, h *hierarchy.Hierarchy, focus string, budget int, task model.TaskKind, opts Options, log *slog.Logger) (*Pack, error) {
	if opts.GainFloor <= 0 {
		opts.GainFloor = 0.05
	}

	finest := h.Finest()
	focusCluster, ok := finest.ClusterOf(focus)
	if !ok {
		return nil, errors.New(errors.DanglingEdge, "focus entity "+focus+" is not in the graph")
	}

	pack := &Pack{
		Focus:        focus,
		BudgetTokens: budget,
		Task:         task,
	}

	if focusCluster.TokenEstimate > budget {
		truncateToCentral(h, focusCluster, focus, budget, pack)
		log.Debug("context pack truncated to focus cluster core",
			"focus", focus, "budget", budget, "entities", len(pack.SelectedEntities))
		return pack, nil
	}

	weights := weightsFor(task)
	adjacency := clusterAdjacency(finest)
	clustersByID := make(map[string]*hierarchy.Cluster, len(finest.Clusters))
	for i := range finest.Clusters {
		clustersByID[finest.Clusters[i].ID] = &finest.Clusters[i]
	}

	selected := map[string]bool{focusCluster.ID: true}
	pack.SelectedClusters = []string{focusCluster.ID}
	pack.TokenEstimate = focusCluster.TokenEstimate
	neighbors := 0

	for ctx.Err() == nil {
		id, ratio, ok := bestCandidate(adjacency, clustersByID, selected, weights, budget, pack.TokenEstimate)
		if !ok || ratio < opts.GainFloor {
			break
		}
		selected[id] = true
		pack.SelectedClusters = append(pack.SelectedClusters, id)
		pack.TokenEstimate += clustersByID[id].TokenEstimate
		neighbors++
	}

	for _, id := range pack.SelectedClusters {
		pack.SelectedEntities = append(pack.SelectedEntities, clustersByID[id].Members...)
	}
	sort.Strings(pack.SelectedEntities)

	pack.Justification = fmt.Sprintf(
		"focus cluster plus %d neighbors by %s affinity, %d of %d tokens",
		neighbors, task, pack.TokenEstimate, budget)
	return pack, nil
}

// edgeRef is one direction of a cluster edge as seen from a cluster.
type edgeRef struct {
	other   string
	weights map[model.SignalKind]float64
}

// clusterAdjacency indexes a level's edges by cluster, both directions.
func clusterAdjacency(l *hierarchy.Level) map[string][]edgeRef {
	adj := map[string][]edgeRef{}
	for _, e := range l.Edges {
		adj[e.FromCluster] = append(adj[e.FromCluster], edgeRef{e.ToCluster, e.Weights})
		adj[e.ToCluster] = append(adj[e.ToCluster], edgeRef{e.FromCluster, e.Weights})
	}
	return adj
}

// bestCandidate scores every unselected cluster adjacent to the selection
// and returns the one with the highest task-weighted connecting score that
// fits the remaining budget, along with its gain-per-cost ratio. Ties go to
// the lexicographically smallest cluster id.
func bestCandidate(adj map[string][]edgeRef, clusters map[string]*hierarchy.Cluster, selected map[string]bool, weights map[model.SignalKind]float64, budget, used int) (string, float64, bool) {
	connecting := map[string]float64{}
	for id := range selected {
		for _, ref := range adj[id] {
			if !selected[ref.other] {
				connecting[ref.other] += score(ref.weights, weights)
			}
		}
	}

	ids := make([]string, 0, len(connecting))
	for id := range connecting {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	best, bestScore := "", 0.0
	for _, id := range ids {
		c := clusters[id]
		if c == nil || used+c.TokenEstimate > budget {
			continue
		}
		if connecting[id] > bestScore {
			best, bestScore = id, connecting[id]
		}
	}
	if best == "" {
		return "", 0, false
	}

	// Information gain is the fraction of the candidate's task-weighted
	// connectivity that points into the selection; cost is its token share
	// of the whole budget. The ratio is dimensionless.
	total := 0.0
	for _, ref := range adj[best] {
		total += score(ref.weights, weights)
	}
	gain := 1.0
	if total > 0 {
		gain = bestScore / total
	}
	cost := float64(clusters[best].TokenEstimate) / float64(budget)
	if cost <= 0 {
		return best, gain, true
	}
	return best, gain / cost, true
}

func score(edge, task map[model.SignalKind]float64) float64 {
	s := 0.0
	for _, sig := range model.AllSignals {
		s += task[sig] * edge[sig]
	}
	return s
}

// truncateToCentral fills the pack with the focus cluster's highest-
// centrality members that fit the budget. The focus entity is considered
// first; if not even the focus entity fits, the pack is empty and carries a
// budget-infeasible warning.
func truncateToCentral(h *hierarchy.Hierarchy, c *hierarchy.Cluster, focus string, budget int, pack *Pack) {
	g := h.Graph()
	pack.Truncated = true
	pack.SelectedClusters = []string{c.ID}

	ordered := make([]string, 0, len(c.Members))
	ordered = append(ordered, focus)
	rest := make([]string, 0, len(c.Members)-1)
	for _, m := range c.Members {
		if m != focus {
			rest = append(rest, m)
		}
	}
	sort.Slice(rest, func(i, j int) bool {
		di, dj := 0.0, 0.0
		if idx, ok := g.Index(rest[i]); ok {
			di = g.Degree(idx)
		}
		if idx, ok := g.Index(rest[j]); ok {
			dj = g.Degree(idx)
		}
		if di != dj {
			return di > dj
		}
		return rest[i] < rest[j]
	})
	ordered = append(ordered, rest...)

	for _, m := range ordered {
		idx, ok := g.Index(m)
		if !ok {
			continue
		}
		cost := g.Entity(idx).TokenEstimate
		if pack.TokenEstimate+cost > budget {
			if m == focus {
				// A pack that cannot even hold the focus entity is useless;
				// return it empty rather than padded with bystanders.
				pack.Warnings = append(pack.Warnings, model.WarnBudgetInfeasible)
				break
			}
			continue
		}
		pack.SelectedEntities = append(pack.SelectedEntities, m)
		pack.TokenEstimate += cost
	}
	sort.Strings(pack.SelectedEntities)

	pack.Justification = fmt.Sprintf(
		"budget %d below focus cluster estimate %d, kept %d central members",
		budget, c.TokenEstimate, len(pack.SelectedEntities))
}
