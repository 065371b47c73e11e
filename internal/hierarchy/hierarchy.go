// Package hierarchy builds the multi-resolution nested cluster hierarchy.
// Each coarser level re-clusters the previous level's clusters as
// super-nodes, so nesting holds by construction.
package hierarchy

import (
	"context"
	"log/slog"
	"sort"

	"ckc/internal/affinity"
	"ckc/internal/cluster"
	"ckc/internal/labeling"
	"ckc/internal/logging"
	"ckc/internal/mdl"
	"ckc/internal/model"
	"ckc/internal/quality"
)

// Cluster is one labeled, measured cluster at one resolution level.
type Cluster struct {
	ID              string              `json:"clusterId"`
	Level           float64             `json:"level"`
	Members         []string            `json:"members"` // entity ids, sorted
	Metrics         quality.Metrics     `json:"metrics"`
	TokenEstimate   int                 `json:"tokenEstimate"`
	Label           string              `json:"label,omitempty"`
	LabelConfidence float64             `json:"labelConfidence,omitempty"`
	Warnings        []model.WarningCode `json:"warnings,omitempty"`
}

// ClusterEdge aggregates the inter-cluster affinity at one level.
type ClusterEdge struct {
	FromCluster       string                       `json:"fromCluster"`
	ToCluster         string                       `json:"toCluster"`
	Weights           map[model.SignalKind]float64 `json:"weights"`
	BoundaryCrossings int                          `json:"boundaryCrossings"`
}

// Level is one complete resolution level of the hierarchy.
type Level struct {
	Level       float64           `json:"level"`
	Clusters    []Cluster         `json:"clusters"` // sorted by id
	Edges       []ClusterEdge     `json:"edges"`    // sorted by (from, to)
	Assignments map[string]string `json:"assignments"`
	Degraded    bool              `json:"degraded,omitempty"`
	Cancelled   bool              `json:"cancelled,omitempty"`
}

// Hierarchy is the completed multi-level result. Once built it is immutable
// and safe to share across goroutines.
type Hierarchy struct {
	Levels []Level // finest first
	graph  *affinity.Graph
}

// Graph returns the affinity graph the hierarchy was built from.
func (h *Hierarchy) Graph() *affinity.Graph {
	return h.graph
}

// Finest returns the finest (first) level.
func (h *Hierarchy) Finest() *Level {
	return &h.Levels[0]
}

// ClusterOf returns the cluster containing the entity at the given level.
func (l *Level) ClusterOf(entityID string) (*Cluster, bool) {
	id, ok := l.Assignments[entityID]
	if !ok {
		return nil, false
	}
	for i := range l.Clusters {
		if l.Clusters[i].ID == id {
			return &l.Clusters[i], true
		}
	}
	return nil, false
}

// Builder assembles hierarchies. All state is explicit; a Builder may be
// reused across runs.
type Builder struct {
	Cluster    cluster.Options
	Refine     mdl.Options
	UseRefine  bool
	Thresholds quality.Thresholds
	Levels     []float64 // finest first, e.g. 0.7, 0.5, 0.3
	// Coeffs are the per-signal combination weights, reapplied when
	// contracting super-graphs; nil means the defaults.
	Coeffs map[model.SignalKind]float64
	Log    *slog.Logger
}

// Build constructs the nested hierarchy bottom-up. The finest level is the
// clustering engine's output on the affinity graph; each coarser level
// re-clusters the previous level's clusters as super-nodes.
func (b *Builder) Build(ctx context.Context, g *affinity.Graph) (*Hierarchy, error) {
	levels := b.Levels
	if len(levels) == 0 {
		levels = []float64{0.7, 0.5, 0.3}
	}
	if b.Log == nil {
		b.Log = logging.Discard()
	}

	h := &Hierarchy{graph: g, Levels: make([]Level, 0, len(levels))}

	// Finest level: cluster the affinity graph directly, then refine.
	sess := cluster.NewSession(b.Cluster, b.Log)
	res, err := sess.Cluster(ctx, g)
	if err != nil {
		return nil, err
	}
	assign := res.Assign
	cancelled := res.Cancelled
	if b.UseRefine && !cancelled {
		stats := mdl.Refine(ctx, g, assign, b.Refine, b.Log)
		cancelled = cancelled || stats.Cancelled
		assign = dense(assign)
	}

	h.Levels = append(h.Levels, b.buildLevel(g, levels[0], assign, res.Degraded, cancelled))

	// Coarser levels: re-cluster the super-graph of the previous level.
	for _, lv := range levels[1:] {
		prev := &h.Levels[len(h.Levels)-1]
		super, memberSets, err := b.superGraph(ctx, g, prev)
		if err != nil {
			return nil, err
		}

		superSess := cluster.NewSession(b.Cluster, b.Log)
		superRes, err := superSess.Cluster(ctx, super)
		if err != nil {
			return nil, err
		}

		// Compose: every entity follows its fine cluster's super-assignment.
		composed := make([]int, g.NumNodes())
		for superIdx, fineMembers := range memberSets {
			for _, entityIdx := range fineMembers {
				composed[entityIdx] = superRes.Assign[superIdx]
			}
		}

		h.Levels = append(h.Levels, b.buildLevel(g, lv, composed, superRes.Degraded, superRes.Cancelled))
	}

	return h, nil
}

// buildLevel materializes clusters, metrics, labels, warnings, and edges
// for one level from a node assignment over the original graph.
func (b *Builder) buildLevel(g *affinity.Graph, level float64, assign []int, degraded, cancelled bool) Level {
	byCluster := map[int][]int{}
	for i, id := range assign {
		byCluster[id] = append(byCluster[id], i)
	}
	ids := make([]int, 0, len(byCluster))
	for id := range byCluster {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	metrics := quality.Evaluate(g, assign, b.Cluster.Gamma)

	idByDense := make(map[int]string, len(ids))
	clusters := make([]Cluster, 0, len(ids))
	assignments := make(map[string]string, g.NumNodes())

	for _, id := range ids {
		nodeIdxs := byCluster[id]
		memberIDs := make([]string, len(nodeIdxs))
		names := make([]string, len(nodeIdxs))
		for i, n := range nodeIdxs {
			memberIDs[i] = g.Entity(n).ID
			names[i] = g.Entity(n).DisplayName()
		}
		sort.Strings(memberIDs)

		cid := ClusterID(level, memberIDs)
		idByDense[id] = cid

		met := metrics[id]
		label := labeling.Derive(names)

		c := Cluster{
			ID:              cid,
			Level:           level,
			Members:         memberIDs,
			Metrics:         met,
			TokenEstimate:   g.TokenEstimate(nodeIdxs),
			Label:           label.Text,
			LabelConfidence: label.Confidence,
			Warnings:        b.clusterWarnings(met, len(nodeIdxs), g.TokenEstimate(nodeIdxs)),
		}
		clusters = append(clusters, c)
		for _, m := range memberIDs {
			assignments[m] = cid
		}
	}

	sort.Slice(clusters, func(i, j int) bool { return clusters[i].ID < clusters[j].ID })

	return Level{
		Level:       level,
		Clusters:    clusters,
		Edges:       clusterEdges(g, assign, idByDense),
		Assignments: assignments,
		Degraded:    degraded,
		Cancelled:   cancelled,
	}
}

// clusterWarnings collects threshold and constraint advisories.
func (b *Builder) clusterWarnings(met quality.Metrics, size, tokens int) []model.WarningCode {
	warns := b.Thresholds.Check(met)
	c := b.Cluster.Constraints
	if c.MaxSize > 0 && size > c.MaxSize {
		warns = append(warns, model.WarnOversized)
	}
	if c.TargetTokens > 0 && tokens > 2*c.TargetTokens {
		warns = append(warns, model.WarnTokenBudget)
	}
	sort.Slice(warns, func(i, j int) bool { return warns[i] < warns[j] })
	return warns
}

// clusterEdges aggregates per-signal inter-cluster weights and boundary
// crossing counts from the original graph.
func clusterEdges(g *affinity.Graph, assign []int, idByDense map[int]string) []ClusterEdge {
	type key struct{ from, to int }
	weights := map[key]map[model.SignalKind]float64{}
	crossings := map[key]int{}

	for u := 0; u < g.NumNodes(); u++ {
		for _, nb := range g.Neighbors(u) {
			if assign[nb.Target] == assign[u] {
				continue
			}
			if nb.Target > u {
				// Count each undirected boundary edge once, on the sorted pair.
				a, z := assign[u], assign[nb.Target]
				if a > z {
					a, z = z, a
				}
				crossings[key{a, z}]++
			}
			if bd := g.SignalBreakdown(u, nb.Target); bd != nil {
				k := key{assign[u], assign[nb.Target]}
				if weights[k] == nil {
					weights[k] = map[model.SignalKind]float64{}
				}
				for _, sig := range model.AllSignals {
					if w, ok := bd[sig]; ok {
						weights[k][sig] += w
					}
				}
			}
		}
	}

	keys := make([]key, 0, len(weights))
	for k := range weights {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].from != keys[j].from {
			return keys[i].from < keys[j].from
		}
		return keys[i].to < keys[j].to
	})

	edges := make([]ClusterEdge, 0, len(keys))
	for _, k := range keys {
		a, z := k.from, k.to
		if a > z {
			a, z = z, a
		}
		edges = append(edges, ClusterEdge{
			FromCluster:       idByDense[k.from],
			ToCluster:         idByDense[k.to],
			Weights:           weights[k],
			BoundaryCrossings: crossings[key{a, z}],
		})
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].FromCluster != edges[j].FromCluster {
			return edges[i].FromCluster < edges[j].FromCluster
		}
		return edges[i].ToCluster < edges[j].ToCluster
	})
	return edges
}

// superGraph contracts a level into a graph whose nodes are its clusters.
// Returns the contracted graph and, per super-node index, the original node
// indexes it contains.
func (b *Builder) superGraph(ctx context.Context, g *affinity.Graph, prev *Level) (*affinity.Graph, [][]int, error) {
	entities := make([]model.Entity, len(prev.Clusters))
	for i, c := range prev.Clusters {
		entities[i] = model.Entity{
			ID:            c.ID,
			Name:          c.Label,
			Kind:          model.KindModule,
			TokenEstimate: c.TokenEstimate,
		}
	}

	// Map entity -> super-node index via cluster id order.
	superIdx := make(map[string]int, len(prev.Clusters))
	for i, c := range prev.Clusters {
		superIdx[c.ID] = i
	}
	nodeSuper := make([]int, g.NumNodes())
	memberSets := make([][]int, len(prev.Clusters))
	for i := 0; i < g.NumNodes(); i++ {
		si := superIdx[prev.Assignments[g.Entity(i).ID]]
		nodeSuper[i] = si
		memberSets[si] = append(memberSets[si], i)
	}

	// Aggregate per-signal directed weights between super-nodes; intra-
	// cluster weight becomes a self edge so modularity sees it.
	type key struct{ from, to int }
	agg := map[key]map[model.SignalKind]float64{}
	for u := 0; u < g.NumNodes(); u++ {
		for _, nb := range g.Neighbors(u) {
			bd := g.SignalBreakdown(u, nb.Target)
			if bd == nil {
				continue
			}
			k := key{nodeSuper[u], nodeSuper[nb.Target]}
			if agg[k] == nil {
				agg[k] = map[model.SignalKind]float64{}
			}
			for _, sig := range model.AllSignals {
				if w, ok := bd[sig]; ok {
					agg[k][sig] += w
				}
			}
		}
	}

	keys := make([]key, 0, len(agg))
	for k := range agg {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].from != keys[j].from {
			return keys[i].from < keys[j].from
		}
		return keys[i].to < keys[j].to
	})

	var raw []model.RawEdge
	for _, k := range keys {
		for _, sig := range model.AllSignals {
			if w, ok := agg[k][sig]; ok && w > 0 {
				raw = append(raw, model.RawEdge{
					From:   entities[k.from].ID,
					To:     entities[k.to].ID,
					Signal: sig,
					Weight: w,
				})
			}
		}
	}

	super, _, err := affinity.Build(ctx, entities, raw, b.Coeffs, b.Log)
	if err != nil {
		return nil, nil, err
	}

	// affinity.Build re-sorts entities by id; remap member sets to the
	// built graph's node order.
	remapped := make([][]int, super.NumNodes())
	for i := 0; i < super.NumNodes(); i++ {
		oi := superIdx[super.Entity(i).ID]
		remapped[i] = memberSets[oi]
	}
	return super, remapped, nil
}

// dense renumbers an assignment to consecutive ids in first-appearance
// order, preserving determinism after refinement empties clusters.
func dense(assign []int) []int {
	remap := map[int]int{}
	next := 0
	for i, id := range assign {
		nid, ok := remap[id]
		if !ok {
			nid = next
			remap[id] = nid
			next++
		}
		assign[i] = nid
	}
	return assign
}
