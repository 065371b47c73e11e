// Package affinity builds the combined multi-signal affinity graph the
// clustering strategies operate on.
package affinity

import (
	"sync"

	"gonum.org/v1/gonum/mat"

	"ckc/internal/model"
)

// Neighbor is one endpoint of an undirected combined-weight edge.
type Neighbor struct {
	Target int     // node index
	Weight float64 // combined weight (both directions summed)
}

// Graph is the immutable affinity graph. Nodes are entities in id-sorted
// order; edges carry the combined weight of all signals, symmetrized for
// clustering. Per-signal directed sums are kept separately for reporting.
// A built Graph is never mutated and is safe for concurrent readers.
type Graph struct {
	nodes     []model.Entity
	nodeIdx   map[string]int
	adj       [][]Neighbor
	selfLoops []float64 // super-node internal weight, kept off the adjacency lists
	degrees   []float64
	total     float64 // sum of undirected edge weights (each edge once)
	directed  map[[2]int]map[model.SignalKind]float64

	lapOnce sync.Once
	lap     *mat.SymDense
}

// NumNodes returns the number of entities in the graph.
func (g *Graph) NumNodes() int {
	return len(g.nodes)
}

// Entity returns the entity at node index i.
func (g *Graph) Entity(i int) model.Entity {
	return g.nodes[i]
}

// Index returns the node index for an entity id.
func (g *Graph) Index(id string) (int, bool) {
	idx, ok := g.nodeIdx[id]
	return idx, ok
}

// Neighbors returns the undirected adjacency list of node i, sorted by
// target index. Callers must not modify the returned slice.
func (g *Graph) Neighbors(i int) []Neighbor {
	return g.adj[i]
}

// Degree returns the weighted degree of node i.
func (g *Graph) Degree(i int) float64 {
	return g.degrees[i]
}

// TotalWeight returns m, the sum of all undirected edge weights.
func (g *Graph) TotalWeight() float64 {
	return g.total
}

// Weight returns the combined undirected weight between u and v, or 0.
func (g *Graph) Weight(u, v int) float64 {
	for _, n := range g.adj[u] {
		if n.Target == v {
			return n.Weight
		}
		if n.Target > v {
			break
		}
	}
	return 0
}

// SelfLoop returns the self-loop weight of node i. Self-loops only appear on
// contracted super-graphs, where they carry a cluster's internal weight.
func (g *Graph) SelfLoop(i int) float64 {
	return g.selfLoops[i]
}

// SignalBreakdown returns the directed per-signal raw weight sums from u to
// v. The map is nil when no raw edge exists in that direction.
func (g *Graph) SignalBreakdown(u, v int) map[model.SignalKind]float64 {
	return g.directed[[2]int{u, v}]
}

// TokenEstimate sums member token estimates over the given node indexes.
func (g *Graph) TokenEstimate(members []int) int {
	total := 0
	for _, m := range members {
		total += g.nodes[m].TokenEstimate
	}
	return total
}

// Induced returns the subgraph induced by the given node indexes, along with
// a mapping from new index to original index. Per-signal breakdowns are
// carried over so derived graphs keep full reporting fidelity.
func (g *Graph) Induced(members []int) (*Graph, []int) {
	old2new := make(map[int]int, len(members))
	orig := make([]int, len(members))
	sub := &Graph{
		nodes:     make([]model.Entity, len(members)),
		nodeIdx:   make(map[string]int, len(members)),
		adj:       make([][]Neighbor, len(members)),
		selfLoops: make([]float64, len(members)),
		degrees:   make([]float64, len(members)),
		directed:  make(map[[2]int]map[model.SignalKind]float64),
	}
	for ni, oi := range members {
		old2new[oi] = ni
		orig[ni] = oi
		sub.nodes[ni] = g.nodes[oi]
		sub.nodeIdx[g.nodes[oi].ID] = ni
	}
	for ni, oi := range members {
		sub.selfLoops[ni] = g.selfLoops[oi]
		sub.degrees[ni] += 2 * g.selfLoops[oi]
		sub.total += g.selfLoops[oi]
		for _, n := range g.adj[oi] {
			tn, ok := old2new[n.Target]
			if !ok {
				continue
			}
			sub.adj[ni] = append(sub.adj[ni], Neighbor{Target: tn, Weight: n.Weight})
			sub.degrees[ni] += n.Weight
			if ni < tn {
				sub.total += n.Weight
			}
			if bd := g.directed[[2]int{oi, n.Target}]; bd != nil {
				sub.directed[[2]int{ni, tn}] = bd
			}
		}
	}
	return sub, orig
}
