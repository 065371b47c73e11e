package cluster

import (
	"context"
	"math"

	"ckc/internal/affinity"
)

// wardNode tracks one dendrogram cluster during agglomeration.
type wardNode struct {
	centroid []float64
	size     int
	alive    bool
}

// ward runs Ward-linkage agglomerative clustering over the spectral
// embedding: start from singletons and repeatedly merge the pair with the
// minimum increase in within-cluster variance. The dendrogram is cut at the
// height where every cluster fits the configured size band, so merges that
// would exceed MaxSize are never taken. Ties break on the smaller index
// pair, keeping the dendrogram deterministic.
func (s *Session) ward(ctx context.Context, g *affinity.Graph) (*Result, error) {
	n := g.NumNodes()
	if n < 3 {
		return s.louvain(ctx, g, s.Opts.Gamma)
	}

	_, vecs, ok := eigenSym(g.Laplacian())
	if !ok {
		s.Log.Warn("eigensolver failed to converge, falling back to louvain")
		res, err := s.louvain(ctx, g, s.Opts.Gamma)
		if err == nil {
			res.Degraded = true
		}
		return res, err
	}

	// Embed in the lowest eigenvector coordinates; eight dimensions carry
	// enough geometry for variance-based merging on graphs this size.
	dim := 8
	if dim > n-1 {
		dim = n - 1
	}
	points := rowNormalize(vecs, n, dim)

	nodes := make([]wardNode, n)
	assign := make([]int, n)
	for i := 0; i < n; i++ {
		nodes[i] = wardNode{centroid: append([]float64(nil), points[i]...), size: 1, alive: true}
		assign[i] = i
	}

	maxSize := s.Opts.Constraints.MaxSize
	minSize := s.Opts.Constraints.MinSize
	alive := n
	cancelled := false

	for alive > 1 {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		bestA, bestB := -1, -1
		bestCost := math.MaxFloat64
		for a := 0; a < n; a++ {
			if !nodes[a].alive {
				continue
			}
			for b := a + 1; b < n; b++ {
				if !nodes[b].alive {
					continue
				}
				if maxSize > 0 && nodes[a].size+nodes[b].size > maxSize {
					continue
				}
				cost := wardCost(&nodes[a], &nodes[b])
				if cost < bestCost {
					bestA, bestB, bestCost = a, b, cost
				}
			}
		}
		if bestA < 0 {
			break // no merge fits the size band
		}

		// Once the band is satisfied, stop at the first merge that no
		// longer reduces fragmentation: all clusters at or above MinSize.
		if minSize > 1 && smallestAlive(nodes) >= minSize {
			break
		}

		mergeInto(&nodes[bestA], &nodes[bestB])
		nodes[bestB].alive = false
		for i := range assign {
			if assign[i] == bestB {
				assign[i] = bestA
			}
		}
		alive--
	}

	res := &Result{Assign: assign, Cancelled: cancelled}
	normalize(res)
	return res, nil
}

// wardCost is the increase in total within-cluster variance caused by
// merging a and b: (|a||b| / (|a|+|b|)) * ||centroid_a - centroid_b||^2.
func wardCost(a, b *wardNode) float64 {
	na, nb := float64(a.size), float64(b.size)
	return na * nb / (na + nb) * sqDist(a.centroid, b.centroid)
}

func mergeInto(a, b *wardNode) {
	na, nb := float64(a.size), float64(b.size)
	total := na + nb
	for i := range a.centroid {
		a.centroid[i] = (a.centroid[i]*na + b.centroid[i]*nb) / total
	}
	a.size += b.size
}

func smallestAlive(nodes []wardNode) int {
	smallest := math.MaxInt
	for i := range nodes {
		if nodes[i].alive && nodes[i].size < smallest {
			smallest = nodes[i].size
		}
	}
	return smallest
}
