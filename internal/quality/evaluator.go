// Package quality computes partition quality metrics: cohesion, coupling,
// modularity, and conductance.
package quality

import (
	"ckc/internal/affinity"
	"ckc/internal/model"
)

// Metrics holds the per-cluster quality measures.
type Metrics struct {
	Cohesion               float64 `json:"cohesion"`
	Coupling               float64 `json:"coupling"`
	ModularityContribution float64 `json:"modularityContribution"`
	Conductance            float64 `json:"conductance"`
}

// Thresholds are the advisory bounds clusters are checked against.
type Thresholds struct {
	MinCohesion float64
	MaxCoupling float64
}

// DefaultThresholds returns the default advisory thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{MinCohesion: 0.80, MaxCoupling: 0.25}
}

// clusterAccum collects raw weight sums for one cluster.
type clusterAccum struct {
	size     int
	internal float64 // each internal edge counted once, self-loops included
	external float64 // boundary weight
	volume   float64 // sum of member degrees
}

// Evaluate computes metrics for every cluster of the partition. assign maps
// node index to cluster id; ids must be dense starting at 0.
func Evaluate(g *affinity.Graph, assign []int, gamma float64) map[int]Metrics {
	accums := accumulate(g, assign)
	m := g.TotalWeight()

	// Cohesion is density normalized by the densest cluster observed in
	// this graph, so the best cluster scores 1.0.
	maxDensity := 0.0
	densities := make(map[int]float64, len(accums))
	for id, acc := range accums {
		pairs := acc.size * (acc.size - 1) / 2
		if pairs < 1 {
			pairs = 1
		}
		d := acc.internal / float64(pairs)
		densities[id] = d
		if d > maxDensity {
			maxDensity = d
		}
	}

	out := make(map[int]Metrics, len(accums))
	for id, acc := range accums {
		var met Metrics

		if maxDensity > 0 {
			met.Cohesion = densities[id] / maxDensity
		}

		if acc.internal+acc.external > 0 {
			met.Coupling = acc.external / (acc.internal + acc.external)
		}

		if m > 0 {
			sumIn := 2 * acc.internal
			sumTot := acc.volume
			met.ModularityContribution = sumIn/(2*m) - gamma*(sumTot/(2*m))*(sumTot/(2*m))
		}

		denom := acc.volume
		if rest := 2*m - acc.volume; rest < denom {
			denom = rest
		}
		if denom > 0 {
			met.Conductance = acc.external / denom
		}

		out[id] = met
	}
	return out
}

// Modularity computes the global modularity Q of a partition at resolution
// gamma. Q is the sum of per-cluster contributions.
func Modularity(g *affinity.Graph, assign []int, gamma float64) float64 {
	m := g.TotalWeight()
	if m == 0 {
		return 0
	}
	q := 0.0
	for _, acc := range accumulateOrdered(g, assign) {
		sumIn := 2 * acc.internal
		sumTot := acc.volume
		q += sumIn/(2*m) - gamma*(sumTot/(2*m))*(sumTot/(2*m))
	}
	return q
}

// Check returns the advisory warnings a cluster's metrics trigger.
func (t Thresholds) Check(met Metrics) []model.WarningCode {
	var warns []model.WarningCode
	if met.Cohesion < t.MinCohesion {
		warns = append(warns, model.WarnLowCohesion)
	}
	if met.Coupling > t.MaxCoupling {
		warns = append(warns, model.WarnHighCoupling)
	}
	return warns
}

func accumulate(g *affinity.Graph, assign []int) map[int]*clusterAccum {
	accums := make(map[int]*clusterAccum)
	get := func(id int) *clusterAccum {
		acc := accums[id]
		if acc == nil {
			acc = &clusterAccum{}
			accums[id] = acc
		}
		return acc
	}

	for i := 0; i < g.NumNodes(); i++ {
		acc := get(assign[i])
		acc.size++
		acc.volume += g.Degree(i)
		acc.internal += g.SelfLoop(i)
		for _, nb := range g.Neighbors(i) {
			if assign[nb.Target] == assign[i] {
				if nb.Target > i {
					acc.internal += nb.Weight
				}
			} else {
				acc.external += nb.Weight
			}
		}
	}
	return accums
}

// accumulateOrdered returns accumulators in cluster-id order so float sums
// stay deterministic.
func accumulateOrdered(g *affinity.Graph, assign []int) []*clusterAccum {
	maxID := -1
	for _, id := range assign {
		if id > maxID {
			maxID = id
		}
	}
	accums := make([]*clusterAccum, maxID+1)
	for i := 0; i < g.NumNodes(); i++ {
		id := assign[i]
		if accums[id] == nil {
			accums[id] = &clusterAccum{}
		}
		acc := accums[id]
		acc.size++
		acc.volume += g.Degree(i)
		acc.internal += g.SelfLoop(i)
		for _, nb := range g.Neighbors(i) {
			if assign[nb.Target] == id {
				if nb.Target > i {
					acc.internal += nb.Weight
				}
			} else {
				acc.external += nb.Weight
			}
		}
	}
	out := accums[:0]
	for _, acc := range accums {
		if acc != nil {
			out = append(out, acc)
		}
	}
	return out
}
