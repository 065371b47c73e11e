package affinity

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"sync"

	"ckc/internal/errors"
	"ckc/internal/model"
)

// DefaultCoefficients returns the default per-signal combination weights.
func DefaultCoefficients() map[model.SignalKind]float64 {
	return map[model.SignalKind]float64{
		model.SignalDependency: 1.0,
		model.SignalDataFlow:   0.8,
		model.SignalTemporal:   0.6,
		model.SignalSemantic:   0.4,
	}
}

// BuildReport describes recoverable conditions hit during graph construction.
type BuildReport struct {
	DanglingEdges []model.RawEdge `json:"danglingEdges,omitempty"`
	EdgesCombined int             `json:"edgesCombined"`
}

// pairKey is a directed entity-index pair.
type pairKey struct {
	from, to int
}

type pairAccum struct {
	signals  map[model.SignalKind]float64
	combined float64
}

// Build combines raw per-signal edges into one affinity graph. Entities are
// indexed in id-sorted order so identical input always produces an identical
// graph regardless of input ordering. Edges whose endpoints are unknown are
// dropped, reported, and the build continues; an empty entity set is fatal.
func Build(ctx context.Context, entities []model.Entity, edges []model.RawEdge, coeffs map[model.SignalKind]float64, log *slog.Logger) (*Graph, *BuildReport, error) {
	if len(entities) == 0 {
		return nil, nil, errors.New(errors.EmptyGraph, "no entities supplied")
	}
	if coeffs == nil {
		coeffs = DefaultCoefficients()
	}

	sorted := make([]model.Entity, len(entities))
	copy(sorted, entities)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	g := &Graph{
		nodes:     sorted,
		nodeIdx:   make(map[string]int, len(sorted)),
		adj:       make([][]Neighbor, len(sorted)),
		selfLoops: make([]float64, len(sorted)),
		degrees:   make([]float64, len(sorted)),
		directed:  make(map[[2]int]map[model.SignalKind]float64),
	}
	for i, e := range sorted {
		g.nodeIdx[e.ID] = i
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, errors.Wrap(errors.Cancelled, "graph build cancelled", err)
	}

	report := &BuildReport{}

	// Resolve endpoints, dropping dangling edges up front so the sharded
	// reduction only sees valid index pairs.
	resolved := make([]model.RawEdge, 0, len(edges))
	indexed := make([]pairKey, 0, len(edges))
	for _, e := range edges {
		from, okFrom := g.nodeIdx[e.From]
		to, okTo := g.nodeIdx[e.To]
		if !okFrom || !okTo {
			report.DanglingEdges = append(report.DanglingEdges, e)
			log.Warn("dropping dangling edge",
				"from", e.From, "to", e.To, "signal", string(e.Signal))
			continue
		}
		if e.Weight < 0 {
			report.DanglingEdges = append(report.DanglingEdges, e)
			log.Warn("dropping negative-weight edge",
				"from", e.From, "to", e.To, "weight", e.Weight)
			continue
		}
		resolved = append(resolved, e)
		indexed = append(indexed, pairKey{from, to})
	}

	pairs := reduceEdges(resolved, indexed, coeffs)
	report.EdgesCombined = len(pairs)

	// Symmetrize: combined undirected weight sums both directions.
	type undirected struct {
		u, v int
	}
	sym := make(map[undirected]float64, len(pairs))
	for pk, acc := range pairs {
		g.directed[[2]int{pk.from, pk.to}] = acc.signals
		u, v := pk.from, pk.to
		if u > v {
			u, v = v, u
		}
		sym[undirected{u, v}] += acc.combined
	}

	// Accumulate in sorted pair order; float sums must not depend on map
	// iteration order or byte-identical reruns break.
	keys := make([]undirected, 0, len(sym))
	for k := range sym {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		if keys[a].u != keys[b].u {
			return keys[a].u < keys[b].u
		}
		return keys[a].v < keys[b].v
	})

	for _, k := range keys {
		w := sym[k]
		if w == 0 {
			continue
		}
		if k.u == k.v {
			g.selfLoops[k.u] += w
			g.degrees[k.u] += 2 * w
			g.total += w
			continue
		}
		g.adj[k.u] = append(g.adj[k.u], Neighbor{Target: k.v, Weight: w})
		g.adj[k.v] = append(g.adj[k.v], Neighbor{Target: k.u, Weight: w})
		g.degrees[k.u] += w
		g.degrees[k.v] += w
		g.total += w
	}

	for i := range g.adj {
		sort.Slice(g.adj[i], func(a, b int) bool {
			return g.adj[i][a].Target < g.adj[i][b].Target
		})
	}

	log.Debug("affinity graph built",
		"nodes", g.NumNodes(), "edges", report.EdgesCombined,
		"dangling", len(report.DanglingEdges), "totalWeight", g.total)

	return g, report, nil
}

// reduceEdges sums duplicate raw edges per (pair, signal) and applies the
// signal coefficients. Shards partition the pair space, so each pair is
// owned by exactly one shard and float summation order stays deterministic.
func reduceEdges(edges []model.RawEdge, indexed []pairKey, coeffs map[model.SignalKind]float64) map[pairKey]*pairAccum {
	shards := runtime.NumCPU()
	if shards > 8 {
		shards = 8
	}
	if shards < 2 || len(edges) < 1024 {
		return reduceShard(edges, indexed, coeffs, 0, 1)
	}

	partials := make([]map[pairKey]*pairAccum, shards)
	var wg sync.WaitGroup
	for s := 0; s < shards; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			partials[s] = reduceShard(edges, indexed, coeffs, s, shards)
		}(s)
	}
	wg.Wait()

	merged := partials[0]
	for _, p := range partials[1:] {
		for k, v := range p {
			merged[k] = v
		}
	}
	return merged
}

func reduceShard(edges []model.RawEdge, indexed []pairKey, coeffs map[model.SignalKind]float64, shard, shards int) map[pairKey]*pairAccum {
	out := make(map[pairKey]*pairAccum)
	for i, e := range edges {
		pk := indexed[i]
		if pk.from%shards != shard {
			continue
		}
		acc := out[pk]
		if acc == nil {
			acc = &pairAccum{signals: make(map[model.SignalKind]float64, 2)}
			out[pk] = acc
		}
		acc.signals[e.Signal] += e.Weight
	}
	for _, acc := range out {
		// Canonical signal order keeps the float sum deterministic.
		for _, sig := range model.AllSignals {
			if w, ok := acc.signals[sig]; ok {
				acc.combined += coeffs[sig] * w
			}
		}
	}
	return out
}
