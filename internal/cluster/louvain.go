package cluster

import (
	"context"
	"sort"

	"ckc/internal/affinity"
)

// wgraph is the mutable working representation Louvain contracts between
// levels. The affinity graph itself is never touched.
type wgraph struct {
	n    int
	adj  [][]affinity.Neighbor
	self []float64
	deg  []float64
	m    float64
}

func fromAffinity(g *affinity.Graph) *wgraph {
	wg := &wgraph{
		n:    g.NumNodes(),
		adj:  make([][]affinity.Neighbor, g.NumNodes()),
		self: make([]float64, g.NumNodes()),
		deg:  make([]float64, g.NumNodes()),
		m:    g.TotalWeight(),
	}
	for i := 0; i < wg.n; i++ {
		wg.adj[i] = g.Neighbors(i)
		wg.self[i] = g.SelfLoop(i)
		wg.deg[i] = g.Degree(i)
	}
	return wg
}

// louvain runs two-phase modularity optimization. Phase A sweeps nodes in
// index order moving each to the neighboring community with the largest
// positive modularity gain; Phase B contracts communities into super-nodes
// and repeats. Node order is fixed, so the result is deterministic.
func (s *Session) louvain(ctx context.Context, g *affinity.Graph, gamma float64) (*Result, error) {
	wg := fromAffinity(g)

	// origAssign projects original nodes onto current working-graph nodes.
	origAssign := make([]int, g.NumNodes())
	for i := range origAssign {
		origAssign[i] = i
	}

	eps := s.Opts.Epsilon
	budget := s.Opts.MaxPasses
	passes := 0
	degraded := false
	cancelled := false

	retried := false
levels:
	for {
		comm := make([]int, wg.n)
		for i := range comm {
			comm[i] = i
		}
		sumTot := make([]float64, wg.n)
		copy(sumTot, wg.deg)

		// Phase A: local moves until a full sweep improves nothing.
		converged := false
		for !converged {
			if ctx.Err() != nil {
				cancelled = true
				project(origAssign, comm)
				break levels
			}
			if passes >= budget {
				if !retried {
					// One retry with relaxed tolerance before degrading.
					retried = true
					eps *= 10
					budget += s.Opts.MaxPasses
					s.retries++
					s.Log.Warn("louvain pass budget exhausted, retrying with relaxed tolerance",
						"epsilon", eps)
					continue
				}
				degraded = true
				s.Log.Warn("louvain did not converge, returning best partition found",
					"passes", passes)
				project(origAssign, comm)
				break levels
			}
			passes++
			if moved := s.sweep(wg, comm, sumTot, gamma, eps); moved == 0 {
				converged = true
			}
		}

		// Phase B: contract communities into super-nodes.
		contracted, renumber, numComms := contract(wg, comm)
		if numComms == wg.n {
			// No merges this level; done.
			project(origAssign, comm)
			break
		}
		for i := range comm {
			comm[i] = renumber[comm[i]]
		}
		project(origAssign, comm)
		wg = contracted
	}

	res := &Result{Assign: origAssign, Passes: passes, Degraded: degraded, Cancelled: cancelled}
	normalize(res)
	return res, nil
}

// project composes the original-node assignment with the current level's
// community assignment.
func project(origAssign, comm []int) {
	for i, c := range origAssign {
		origAssign[i] = comm[c]
	}
}

// sweep performs one full pass of local moves and returns the move count.
func (s *Session) sweep(wg *wgraph, comm []int, sumTot []float64, gamma, eps float64) int {
	moves := 0
	twoM := 2 * wg.m
	if twoM == 0 {
		return 0
	}

	neighWeight := make(map[int]float64)

	for i := 0; i < wg.n; i++ {
		cur := comm[i]

		for k := range neighWeight {
			delete(neighWeight, k)
		}
		for _, nb := range wg.adj[i] {
			neighWeight[comm[nb.Target]] += nb.Weight
		}

		// Take i out of its community before evaluating candidates.
		sumTot[cur] -= wg.deg[i]

		// Candidate communities in sorted order for deterministic ties.
		cands := make([]int, 0, len(neighWeight)+1)
		for c := range neighWeight {
			cands = append(cands, c)
		}
		if _, ok := neighWeight[cur]; !ok {
			cands = append(cands, cur)
		}
		sort.Ints(cands)

		gain := func(c int) float64 {
			return neighWeight[c]/wg.m - gamma*sumTot[c]*wg.deg[i]/(twoM*twoM/2)
		}

		// Strict maximum over sorted candidates: ties keep the smallest
		// community id, which makes the sweep deterministic.
		curGain := gain(cur)
		best := cur
		bestGain := curGain
		for _, c := range cands {
			if g := gain(c); g > bestGain {
				best = c
				bestGain = g
			}
		}

		if best != cur && bestGain-curGain > eps {
			sumTot[best] += wg.deg[i]
			comm[i] = best
			moves++
			s.moves++
		} else {
			sumTot[cur] += wg.deg[i]
		}
	}
	return moves
}

// contract builds the super-graph whose nodes are the communities of comm.
// Returns the contracted graph, a dense renumbering of community ids, and
// the community count.
func contract(wg *wgraph, comm []int) (*wgraph, map[int]int, int) {
	renumber := make(map[int]int)
	next := 0
	for i := 0; i < wg.n; i++ {
		if _, ok := renumber[comm[i]]; !ok {
			renumber[comm[i]] = next
			next++
		}
	}

	out := &wgraph{
		n:    next,
		adj:  make([][]affinity.Neighbor, next),
		self: make([]float64, next),
		deg:  make([]float64, next),
		m:    wg.m,
	}

	cross := make(map[[2]int]float64)
	for i := 0; i < wg.n; i++ {
		ci := renumber[comm[i]]
		out.self[ci] += wg.self[i]
		for _, nb := range wg.adj[i] {
			cj := renumber[comm[nb.Target]]
			if ci == cj {
				if nb.Target > i {
					out.self[ci] += nb.Weight
				}
				continue
			}
			if nb.Target > i {
				u, v := ci, cj
				if u > v {
					u, v = v, u
				}
				cross[[2]int{u, v}] += nb.Weight
			}
		}
	}

	keys := make([][2]int, 0, len(cross))
	for k := range cross {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		if keys[a][0] != keys[b][0] {
			return keys[a][0] < keys[b][0]
		}
		return keys[a][1] < keys[b][1]
	})
	for _, k := range keys {
		w := cross[k]
		out.adj[k[0]] = append(out.adj[k[0]], affinity.Neighbor{Target: k[1], Weight: w})
		out.adj[k[1]] = append(out.adj[k[1]], affinity.Neighbor{Target: k[0], Weight: w})
		out.deg[k[0]] += w
		out.deg[k[1]] += w
	}
	for i := 0; i < next; i++ {
		out.deg[i] += 2 * out.self[i]
		sort.Slice(out.adj[i], func(a, b int) bool {
			return out.adj[i][a].Target < out.adj[i][b].Target
		})
	}

	return out, renumber, next
}
