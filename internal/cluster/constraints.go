package cluster

import (
	"context"
	"fmt"
	"sort"

	"ckc/internal/affinity"
)

// grossTokenFactor is how far past TargetTokens a cluster may run before it
// counts as grossly exceeding the soft target.
const grossTokenFactor = 2.0

// enforceConstraints re-clusters any cluster violating MaxSize or grossly
// exceeding TargetTokens, recursively up to MaxDepth. Violations that
// survive the depth budget become advisory warnings instead of forced splits.
func (s *Session) enforceConstraints(ctx context.Context, g *affinity.Graph, res *Result, depth int) *Result {
	c := s.Opts.Constraints
	if c.MaxSize <= 0 && c.TargetTokens <= 0 {
		return res
	}

	byCluster := members(res.Assign)
	ids := make([]int, 0, len(byCluster))
	for id := range byCluster {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	next := 0
	newAssign := make([]int, len(res.Assign))
	warnings := make(map[int][]WarningRef)

	for _, id := range ids {
		mem := byCluster[id]
		tokens := g.TokenEstimate(mem)
		oversize := c.MaxSize > 0 && len(mem) > c.MaxSize
		overtokens := c.TargetTokens > 0 && float64(tokens) > grossTokenFactor*float64(c.TargetTokens)

		if (!oversize && !overtokens) || len(mem) < 2 {
			for _, m := range mem {
				newAssign[m] = next
			}
			next++
			continue
		}

		if depth >= c.MaxDepth {
			// Depth budget exhausted: keep the cluster, report it.
			for _, m := range mem {
				newAssign[m] = next
			}
			if oversize {
				warnings[next] = append(warnings[next], WarningRef{
					Code:   "oversized",
					Detail: fmt.Sprintf("%d members exceeds max size %d", len(mem), c.MaxSize),
				})
			}
			if overtokens {
				warnings[next] = append(warnings[next], WarningRef{
					Code:   "token-budget",
					Detail: fmt.Sprintf("%d tokens exceeds target %d", tokens, c.TargetTokens),
				})
			}
			next++
			continue
		}

		s.Log.Debug("re-clustering oversized cluster",
			"members", len(mem), "tokens", tokens, "depth", depth)

		sub, _ := g.Induced(mem)
		inner := &Session{Opts: s.Opts, Log: s.Log}
		// Higher resolution biases the inner run toward smaller clusters.
		inner.Opts.Gamma = s.Opts.Gamma * 1.5
		subRes, err := inner.clusterOnce(ctx, sub)
		if err != nil || subRes.NumClusters <= 1 {
			// Could not split further; same treatment as depth exhaustion.
			for _, m := range mem {
				newAssign[m] = next
			}
			warnings[next] = append(warnings[next], WarningRef{
				Code:   "oversized",
				Detail: fmt.Sprintf("%d members could not be split further", len(mem)),
			})
			next++
			continue
		}

		subRes = inner.enforceConstraints(ctx, sub, subRes, depth+1)
		subClusters := members(subRes.Assign)
		subIDs := make([]int, 0, len(subClusters))
		for subID := range subClusters {
			subIDs = append(subIDs, subID)
		}
		sort.Ints(subIDs)
		for _, subID := range subIDs {
			for _, sm := range subClusters[subID] {
				newAssign[mem[sm]] = next
			}
			if w := subRes.Warnings[subID]; w != nil {
				warnings[next] = append(warnings[next], w...)
			}
			next++
		}
		if subRes.Degraded {
			res.Degraded = true
		}
		if subRes.Cancelled {
			res.Cancelled = true
		}
	}

	res.Assign = newAssign
	res.NumClusters = next
	res.Warnings = warnings
	return res
}

// clusterOnce dispatches a strategy without constraint enforcement, used for
// the recursive splits.
func (s *Session) clusterOnce(ctx context.Context, g *affinity.Graph) (*Result, error) {
	switch s.Opts.Strategy {
	case StrategySpectral:
		return s.spectral(ctx, g)
	case StrategyWard:
		return s.ward(ctx, g)
	default:
		return s.louvain(ctx, g, s.Opts.Gamma)
	}
}
