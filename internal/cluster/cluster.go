// Package cluster implements the partitioning strategies: Louvain modularity
// optimization, spectral k-way cuts, and Ward agglomerative merging.
package cluster

import (
	"context"
	"log/slog"
	"sort"

	"ckc/internal/affinity"
	"ckc/internal/errors"
)

// Strategy selects a partitioning algorithm. The set is closed; dispatch is
// a switch, not an interface.
type Strategy string

const (
	StrategyLouvain  Strategy = "louvain"
	StrategySpectral Strategy = "spectral"
	StrategyWard     Strategy = "ward"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyLouvain, StrategySpectral, StrategyWard:
		return Strategy(s), nil
	default:
		return "", errors.New(errors.InternalError, "unknown strategy "+s)
	}
}

// SizeConstraints bounds the clusters an algorithm may emit. Violations are
// fixed by recursive re-clustering up to MaxDepth, then reported as warnings.
type SizeConstraints struct {
	MinSize      int
	MaxSize      int
	TargetTokens int
	MaxDepth     int
}

// Options tunes one clustering run.
type Options struct {
	Strategy Strategy

	// Louvain
	Gamma     float64 // resolution; >1 biases toward more clusters
	Epsilon   float64 // minimum modularity gain to accept a move
	MaxPasses int     // local-move sweep budget across all levels

	// Spectral
	K           int     // 0 = estimate via eigengap
	MaxEigen    int     // eigenvalues inspected for the gap
	GapRatio    float64 // accepted gap must be >= GapRatio * median gap
	KMeansIters int

	Constraints SizeConstraints
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		Strategy:    StrategyLouvain,
		Gamma:       1.0,
		Epsilon:     1e-4,
		MaxPasses:   100,
		MaxEigen:    20,
		GapRatio:    1.5,
		KMeansIters: 50,
		Constraints: SizeConstraints{MinSize: 2, MaxSize: 50, TargetTokens: 4000, MaxDepth: 3},
	}
}

// Result is one strategy's output: a dense assignment of node index to
// cluster id, plus degradation flags.
type Result struct {
	Assign      []int // node index -> cluster id, ids dense from 0
	NumClusters int
	Degraded    bool // pass budget exhausted, best-so-far returned
	Cancelled   bool // cooperative cancellation, best-so-far returned
	Passes      int
	Warnings    map[int][]WarningRef // cluster id -> constraint warnings
}

// WarningRef records an advisory constraint violation on a cluster.
type WarningRef struct {
	Code   string
	Detail string
}

// Session carries the run-scoped state of one clustering invocation. All
// state is explicit; the package keeps no globals.
type Session struct {
	Opts Options
	Log  *slog.Logger

	moves   int
	retries int
}

// NewSession creates a session for the given options.
func NewSession(opts Options, log *slog.Logger) *Session {
	return &Session{Opts: opts, Log: log}
}

// Cluster partitions the graph with the session's strategy, then enforces
// size constraints by recursive re-clustering. Cancellation is cooperative:
// the best partition found so far is returned flagged Cancelled.
func (s *Session) Cluster(ctx context.Context, g *affinity.Graph) (*Result, error) {
	if g.NumNodes() == 0 {
		return nil, errors.New(errors.EmptyGraph, "cannot cluster an empty graph")
	}

	var res *Result
	var err error
	switch s.Opts.Strategy {
	case StrategyLouvain:
		res, err = s.louvain(ctx, g, s.Opts.Gamma)
	case StrategySpectral:
		res, err = s.spectral(ctx, g)
	case StrategyWard:
		res, err = s.ward(ctx, g)
	default:
		return nil, errors.New(errors.InternalError, "unknown strategy "+string(s.Opts.Strategy))
	}
	if err != nil {
		return nil, err
	}

	res = s.enforceConstraints(ctx, g, res, 0)
	normalize(res)
	return res, nil
}

// normalize renumbers cluster ids densely in order of first appearance by
// node index, so equal partitions always carry equal ids.
func normalize(res *Result) {
	remap := make(map[int]int)
	warnRemap := make(map[int][]WarningRef)
	next := 0
	for i, id := range res.Assign {
		nid, ok := remap[id]
		if !ok {
			nid = next
			remap[id] = nid
			next++
			if w := res.Warnings[id]; w != nil {
				warnRemap[nid] = w
			}
		}
		res.Assign[i] = nid
	}
	res.NumClusters = next
	if len(warnRemap) > 0 || res.Warnings != nil {
		res.Warnings = warnRemap
	}
}

// members returns node indexes per cluster id, each list sorted ascending.
func members(assign []int) map[int][]int {
	out := make(map[int][]int)
	for i, id := range assign {
		out[id] = append(out[id], i)
	}
	for _, m := range out {
		sort.Ints(m)
	}
	return out
}
