package cluster

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"ckc/internal/affinity"
	"ckc/internal/logging"
	"ckc/internal/model"
	"ckc/internal/quality"
)

// buildGraph assembles an affinity graph from explicit dependency edges.
func buildGraph(t *testing.T, ids []string, edges [][3]interface{}) *affinity.Graph {
	t.Helper()
	entities := make([]model.Entity, len(ids))
	for i, id := range ids {
		entities[i] = model.Entity{ID: id, Kind: model.KindFunction, TokenEstimate: 100}
	}
	raw := make([]model.RawEdge, len(edges))
	for i, e := range edges {
		raw[i] = model.RawEdge{
			From: e[0].(string), To: e[1].(string),
			Signal: model.SignalDependency, Weight: float64(e[2].(int)),
		}
	}
	g, _, err := affinity.Build(context.Background(), entities, raw, nil, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	return g
}

// twoCliqueGraph builds two 5-node cliques with internal
// weight 10, joined by a single weight-1 edge.
func twoCliqueGraph(t *testing.T) *affinity.Graph {
	t.Helper()
	var ids []string
	var edges [][3]interface{}
	for _, p := range []string{"a", "b"} {
		for i := 0; i < 5; i++ {
			ids = append(ids, fmt.Sprintf("%s%d", p, i))
		}
		for i := 0; i < 5; i++ {
			for j := i + 1; j < 5; j++ {
				edges = append(edges, [3]interface{}{fmt.Sprintf("%s%d", p, i), fmt.Sprintf("%s%d", p, j), 10})
			}
		}
	}
	edges = append(edges, [3]interface{}{"a0", "b0", 1})
	return buildGraph(t, ids, edges)
}

func TestLouvainTwoCliques(t *testing.T) {
	g := twoCliqueGraph(t)
	sess := NewSession(DefaultOptions(), logging.Discard())

	res, err := sess.Cluster(context.Background(), g)
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}
	if res.NumClusters != 2 {
		t.Fatalf("clusters = %d, want 2", res.NumClusters)
	}
	if res.Degraded || res.Cancelled {
		t.Errorf("unexpected flags: degraded=%v cancelled=%v", res.Degraded, res.Cancelled)
	}

	// The two a-clique ids must share a cluster, likewise the b-clique.
	a0, _ := g.Index("a0")
	b0, _ := g.Index("b0")
	for i := 0; i < g.NumNodes(); i++ {
		id := g.Entity(i).ID
		if id[0] == 'a' && res.Assign[i] != res.Assign[a0] {
			t.Errorf("%s not with a-clique", id)
		}
		if id[0] == 'b' && res.Assign[i] != res.Assign[b0] {
			t.Errorf("%s not with b-clique", id)
		}
	}

	metrics := quality.Evaluate(g, res.Assign, 1.0)
	for id, met := range metrics {
		if met.Cohesion < 0.9 {
			t.Errorf("cluster %d cohesion = %v, want >= 0.9", id, met.Cohesion)
		}
		if met.Coupling > 0.1 {
			t.Errorf("cluster %d coupling = %v, want <= 0.1", id, met.Coupling)
		}
	}
}

func TestLouvainModularityAboveRandomBaseline(t *testing.T) {
	g := twoCliqueGraph(t)
	sess := NewSession(DefaultOptions(), logging.Discard())

	res, err := sess.Cluster(context.Background(), g)
	if err != nil {
		t.Fatal(err)
	}
	q := quality.Modularity(g, res.Assign, 1.0)
	if q < -0.5 || q > 1.0 {
		t.Errorf("Q = %v outside [-0.5, 1.0]", q)
	}

	// A size-preserving shuffled partition must score no better. The
	// shuffle interleaves cliques deterministically.
	shuffled := make([]int, len(res.Assign))
	for i := range shuffled {
		shuffled[i] = i % res.NumClusters
	}
	if qs := quality.Modularity(g, shuffled, 1.0); qs > q {
		t.Errorf("shuffled partition Q %v exceeds louvain Q %v", qs, q)
	}
}

func TestLouvainUniformCycleStable(t *testing.T) {
	// 6-cycle with uniform weights: the result must be identical across
	// repeated runs, whatever tie-breaks decide.
	ids := []string{"n0", "n1", "n2", "n3", "n4", "n5"}
	var edges [][3]interface{}
	for i := 0; i < 6; i++ {
		edges = append(edges, [3]interface{}{fmt.Sprintf("n%d", i), fmt.Sprintf("n%d", (i+1)%6), 1})
	}

	var first []int
	for run := 0; run < 10; run++ {
		g := buildGraph(t, ids, edges)
		sess := NewSession(DefaultOptions(), logging.Discard())
		res, err := sess.Cluster(context.Background(), g)
		if err != nil {
			t.Fatal(err)
		}
		if run == 0 {
			first = append([]int(nil), res.Assign...)
			continue
		}
		if !reflect.DeepEqual(first, res.Assign) {
			t.Fatalf("run %d diverged: %v vs %v", run, res.Assign, first)
		}
	}
}

func TestLouvainPartitionValidity(t *testing.T) {
	g := twoCliqueGraph(t)
	sess := NewSession(DefaultOptions(), logging.Discard())
	res, err := sess.Cluster(context.Background(), g)
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Assign) != g.NumNodes() {
		t.Fatalf("assignment covers %d of %d nodes", len(res.Assign), g.NumNodes())
	}
	seen := map[int]bool{}
	for _, id := range res.Assign {
		if id < 0 || id >= res.NumClusters {
			t.Errorf("cluster id %d out of range", id)
		}
		seen[id] = true
	}
	if len(seen) != res.NumClusters {
		t.Errorf("cluster ids not dense: %d distinct, NumClusters=%d", len(seen), res.NumClusters)
	}
}

func TestSpectralTwoCliques(t *testing.T) {
	g := twoCliqueGraph(t)
	opts := DefaultOptions()
	opts.Strategy = StrategySpectral
	sess := NewSession(opts, logging.Discard())

	res, err := sess.Cluster(context.Background(), g)
	if err != nil {
		t.Fatalf("spectral failed: %v", err)
	}
	if res.NumClusters != 2 {
		t.Fatalf("clusters = %d, want 2", res.NumClusters)
	}
	a0, _ := g.Index("a0")
	a4, _ := g.Index("a4")
	b0, _ := g.Index("b0")
	if res.Assign[a0] != res.Assign[a4] {
		t.Error("a-clique split by spectral cut")
	}
	if res.Assign[a0] == res.Assign[b0] {
		t.Error("cliques not separated by spectral cut")
	}
}

func TestSpectralExplicitK(t *testing.T) {
	g := twoCliqueGraph(t)
	opts := DefaultOptions()
	opts.Strategy = StrategySpectral
	opts.K = 2
	sess := NewSession(opts, logging.Discard())

	res, err := sess.Cluster(context.Background(), g)
	if err != nil {
		t.Fatal(err)
	}
	if res.NumClusters != 2 {
		t.Errorf("clusters = %d, want 2 with explicit k", res.NumClusters)
	}
}

func TestWardTwoCliques(t *testing.T) {
	g := twoCliqueGraph(t)
	opts := DefaultOptions()
	opts.Strategy = StrategyWard
	opts.Constraints.MinSize = 5
	opts.Constraints.MaxSize = 5
	sess := NewSession(opts, logging.Discard())

	res, err := sess.Cluster(context.Background(), g)
	if err != nil {
		t.Fatalf("ward failed: %v", err)
	}
	if res.NumClusters != 2 {
		t.Fatalf("clusters = %d, want 2", res.NumClusters)
	}
	a0, _ := g.Index("a0")
	b0, _ := g.Index("b0")
	if res.Assign[a0] == res.Assign[b0] {
		t.Error("cliques merged despite size band")
	}
}

func TestConstraintSplitsOversizedCluster(t *testing.T) {
	// One dense 12-node blob with max size 6: the constraint pass has to
	// split it even though modularity prefers one cluster.
	var ids []string
	var edges [][3]interface{}
	for i := 0; i < 12; i++ {
		ids = append(ids, fmt.Sprintf("x%02d", i))
	}
	// Two dense halves weakly joined so a split exists.
	for i := 0; i < 6; i++ {
		for j := i + 1; j < 6; j++ {
			edges = append(edges, [3]interface{}{fmt.Sprintf("x%02d", i), fmt.Sprintf("x%02d", j), 10})
			edges = append(edges, [3]interface{}{fmt.Sprintf("x%02d", i+6), fmt.Sprintf("x%02d", j+6), 10})
		}
	}
	edges = append(edges, [3]interface{}{"x00", "x06", 8})
	edges = append(edges, [3]interface{}{"x01", "x07", 8})

	g := buildGraph(t, ids, edges)
	opts := DefaultOptions()
	opts.Gamma = 0.2 // bias toward one big cluster before constraints
	opts.Constraints.MaxSize = 6
	sess := NewSession(opts, logging.Discard())

	res, err := sess.Cluster(context.Background(), g)
	if err != nil {
		t.Fatal(err)
	}
	for id, mem := range clusterSizes(res.Assign) {
		if mem > 6 {
			if res.Warnings[id] == nil {
				t.Errorf("cluster %d size %d exceeds max without a warning", id, mem)
			}
		}
	}
}

func TestCancellationReturnsPartialResult(t *testing.T) {
	g := twoCliqueGraph(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancelled before the first pass

	sess := NewSession(DefaultOptions(), logging.Discard())
	res, err := sess.Cluster(ctx, g)
	if err != nil {
		t.Fatalf("cancellation must not error: %v", err)
	}
	if !res.Cancelled {
		t.Error("expected Cancelled flag")
	}
	if len(res.Assign) != g.NumNodes() {
		t.Error("partial result must still cover every node")
	}
}

func TestParseStrategy(t *testing.T) {
	for _, s := range []string{"louvain", "spectral", "ward"} {
		if _, err := ParseStrategy(s); err != nil {
			t.Errorf("ParseStrategy(%q) failed: %v", s, err)
		}
	}
	if _, err := ParseStrategy("kmeans"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func clusterSizes(assign []int) map[int]int {
	sizes := map[int]int{}
	for _, id := range assign {
		sizes[id]++
	}
	return sizes
}
