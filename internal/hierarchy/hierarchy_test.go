package hierarchy

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"ckc/internal/affinity"
	"ckc/internal/cluster"
	"ckc/internal/logging"
	"ckc/internal/mdl"
	"ckc/internal/model"
	"ckc/internal/quality"
)

// twoCliqueInput returns two 5-cliques bridged by two weak cross edges, one
// per signal kind, so cluster edges carry a per-signal breakdown.
func twoCliqueInput() ([]model.Entity, []model.RawEdge) {
	var entities []model.Entity
	for _, group := range []string{"a", "b"} {
		for i := 0; i < 5; i++ {
			entities = append(entities, model.Entity{
				ID:            fmt.Sprintf("%s%d", group, i),
				Name:          fmt.Sprintf("parse%s%d", strings.ToUpper(group), i),
				Kind:          model.KindFunction,
				TokenEstimate: 100,
			})
		}
	}

	var edges []model.RawEdge
	for _, group := range []string{"a", "b"} {
		for i := 0; i < 5; i++ {
			for j := i + 1; j < 5; j++ {
				edges = append(edges, model.RawEdge{
					From:   fmt.Sprintf("%s%d", group, i),
					To:     fmt.Sprintf("%s%d", group, j),
					Signal: model.SignalDependency,
					Weight: 1.0,
				})
			}
		}
	}
	edges = append(edges,
		model.RawEdge{From: "a0", To: "b0", Signal: model.SignalDependency, Weight: 0.1},
		model.RawEdge{From: "a1", To: "b1", Signal: model.SignalDataFlow, Weight: 0.1},
	)
	return entities, edges
}

func buildTestHierarchy(t *testing.T) *Hierarchy {
	t.Helper()
	entities, edges := twoCliqueInput()
	g, _, err := affinity.Build(context.Background(), entities, edges, nil, logging.Discard())
	if err != nil {
		t.Fatalf("affinity.Build: %v", err)
	}
	b := &Builder{
		Cluster:    cluster.DefaultOptions(),
		Refine:     mdl.DefaultOptions(),
		UseRefine:  true,
		Thresholds: quality.DefaultThresholds(),
		Log:        logging.Discard(),
	}
	h, err := b.Build(context.Background(), g)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return h
}

func TestBuildLevelsAndPartitions(t *testing.T) {
	h := buildTestHierarchy(t)

	if len(h.Levels) != 3 {
		t.Fatalf("levels = %d, want 3", len(h.Levels))
	}
	wantLevels := []float64{0.7, 0.5, 0.3}
	for i, lv := range h.Levels {
		if lv.Level != wantLevels[i] {
			t.Errorf("level[%d] = %v, want %v", i, lv.Level, wantLevels[i])
		}

		// Every entity is assigned to exactly one cluster, and cluster
		// member lists agree with the assignment map.
		if len(lv.Assignments) != 10 {
			t.Errorf("level %v: %d assignments, want 10", lv.Level, len(lv.Assignments))
		}
		seen := map[string]bool{}
		for _, c := range lv.Clusters {
			for _, m := range c.Members {
				if seen[m] {
					t.Errorf("level %v: entity %s in two clusters", lv.Level, m)
				}
				seen[m] = true
				if lv.Assignments[m] != c.ID {
					t.Errorf("level %v: assignment of %s disagrees with membership", lv.Level, m)
				}
			}
		}
	}

	finest := h.Finest()
	if len(finest.Clusters) != 2 {
		t.Fatalf("finest clusters = %d, want 2", len(finest.Clusters))
	}
	for _, c := range finest.Clusters {
		if len(c.Members) != 5 {
			t.Errorf("finest cluster size = %d, want 5", len(c.Members))
		}
		if c.TokenEstimate != 500 {
			t.Errorf("token estimate = %d, want 500", c.TokenEstimate)
		}
		if c.Label == "" {
			t.Errorf("cluster %s has no label", c.ID)
		}
	}
}

func TestBuildNesting(t *testing.T) {
	h := buildTestHierarchy(t)

	// Two entities sharing a cluster at a finer level must share one at
	// every coarser level.
	ids := make([]string, 0, 10)
	for id := range h.Finest().Assignments {
		ids = append(ids, id)
	}
	for li := 0; li < len(h.Levels)-1; li++ {
		fine, coarse := h.Levels[li], h.Levels[li+1]
		for _, x := range ids {
			for _, y := range ids {
				if fine.Assignments[x] == fine.Assignments[y] &&
					coarse.Assignments[x] != coarse.Assignments[y] {
					t.Fatalf("nesting violated between levels %v and %v: %s and %s split apart",
						fine.Level, coarse.Level, x, y)
				}
			}
		}
	}
}

func TestBuildDeterministic(t *testing.T) {
	first := buildTestHierarchy(t)
	for run := 0; run < 3; run++ {
		again := buildTestHierarchy(t)
		for i := range first.Levels {
			if !reflect.DeepEqual(first.Levels[i].Clusters, again.Levels[i].Clusters) {
				t.Fatalf("run %d: clusters diverged at level %v", run, first.Levels[i].Level)
			}
			if !reflect.DeepEqual(first.Levels[i].Edges, again.Levels[i].Edges) {
				t.Fatalf("run %d: edges diverged at level %v", run, first.Levels[i].Level)
			}
		}
	}
}

func TestClusterEdgesCarrySignalBreakdown(t *testing.T) {
	h := buildTestHierarchy(t)
	finest := h.Finest()

	if len(finest.Edges) != 1 {
		t.Fatalf("finest edges = %d, want 1", len(finest.Edges))
	}
	e := finest.Edges[0]
	if e.FromCluster == e.ToCluster {
		t.Fatalf("edge connects a cluster to itself")
	}
	if e.BoundaryCrossings != 2 {
		t.Errorf("boundary crossings = %d, want 2", e.BoundaryCrossings)
	}
	if w := e.Weights[model.SignalDependency]; w != 0.1 {
		t.Errorf("dependency weight = %v, want 0.1", w)
	}
	if w := e.Weights[model.SignalDataFlow]; w != 0.1 {
		t.Errorf("dataflow weight = %v, want 0.1", w)
	}
}

func TestClusterOf(t *testing.T) {
	h := buildTestHierarchy(t)
	finest := h.Finest()

	c, ok := finest.ClusterOf("a0")
	if !ok {
		t.Fatal("a0 not found")
	}
	for _, m := range c.Members {
		if strings.HasPrefix(m, "b") {
			t.Errorf("a0's cluster contains %s", m)
		}
	}
	if _, ok := finest.ClusterOf("nope"); ok {
		t.Error("unknown entity should not resolve to a cluster")
	}
}

func TestClusterIDStable(t *testing.T) {
	a := ClusterID(0.7, []string{"x", "y", "z"})
	b := ClusterID(0.7, []string{"z", "x", "y"})
	if a != b {
		t.Errorf("member order changed the id: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, "ckc:cluster:") {
		t.Errorf("unexpected id format %s", a)
	}
	if c := ClusterID(0.5, []string{"x", "y", "z"}); c == a {
		t.Error("different levels must yield different ids")
	}
	if c := ClusterID(0.7, []string{"x", "y"}); c == a {
		t.Error("different member sets must yield different ids")
	}
}
