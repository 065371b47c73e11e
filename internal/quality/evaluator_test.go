package quality

import (
	"context"
	"fmt"
	"math"
	"testing"

	"ckc/internal/affinity"
	"ckc/internal/logging"
	"ckc/internal/model"
)

// twoCliques builds two 3-node cliques joined by a single weak edge.
// Node order after id-sorting: a0 a1 a2 b0 b1 b2.
func twoCliques(t *testing.T) *affinity.Graph {
	t.Helper()
	var entities []model.Entity
	var edges []model.RawEdge
	for _, prefix := range []string{"a", "b"} {
		for i := 0; i < 3; i++ {
			entities = append(entities, model.Entity{ID: fmt.Sprintf("%s%d", prefix, i), Kind: model.KindFunction, TokenEstimate: 10})
		}
		for i := 0; i < 3; i++ {
			for j := i + 1; j < 3; j++ {
				edges = append(edges, model.RawEdge{
					From: fmt.Sprintf("%s%d", prefix, i), To: fmt.Sprintf("%s%d", prefix, j),
					Signal: model.SignalDependency, Weight: 10,
				})
			}
		}
	}
	edges = append(edges, model.RawEdge{From: "a0", To: "b0", Signal: model.SignalDependency, Weight: 1})

	g, _, err := affinity.Build(context.Background(), entities, edges, nil, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestEvaluateTwoCliques(t *testing.T) {
	g := twoCliques(t)
	assign := []int{0, 0, 0, 1, 1, 1}

	metrics := Evaluate(g, assign, 1.0)
	if len(metrics) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(metrics))
	}

	for id, met := range metrics {
		if met.Cohesion < 0.9 {
			t.Errorf("cluster %d cohesion = %v, want >= 0.9", id, met.Cohesion)
		}
		if met.Coupling > 0.1 {
			t.Errorf("cluster %d coupling = %v, want <= 0.1", id, met.Coupling)
		}
		if met.Conductance <= 0 || met.Conductance > 0.1 {
			t.Errorf("cluster %d conductance = %v, want small positive", id, met.Conductance)
		}
	}
}

func TestModularityBounds(t *testing.T) {
	g := twoCliques(t)

	good := []int{0, 0, 0, 1, 1, 1}
	q := Modularity(g, good, 1.0)
	if q < -0.5 || q > 1.0 {
		t.Errorf("Q = %v outside [-0.5, 1.0]", q)
	}
	if q < 0.3 {
		t.Errorf("Q = %v for the natural split, expected clearly positive", q)
	}

	// Everything in one cluster scores worse than the natural split.
	single := []int{0, 0, 0, 0, 0, 0}
	if qs := Modularity(g, single, 1.0); qs >= q {
		t.Errorf("single-cluster Q %v should be below split Q %v", qs, q)
	}

	// Modularity contributions sum to Q.
	sum := 0.0
	for _, met := range Evaluate(g, good, 1.0) {
		sum += met.ModularityContribution
	}
	if math.Abs(sum-q) > 1e-9 {
		t.Errorf("contribution sum %v != Q %v", sum, q)
	}
}

func TestThresholdChecks(t *testing.T) {
	th := DefaultThresholds()

	warns := th.Check(Metrics{Cohesion: 0.5, Coupling: 0.5})
	if len(warns) != 2 {
		t.Fatalf("expected both warnings, got %v", warns)
	}
	found := map[model.WarningCode]bool{}
	for _, w := range warns {
		found[w] = true
	}
	if !found[model.WarnLowCohesion] || !found[model.WarnHighCoupling] {
		t.Errorf("missing expected warnings: %v", warns)
	}

	if warns := th.Check(Metrics{Cohesion: 0.95, Coupling: 0.05}); len(warns) != 0 {
		t.Errorf("clean metrics should not warn: %v", warns)
	}
}

func TestSingletonCluster(t *testing.T) {
	g := twoCliques(t)
	assign := []int{0, 1, 1, 2, 2, 2}

	metrics := Evaluate(g, assign, 1.0)
	met, ok := metrics[0]
	if !ok {
		t.Fatal("singleton cluster missing from metrics")
	}
	// A singleton has no internal weight: zero cohesion, full coupling.
	if met.Cohesion != 0 {
		t.Errorf("singleton cohesion = %v, want 0", met.Cohesion)
	}
	if met.Coupling != 1.0 {
		t.Errorf("singleton coupling = %v, want 1.0", met.Coupling)
	}
}
