package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"

	"ckc/internal/affinity"
	"ckc/internal/cluster"
	"ckc/internal/contextpack"
	"ckc/internal/hierarchy"
	"ckc/internal/logging"
	"ckc/internal/mdl"
	"ckc/internal/model"
	"ckc/internal/quality"
)

func buildHierarchy(t *testing.T) *hierarchy.Hierarchy {
	t.Helper()
	var entities []model.Entity
	var edges []model.RawEdge
	for _, group := range []string{"a", "b"} {
		for i := 0; i < 5; i++ {
			entities = append(entities, model.Entity{
				ID:            fmt.Sprintf("%s%d", group, i),
				Kind:          model.KindFunction,
				TokenEstimate: 100,
			})
		}
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
	edges = append(edges, model.RawEdge{
		From: "a0", To: "b0", Signal: model.SignalDataFlow, Weight: 0.1,
	})

	g, _, err := affinity.Build(context.Background(), entities, edges, nil, logging.Discard())
	if err != nil {
		t.Fatalf("affinity.Build: %v", err)
	}
	b := &hierarchy.Builder{
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

func TestWriteHierarchyDocuments(t *testing.T) {
	h := buildHierarchy(t)
	dir := t.TempDir()
	w := &Writer{Dir: dir, Log: logging.Discard()}
	if err := w.WriteHierarchy(h); err != nil {
		t.Fatalf("WriteHierarchy: %v", err)
	}

	var clusters ClustersDocument
	readJSON(t, filepath.Join(dir, "clusters.json"), &clusters)
	if clusters.SchemaVersion != SchemaVersion {
		t.Errorf("schema version = %d, want %d", clusters.SchemaVersion, SchemaVersion)
	}
	// Three levels of two clusters each.
	if len(clusters.Clusters) != 6 {
		t.Errorf("cluster records = %d, want 6", len(clusters.Clusters))
	}
	for _, c := range clusters.Clusters {
		if c.ClusterID == "" || len(c.Members) == 0 {
			t.Errorf("incomplete cluster record %+v", c)
		}
	}

	var edges EdgesDocument
	readJSON(t, filepath.Join(dir, "cluster_edges.json"), &edges)
	if len(edges.Edges) != 3 {
		t.Errorf("edge records = %d, want 3", len(edges.Edges))
	}
	for _, e := range edges.Edges {
		if e.Weights["data"] != 0.1 {
			t.Errorf("edge data weight = %v, want 0.1", e.Weights["data"])
		}
	}

	var assigns AssignmentsDocument
	readJSON(t, filepath.Join(dir, "cluster_assignments.json"), &assigns)
	if len(assigns.Assignments) != 30 {
		t.Errorf("assignment records = %d, want 30", len(assigns.Assignments))
	}
}

func TestWriteHierarchyDeterministic(t *testing.T) {
	h := buildHierarchy(t)
	dirA, dirB := t.TempDir(), t.TempDir()
	for _, dir := range []string{dirA, dirB} {
		w := &Writer{Dir: dir, Log: logging.Discard()}
		if err := w.WriteHierarchy(h); err != nil {
			t.Fatalf("WriteHierarchy: %v", err)
		}
	}
	for _, name := range []string{"clusters.json", "cluster_edges.json", "cluster_assignments.json"} {
		a, err := os.ReadFile(filepath.Join(dirA, name))
		if err != nil {
			t.Fatal(err)
		}
		b, err := os.ReadFile(filepath.Join(dirB, name))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(a, b) {
			t.Errorf("%s differs between identical runs", name)
		}
	}
}

func TestWritePackCompressed(t *testing.T) {
	h := buildHierarchy(t)
	p, err := contextpack.Assemble(context.Background(), h, "a0", 1000,
		model.TaskBugFix, contextpack.DefaultOptions(), logging.Discard())
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	dir := t.TempDir()
	w := &Writer{Dir: dir, Compress: true, Log: logging.Discard()}
	if err := w.WritePack(p); err != nil {
		t.Fatalf("WritePack: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "context_pack.json.gz"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	var doc PackDocument
	if err := json.NewDecoder(gz).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	if doc.Pack.Focus != "a0" {
		t.Errorf("focus = %s, want a0", doc.Pack.Focus)
	}
	if doc.Pack.TokenEstimate > 1000 {
		t.Errorf("pack tokens %d exceed budget", doc.Pack.TokenEstimate)
	}
}

func readJSON(t *testing.T, path string, v interface{}) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("%s: %v", path, err)
	}
}
