// Package export renders a labeled hierarchy and its context packs into the
// four interchange documents: clusters.json, cluster_edges.json,
// cluster_assignments.json, and context_pack.json.
package export

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/gzip"

	"ckc/internal/contextpack"
	"ckc/internal/errors"
	"ckc/internal/hierarchy"
	"ckc/internal/model"
	"ckc/internal/output"
)

// signalKeys maps internal signal kinds to the interchange weight keys.
var signalKeys = map[model.SignalKind]string{
	model.SignalDependency: "control",
	model.SignalDataFlow:   "data",
	model.SignalTemporal:   "temporal",
	model.SignalSemantic:   "semantic",
}

// Writer renders documents to a directory. With Compress set, every file
// gains a .gz suffix and gzip framing; the bytes inside stay deterministic.
type Writer struct {
	Dir      string
	Compress bool
	Indent   bool
	Log      *slog.Logger
}

// WriteHierarchy writes clusters.json, cluster_edges.json, and
// cluster_assignments.json for the whole hierarchy.
func (w *Writer) WriteHierarchy(h *hierarchy.Hierarchy) error {
	if err := w.writeDoc("clusters.json", BuildClusters(h)); err != nil {
		return err
	}
	if err := w.writeDoc("cluster_edges.json", BuildEdges(h)); err != nil {
		return err
	}
	return w.writeDoc("cluster_assignments.json", BuildAssignments(h))
}

// WritePack writes context_pack.json.
func (w *Writer) WritePack(p *contextpack.Pack) error {
	return w.writeDoc("context_pack.json", BuildPack(p))
}

func (w *Writer) writeDoc(name string, v interface{}) error {
	var data []byte
	var err error
	if w.Indent {
		data, err = output.DeterministicEncodeIndented(v, "  ")
	} else {
		data, err = output.DeterministicEncode(v)
	}
	if err != nil {
		return errors.Wrap(errors.InternalError, "encoding "+name, err)
	}

	path := filepath.Join(w.Dir, name)
	if w.Compress {
		path += ".gz"
		data, err = gzipBytes(data)
		if err != nil {
			return errors.Wrap(errors.InternalError, "compressing "+name, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.StorageError, "writing "+name, err)
	}
	w.Log.Debug("document written", "path", path, "bytes", len(data))
	return nil
}

// gzipBytes compresses with a zero ModTime header, so identical payloads
// always compress to identical bytes.
func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildClusters flattens every level's clusters, finest first, into the
// clusters.json envelope.
func BuildClusters(h *hierarchy.Hierarchy) *ClustersDocument {
	doc := &ClustersDocument{SchemaVersion: SchemaVersion}
	for _, lv := range h.Levels {
		for _, c := range lv.Clusters {
			warns := make([]string, 0, len(c.Warnings))
			for _, w := range c.Warnings {
				warns = append(warns, string(w))
			}
			doc.Clusters = append(doc.Clusters, ClusterRecord{
				ClusterID:              c.ID,
				Level:                  c.Level,
				Members:                c.Members,
				Cohesion:               c.Metrics.Cohesion,
				Coupling:               c.Metrics.Coupling,
				ModularityContribution: c.Metrics.ModularityContribution,
				Conductance:            c.Metrics.Conductance,
				TokenEstimate:          c.TokenEstimate,
				Label:                  c.Label,
				LabelConfidence:        c.LabelConfidence,
				Warnings:               warns,
			})
		}
	}
	return doc
}

// BuildEdges flattens every level's inter-cluster edges into the
// cluster_edges.json envelope.
func BuildEdges(h *hierarchy.Hierarchy) *EdgesDocument {
	doc := &EdgesDocument{SchemaVersion: SchemaVersion}
	for _, lv := range h.Levels {
		for _, e := range lv.Edges {
			weights := make(map[string]float64, len(e.Weights))
			for sig, w := range e.Weights {
				weights[signalKeys[sig]] = w
			}
			doc.Edges = append(doc.Edges, EdgeRecord{
				FromCluster:       e.FromCluster,
				ToCluster:         e.ToCluster,
				Level:             lv.Level,
				Weights:           weights,
				BoundaryCrossings: e.BoundaryCrossings,
			})
		}
	}
	return doc
}

// BuildAssignments flattens every level's entity assignments, sorted by
// level order then entity id.
func BuildAssignments(h *hierarchy.Hierarchy) *AssignmentsDocument {
	doc := &AssignmentsDocument{SchemaVersion: SchemaVersion}
	for _, lv := range h.Levels {
		ids := make([]string, 0, len(lv.Assignments))
		for id := range lv.Assignments {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			doc.Assignments = append(doc.Assignments, AssignmentRecord{
				EntityID:  id,
				ClusterID: lv.Assignments[id],
				Level:     lv.Level,
			})
		}
	}
	return doc
}

// BuildPack wraps a context pack in the context_pack.json envelope.
func BuildPack(p *contextpack.Pack) *PackDocument {
	warns := make([]string, 0, len(p.Warnings))
	for _, w := range p.Warnings {
		warns = append(warns, string(w))
	}
	return &PackDocument{
		SchemaVersion: SchemaVersion,
		Pack: PackRecord{
			Focus:            p.Focus,
			BudgetTokens:     p.BudgetTokens,
			TaskKind:         string(p.Task),
			SelectedClusters: p.SelectedClusters,
			SelectedEntities: p.SelectedEntities,
			TokenEstimate:    p.TokenEstimate,
			Truncated:        p.Truncated,
			Warnings:         warns,
			Justification:    p.Justification,
		},
	}
}
