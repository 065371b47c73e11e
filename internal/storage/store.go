package storage

import (
	"context"
	"database/sql"
	"time"

	"ckc/internal/errors"
	"ckc/internal/hierarchy"
	"ckc/internal/model"
)

func wrapSQL(msg string, err error) error {
	return errors.Wrap(errors.StorageError, msg, err)
}

// RunInfo describes one stored analysis run.
type RunInfo struct {
	ID        string
	CreatedAt time.Time
	Entities  int
}

// CreateRun registers a new run id.
func (db *DB) CreateRun(ctx context.Context, runID string) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO runs (run_id, created_at) VALUES (?, ?)",
		runID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return wrapSQL("creating run "+runID, err)
	}
	return nil
}

// SaveGraph stores the ingested entities and raw edges under a run id.
func (db *DB) SaveGraph(ctx context.Context, runID string, entities []model.Entity, edges []model.RawEdge) error {
	return db.WithTx(func(tx *sql.Tx) error {
		entStmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO entities
				(run_id, entity_id, name, kind, visibility, token_estimate)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return wrapSQL("preparing entity insert", err)
		}
		defer entStmt.Close()
		for _, e := range entities {
			if _, err := entStmt.ExecContext(ctx, runID, e.ID, e.Name,
				string(e.Kind), string(e.Visibility), e.TokenEstimate); err != nil {
				return wrapSQL("inserting entity "+e.ID, err)
			}
		}

		edgeStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO raw_edges (run_id, from_id, to_id, signal, weight)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return wrapSQL("preparing edge insert", err)
		}
		defer edgeStmt.Close()
		for _, e := range edges {
			if _, err := edgeStmt.ExecContext(ctx, runID, e.From, e.To,
				string(e.Signal), e.Weight); err != nil {
				return wrapSQL("inserting edge", err)
			}
		}
		return nil
	})
}

// Source returns a GraphSource view over the stored run.
func (db *DB) Source(runID string) model.GraphSource {
	return &runSource{db: db, runID: runID}
}

type runSource struct {
	db    *DB
	runID string
}

// Entities implements model.GraphSource, in entity-id order.
func (s *runSource) Entities(ctx context.Context) ([]model.Entity, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT entity_id, name, kind, visibility, token_estimate
		FROM entities WHERE run_id = ? ORDER BY entity_id`, s.runID)
	if err != nil {
		return nil, wrapSQL("querying entities", err)
	}
	defer rows.Close()

	var out []model.Entity
	for rows.Next() {
		var e model.Entity
		var kind, vis string
		if err := rows.Scan(&e.ID, &e.Name, &kind, &vis, &e.TokenEstimate); err != nil {
			return nil, wrapSQL("scanning entity", err)
		}
		e.Kind = model.EntityKind(kind)
		e.Visibility = model.Visibility(vis)
		out = append(out, e)
	}
	return out, rows.Err()
}

// RawEdges implements model.GraphSource, in insertion order.
func (s *runSource) RawEdges(ctx context.Context) ([]model.RawEdge, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT from_id, to_id, signal, weight
		FROM raw_edges WHERE run_id = ? ORDER BY rowid`, s.runID)
	if err != nil {
		return nil, wrapSQL("querying edges", err)
	}
	defer rows.Close()

	var out []model.RawEdge
	for rows.Next() {
		var e model.RawEdge
		var signal string
		if err := rows.Scan(&e.From, &e.To, &signal, &e.Weight); err != nil {
			return nil, wrapSQL("scanning edge", err)
		}
		e.Signal = model.SignalKind(signal)
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveHierarchy snapshots every level's clusters and assignments.
func (db *DB) SaveHierarchy(ctx context.Context, runID string, h *hierarchy.Hierarchy) error {
	return db.WithTx(func(tx *sql.Tx) error {
		clusterStmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO clusters
				(run_id, cluster_id, level, cohesion, coupling, token_estimate,
				 label, label_confidence)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return wrapSQL("preparing cluster insert", err)
		}
		defer clusterStmt.Close()

		assignStmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO cluster_assignments
				(run_id, level, entity_id, cluster_id)
			VALUES (?, ?, ?, ?)`)
		if err != nil {
			return wrapSQL("preparing assignment insert", err)
		}
		defer assignStmt.Close()

		for _, lv := range h.Levels {
			for _, c := range lv.Clusters {
				if _, err := clusterStmt.ExecContext(ctx, runID, c.ID, c.Level,
					c.Metrics.Cohesion, c.Metrics.Coupling, c.TokenEstimate,
					c.Label, c.LabelConfidence); err != nil {
					return wrapSQL("inserting cluster "+c.ID, err)
				}
				for _, m := range c.Members {
					if _, err := assignStmt.ExecContext(ctx, runID, c.Level, m, c.ID); err != nil {
						return wrapSQL("inserting assignment", err)
					}
				}
			}
		}
		return nil
	})
}

// Assignments returns the stored entity-to-cluster map at one level.
func (db *DB) Assignments(ctx context.Context, runID string, level float64) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT entity_id, cluster_id FROM cluster_assignments
		WHERE run_id = ? AND level = ?`, runID, level)
	if err != nil {
		return nil, wrapSQL("querying assignments", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var entity, cluster string
		if err := rows.Scan(&entity, &cluster); err != nil {
			return nil, wrapSQL("scanning assignment", err)
		}
		out[entity] = cluster
	}
	return out, rows.Err()
}

// ListRuns returns stored runs, newest first.
func (db *DB) ListRuns(ctx context.Context) ([]RunInfo, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT r.run_id, r.created_at, COUNT(e.entity_id)
		FROM runs r LEFT JOIN entities e ON e.run_id = r.run_id
		GROUP BY r.run_id ORDER BY r.created_at DESC, r.run_id`)
	if err != nil {
		return nil, wrapSQL("querying runs", err)
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var info RunInfo
		var created string
		if err := rows.Scan(&info.ID, &created, &info.Entities); err != nil {
			return nil, wrapSQL("scanning run", err)
		}
		info.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, info)
	}
	return out, rows.Err()
}
