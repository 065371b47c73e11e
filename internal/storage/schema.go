package storage

import "database/sql"

const schemaVersion = 1

var tables = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS runs (
		run_id     TEXT PRIMARY KEY,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS entities (
		run_id         TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
		entity_id      TEXT NOT NULL,
		name           TEXT NOT NULL DEFAULT '',
		kind           TEXT NOT NULL,
		visibility     TEXT NOT NULL,
		token_estimate INTEGER NOT NULL,
		PRIMARY KEY (run_id, entity_id)
	)`,
	`CREATE TABLE IF NOT EXISTS raw_edges (
		run_id    TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
		from_id   TEXT NOT NULL,
		to_id     TEXT NOT NULL,
		signal    TEXT NOT NULL,
		weight    REAL NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_edges_run ON raw_edges(run_id)`,
	`CREATE TABLE IF NOT EXISTS clusters (
		run_id           TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
		cluster_id       TEXT NOT NULL,
		level            REAL NOT NULL,
		cohesion         REAL NOT NULL,
		coupling         REAL NOT NULL,
		token_estimate   INTEGER NOT NULL,
		label            TEXT NOT NULL DEFAULT '',
		label_confidence REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, cluster_id)
	)`,
	`CREATE TABLE IF NOT EXISTS cluster_assignments (
		run_id     TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
		level      REAL NOT NULL,
		entity_id  TEXT NOT NULL,
		cluster_id TEXT NOT NULL,
		PRIMARY KEY (run_id, level, entity_id)
	)`,
}

// migrate creates missing tables and records the schema version. The schema
// is additive so far; version checks gate future rewrites.
func (db *DB) migrate() error {
	return db.WithTx(func(tx *sql.Tx) error {
		for _, ddl := range tables {
			if _, err := tx.Exec(ddl); err != nil {
				return wrapSQL("creating schema", err)
			}
		}

		var version int
		err := tx.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
		if err == sql.ErrNoRows {
			if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
				return wrapSQL("recording schema version", err)
			}
			db.log.Debug("database schema initialized", "version", schemaVersion)
			return nil
		}
		if err != nil {
			return wrapSQL("reading schema version", err)
		}
		if version != schemaVersion {
			db.log.Info("database schema migrated",
				"from", version, "to", schemaVersion)
			if _, err := tx.Exec("UPDATE schema_version SET version = ?", schemaVersion); err != nil {
				return wrapSQL("updating schema version", err)
			}
		}
		return nil
	})
}
