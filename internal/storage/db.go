// Package storage persists analysis runs — entities, raw edges, cluster
// snapshots — in a SQLite database under .ckc/. It implements the abstract
// graph provider the engine consumes, keeping persistence mechanics out of
// the engine itself.
package storage

import (
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure Go SQLite driver

	"ckc/internal/errors"
)

// DB wraps the SQLite connection with transaction helpers.
type DB struct {
	conn *sql.DB
	log  *slog.Logger
	path string
}

// Open opens or creates the database at <root>/.ckc/ckc.db and brings the
// schema up to date.
func Open(root string, log *slog.Logger) (*DB, error) {
	dir := filepath.Join(root, ".ckc")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.StorageError, "creating "+dir, err)
	}
	path := filepath.Join(dir, "ckc.db")

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(errors.StorageError, "opening "+path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, errors.Wrap(errors.StorageError, "setting pragma", err)
		}
	}

	db := &DB{conn: conn, log: log, path: path}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// WithTx runs fn inside a transaction, rolling back on error or panic.
func (db *DB) WithTx(fn func(*sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return errors.Wrap(errors.StorageError, "beginning transaction", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.log.Error("transaction rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.StorageError, "committing transaction", err)
	}
	return nil
}
