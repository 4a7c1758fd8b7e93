// Package store provides SQLite persistence for appscout.
//
// A single Store is shared by the scan pipeline, the watch daemon, and the
// CLI readers. All durable writes of one scheduled run go through InTx so
// readers only ever observe the last fully-committed run.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// schemaVersion is bumped whenever the schema changes incompatibly.
// Opening a database written by a different version fails with
// ErrSchemaVersion instead of silently truncating or migrating data.
const schemaVersion = 1

// ErrSchemaVersion is returned when the database file was created with an
// incompatible schema version. This is fatal for the current invocation.
var ErrSchemaVersion = errors.New("database schema version mismatch")

// dbtx is the subset of *sql.DB and *sql.Tx used by queries.
type dbtx interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// queries holds every read and write operation. It is embedded in both
// Store and Tx so the same operations run directly or inside a transaction.
type queries struct {
	db dbtx
}

// Store provides SQLite database operations for appscout.
type Store struct {
	queries
	sqldb *sql.DB
}

// Tx is an open transaction exposing the same operations as Store.
type Tx struct {
	queries
	tx *sql.Tx
}

// New creates a new Store with the specified database path.
// Use ":memory:" for in-memory databases (useful for testing).
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// WAL keeps readers (CLI, GUI) unblocked while a scan commits.
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return &Store{queries: queries{db: db}, sqldb: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.sqldb != nil {
		return s.sqldb.Close()
	}
	return nil
}

// DB returns the underlying database connection for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.sqldb
}

// CreateSchema creates all tables and indexes, and verifies the schema
// version of an existing database.
func (s *Store) CreateSchema() error {
	if _, err := s.sqldb.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	var version int
	err := s.sqldb.QueryRow("SELECT version FROM schema_meta LIMIT 1").Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		if _, err := s.sqldb.Exec("INSERT INTO schema_meta (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to read schema version: %w", err)
	case version != schemaVersion:
		return fmt.Errorf("%w: database has version %d, this build expects %d",
			ErrSchemaVersion, version, schemaVersion)
	}

	return nil
}

// InTx runs fn inside a single transaction. If fn returns an error the
// transaction is rolled back and no writes become visible; otherwise all
// writes commit together.
func (s *Store) InTx(fn func(tx *Tx) error) error {
	tx, err := s.sqldb.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	t := &Tx{queries: queries{db: tx}, tx: tx}
	if err := fn(t); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
