// Package sqlstore is the relational side of every experiment: a local
// file-backed SQLite database reached through prepared statements and
// explicit transactions.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	benchErrors "github.com/munsocial/graphbench/internal/errors"
	"github.com/munsocial/graphbench/pkg/types"
)

// Store wraps the SQLite database.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("sqlstore: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // Single connection shared by every experiment
	db.SetMaxIdleConns(1)

	s := &Store{db: db, path: path, now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, benchErrors.NewSQLError(benchErrors.CodeSchemaFailed, "initialize schema", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	if _, err := s.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}
	for _, stmt := range AllSchemaSQL() {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ClearCaches asks SQLite to refresh its statistics and truncates the WAL
// so a cold run starts without recently written pages in the log.
func (s *Store) ClearCaches(ctx context.Context) error {
	for _, pragma := range []string{"PRAGMA optimize", "PRAGMA wal_checkpoint(TRUNCATE)"} {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return benchErrors.NewSQLError(benchErrors.CodeCacheFailed, pragma, err)
		}
	}
	return nil
}

// measure builds a successful measurement from a start time.
func (s *Store) measure(start time.Time, rows int, statement string) types.Measurement {
	return types.Measurement{
		Latency:      s.now().Sub(start),
		RowsReturned: rows,
		Statement:    statement,
		Success:      true,
	}
}
