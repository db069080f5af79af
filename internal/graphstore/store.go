// Package graphstore is the graph side of every experiment: a Neo4j
// database reached through one driver, with a fresh session per call.
package graphstore

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	benchErrors "github.com/munsocial/graphbench/internal/errors"
	"github.com/munsocial/graphbench/internal/sqlstore"
	"github.com/munsocial/graphbench/pkg/types"
)

// Config holds the Neo4j connection settings.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// IDResolver maps identifiers back to relational ids. Graph nodes carry
// only identifiers, so fetched rows are hydrated through it.
type IDResolver interface {
	IDsByIdentifier(ctx context.Context, table sqlstore.Table, identifiers []string) (map[string]int64, error)
}

// Store wraps a Neo4j driver.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
	ids      IDResolver
	now      func() time.Time
}

// Open creates the driver and verifies the server is reachable.
func Open(ctx context.Context, cfg Config, ids IDResolver) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("graphstore: failed to create driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("graphstore: failed to reach %s: %w", cfg.URI, err)
	}
	return &Store{driver: driver, database: cfg.Database, ids: ids, now: time.Now}, nil
}

// Ping verifies the server is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

// Close closes the driver.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Store) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   mode,
	})
}

// ClearCaches drops the query plan cache so a cold run replans.
func (s *Store) ClearCaches(ctx context.Context) error {
	sess := s.session(ctx, neo4j.AccessModeWrite)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, "CALL db.clearQueryCaches()", nil)
	if err == nil {
		_, err = res.Consume(ctx)
	}
	if err != nil {
		return benchErrors.NewGraphError(benchErrors.CodeCacheFailed, "clear query caches", err)
	}
	return nil
}

// write runs work inside one write transaction. Only the transaction is
// timed; session creation is excluded.
func (s *Store) write(ctx context.Context, statement string, work func(tx neo4j.ManagedTransaction) error) (types.Measurement, error) {
	sess := s.session(ctx, neo4j.AccessModeWrite)
	defer sess.Close(ctx)

	start := s.now()
	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, work(tx)
	})
	m := types.Measurement{Latency: s.now().Sub(start), Statement: statement}
	if err != nil {
		return m, err
	}
	m.Success = true
	return m, nil
}

// exec runs one statement and discards its result.
func exec(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) error {
	res, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

// read runs one query in a read session and collects every record.
// Execution and iteration are both timed.
func (s *Store) read(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, types.Measurement, error) {
	sess := s.session(ctx, neo4j.AccessModeRead)
	defer sess.Close(ctx)

	start := s.now()
	res, err := sess.Run(ctx, cypher, params)
	var records []*neo4j.Record
	if err == nil {
		records, err = res.Collect(ctx)
	}
	m := types.Measurement{Latency: s.now().Sub(start), Statement: cypher}
	if err != nil {
		return nil, m, err
	}
	m.RowsReturned = len(records)
	m.Success = true
	return records, m, nil
}
