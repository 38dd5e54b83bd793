// Package postgres implements the core's persistence contracts on
// PostgreSQL via pgx. Revocations rely on per-row atomicity: an UPDATE that
// commits is visible to the next read, which is the read-committed guarantee
// the core requires.
package postgres

import (
	"context"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agentauth/agentauth-core/migrations"
)

// Store is a pgx-pool-backed store. It implements identity.Store,
// credential.Store, capability.Store, policy.Store, trust.ScoreStore, and
// trust.FactorSource.
type Store struct {
	pool *pgxpool.Pool
}

// New connects a Store to the given DSN.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := applyMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// applyMigrations executes the embedded schema files in lexical order. The
// files are idempotent (CREATE TABLE IF NOT EXISTS), so reapplying on every
// startup is safe.
func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	entries, err := fs.ReadDir(migrations.PostgresFS, migrations.PostgresDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		sql, err := fs.ReadFile(migrations.PostgresFS, migrations.PostgresDir+"/"+name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
	}
	return nil
}

// NewWithPool wraps an existing pool.
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
