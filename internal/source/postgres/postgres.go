// Package postgres implements the "postgres" source backend using pgx v5.
// It reads pages directly from the database the REST store fronts, which is
// useful when the dashboard runs next to the database and the PostgREST hop
// adds nothing.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"farmdash/internal/records"
	"farmdash/internal/source"
)

// Config holds Postgres source configuration.
type Config struct {
	// DSN is the connection string for pgxpool, e.g. "postgresql://...".
	DSN string
}

// Store is a Postgres-backed implementation of source.Source.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store and returns a close function for cleanup.
func NewStore(ctx context.Context, cfg Config) (*Store, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("postgres: DSN must not be empty")
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: pgxpool: %w", err)
	}
	return &Store{pool: pool}, func() { pool.Close() }, nil
}

// FetchPage implements source.Source with an ORDER BY 1 OFFSET/LIMIT query.
// Ordering by the first column keeps pagination stable across pages as long
// as the table's leading column is its key, which holds for both dashboard
// tables.
func (s *Store) FetchPage(ctx context.Context, table string, offset, limit int) ([]records.Record, error) {
	if table == "" {
		return nil, &source.FetchError{Table: table, Err: fmt.Errorf("table name must not be empty")}
	}
	if limit <= 0 {
		return nil, &source.FetchError{Table: table, Err: fmt.Errorf("limit must be > 0, got %d", limit)}
	}

	q := fmt.Sprintf("SELECT * FROM %s ORDER BY 1 OFFSET $1 LIMIT $2", pgFQN(table))
	rows, err := s.pool.Query(ctx, q, offset, limit)
	if err != nil {
		return nil, &source.FetchError{Table: table, Err: err}
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	out := []records.Record{}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, &source.FetchError{Table: table, Err: fmt.Errorf("row values: %w", err)}
		}
		rec := make(records.Record, len(fields))
		for i, fd := range fields {
			rec[string(fd.Name)] = vals[i]
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &source.FetchError{Table: table, Err: err}
	}
	return out, nil
}

// Close implements source.Source.
func (s *Store) Close() { s.pool.Close() }

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "public.farmers" to
// "public"."farmers". If no dot is present, returns a single quoted ident.
func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}

// init registers the "postgres" backend with the source factory.
func init() {
	source.Register("postgres", func(ctx context.Context, cfg source.Config) (source.Source, error) {
		st, _, err := NewStore(ctx, Config{DSN: cfg.DSN})
		if err != nil {
			return nil, err
		}
		return st, nil
	})
}
