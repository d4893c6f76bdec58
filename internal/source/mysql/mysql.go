// Package mysql implements the "mysql" source backend over database/sql with
// the go-sql-driver driver. Pages are read with LIMIT offset, count queries.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"farmdash/internal/records"
	"farmdash/internal/source"
)

// Config holds MySQL source configuration.
type Config struct {
	// DSN is a go-sql-driver DSN, e.g. "user:pass@tcp(host:3306)/agri".
	DSN string
}

// Store is a MySQL-backed implementation of source.Source.
type Store struct {
	db *sql.DB
}

// NewStore opens a MySQL connection and pings it to fail fast on bad DSNs.
func NewStore(ctx context.Context, cfg Config) (*Store, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("mysql: DSN must not be empty")
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("mysql: ping: %w", err)
	}

	return &Store{db: db}, func() { db.Close() }, nil
}

// FetchPage implements source.Source using LIMIT ?, ? pagination ordered by
// the leading column.
func (s *Store) FetchPage(ctx context.Context, table string, offset, limit int) ([]records.Record, error) {
	if table == "" {
		return nil, &source.FetchError{Table: table, Err: fmt.Errorf("table name must not be empty")}
	}
	if limit <= 0 {
		return nil, &source.FetchError{Table: table, Err: fmt.Errorf("limit must be > 0, got %d", limit)}
	}

	q := fmt.Sprintf("SELECT * FROM %s ORDER BY 1 LIMIT ?, ?", myIdent(table))
	rows, err := s.db.QueryContext(ctx, q, offset, limit)
	if err != nil {
		return nil, &source.FetchError{Table: table, Err: err}
	}
	defer rows.Close()

	out, err := source.ScanRows(rows)
	if err != nil {
		return nil, &source.FetchError{Table: table, Err: err}
	}
	return out, nil
}

// Close implements source.Source.
func (s *Store) Close() { s.db.Close() }

// myIdent backtick-quotes an identifier for MySQL.
func myIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

// init registers the "mysql" backend with the source factory.
func init() {
	source.Register("mysql", func(ctx context.Context, cfg source.Config) (source.Source, error) {
		st, _, err := NewStore(ctx, Config{DSN: cfg.DSN})
		if err != nil {
			return nil, err
		}
		return st, nil
	})
}
