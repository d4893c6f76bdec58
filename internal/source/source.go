// Package source contains the source-agnostic contract for the remote tabular
// store the dashboard reads from.
//
// A Source retrieves one range-bounded page of rows from a named table.
// Concrete backends (REST/PostgREST, Postgres, MySQL, MSSQL) register factory
// functions with this package at init time, so callers obtain a Source via
// New(...) and stay backend-agnostic. Importing source/all (usually as a blank
// import in the wiring layer) enables every built-in backend.
package source

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"farmdash/internal/records"
)

// Source is the data source boundary: a tabular remote store addressable by
// table name, supporting range-bounded row retrieval.
//
// FetchPage returns the rows at positions [offset, offset+limit). A table
// with no rows in that range yields an empty slice and a nil error; callers
// must be able to tell "empty table" apart from "fetch failed", so failures
// are always reported as a non-nil *FetchError.
type Source interface {
	FetchPage(ctx context.Context, table string, offset, limit int) ([]records.Record, error)

	// Close releases any underlying connections. Safe to call more than once.
	Close()
}

// Config selects and configures a concrete source backend.
type Config struct {
	// Kind selects the backend implementation, e.g. "rest", "postgres",
	// "mysql", "mssql".
	Kind string

	// URL is the endpoint for HTTP-style backends (e.g. the PostgREST base URL).
	URL string

	// Key is the access credential for HTTP-style backends.
	Key string

	// DSN is the connection string for database-backed sources.
	DSN string
}

// FetchError reports a failed page query for a specific table. It exists so
// the consuming layer can distinguish a failed fetch from a legitimately
// empty table.
type FetchError struct {
	Table string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch table %q: %v", e.Table, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Factory constructs a Source from a Config.
type Factory func(ctx context.Context, cfg Config) (Source, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) a Factory for the given source kind.
// It is typically called from backend packages' init() functions.
func Register(kind string, fn Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = fn
}

// New constructs the Source selected by cfg.Kind. Kinds become available by
// importing their backend packages (see source/all).
func New(ctx context.Context, cfg Config) (Source, error) {
	mu.RLock()
	fn, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported source.kind=%s", cfg.Kind)
	}
	return fn(ctx, cfg)
}

// ListKinds returns the registered source kinds in sorted order.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
