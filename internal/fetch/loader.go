package fetch

import (
	"context"

	"farmdash/internal/records"
	"farmdash/internal/source"
)

// The two logical tables the dashboard reconciles.
const (
	TableFarmers      = "farmers"
	TableTraceability = "traceability"
)

// Loader materializes the two dashboard tables from a source.
type Loader struct {
	src      source.Source
	pageSize int
}

// NewLoader constructs a Loader. A non-positive pageSize falls back to
// DefaultPageSize.
func NewLoader(src source.Source, pageSize int) *Loader {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Loader{src: src, pageSize: pageSize}
}

// Load fetches the farmers and traceability tables in full. A table with
// zero rows loads as an empty, well-typed table; any fetch error aborts the
// whole load so the dashboard never renders from a partial snapshot.
func (l *Loader) Load(ctx context.Context) (farmers, trace records.Table, err error) {
	fRows, err := All(ctx, l.src, TableFarmers, l.pageSize)
	if err != nil {
		return records.Table{}, records.Table{}, err
	}
	tRows, err := All(ctx, l.src, TableTraceability, l.pageSize)
	if err != nil {
		return records.Table{}, records.Table{}, err
	}
	return records.NewTable(fRows), records.NewTable(tRows), nil
}
