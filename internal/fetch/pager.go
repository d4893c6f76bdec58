// Package fetch retrieves whole tables from a source.Source one page at a
// time.
//
// The page loop is exposed as a lazy, bufio.Scanner-style Pager so callers
// can stream pages without buffering the whole table; All is the buffered
// convenience used by the dashboard, which wants the full table anyway.
//
// Termination policy: a page with fewer rows than the page size (including
// zero) is the last page. For a table of N rows and page size P this issues
// exactly ⌈N/P⌉ requests, plus one trailing empty-page request when N is an
// exact multiple of P. The loop can never run past that.
package fetch

import (
	"context"
	"time"

	"farmdash/internal/metrics"
	"farmdash/internal/records"
	"farmdash/internal/source"
)

// DefaultPageSize matches the remote store's default per-request row cap.
const DefaultPageSize = 1000

// Pager iterates over the pages of one table. Use it like bufio.Scanner:
//
//	p := fetch.NewPager(src, "farmers", 1000)
//	for p.Next(ctx) {
//	    rows := p.Rows()
//	    ...
//	}
//	if err := p.Err(); err != nil { ... }
type Pager struct {
	src      source.Source
	table    string
	pageSize int

	offset int
	rows   []records.Record
	err    error
	done   bool
}

// NewPager constructs a Pager. A non-positive pageSize falls back to
// DefaultPageSize.
func NewPager(src source.Source, table string, pageSize int) *Pager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Pager{src: src, table: table, pageSize: pageSize}
}

// Next fetches the next page and reports whether it holds any rows. It
// returns false after the last page, on fetch error, and on every call
// thereafter.
func (p *Pager) Next(ctx context.Context) bool {
	if p.done || p.err != nil {
		return false
	}

	rows, err := p.src.FetchPage(ctx, p.table, p.offset, p.pageSize)
	if err != nil {
		p.err = err
		p.rows = nil
		return false
	}
	if len(rows) < p.pageSize {
		// Short page: this is the final page. A zero-row page carries
		// nothing to hand out.
		p.done = true
	}
	if len(rows) == 0 {
		p.rows = nil
		return false
	}

	p.rows = rows
	p.offset += len(rows)
	return true
}

// Rows returns the page fetched by the last successful Next call.
func (p *Pager) Rows() []records.Record { return p.rows }

// Err returns the first fetch error encountered, or nil on clean completion.
func (p *Pager) Err() error { return p.err }

// All buffers every row of the table. On success it returns all N rows in
// store order; on failure it returns the fetch error and no rows, so callers
// can never mistake a truncated result for a complete one.
func All(ctx context.Context, src source.Source, table string, pageSize int) ([]records.Record, error) {
	start := time.Now()

	var out []records.Record
	p := NewPager(src, table, pageSize)
	for p.Next(ctx) {
		out = append(out, p.Rows()...)
	}
	err := p.Err()

	metrics.RecordFetch(table, err, time.Since(start))
	if err != nil {
		return nil, err
	}
	metrics.RecordRows(table, int64(len(out)))
	if out == nil {
		out = []records.Record{}
	}
	return out, nil
}
