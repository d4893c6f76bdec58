// Package records defines the row model shared by the data sources, the
// reconciliation pipeline, and the reporting views.
//
// A Record is a single row represented as field→value. Values arrive from
// heterogeneous sources (JSON over HTTP, database drivers) so accessors apply
// tolerant coercion: a missing field, a nil value, or a value of an unexpected
// type never panics and degrades to the zero value instead.
package records

import (
	"sort"
	"strconv"
	"strings"
)

// Record is one row as a field→value mapping.
type Record map[string]any

// Str returns the string value for key. Non-string scalars are formatted;
// nil and missing keys return "".
func (r Record) Str(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// Float returns the numeric value for key. JSON numbers decode as float64;
// database drivers may deliver int64 or textual numerics. Anything that
// cannot be interpreted as a number returns 0.
func (r Record) Float(key string) float64 {
	v, ok := r[key]
	if !ok || v == nil {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int64:
		return float64(t)
	case int:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	case []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(t)), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

// Has reports whether key is present with a non-nil value.
func (r Record) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// Table is an ordered collection of rows. A table with zero rows is valid;
// its column set is simply empty until rows are observed.
type Table struct {
	Rows []Record
}

// NewTable wraps rows into a Table. A nil slice yields an empty table.
func NewTable(rows []Record) Table {
	if rows == nil {
		rows = []Record{}
	}
	return Table{Rows: rows}
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// Columns returns the sorted union of field names observed across all rows.
func (t Table) Columns() []string {
	seen := map[string]struct{}{}
	for _, r := range t.Rows {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}
