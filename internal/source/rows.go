package source

import (
	"database/sql"
	"fmt"

	"farmdash/internal/records"
)

// ScanRows drains a database/sql result set into generic records. Column
// names come from the result set itself, so backends stay schema-agnostic.
// []byte values (common for MySQL TEXT columns) are converted to string so
// downstream coercion behaves the same across drivers.
func ScanRows(rows *sql.Rows) ([]records.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	out := []records.Record{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		rec := make(records.Record, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				rec[c] = string(b)
				continue
			}
			rec[c] = vals[i]
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return out, nil
}
