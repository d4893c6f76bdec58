// Package sqlite archives reconciled snapshots in a local SQLite database so
// operators can look back at past reconciliation runs. Rows are written with
// batched INSERTs inside a transaction; SQLite has no bulk-load API like
// Postgres COPY, but a transaction keeps performance acceptable for the
// volumes a snapshot carries.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // alternative: github.com/mattn/go-sqlite3

	"farmdash/internal/reconcile"
)

const ddl = `
CREATE TABLE IF NOT EXISTS snapshots (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	fetched_at  TEXT NOT NULL,
	farmers     INTEGER NOT NULL,
	total_quota_kg REAL NOT NULL,
	total_net_kg   REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS snapshot_rows (
	snapshot_id INTEGER NOT NULL REFERENCES snapshots(id),
	cooperative TEXT NOT NULL,
	farmer_id   TEXT NOT NULL,
	max_quota_kg REAL NOT NULL,
	net_weight_kg REAL NOT NULL,
	certification TEXT NOT NULL,
	exporter      TEXT NOT NULL,
	delivery_percentage REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshot_rows_snapshot
	ON snapshot_rows (snapshot_id);
`

// Archive is a SQLite-backed history of reconciled snapshots.
type Archive struct {
	db *sql.DB
}

// NewArchive opens the archive database and ensures its schema exists. It
// returns the Archive plus a Close function for cleanup.
//
// DSN is passed directly to database/sql; for example:
//
//	"file:farmdash.db?cache=shared"
//	"farmdash.db"
func NewArchive(ctx context.Context, dsn string) (*Archive, func(), error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON;")
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ensure schema: %w", err)
	}

	closeFn := func() { db.Close() }
	return &Archive{db: db}, closeFn, nil
}

// Save archives one snapshot: a header row with the run totals plus one
// detail row per farmer, all inside a single transaction. It returns the new
// snapshot id.
func (a *Archive) Save(ctx context.Context, fetchedAt time.Time, summary []reconcile.FarmerSummary) (int64, error) {
	var totalQuota, totalNet float64
	for _, row := range summary {
		totalQuota += row.MaxQuotaKG
		totalNet += row.NetWeightKG
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (fetched_at, farmers, total_quota_kg, total_net_kg) VALUES (?, ?, ?, ?)`,
		fetchedAt.UTC().Format(time.RFC3339Nano), len(summary), totalQuota, totalNet,
	)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("sqlite: insert snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("sqlite: snapshot id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO snapshot_rows
			(snapshot_id, cooperative, farmer_id, max_quota_kg, net_weight_kg, certification, exporter, delivery_percentage)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range summary {
		if _, err := stmt.ExecContext(ctx,
			id, row.Cooperative, row.FarmerID, row.MaxQuotaKG, row.NetWeightKG,
			row.Certification, row.Exporter, row.DeliveryPercentage,
		); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("sqlite: insert row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return id, nil
}

// Latest loads the most recently archived snapshot. A fresh archive returns
// sql.ErrNoRows.
func (a *Archive) Latest(ctx context.Context) (time.Time, []reconcile.FarmerSummary, error) {
	var (
		id int64
		ts string
	)
	err := a.db.QueryRowContext(ctx,
		`SELECT id, fetched_at FROM snapshots ORDER BY id DESC LIMIT 1`,
	).Scan(&id, &ts)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("sqlite: latest snapshot: %w", err)
	}
	fetchedAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("sqlite: parse fetched_at %q: %w", ts, err)
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT cooperative, farmer_id, max_quota_kg, net_weight_kg, certification, exporter, delivery_percentage
		 FROM snapshot_rows WHERE snapshot_id = ? ORDER BY rowid`,
		id,
	)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("sqlite: load rows: %w", err)
	}
	defer rows.Close()

	summary := []reconcile.FarmerSummary{}
	for rows.Next() {
		var r reconcile.FarmerSummary
		if err := rows.Scan(&r.Cooperative, &r.FarmerID, &r.MaxQuotaKG, &r.NetWeightKG,
			&r.Certification, &r.Exporter, &r.DeliveryPercentage); err != nil {
			return time.Time{}, nil, fmt.Errorf("sqlite: scan row: %w", err)
		}
		summary = append(summary, r)
	}
	if err := rows.Err(); err != nil {
		return time.Time{}, nil, fmt.Errorf("sqlite: iterate rows: %w", err)
	}
	return fetchedAt, summary, nil
}
