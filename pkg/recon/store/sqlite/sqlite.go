package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jangsa/recon/pkg/recon/anomaly"
	"github.com/jangsa/recon/pkg/recon/facility"
	"github.com/jangsa/recon/pkg/recon/internalerr"
	"github.com/jangsa/recon/pkg/recon/priceitem"
	"github.com/jangsa/recon/pkg/recon/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	report TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS facilities (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	facility_id TEXT NOT NULL,
	name TEXT NOT NULL,
	body TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
);

CREATE TABLE IF NOT EXISTS price_items (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	facility_id TEXT NOT NULL,
	category TEXT NOT NULL,
	item_name TEXT NOT NULL,
	price INTEGER NOT NULL,
	body TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_facilities_id ON facilities(run_id, facility_id);
CREATE INDEX IF NOT EXISTS idx_price_items_facility ON price_items(run_id, facility_id);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// SaveRun writes the run, its facilities and its items in one transaction.
func (s *sqliteStore) SaveRun(ctx context.Context, r *store.Run) error {
	r.Stamp()

	report, err := json.Marshal(r.Report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO runs (id, created_at, report) VALUES (?, ?, ?)`,
		r.ID, r.CreatedAt.UnixMilli(), string(report)); err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}
	if err := insertFacilities(ctx, tx, r.ID, r.Facilities); err != nil {
		return err
	}
	if err := insertItems(ctx, tx, r.ID, r.Items); err != nil {
		return err
	}

	return tx.Commit()
}

func insertFacilities(ctx context.Context, tx *sql.Tx, runID string, records []facility.Record) error {
	if len(records) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO facilities (run_id, position, facility_id, name, body) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, rec := range records {
		body, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode facility %s: %w", rec.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, runID, i, rec.ID, rec.Name, string(body)); err != nil {
			return err
		}
	}
	return nil
}

func insertItems(ctx context.Context, tx *sql.Tx, runID string, items []priceitem.Item) error {
	if len(items) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO price_items (run_id, position, facility_id, category, item_name, price, body) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, it := range items {
		body, err := json.Marshal(it)
		if err != nil {
			return fmt.Errorf("encode item line %d: %w", it.Line, err)
		}
		if _, err := stmt.ExecContext(ctx, runID, i, it.FacilityID, it.Category.String(), it.ItemName, it.Price, string(body)); err != nil {
			return err
		}
	}
	return nil
}

// LatestFacilities returns the facility list of the newest run.
func (s *sqliteStore) LatestFacilities(ctx context.Context) ([]facility.Record, string, error) {
	var runID string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM runs ORDER BY created_at DESC, id DESC LIMIT 1`).Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("latest run: %w", internalerr.ErrNotFound)
	}
	if err != nil {
		return nil, "", err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT body FROM facilities WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var out []facility.Record
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, "", err
		}
		var rec facility.Record
		if err := json.Unmarshal([]byte(body), &rec); err != nil {
			return nil, "", fmt.Errorf("decode facility of run %s: %w", runID, err)
		}
		out = append(out, rec)
	}
	return out, runID, rows.Err()
}

// FacilityPrices returns one facility's items of a run.
func (s *sqliteStore) FacilityPrices(ctx context.Context, runID, facilityID string) ([]priceitem.Item, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, internalerr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT body FROM price_items WHERE run_id = ? AND facility_id = ? ORDER BY position`, runID, facilityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []priceitem.Item
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var it priceitem.Item
		if err := json.Unmarshal([]byte(body), &it); err != nil {
			return nil, fmt.Errorf("decode item of run %s: %w", runID, err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Runs lists stored runs, newest first.
func (s *sqliteStore) Runs(ctx context.Context, limit int) ([]store.RunInfo, error) {
	if limit <= 0 {
		limit = store.DefaultRunLimit
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT r.id, r.created_at, r.report,
	(SELECT COUNT(*) FROM facilities f WHERE f.run_id = r.id),
	(SELECT COUNT(*) FROM price_items p WHERE p.run_id = r.id)
FROM runs r
ORDER BY r.created_at DESC, r.id DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.RunInfo
	for rows.Next() {
		var (
			info    store.RunInfo
			created int64
			report  string
		)
		if err := rows.Scan(&info.ID, &created, &report, &info.Facilities, &info.Items); err != nil {
			return nil, err
		}
		info.CreatedAt = time.UnixMilli(created).UTC()

		var rep anomaly.Report
		if err := json.Unmarshal([]byte(report), &rep); err != nil {
			return nil, fmt.Errorf("decode report of run %s: %w", info.ID, err)
		}
		info.Anomalies = len(rep.Facilities) + len(rep.Items)
		out = append(out, info)
	}
	return out, rows.Err()
}
