package database

import (
	"database/sql"
	"fmt"
)

// scanRepository handles database operations for scan records
type scanRepository struct {
	db *DB
}

func NewScanRepository(db *DB) ScanRepository {
	return &scanRepository{db: db}
}

// UpsertScan inserts or refreshes the persisted record for a session.
// Re-persisting the same scan (e.g. after a late snapshot merge) just
// overwrites the previous row.
func (r *scanRepository) UpsertScan(scan Scan) error {
	_, err := r.db.Exec(`
		INSERT INTO scans (id, website, state, error, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			website = excluded.website,
			state = excluded.state,
			error = excluded.error,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			updated_at = CURRENT_TIMESTAMP
	`, scan.ID, scan.Website, scan.State, scan.Error, scan.StartedAt, scan.EndedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert scan: %w", err)
	}
	return nil
}

func (r *scanRepository) GetScan(scanID string) (*Scan, error) {
	row := r.db.QueryRow(`
		SELECT id, website, state, error, started_at, ended_at, created_at, updated_at
		FROM scans
		WHERE id = ?
	`, scanID)

	return r.scanRow(row)
}

// GetLatestScanForWebsite returns the most recent persisted scan for a
// website, used for cold loads when the caller only knows the target.
func (r *scanRepository) GetLatestScanForWebsite(website string) (*Scan, error) {
	row := r.db.QueryRow(`
		SELECT id, website, state, error, started_at, ended_at, created_at, updated_at
		FROM scans
		WHERE website = ?
		ORDER BY updated_at DESC
		LIMIT 1
	`, website)

	return r.scanRow(row)
}

func (r *scanRepository) ListScans(limit int) ([]Scan, error) {
	rows, err := r.db.Query(`
		SELECT id, website, state, error, started_at, ended_at, created_at, updated_at
		FROM scans
		ORDER BY updated_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	var scans []Scan
	for rows.Next() {
		var scan Scan
		err := rows.Scan(&scan.ID, &scan.Website, &scan.State, &scan.Error,
			&scan.StartedAt, &scan.EndedAt, &scan.CreatedAt, &scan.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		scans = append(scans, scan)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scan rows: %w", err)
	}

	return scans, nil
}

func (r *scanRepository) GetScanCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM scans").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get scan count: %w", err)
	}
	return count, nil
}

func (r *scanRepository) scanRow(row *sql.Row) (*Scan, error) {
	var scan Scan
	err := row.Scan(&scan.ID, &scan.Website, &scan.State, &scan.Error,
		&scan.StartedAt, &scan.EndedAt, &scan.CreatedAt, &scan.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}
	return &scan, nil
}
