package database

import (
	"encoding/json"
	"fmt"

	"github.com/lysyi3m/scrape-comb/app/engine"
)

// resultRepository handles database operations for persisted discoveries
type resultRepository struct {
	db *DB
}

func NewResultRepository(db *DB) ResultRepository {
	return &resultRepository{db: db}
}

// ReplaceResults swaps the stored result set of a scan for the given
// one. The persist task always writes a session's full contents, so
// replace-wholesale keeps the table consistent with the stores without
// row-level diffing.
func (r *resultRepository) ReplaceResults(scanID string, results []ScanResult) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM scan_results WHERE scan_id = ?", scanID); err != nil {
		return fmt.Errorf("failed to clear previous results: %w", err)
	}

	for _, result := range results {
		_, err := tx.Exec(`
			INSERT INTO scan_results (scan_id, kind, dedup_key, position, payload)
			VALUES (?, ?, ?, ?, ?)
		`, scanID, result.Kind, result.DedupKey, result.Position, string(result.Payload))
		if err != nil {
			return fmt.Errorf("failed to insert result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit results: %w", err)
	}
	return nil
}

func (r *resultRepository) GetResultCount(scanID string) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM scan_results WHERE scan_id = ?", scanID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get result count: %w", err)
	}
	return count, nil
}

func (r *resultRepository) GetTotalResultCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM scan_results").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get total result count: %w", err)
	}
	return count, nil
}

// LoadSnapshot rebuilds an engine snapshot from a scan's persisted
// rows, in stored position order, for cold-load reconciliation. Returns
// (nil, nil) when the scan has no stored results.
func (r *resultRepository) LoadSnapshot(scanID string) (*engine.Snapshot, error) {
	rows, err := r.db.Query(`
		SELECT kind, payload
		FROM scan_results
		WHERE scan_id = ?
		ORDER BY position ASC
	`, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}
	defer rows.Close()

	snap := &engine.Snapshot{
		Technologies: make(map[string]any),
		Metadata:     make(map[string]any),
	}
	found := false

	for rows.Next() {
		var kind string
		var payload string
		if err := rows.Scan(&kind, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}

		var raw map[string]any
		if err := json.Unmarshal([]byte(payload), &raw); err != nil {
			return nil, fmt.Errorf("corrupt result payload for scan %s: %w", scanID, err)
		}
		found = true

		switch engine.Kind(kind) {
		case engine.KindEmail:
			snap.Emails = append(snap.Emails, raw)
		case engine.KindPerson:
			snap.People = append(snap.People, raw)
		case engine.KindPhone:
			snap.Phones = append(snap.Phones, raw)
		case engine.KindSocialLink:
			snap.SocialLinks = append(snap.SocialLinks, raw)
		case engine.KindTechnology:
			category, _ := raw["category"].(string)
			list, _ := snap.Technologies[category].([]any)
			snap.Technologies[category] = append(list, raw)
		case engine.KindMetadata:
			key, _ := raw["key"].(string)
			snap.Metadata[key] = raw["value"]
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating result rows: %w", err)
	}

	if !found {
		return nil, nil
	}
	return snap, nil
}
