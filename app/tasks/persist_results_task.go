package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/scrape-comb/app/database"
	"github.com/lysyi3m/scrape-comb/app/engine"
)

// PersistResultsTask flushes a terminal session to storage. The flush is
// a full replace keyed by scan ID, so re-running it after a partial
// failure converges on the same rows.
type PersistResultsTask struct {
	Task
	session    *engine.Session
	scanRepo   database.ScanRepository
	resultRepo database.ResultRepository
}

func NewPersistResultsTask(session *engine.Session, scanRepo database.ScanRepository,
	resultRepo database.ResultRepository) *PersistResultsTask {
	return &PersistResultsTask{
		Task:       NewTask(TaskTypePersistResults, session.ID),
		session:    session,
		scanRepo:   scanRepo,
		resultRepo: resultRepo,
	}
}

func (t *PersistResultsTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.session.State().Terminal() {
		slog.Debug("Session no longer terminal, skipping persist", "scan", t.ScanID)
		return nil
	}
	if t.session.Persisted() {
		return nil
	}

	startedAt := t.session.StartedAt()
	scan := database.Scan{
		ID:        t.session.ID,
		Website:   t.session.Website,
		State:     string(t.session.State()),
		Error:     t.session.Err(),
		StartedAt: &startedAt,
		EndedAt:   t.session.EndedAt(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := t.scanRepo.UpsertScan(scan); err != nil {
		slog.Error("Task failed", "type", "PersistResults", "scan", t.ScanID, "error", err)
		return fmt.Errorf("failed to upsert scan: %w", err)
	}

	results, err := t.collectResults()
	if err != nil {
		slog.Error("Task failed", "type", "PersistResults", "scan", t.ScanID, "error", err)
		return err
	}

	if err := t.resultRepo.ReplaceResults(t.session.ID, results); err != nil {
		slog.Error("Task failed", "type", "PersistResults", "scan", t.ScanID, "error", err)
		return fmt.Errorf("failed to replace results: %w", err)
	}

	t.session.MarkPersisted()

	slog.Info("Task completed",
		"type", "PersistResults",
		"scan", t.ScanID,
		"results", len(results),
		"duration", t.GetDuration())

	return nil
}

func (t *PersistResultsTask) collectResults() ([]database.ScanResult, error) {
	var results []database.ScanResult
	for _, kind := range engine.Kinds {
		for position, item := range t.session.ItemsOf(kind) {
			payload, err := json.Marshal(item)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal %s result: %w", kind, err)
			}
			results = append(results, database.ScanResult{
				ScanID:   t.session.ID,
				Kind:     string(kind),
				DedupKey: engine.KeyFor(item),
				Position: position,
				Payload:  payload,
			})
		}
	}
	return results, nil
}
