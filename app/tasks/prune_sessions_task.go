package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/lysyi3m/scrape-comb/app/engine"
)

// PruneSessionsTask sweeps finished sessions out of the in-memory
// registry once they are persisted and past the retention window.
type PruneSessionsTask struct {
	Task
	hub    *engine.Hub
	cutoff time.Time
}

func NewPruneSessionsTask(hub *engine.Hub, cutoff time.Time) *PruneSessionsTask {
	return &PruneSessionsTask{
		Task:   NewTask(TaskTypePruneSessions, ""),
		hub:    hub,
		cutoff: cutoff,
	}
}

func (t *PruneSessionsTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	prunable := t.hub.Prunable(t.cutoff)
	for _, session := range prunable {
		t.hub.Remove(session.ID)
		slog.Debug("Session pruned", "scan", session.ID, "state", session.State())
	}

	if len(prunable) > 0 {
		slog.Info("Task completed",
			"type", "PruneSessions",
			"pruned", len(prunable),
			"remaining", t.hub.Count(),
			"duration", t.GetDuration())
	}

	return nil
}
