package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/scrape-comb/app/scraper"
)

type LaunchScanTask struct {
	Task
	Profile  *scraper.Profile
	launcher *scraper.Launcher
}

func NewLaunchScanTask(profile *scraper.Profile, launcher *scraper.Launcher) *LaunchScanTask {
	return &LaunchScanTask{
		Task:     NewTask(TaskTypeLaunchScan, profile.Name),
		Profile:  profile,
		launcher: launcher,
	}
}

func (t *LaunchScanTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	session, err := t.launcher.LaunchProfile(t.Profile)
	if err != nil {
		slog.Error("Task failed", "type", "LaunchScan", "scan", t.ScanID, "error", err)
		return fmt.Errorf("failed to launch scan: %w", err)
	}

	slog.Info("Task completed",
		"type", "LaunchScan",
		"scan", session.ID,
		"url", t.Profile.URL,
		"duration", t.GetDuration())

	return nil
}
