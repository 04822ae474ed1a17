package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/scrape-comb/app/cfg"
	"github.com/lysyi3m/scrape-comb/app/database"
	"github.com/lysyi3m/scrape-comb/app/engine"
	"github.com/lysyi3m/scrape-comb/app/scraper"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	configCache  *scraper.ConfigCache
	launcher     *scraper.Launcher
	hub          *engine.Hub
	scanRepo     database.ScanRepository
	resultRepo   database.ResultRepository
	interval     time.Duration
	retention    time.Duration
	workerCount  int
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	taskQueue    chan TaskInterface
	lastLaunched map[string]time.Time
}

func NewScheduler(configCache *scraper.ConfigCache, launcher *scraper.Launcher, hub *engine.Hub,
	scanRepo database.ScanRepository, resultRepo database.ResultRepository) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		configCache:  configCache,
		launcher:     launcher,
		hub:          hub,
		scanRepo:     scanRepo,
		resultRepo:   resultRepo,
		interval:     time.Duration(cfg.SchedulerInterval) * time.Second,
		retention:    time.Duration(cfg.SessionRetention) * time.Second,
		workerCount:  cfg.WorkerCount,
		ctx:          ctx,
		cancel:       cancel,
		taskQueue:    make(chan TaskInterface, 300),
		lastLaunched: make(map[string]time.Time),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()

}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueTasks() {
	s.enqueueLaunchTasks()
	s.enqueuePersistTasks()

	pruneTask := NewPruneSessionsTask(s.hub, time.Now().UTC().Add(-s.retention))
	if err := s.EnqueueTask(pruneTask); err != nil {
		slog.Warn("Failed to enqueue PruneSessionsTask", "error", err)
	}
}

// enqueueLaunchTasks schedules scans for enabled profiles that are due.
// Launch times are tracked here rather than derived from sessions, so a
// pruned session does not make a profile look due again early. On the
// first tick after a restart the map is empty, so the persisted scan
// history seeds it: a profile scanned an hour ago does not get rescanned
// just because the process bounced.
func (s *Scheduler) enqueueLaunchTasks() {
	profiles := s.configCache.GetEnabledProfiles()
	if len(profiles) == 0 {
		slog.Debug("No enabled scan profiles found")
		return
	}

	now := time.Now().UTC()
	for name, profile := range profiles {
		if session, ok := s.hub.Get(name); ok && session.State() == engine.StateRunning {
			slog.Debug("Scan still running, skipping launch", "profile", name)
			continue
		}

		last, ok := s.lastLaunched[name]
		if !ok {
			if scan, err := s.scanRepo.GetLatestScanForWebsite(profile.URL); err == nil && scan != nil && scan.StartedAt != nil {
				last, ok = *scan.StartedAt, true
				s.lastLaunched[name] = last
			}
		}

		rescanInterval := time.Duration(profile.Settings.RescanInterval) * time.Second
		if ok && now.Sub(last) < rescanInterval {
			slog.Debug("Profile not due for rescan yet", "profile", name, "last_launched", last)
			continue
		}

		launchTask := NewLaunchScanTask(profile, s.launcher)
		if err := s.EnqueueTask(launchTask); err != nil {
			slog.Warn("Failed to enqueue LaunchScanTask", "profile", name, "error", err)
			continue
		}
		s.lastLaunched[name] = now
	}
}

func (s *Scheduler) enqueuePersistTasks() {
	for _, session := range s.hub.Sessions() {
		if !session.State().Terminal() || session.Persisted() {
			continue
		}

		persistTask := NewPersistResultsTask(session, s.scanRepo, s.resultRepo)
		if err := s.EnqueueTask(persistTask); err != nil {
			slog.Warn("Failed to enqueue PersistResultsTask", "scan", session.ID, "error", err)
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "scan", task.GetScanID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			go func() {
				time.Sleep(retryDelay)
				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				default:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
