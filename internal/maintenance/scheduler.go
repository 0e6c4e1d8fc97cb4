package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Task is a Job repeated every Interval.
type Task struct {
	Job
	Interval time.Duration
}

type SessionCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

type DraftPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type LogPurger interface {
	PurgeExpired(ctx context.Context, retention time.Duration) (int64, error)
}

func SessionCleanupTask(sessions SessionCleaner, every time.Duration) Task {
	return Task{Job: Job{Name: "session_cleanup", Run: sessions.CleanupExpired}, Interval: every}
}

func DraftPurgeTask(drafts DraftPurger, every time.Duration) Task {
	return Task{Job: Job{Name: "draft_purge", Run: drafts.PurgeExpired}, Interval: every}
}

func LogRetentionTask(logs LogPurger, retention, every time.Duration) Task {
	return Task{
		Job: Job{
			Name: "log_retention",
			Run: func(ctx context.Context) (int64, error) {
				return logs.PurgeExpired(ctx, retention)
			},
		},
		Interval: every,
	}
}

// Scheduler feeds tasks into a Pool on their intervals.
type Scheduler struct {
	pool   *Pool
	tasks  []Task
	logger *slog.Logger
}

func NewScheduler(pool *Pool, logger *slog.Logger, tasks ...Task) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{pool: pool, tasks: tasks, logger: logger}
}

// RunOnce queues every task immediately.
func (s *Scheduler) RunOnce() {
	for _, t := range s.tasks {
		if err := s.pool.Submit(t.Job); err != nil {
			s.logger.Warn("failed to queue maintenance job", "job", t.Name, "error", err)
		}
	}
}

// Run queues every task once, then on its interval, until ctx is done.
// Tasks with a non-positive interval run only once.
func (s *Scheduler) Run(ctx context.Context) {
	s.pool.Start()
	s.RunOnce()

	var wg sync.WaitGroup
	for _, t := range s.tasks {
		if t.Interval <= 0 {
			continue
		}
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			ticker := time.NewTicker(t.Interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := s.pool.Submit(t.Job); err != nil {
						s.logger.Warn("failed to queue maintenance job", "job", t.Name, "error", err)
					}
				case <-ctx.Done():
					return
				}
			}
		}(t)
	}

	s.logger.Info("maintenance scheduler running", "tasks", len(s.tasks))
	wg.Wait()
	<-ctx.Done()
}

// RunNow runs every task in the caller's goroutine, bypassing the pool.
// It returns the first error after attempting all tasks.
func (s *Scheduler) RunNow(ctx context.Context) error {
	var firstErr error
	for _, t := range s.tasks {
		affected, err := t.Run(ctx)
		if err != nil {
			s.logger.Error("maintenance job failed", "job", t.Name, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", t.Name, err)
			}
			continue
		}
		s.logger.Info("maintenance job finished", "job", t.Name, "affected", affected)
	}
	return firstErr
}
