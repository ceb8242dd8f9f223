package task

import (
	"context"
	"log/slog"
	"sync"
	"time"

	coretask "3tcapital/saftprocessor/internal/core/task"
)

// Enqueuer is the part of the dispatcher the scheduler needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind coretask.Kind, trigger string, fn Func) (string, error)
	Running(kind coretask.Kind) bool
}

// Entry is a periodic job. A non-positive interval disables it.
type Entry struct {
	Kind     coretask.Kind
	Interval time.Duration
	Run      Func
}

// Scheduler enqueues entries on fixed intervals.
type Scheduler struct {
	dispatcher Enqueuer
	entries    []Entry
	log        *slog.Logger
}

// NewScheduler creates a scheduler for the given entries.
func NewScheduler(dispatcher Enqueuer, entries []Entry, log *slog.Logger) *Scheduler {
	return &Scheduler{dispatcher: dispatcher, entries: entries, log: log.With("component", "scheduler")}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, e := range s.entries {
		if e.Interval <= 0 {
			s.log.Info("Schedule disabled", "kind", e.Kind)
			continue
		}
		wg.Add(1)
		go func(e Entry) {
			defer wg.Done()
			s.loop(ctx, e)
		}(e)
	}
	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, e Entry) {
	s.log.Info("Schedule registered", "kind", e.Kind, "interval", e.Interval.String())
	ticker := time.NewTicker(e.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Fire(ctx, e)
		case <-ctx.Done():
			return
		}
	}
}

// Fire enqueues the entry unless a task of the same kind is still queued or running.
// It returns the task id, or an empty string when the tick was skipped.
func (s *Scheduler) Fire(ctx context.Context, e Entry) string {
	if s.dispatcher.Running(e.Kind) {
		s.log.Warn("Previous cycle still running, tick skipped", "kind", e.Kind)
		return ""
	}
	id, err := s.dispatcher.Enqueue(ctx, e.Kind, "schedule", e.Run)
	if err != nil {
		s.log.Error("Scheduled enqueue failed", "kind", e.Kind, "error", err)
		return ""
	}
	return id
}
