package task

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"3tcapital/saftprocessor/internal/adapters/task/memory"
	coretask "3tcapital/saftprocessor/internal/core/task"
	appctx "3tcapital/saftprocessor/internal/infrastructure/context"
	"3tcapital/saftprocessor/internal/testutil"
)

func newTestDispatcher(t *testing.T, s Settings) (*Dispatcher, *memory.Store) {
	t.Helper()
	store := memory.NewStore(time.Hour)
	d := NewDispatcher(store, s, testutil.NewNullLogger())
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)
	t.Cleanup(func() {
		d.Stop()
		cancel()
	})
	return d, store
}

func waitDone(t *testing.T, store coretask.Store, id string) coretask.Task {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := store.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got != nil && got.Status.Done() {
			return *got
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("task %s did not finish", id)
	return coretask.Task{}
}

func TestDispatcher_Success(t *testing.T) {
	d, store := newTestDispatcher(t, Settings{Workers: 2})

	var seenID string
	id, err := d.Enqueue(context.Background(), coretask.KindIngestionCycle, "admin", func(ctx context.Context) (any, error) {
		seenID = appctx.GetCorrelationID(ctx)
		return map[string]int{"succeeded": 3}, nil
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	got := waitDone(t, store, id)
	if got.Status != coretask.StatusSuccess || got.Attempts != 1 || got.Trigger != "admin" {
		t.Errorf("unexpected task: %+v", got)
	}
	if got.StartedAt == nil || got.FinishedAt == nil {
		t.Error("start and finish times should be recorded")
	}
	var result map[string]int
	if err := json.Unmarshal(got.Result, &result); err != nil || result["succeeded"] != 3 {
		t.Errorf("result = %s, %v", got.Result, err)
	}
	if seenID != id {
		t.Errorf("work should run with the task id as correlation id, got %q", seenID)
	}
}

func TestDispatcher_Retries(t *testing.T) {
	tests := []struct {
		name         string
		maxRetries   int
		failures     int32
		wantStatus   coretask.Status
		wantAttempts int
	}{
		{name: "recovers within retries", maxRetries: 2, failures: 2, wantStatus: coretask.StatusSuccess, wantAttempts: 3},
		{name: "exhausts retries", maxRetries: 1, failures: 5, wantStatus: coretask.StatusFailure, wantAttempts: 2},
		{name: "no retries", maxRetries: 0, failures: 1, wantStatus: coretask.StatusFailure, wantAttempts: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, store := newTestDispatcher(t, Settings{MaxRetries: tt.maxRetries, RetryDelay: time.Millisecond})

			var calls int32
			id, err := d.Enqueue(context.Background(), coretask.KindIngestionCycle, "test", func(context.Context) (any, error) {
				if atomic.AddInt32(&calls, 1) <= tt.failures {
					return nil, errors.New("sftp unreachable")
				}
				return nil, nil
			})
			if err != nil {
				t.Fatalf("Enqueue: %v", err)
			}

			got := waitDone(t, store, id)
			if got.Status != tt.wantStatus || got.Attempts != tt.wantAttempts {
				t.Errorf("status %s after %d attempts, want %s after %d", got.Status, got.Attempts, tt.wantStatus, tt.wantAttempts)
			}
			if tt.wantStatus == coretask.StatusFailure && got.Error != "sftp unreachable" {
				t.Errorf("error = %q", got.Error)
			}
		})
	}
}

func TestDispatcher_HardTimeLimit(t *testing.T) {
	d, store := newTestDispatcher(t, Settings{TimeLimit: 20 * time.Millisecond, SoftTimeLimit: 5 * time.Millisecond})

	id, _ := d.Enqueue(context.Background(), coretask.KindOpenGCsCycle, "test", func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	got := waitDone(t, store, id)
	if got.Status != coretask.StatusFailure || !strings.Contains(got.Error, "deadline") {
		t.Errorf("expected hard limit failure, got %+v", got)
	}
}

func TestDispatcher_PanicIsFailure(t *testing.T) {
	d, store := newTestDispatcher(t, Settings{})

	id, _ := d.Enqueue(context.Background(), coretask.KindIngestionCycle, "test", func(context.Context) (any, error) {
		panic("boom")
	})

	got := waitDone(t, store, id)
	if got.Status != coretask.StatusFailure || !strings.Contains(got.Error, "boom") {
		t.Errorf("unexpected task: %+v", got)
	}
}

func TestDispatcher_Running(t *testing.T) {
	d, store := newTestDispatcher(t, Settings{})

	release := make(chan struct{})
	id, _ := d.Enqueue(context.Background(), coretask.KindIngestionCycle, "test", func(context.Context) (any, error) {
		<-release
		return nil, nil
	})

	if !d.Running(coretask.KindIngestionCycle) {
		t.Error("kind should be running while queued or executing")
	}
	if d.Running(coretask.KindOpenGCsCycle) {
		t.Error("other kinds are not running")
	}
	close(release)
	waitDone(t, store, id)

	deadline := time.Now().Add(time.Second)
	for d.Running(coretask.KindIngestionCycle) && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if d.Running(coretask.KindIngestionCycle) {
		t.Error("kind should be idle after completion")
	}
}

func TestDispatcher_QueueFullAndStopped(t *testing.T) {
	store := memory.NewStore(time.Hour)
	d := NewDispatcher(store, Settings{QueueSize: 1}, testutil.NewNullLogger())
	noop := func(context.Context) (any, error) { return nil, nil }
	ctx := context.Background()

	if _, err := d.Enqueue(ctx, coretask.KindIngestionCycle, "test", noop); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if _, err := d.Enqueue(ctx, coretask.KindIngestionCycle, "test", noop); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}

	d.Start(ctx)
	d.Stop()
	if _, err := d.Enqueue(ctx, coretask.KindIngestionCycle, "test", noop); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}

func TestSettings_Defaults(t *testing.T) {
	s := Settings{TimeLimit: 30 * time.Minute}.withDefaults()
	if s.SoftTimeLimit != 25*time.Minute {
		t.Errorf("soft limit = %s, want 25m", s.SoftTimeLimit)
	}
	if s.Workers != 1 || s.QueueSize != 16 || s.RetryDelay != time.Minute {
		t.Errorf("unexpected defaults: %+v", s)
	}
}
