package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	coretask "3tcapital/saftprocessor/internal/core/task"
	appctx "3tcapital/saftprocessor/internal/infrastructure/context"
)

// Func is a unit of work. Its result is stored as JSON on the task record.
type Func func(ctx context.Context) (any, error)

var (
	// ErrQueueFull is returned when the queue cannot accept more tasks.
	ErrQueueFull = errors.New("task queue is full")
	// ErrStopped is returned by Enqueue after Stop.
	ErrStopped = errors.New("dispatcher stopped")
)

// Settings configures a Dispatcher. Zero values fall back to defaults.
type Settings struct {
	Workers       int
	QueueSize     int
	MaxRetries    int
	RetryDelay    time.Duration
	SoftTimeLimit time.Duration
	TimeLimit     time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.Workers <= 0 {
		s.Workers = 1
	}
	if s.QueueSize <= 0 {
		s.QueueSize = 16
	}
	if s.MaxRetries < 0 {
		s.MaxRetries = 0
	}
	if s.RetryDelay <= 0 {
		s.RetryDelay = time.Minute
	}
	if s.TimeLimit <= 0 {
		s.TimeLimit = 30 * time.Minute
	}
	if s.SoftTimeLimit <= 0 || s.SoftTimeLimit > s.TimeLimit {
		s.SoftTimeLimit = s.TimeLimit * 5 / 6
	}
	return s
}

type job struct {
	task coretask.Task
	fn   Func
}

// Dispatcher runs enqueued work on a bounded set of workers with retries and time limits.
// Every state change is written to the task store so callers can poll by id.
type Dispatcher struct {
	store    coretask.Store
	settings Settings
	queue    chan job
	log      *slog.Logger
	now      func() time.Time
	newID    func() string

	mu      sync.Mutex
	active  map[coretask.Kind]int
	stopped bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher. Call Start before enqueueing.
func NewDispatcher(store coretask.Store, settings Settings, log *slog.Logger) *Dispatcher {
	settings = settings.withDefaults()
	return &Dispatcher{
		store:    store,
		settings: settings,
		queue:    make(chan job, settings.QueueSize),
		log:      log.With("component", "dispatcher"),
		now:      time.Now,
		newID:    uuid.NewString,
		active:   make(map[coretask.Kind]int),
	}
}

// Start launches the workers. They stop when ctx is cancelled or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.settings.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	d.log.Info("Dispatcher started", "workers", d.settings.Workers)
}

// Stop refuses new work and waits for queued tasks to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
	d.log.Info("Dispatcher stopped")
}

// Enqueue records a pending task and queues it. The returned id can be polled in the store.
func (d *Dispatcher) Enqueue(ctx context.Context, kind coretask.Kind, trigger string, fn Func) (string, error) {
	d.mu.Lock()
	stopped := d.stopped
	d.mu.Unlock()
	if stopped {
		return "", ErrStopped
	}

	t := coretask.Task{
		ID:         d.newID(),
		Kind:       kind,
		Status:     coretask.StatusPending,
		Trigger:    trigger,
		EnqueuedAt: d.now(),
	}
	if err := d.store.Save(ctx, t); err != nil {
		return "", fmt.Errorf("save task: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return "", ErrStopped
	}
	select {
	case d.queue <- job{task: t, fn: fn}:
		d.active[kind]++
	default:
		t.Status = coretask.StatusFailure
		t.Error = ErrQueueFull.Error()
		d.save(ctx, t)
		return "", ErrQueueFull
	}

	d.log.Info("Task enqueued", "task_id", t.ID, "kind", kind, "trigger", trigger)
	return t.ID, nil
}

// Running reports whether a task of this kind is queued or executing.
func (d *Dispatcher) Running(kind coretask.Kind) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active[kind] > 0
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case j, ok := <-d.queue:
			if !ok {
				return
			}
			d.execute(ctx, j)
			d.mu.Lock()
			d.active[j.task.Kind]--
			d.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) execute(ctx context.Context, j job) {
	t := j.task
	ctx = appctx.WithCorrelationID(ctx, t.ID)
	log := d.log.With("task_id", t.ID, "kind", t.Kind)

	started := d.now()
	t.StartedAt = &started

	for attempt := 1; ; attempt++ {
		t.Attempts = attempt
		t.Status = coretask.StatusStarted
		d.save(ctx, t)
		log.Info("Task started", "attempt", attempt)

		result, err := d.runOnce(ctx, j.fn, log)
		if err == nil {
			t.Status = coretask.StatusSuccess
			t.Error = ""
			if result != nil {
				if raw, merr := json.Marshal(result); merr == nil {
					t.Result = raw
				} else {
					log.Error("Task result could not be encoded", "error", merr)
				}
			}
			d.finish(ctx, &t)
			log.Info("Task succeeded", "attempts", attempt, "duration", t.FinishedAt.Sub(started).String())
			return
		}

		t.Error = err.Error()
		if attempt > d.settings.MaxRetries || ctx.Err() != nil {
			t.Status = coretask.StatusFailure
			d.finish(ctx, &t)
			log.Error("Task failed", "attempts", attempt, "error", err)
			return
		}

		t.Status = coretask.StatusRetry
		d.save(ctx, t)
		delay := d.settings.RetryDelay * time.Duration(attempt)
		log.Warn("Task failed, retrying", "attempt", attempt, "retry_in", delay.String(), "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			t.Status = coretask.StatusFailure
			t.Error = ctx.Err().Error()
			d.finish(context.WithoutCancel(ctx), &t)
			return
		}
	}
}

// runOnce applies the soft and hard limits to a single attempt. The soft limit only logs;
// the hard limit cancels the attempt's context.
func (d *Dispatcher) runOnce(ctx context.Context, fn Func, log *slog.Logger) (result any, err error) {
	hardCtx, cancel := context.WithTimeout(ctx, d.settings.TimeLimit)
	defer cancel()

	soft := time.AfterFunc(d.settings.SoftTimeLimit, func() {
		log.Warn("Task exceeded soft time limit", "soft_limit", d.settings.SoftTimeLimit.String())
	})
	defer soft.Stop()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	result, err = fn(hardCtx)
	if err == nil && errors.Is(hardCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("hard time limit %s exceeded", d.settings.TimeLimit)
	}
	return result, err
}

func (d *Dispatcher) finish(ctx context.Context, t *coretask.Task) {
	finished := d.now()
	t.FinishedAt = &finished
	d.save(ctx, *t)
}

func (d *Dispatcher) save(ctx context.Context, t coretask.Task) {
	if err := d.store.Save(context.WithoutCancel(ctx), t); err != nil {
		d.log.Error("Failed to store task state", "task_id", t.ID, "status", t.Status, "error", err)
	}
}
