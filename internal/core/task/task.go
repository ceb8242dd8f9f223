package task

import (
	"context"
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a queued unit of work.
type Status string

const (
	StatusPending Status = "pending"
	StatusStarted Status = "started"
	StatusRetry   Status = "retry"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Done reports whether the task reached a terminal state.
func (s Status) Done() bool {
	return s == StatusSuccess || s == StatusFailure
}

// Kind names what a task runs.
type Kind string

const (
	KindIngestionCycle Kind = "ingestion_cycle"
	KindOpenGCsCycle   Kind = "opengcs_cycle"
)

// Task is the queryable record of an enqueued job.
type Task struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	Status     Status          `json:"status"`
	Trigger    string          `json:"trigger"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Store keeps task records so their status can be polled by id.
type Store interface {
	Save(ctx context.Context, t Task) error
	// Get returns nil, nil when the id is unknown or expired.
	Get(ctx context.Context, id string) (*Task, error)
	// Recent returns up to limit tasks, newest first.
	Recent(ctx context.Context, limit int) ([]Task, error)
}
