package audit

import (
	"context"
	"time"

	"3tcapital/saftprocessor/internal/core/saft"
)

// IngestionRecord is the audit row written for every processed file.
// It keeps the structured per-file result queryable after the task record expires.
type IngestionRecord struct {
	ID             int64
	TaskID         string
	File           string
	Kind           string
	Status         string
	State          string
	Message        string
	Invoices       int
	ReferencesSeen int
	Deactivated    int
	Failures       int
	DurationMs     int64
	CreatedAt      time.Time
}

// Repository defines the contract for persisting and retrieving ingestion audit rows.
type Repository interface {
	// Save persists an audit entry to storage.
	Save(ctx context.Context, rec IngestionRecord) error

	// FindByTaskID retrieves every file outcome recorded under a task id.
	FindByTaskID(ctx context.Context, taskID string) ([]IngestionRecord, error)
}

// NewIngestionRecord flattens a file result into an audit row.
func NewIngestionRecord(taskID string, r saft.FileResult) IngestionRecord {
	rec := IngestionRecord{
		TaskID:     taskID,
		File:       r.File,
		Kind:       string(r.Kind),
		Status:     string(r.Status),
		State:      string(r.State),
		Message:    r.Message,
		Invoices:   r.Invoices,
		DurationMs: r.DurationMs,
	}
	if r.Reconciliation != nil {
		rec.ReferencesSeen = r.Reconciliation.ReferencesSeen
		rec.Deactivated = r.Reconciliation.DeactivatedCount()
		rec.Failures = len(r.Reconciliation.Failed)
	}
	return rec
}
