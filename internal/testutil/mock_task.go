package testutil

import (
	"context"

	"3tcapital/saftprocessor/internal/core/audit"
	"3tcapital/saftprocessor/internal/core/task"
)

// MockTaskStore is a mock implementation of task.Store for testing.
type MockTaskStore struct {
	SaveFunc   func(ctx context.Context, t task.Task) error
	GetFunc    func(ctx context.Context, id string) (*task.Task, error)
	RecentFunc func(ctx context.Context, limit int) ([]task.Task, error)
}

// Save calls the mock function if set, otherwise succeeds.
func (m *MockTaskStore) Save(ctx context.Context, t task.Task) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, t)
	}
	return nil
}

// Get calls the mock function if set, otherwise reports not found.
func (m *MockTaskStore) Get(ctx context.Context, id string) (*task.Task, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, nil
}

// Recent calls the mock function if set, otherwise returns an empty slice.
func (m *MockTaskStore) Recent(ctx context.Context, limit int) ([]task.Task, error) {
	if m.RecentFunc != nil {
		return m.RecentFunc(ctx, limit)
	}
	return []task.Task{}, nil
}

// MockAuditRepository is a mock implementation of audit.Repository for testing.
type MockAuditRepository struct {
	SaveFunc         func(ctx context.Context, rec audit.IngestionRecord) error
	FindByTaskIDFunc func(ctx context.Context, taskID string) ([]audit.IngestionRecord, error)
}

// Save calls the mock function if set, otherwise succeeds.
func (m *MockAuditRepository) Save(ctx context.Context, rec audit.IngestionRecord) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, rec)
	}
	return nil
}

// FindByTaskID calls the mock function if set, otherwise returns an empty slice.
func (m *MockAuditRepository) FindByTaskID(ctx context.Context, taskID string) ([]audit.IngestionRecord, error) {
	if m.FindByTaskIDFunc != nil {
		return m.FindByTaskIDFunc(ctx, taskID)
	}
	return []audit.IngestionRecord{}, nil
}
