package testutil

import (
	"context"

	"3tcapital/saftprocessor/internal/core/opengcs"
	"3tcapital/saftprocessor/internal/core/saft"
)

// MockRemoteSource is a mock implementation of saft.RemoteSource for testing.
type MockRemoteSource struct {
	ListFunc        func(ctx context.Context) ([]saft.RemoteDocument, error)
	ListOpenGCsFunc func(ctx context.Context) ([]saft.RemoteDocument, error)
	FetchFunc       func(ctx context.Context, doc saft.RemoteDocument) (saft.RemoteDocument, error)
	DeleteFunc      func(ctx context.Context, doc saft.RemoteDocument) error
}

// List calls the mock function if set, otherwise returns an empty slice.
func (m *MockRemoteSource) List(ctx context.Context) ([]saft.RemoteDocument, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return []saft.RemoteDocument{}, nil
}

// ListOpenGCs calls the mock function if set, otherwise returns an empty slice.
func (m *MockRemoteSource) ListOpenGCs(ctx context.Context) ([]saft.RemoteDocument, error) {
	if m.ListOpenGCsFunc != nil {
		return m.ListOpenGCsFunc(ctx)
	}
	return []saft.RemoteDocument{}, nil
}

// Fetch calls the mock function if set, otherwise returns the document unchanged.
func (m *MockRemoteSource) Fetch(ctx context.Context, doc saft.RemoteDocument) (saft.RemoteDocument, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, doc)
	}
	return doc, nil
}

// Delete calls the mock function if set, otherwise succeeds.
func (m *MockRemoteSource) Delete(ctx context.Context, doc saft.RemoteDocument) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, doc)
	}
	return nil
}

// MockCacheInvalidator records invalidated company ids.
type MockCacheInvalidator struct {
	InvalidateCompanyFunc func(ctx context.Context, companyID string) error
}

// InvalidateCompany calls the mock function if set, otherwise succeeds.
func (m *MockCacheInvalidator) InvalidateCompany(ctx context.Context, companyID string) error {
	if m.InvalidateCompanyFunc != nil {
		return m.InvalidateCompanyFunc(ctx, companyID)
	}
	return nil
}

// MockOpenGCsRepository is a mock implementation of opengcs.Repository for testing.
type MockOpenGCsRepository struct {
	UpsertFunc func(ctx context.Context, rec opengcs.Record) error
}

// Upsert calls the mock function if set, otherwise succeeds.
func (m *MockOpenGCsRepository) Upsert(ctx context.Context, rec opengcs.Record) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, rec)
	}
	return nil
}
