package testutil

import (
	"context"

	"3tcapital/saftprocessor/internal/core/saft"
)

// MockRepository is a mock implementation of saft.Repository for testing.
type MockRepository struct {
	UpsertCompaniesFunc      func(ctx context.Context, companies []saft.Company) error
	UpsertFiliaisFunc        func(ctx context.Context, filiais []saft.Filial) error
	UpsertInvoicesFunc       func(ctx context.Context, invoices []saft.Invoice) ([]saft.InvoiceKey, error)
	FindInvoiceFileFunc      func(ctx context.Context, filename string) (*saft.InvoiceFile, error)
	CreateInvoiceFileFunc    func(ctx context.Context, file saft.InvoiceFile) (*saft.InvoiceFile, error)
	ExistingLineNumbersFunc  func(ctx context.Context, invoiceID int64) (map[int]struct{}, error)
	LinkExistsFunc           func(ctx context.Context, invoiceFileID, invoiceID int64) (bool, error)
	InsertLinesFunc          func(ctx context.Context, lines []saft.InvoiceLine) error
	InsertLinksFunc          func(ctx context.Context, links []saft.InvoiceFileLink) error
	FindInvoiceByNumberFunc  func(ctx context.Context, invoiceNo string) (*saft.InvoiceState, error)
	DeactivateInvoiceFunc    func(ctx context.Context, invoiceID int64, d saft.Deactivation) (bool, error)
	DeleteInvoiceCascadeFunc func(ctx context.Context, invoiceID int64) error
	PingFunc                 func(ctx context.Context) error
}

// UpsertCompanies calls the mock function if set, otherwise succeeds.
func (m *MockRepository) UpsertCompanies(ctx context.Context, companies []saft.Company) error {
	if m.UpsertCompaniesFunc != nil {
		return m.UpsertCompaniesFunc(ctx, companies)
	}
	return nil
}

// UpsertFiliais calls the mock function if set, otherwise succeeds.
func (m *MockRepository) UpsertFiliais(ctx context.Context, filiais []saft.Filial) error {
	if m.UpsertFiliaisFunc != nil {
		return m.UpsertFiliaisFunc(ctx, filiais)
	}
	return nil
}

// UpsertInvoices calls the mock function if set, otherwise assigns sequential ids.
func (m *MockRepository) UpsertInvoices(ctx context.Context, invoices []saft.Invoice) ([]saft.InvoiceKey, error) {
	if m.UpsertInvoicesFunc != nil {
		return m.UpsertInvoicesFunc(ctx, invoices)
	}
	keys := make([]saft.InvoiceKey, 0, len(invoices))
	for i, inv := range invoices {
		keys = append(keys, saft.InvoiceKey{ID: int64(i + 1), InvoiceNo: inv.InvoiceNo})
	}
	return keys, nil
}

// FindInvoiceFile calls the mock function if set, otherwise reports no file.
func (m *MockRepository) FindInvoiceFile(ctx context.Context, filename string) (*saft.InvoiceFile, error) {
	if m.FindInvoiceFileFunc != nil {
		return m.FindInvoiceFileFunc(ctx, filename)
	}
	return nil, nil
}

// CreateInvoiceFile calls the mock function if set, otherwise returns the file with id 1.
func (m *MockRepository) CreateInvoiceFile(ctx context.Context, file saft.InvoiceFile) (*saft.InvoiceFile, error) {
	if m.CreateInvoiceFileFunc != nil {
		return m.CreateInvoiceFileFunc(ctx, file)
	}
	file.ID = 1
	return &file, nil
}

// ExistingLineNumbers calls the mock function if set, otherwise returns an empty set.
func (m *MockRepository) ExistingLineNumbers(ctx context.Context, invoiceID int64) (map[int]struct{}, error) {
	if m.ExistingLineNumbersFunc != nil {
		return m.ExistingLineNumbersFunc(ctx, invoiceID)
	}
	return map[int]struct{}{}, nil
}

// LinkExists calls the mock function if set, otherwise returns false.
func (m *MockRepository) LinkExists(ctx context.Context, invoiceFileID, invoiceID int64) (bool, error) {
	if m.LinkExistsFunc != nil {
		return m.LinkExistsFunc(ctx, invoiceFileID, invoiceID)
	}
	return false, nil
}

// InsertLines calls the mock function if set, otherwise succeeds.
func (m *MockRepository) InsertLines(ctx context.Context, lines []saft.InvoiceLine) error {
	if m.InsertLinesFunc != nil {
		return m.InsertLinesFunc(ctx, lines)
	}
	return nil
}

// InsertLinks calls the mock function if set, otherwise succeeds.
func (m *MockRepository) InsertLinks(ctx context.Context, links []saft.InvoiceFileLink) error {
	if m.InsertLinksFunc != nil {
		return m.InsertLinksFunc(ctx, links)
	}
	return nil
}

// FindInvoiceByNumber calls the mock function if set, otherwise reports not found.
func (m *MockRepository) FindInvoiceByNumber(ctx context.Context, invoiceNo string) (*saft.InvoiceState, error) {
	if m.FindInvoiceByNumberFunc != nil {
		return m.FindInvoiceByNumberFunc(ctx, invoiceNo)
	}
	return nil, nil
}

// DeactivateInvoice calls the mock function if set, otherwise reports a change.
func (m *MockRepository) DeactivateInvoice(ctx context.Context, invoiceID int64, d saft.Deactivation) (bool, error) {
	if m.DeactivateInvoiceFunc != nil {
		return m.DeactivateInvoiceFunc(ctx, invoiceID, d)
	}
	return true, nil
}

// DeleteInvoiceCascade calls the mock function if set, otherwise succeeds.
func (m *MockRepository) DeleteInvoiceCascade(ctx context.Context, invoiceID int64) error {
	if m.DeleteInvoiceCascadeFunc != nil {
		return m.DeleteInvoiceCascadeFunc(ctx, invoiceID)
	}
	return nil
}

// Ping calls the mock function if set, otherwise succeeds.
func (m *MockRepository) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}
