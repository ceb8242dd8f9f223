package saft

import "context"

// BatchRepository is the write side used by the persistence engine.
// Every method is either an upsert on a natural key or guarded by an existence check.
type BatchRepository interface {
	UpsertCompanies(ctx context.Context, companies []Company) error
	UpsertFiliais(ctx context.Context, filiais []Filial) error
	// UpsertInvoices never touches the active flag of an existing row.
	UpsertInvoices(ctx context.Context, invoices []Invoice) ([]InvoiceKey, error)
	// FindInvoiceFile returns nil, nil when the filename was never ingested.
	FindInvoiceFile(ctx context.Context, filename string) (*InvoiceFile, error)
	CreateInvoiceFile(ctx context.Context, file InvoiceFile) (*InvoiceFile, error)
	ExistingLineNumbers(ctx context.Context, invoiceID int64) (map[int]struct{}, error)
	LinkExists(ctx context.Context, invoiceFileID, invoiceID int64) (bool, error)
	InsertLines(ctx context.Context, lines []InvoiceLine) error
	InsertLinks(ctx context.Context, links []InvoiceFileLink) error
}

// ReconciliationRepository is the side used when a credit note references invoices.
type ReconciliationRepository interface {
	// FindInvoiceByNumber returns nil, nil when no invoice carries that number.
	FindInvoiceByNumber(ctx context.Context, invoiceNo string) (*InvoiceState, error)
	// DeactivateInvoice reports whether the row changed; an inactive row is left untouched.
	DeactivateInvoice(ctx context.Context, invoiceID int64, d Deactivation) (bool, error)
	DeleteInvoiceCascade(ctx context.Context, invoiceID int64) error
}

// Repository is the full store contract implemented by the store adapters.
type Repository interface {
	BatchRepository
	ReconciliationRepository
	Ping(ctx context.Context) error
}

// RemoteSource lists, downloads and removes files on the remote channel.
type RemoteSource interface {
	// List returns FR/NC candidates without downloading them.
	List(ctx context.Context) ([]RemoteDocument, error)
	ListOpenGCs(ctx context.Context) ([]RemoteDocument, error)
	// Fetch downloads the file and returns the document with LocalPath set.
	Fetch(ctx context.Context, doc RemoteDocument) (RemoteDocument, error)
	Delete(ctx context.Context, doc RemoteDocument) error
}

// CacheInvalidator drops memoized analytics for a taxpayer after new invoices land.
type CacheInvalidator interface {
	InvalidateCompany(ctx context.Context, companyID string) error
}

// NopInvalidator is used when no cache is configured.
type NopInvalidator struct{}

func (NopInvalidator) InvalidateCompany(context.Context, string) error { return nil }
