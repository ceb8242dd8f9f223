package persistence

import (
	"context"
	"fmt"
	"log/slog"

	"3tcapital/saftprocessor/internal/core/saft"
)

// BatchSizes bounds how many rows go into a single statement per table.
type BatchSizes struct {
	Companies int
	Filiais   int
	Invoices  int
	Lines     int
	Links     int
}

// DefaultBatchSizes mirrors the limits used for the hosted database.
var DefaultBatchSizes = BatchSizes{Companies: 1000, Filiais: 1000, Invoices: 500, Lines: 2000, Links: 500}

func (b BatchSizes) withDefaults() BatchSizes {
	if b.Companies <= 0 {
		b.Companies = DefaultBatchSizes.Companies
	}
	if b.Filiais <= 0 {
		b.Filiais = DefaultBatchSizes.Filiais
	}
	if b.Invoices <= 0 {
		b.Invoices = DefaultBatchSizes.Invoices
	}
	if b.Lines <= 0 {
		b.Lines = DefaultBatchSizes.Lines
	}
	if b.Links <= 0 {
		b.Links = DefaultBatchSizes.Links
	}
	return b
}

// Engine writes a batch so that re-running it converges to the same rows.
type Engine struct {
	repo  saft.BatchRepository
	cache saft.CacheInvalidator
	sizes BatchSizes
	log   *slog.Logger
}

// NewEngine creates a persistence engine. cache may be nil.
func NewEngine(repo saft.BatchRepository, cache saft.CacheInvalidator, sizes BatchSizes, log *slog.Logger) *Engine {
	if cache == nil {
		cache = saft.NopInvalidator{}
	}
	return &Engine{
		repo:  repo,
		cache: cache,
		sizes: sizes.withDefaults(),
		log:   log.With("component", "persistence"),
	}
}

// Persist upserts companies, filiais and invoices, then appends new lines and links.
// Only failing to upsert the headers fails the batch; line and link failures are
// collected in the outcome.
func (e *Engine) Persist(ctx context.Context, batch *saft.Batch) (*saft.PersistOutcome, error) {
	log := e.log.With("file", batch.Filename)

	if companies := batch.Companies(); len(companies) > 0 {
		for _, chunk := range chunks(companies, e.sizes.Companies) {
			if err := e.repo.UpsertCompanies(ctx, chunk); err != nil {
				return nil, &saft.PersistenceError{File: batch.Filename, Reason: "upsert companies", Err: err}
			}
		}
	}

	if filiais := batch.Filiais(); len(filiais) > 0 {
		for _, chunk := range chunks(filiais, e.sizes.Filiais) {
			if err := e.repo.UpsertFiliais(ctx, chunk); err != nil {
				return nil, &saft.PersistenceError{File: batch.Filename, Reason: "upsert filiais", Err: err}
			}
		}
	}

	headers := dedupeInvoices(batch.Headers())
	ids := make(map[string]int64, len(headers))
	for _, chunk := range chunks(headers, e.sizes.Invoices) {
		keys, err := e.repo.UpsertInvoices(ctx, chunk)
		if err != nil {
			return nil, &saft.PersistenceError{File: batch.Filename, Reason: "upsert invoices", Err: err}
		}
		for _, k := range keys {
			ids[k.InvoiceNo] = k.ID
		}
	}
	if len(ids) == 0 {
		return nil, &saft.PersistenceError{File: batch.Filename, Reason: "no invoices were upserted"}
	}

	file, err := e.ensureInvoiceFile(ctx, batch)
	if err != nil {
		return nil, &saft.PersistenceError{File: batch.Filename, Reason: "ensure invoice file", Err: err}
	}

	out := &saft.PersistOutcome{FileID: file.ID, Invoices: len(ids)}
	var (
		newLines []saft.InvoiceLine
		newLinks []saft.InvoiceFileLink
		known    = make(map[int64]map[int]struct{})
		linked   = make(map[int64]bool)
	)
	for _, inv := range batch.Invoices {
		id, ok := ids[inv.Invoice.InvoiceNo]
		if !ok {
			log.Warn("invoice id not returned by upsert", "invoice_no", inv.Invoice.InvoiceNo)
			out.Errors = append(out.Errors, fmt.Sprintf("%s: id not returned", inv.Invoice.InvoiceNo))
			continue
		}

		existing, ok := known[id]
		if !ok {
			var err error
			existing, err = e.repo.ExistingLineNumbers(ctx, id)
			if err != nil {
				log.Error("failed to read existing lines", "invoice_no", inv.Invoice.InvoiceNo, "error", err)
				out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", inv.Invoice.InvoiceNo, err))
				continue
			}
			if existing == nil {
				existing = make(map[int]struct{})
			}
			known[id] = existing
		}
		for _, line := range inv.Lines {
			if _, dup := existing[line.LineNumber]; dup {
				out.LinesSkipped++
				continue
			}
			existing[line.LineNumber] = struct{}{}
			line.InvoiceID = id
			newLines = append(newLines, line)
		}

		if linked[id] {
			continue
		}
		exists, err := e.repo.LinkExists(ctx, file.ID, id)
		if err != nil {
			log.Error("failed to check file link", "invoice_no", inv.Invoice.InvoiceNo, "error", err)
			out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", inv.Invoice.InvoiceNo, err))
			continue
		}
		linked[id] = true
		if !exists {
			newLinks = append(newLinks, saft.InvoiceFileLink{InvoiceFileID: file.ID, InvoiceID: id})
		}
	}

	// Invoices are already upserted here; a failed chunk only degrades the outcome.
	for _, chunk := range chunks(newLines, e.sizes.Lines) {
		if err := e.repo.InsertLines(ctx, chunk); err != nil {
			log.Error("failed to insert lines", "lines", len(chunk), "error", err)
			out.Errors = append(out.Errors, fmt.Sprintf("insert %d line(s): %v", len(chunk), err))
			continue
		}
		out.LinesInserted += len(chunk)
	}
	for _, chunk := range chunks(newLinks, e.sizes.Links) {
		if err := e.repo.InsertLinks(ctx, chunk); err != nil {
			log.Error("failed to insert file links", "links", len(chunk), "error", err)
			out.Errors = append(out.Errors, fmt.Sprintf("insert %d link(s): %v", len(chunk), err))
			continue
		}
		out.LinksInserted += len(chunk)
	}

	for _, c := range batch.Companies() {
		if err := e.cache.InvalidateCompany(ctx, c.CompanyID); err != nil {
			log.Warn("cache invalidation failed", "company_id", c.CompanyID, "error", err)
		}
	}

	log.Info("batch persisted",
		"invoices", out.Invoices,
		"lines_inserted", out.LinesInserted,
		"lines_skipped", out.LinesSkipped,
		"links_inserted", out.LinksInserted,
		"errors", len(out.Errors),
	)
	return out, nil
}

func (e *Engine) ensureInvoiceFile(ctx context.Context, batch *saft.Batch) (*saft.InvoiceFile, error) {
	existing, err := e.repo.FindInvoiceFile(ctx, batch.Filename)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	return e.repo.CreateInvoiceFile(ctx, saft.InvoiceFile{
		Filename:      batch.Filename,
		ProcessedAt:   batch.ProcessedAt,
		TotalInvoices: len(batch.Invoices),
	})
}

// dedupeInvoices keeps the last occurrence of each number so one statement never
// touches the same row twice.
func dedupeInvoices(invoices []saft.Invoice) []saft.Invoice {
	pos := make(map[string]int, len(invoices))
	out := make([]saft.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if i, ok := pos[inv.InvoiceNo]; ok {
			out[i] = inv
			continue
		}
		pos[inv.InvoiceNo] = len(out)
		out = append(out, inv)
	}
	return out
}

func chunks[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}
