package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"3tcapital/saftprocessor/internal/core/saft"
)

// Repository implements saft.Repository on PostgreSQL using pgx batches.
type Repository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewRepository creates a new PostgreSQL invoice repository.
func NewRepository(pool *pgxpool.Pool, log *slog.Logger) *Repository {
	return &Repository{pool: pool, log: log.With("component", "store", "driver", "pgx")}
}

const upsertCompanySQL = `
	INSERT INTO companies (company_id, company_name, address_detail, city, postal_code, country)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (company_id) DO UPDATE SET
		company_name = EXCLUDED.company_name,
		address_detail = EXCLUDED.address_detail,
		city = EXCLUDED.city,
		postal_code = EXCLUDED.postal_code,
		country = EXCLUDED.country,
		updated_at = NOW()
`

// UpsertCompanies writes companies keyed on company_id.
func (r *Repository) UpsertCompanies(ctx context.Context, companies []saft.Company) error {
	b := &pgx.Batch{}
	for _, c := range companies {
		b.Queue(upsertCompanySQL, c.CompanyID, c.CompanyName, c.AddressDetail, c.City, c.PostalCode, c.Country)
	}
	if err := r.execBatch(ctx, b); err != nil {
		return fmt.Errorf("upsert companies: %w", err)
	}
	return nil
}

const upsertFilialSQL = `
	INSERT INTO filiais (filial_number, filial_id, company_id, nome, endereco, cidade, codigo_postal, pais)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (filial_number) DO UPDATE SET
		filial_id = EXCLUDED.filial_id,
		company_id = EXCLUDED.company_id,
		nome = EXCLUDED.nome,
		endereco = EXCLUDED.endereco,
		cidade = EXCLUDED.cidade,
		codigo_postal = EXCLUDED.codigo_postal,
		pais = EXCLUDED.pais,
		updated_at = NOW()
`

// UpsertFiliais writes branches keyed on filial_number.
func (r *Repository) UpsertFiliais(ctx context.Context, filiais []saft.Filial) error {
	b := &pgx.Batch{}
	for _, f := range filiais {
		b.Queue(upsertFilialSQL, f.FilialNumber, f.FilialID, f.CompanyID, f.Name, f.Address, f.City, f.PostalCode, f.Country)
	}
	if err := r.execBatch(ctx, b); err != nil {
		return fmt.Errorf("upsert filiais: %w", err)
	}
	return nil
}

// active is never part of the update list.
const upsertInvoiceSQL = `
	INSERT INTO invoices (
		invoice_no, filial, atcud, company_id, customer_id, invoice_date,
		invoice_status_date, invoice_status_time, hash_extract, end_date,
		tax_payable, net_total, gross_total, payment_amount, tax_type,
		certificate_number, customer_snapshot, nc_reason
	) VALUES (
		$1, $2, $3, $4, $5, NULLIF($6::text, '')::date,
		NULLIF($7::text, '')::date, NULLIF($8::text, '')::time, $9, NULLIF($10::text, '')::date,
		$11, $12, $13, $14, $15,
		$16, $17, $18
	)
	ON CONFLICT (invoice_no) DO UPDATE SET
		filial = EXCLUDED.filial,
		atcud = EXCLUDED.atcud,
		company_id = EXCLUDED.company_id,
		customer_id = EXCLUDED.customer_id,
		invoice_date = EXCLUDED.invoice_date,
		invoice_status_date = EXCLUDED.invoice_status_date,
		invoice_status_time = EXCLUDED.invoice_status_time,
		hash_extract = EXCLUDED.hash_extract,
		end_date = EXCLUDED.end_date,
		tax_payable = EXCLUDED.tax_payable,
		net_total = EXCLUDED.net_total,
		gross_total = EXCLUDED.gross_total,
		payment_amount = EXCLUDED.payment_amount,
		tax_type = EXCLUDED.tax_type,
		certificate_number = EXCLUDED.certificate_number,
		customer_snapshot = EXCLUDED.customer_snapshot,
		nc_reason = EXCLUDED.nc_reason,
		updated_at = NOW()
	RETURNING id, invoice_no
`

// UpsertInvoices writes headers keyed on invoice_no and returns their ids.
func (r *Repository) UpsertInvoices(ctx context.Context, invoices []saft.Invoice) ([]saft.InvoiceKey, error) {
	if len(invoices) == 0 {
		return nil, nil
	}
	b := &pgx.Batch{}
	for _, inv := range invoices {
		var snapshot any
		if len(inv.CustomerSnapshot) > 0 {
			snapshot = []byte(inv.CustomerSnapshot)
		}
		b.Queue(upsertInvoiceSQL,
			inv.InvoiceNo, inv.Filial, inv.ATCUD, inv.CompanyID, inv.CustomerID, inv.InvoiceDate,
			inv.StatusDate, inv.StatusTime, inv.HashExtract, inv.EndDate,
			inv.TaxPayable, inv.NetTotal, inv.GrossTotal, inv.PaymentAmount, inv.TaxType,
			inv.CertificateNumber, snapshot, inv.NCReason,
		)
	}

	br := r.pool.SendBatch(ctx, b)
	defer br.Close()

	keys := make([]saft.InvoiceKey, 0, len(invoices))
	for range invoices {
		var k saft.InvoiceKey
		if err := br.QueryRow().Scan(&k.ID, &k.InvoiceNo); err != nil {
			return nil, fmt.Errorf("upsert invoices: %w", err)
		}
		keys = append(keys, k)
	}
	if err := br.Close(); err != nil {
		return nil, fmt.Errorf("upsert invoices: %w", err)
	}
	return keys, nil
}

// FindInvoiceFile returns nil, nil when the file was never ingested.
func (r *Repository) FindInvoiceFile(ctx context.Context, filename string) (*saft.InvoiceFile, error) {
	query := `SELECT id, filename, processed_at, total_invoices FROM invoice_files WHERE filename = $1`

	var f saft.InvoiceFile
	err := r.pool.QueryRow(ctx, query, filename).Scan(&f.ID, &f.Filename, &f.ProcessedAt, &f.TotalInvoices)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find invoice file: %w", err)
	}
	return &f, nil
}

// CreateInvoiceFile inserts the file record. A concurrent insert of the same name returns the existing row.
func (r *Repository) CreateInvoiceFile(ctx context.Context, file saft.InvoiceFile) (*saft.InvoiceFile, error) {
	query := `
		INSERT INTO invoice_files (filename, processed_at, total_invoices)
		VALUES ($1, $2, $3)
		ON CONFLICT (filename) DO UPDATE SET filename = EXCLUDED.filename
		RETURNING id, filename, processed_at, total_invoices
	`

	var f saft.InvoiceFile
	err := r.pool.QueryRow(ctx, query, file.Filename, file.ProcessedAt, file.TotalInvoices).
		Scan(&f.ID, &f.Filename, &f.ProcessedAt, &f.TotalInvoices)
	if err != nil {
		return nil, fmt.Errorf("create invoice file: %w", err)
	}
	return &f, nil
}

// ExistingLineNumbers returns the line numbers already stored for an invoice.
func (r *Repository) ExistingLineNumbers(ctx context.Context, invoiceID int64) (map[int]struct{}, error) {
	rows, err := r.pool.Query(ctx, `SELECT line_number FROM invoice_lines WHERE invoice_id = $1`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("query line numbers: %w", err)
	}
	numbers, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, fmt.Errorf("collect line numbers: %w", err)
	}

	out := make(map[int]struct{}, len(numbers))
	for _, n := range numbers {
		out[n] = struct{}{}
	}
	return out, nil
}

// LinkExists reports whether the file already references the invoice.
func (r *Repository) LinkExists(ctx context.Context, invoiceFileID, invoiceID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM invoice_file_invoices WHERE invoice_file_id = $1 AND invoice_id = $2)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, invoiceFileID, invoiceID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check invoice file link: %w", err)
	}
	return exists, nil
}

const insertLineSQL = `
	INSERT INTO invoice_lines (
		invoice_id, line_number, product_code, description, quantity, unit_price,
		credit_amount, tax_percentage, price_with_iva, iva
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (invoice_id, line_number) DO NOTHING
`

// InsertLines appends lines; a line that already exists is left as it is.
func (r *Repository) InsertLines(ctx context.Context, lines []saft.InvoiceLine) error {
	b := &pgx.Batch{}
	for _, l := range lines {
		b.Queue(insertLineSQL,
			l.InvoiceID, l.LineNumber, l.ProductCode, l.Description, l.Quantity, l.UnitPrice,
			l.CreditAmount, l.TaxPercentage, l.PriceWithIVA, l.IVA,
		)
	}
	if err := r.execBatch(ctx, b); err != nil {
		return fmt.Errorf("insert invoice lines: %w", err)
	}
	return nil
}

// InsertLinks appends file-invoice links.
func (r *Repository) InsertLinks(ctx context.Context, links []saft.InvoiceFileLink) error {
	b := &pgx.Batch{}
	for _, l := range links {
		b.Queue(`
			INSERT INTO invoice_file_invoices (invoice_file_id, invoice_id)
			VALUES ($1, $2)
			ON CONFLICT (invoice_file_id, invoice_id) DO NOTHING
		`, l.InvoiceFileID, l.InvoiceID)
	}
	if err := r.execBatch(ctx, b); err != nil {
		return fmt.Errorf("insert invoice file links: %w", err)
	}
	return nil
}

// FindInvoiceByNumber returns nil, nil when the number is unknown.
func (r *Repository) FindInvoiceByNumber(ctx context.Context, invoiceNo string) (*saft.InvoiceState, error) {
	var s saft.InvoiceState
	err := r.pool.QueryRow(ctx, `SELECT id, invoice_no, active FROM invoices WHERE invoice_no = $1`, invoiceNo).
		Scan(&s.ID, &s.InvoiceNo, &s.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find invoice %s: %w", invoiceNo, err)
	}
	return &s, nil
}

// DeactivateInvoice clears the active flag once; an inactive row is not touched again.
func (r *Repository) DeactivateInvoice(ctx context.Context, invoiceID int64, d saft.Deactivation) (bool, error) {
	query := `
		UPDATE invoices
		SET active = FALSE,
			deactivated_by = $2,
			deactivated_at = $3,
			deactivation_reason = $4,
			updated_at = NOW()
		WHERE id = $1 AND active
	`

	tag, err := r.pool.Exec(ctx, query, invoiceID, d.CreditNoteFile, d.At, d.Reason)
	if err != nil {
		return false, fmt.Errorf("deactivate invoice %d: %w", invoiceID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteInvoiceCascade removes an invoice with its lines and links in one transaction.
func (r *Repository) DeleteInvoiceCascade(ctx context.Context, invoiceID int64) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	statements := []string{
		`DELETE FROM invoice_lines WHERE invoice_id = $1`,
		`DELETE FROM invoice_file_invoices WHERE invoice_id = $1`,
		`DELETE FROM invoices WHERE id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt, invoiceID); err != nil {
			return fmt.Errorf("delete invoice %d: %w", invoiceID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	r.log.Warn("invoice hard-deleted", "invoice_id", invoiceID)
	return nil
}

// Ping checks the pool can reach the database.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) execBatch(ctx context.Context, b *pgx.Batch) error {
	if b.Len() == 0 {
		return nil
	}
	br := r.pool.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return err
		}
	}
	return br.Close()
}
