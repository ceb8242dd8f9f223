package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"3tcapital/saftprocessor/internal/core/saft"
)

// Open connects gorm to "postgres" or "sqlite".
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported gorm driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	return db, nil
}

// AutoMigrate creates the invoice tables. Production PostgreSQL uses the SQL migrations instead.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&companyModel{},
		&filialModel{},
		&invoiceModel{},
		&invoiceLineModel{},
		&invoiceFileModel{},
		&invoiceFileLinkModel{},
	)
}

// Repository implements saft.Repository with gorm.
type Repository struct {
	db  *gorm.DB
	log *slog.Logger
}

// NewRepository creates a gorm-backed invoice repository.
func NewRepository(db *gorm.DB, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log.With("component", "store", "driver", "gorm")}
}

// UpsertCompanies writes companies keyed on company_id.
func (r *Repository) UpsertCompanies(ctx context.Context, companies []saft.Company) error {
	if len(companies) == 0 {
		return nil
	}
	rows := make([]companyModel, 0, len(companies))
	for _, c := range companies {
		rows = append(rows, companyModel{
			CompanyID:     c.CompanyID,
			CompanyName:   c.CompanyName,
			AddressDetail: c.AddressDetail,
			City:          c.City,
			PostalCode:    c.PostalCode,
			Country:       c.Country,
		})
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "company_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"company_name", "address_detail", "city", "postal_code", "country", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("upsert companies: %w", err)
	}
	return nil
}

// UpsertFiliais writes branches keyed on filial_number.
func (r *Repository) UpsertFiliais(ctx context.Context, filiais []saft.Filial) error {
	if len(filiais) == 0 {
		return nil
	}
	rows := make([]filialModel, 0, len(filiais))
	for _, f := range filiais {
		rows = append(rows, filialModel{
			FilialNumber: f.FilialNumber,
			FilialID:     f.FilialID,
			CompanyID:    f.CompanyID,
			Nome:         f.Name,
			Endereco:     f.Address,
			Cidade:       f.City,
			CodigoPostal: f.PostalCode,
			Pais:         f.Country,
		})
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "filial_number"}},
		DoUpdates: clause.AssignmentColumns([]string{"filial_id", "company_id", "nome", "endereco", "cidade", "codigo_postal", "pais", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("upsert filiais: %w", err)
	}
	return nil
}

var invoiceUpdateColumns = []string{
	"filial", "atcud", "company_id", "customer_id", "invoice_date",
	"invoice_status_date", "invoice_status_time", "hash_extract", "end_date",
	"tax_payable", "net_total", "gross_total", "payment_amount", "tax_type",
	"certificate_number", "customer_snapshot", "nc_reason", "updated_at",
}

// UpsertInvoices writes headers keyed on invoice_no, never touching active, and returns their ids.
func (r *Repository) UpsertInvoices(ctx context.Context, invoices []saft.Invoice) ([]saft.InvoiceKey, error) {
	if len(invoices) == 0 {
		return nil, nil
	}
	rows := make([]invoiceModel, 0, len(invoices))
	numbers := make([]string, 0, len(invoices))
	for _, inv := range invoices {
		m, err := toInvoiceModel(inv)
		if err != nil {
			return nil, err
		}
		rows = append(rows, m)
		numbers = append(numbers, inv.InvoiceNo)
	}

	db := r.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "invoice_no"}},
		DoUpdates: clause.AssignmentColumns(invoiceUpdateColumns),
	}).Create(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("upsert invoices: %w", err)
	}

	var keys []saft.InvoiceKey
	err = db.Model(&invoiceModel{}).
		Select("id, invoice_no").
		Where("invoice_no IN ?", numbers).
		Order("id").
		Scan(&keys).Error
	if err != nil {
		return nil, fmt.Errorf("read invoice ids: %w", err)
	}
	return keys, nil
}

// FindInvoiceFile returns nil, nil when the file was never ingested.
func (r *Repository) FindInvoiceFile(ctx context.Context, filename string) (*saft.InvoiceFile, error) {
	var m invoiceFileModel
	err := r.db.WithContext(ctx).Where("filename = ?", filename).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find invoice file: %w", err)
	}
	return &saft.InvoiceFile{ID: m.ID, Filename: m.Filename, ProcessedAt: m.ProcessedAt, TotalInvoices: m.TotalInvoices}, nil
}

// CreateInvoiceFile inserts the file record, returning the existing row on a name clash.
func (r *Repository) CreateInvoiceFile(ctx context.Context, file saft.InvoiceFile) (*saft.InvoiceFile, error) {
	m := invoiceFileModel{Filename: file.Filename, ProcessedAt: file.ProcessedAt, TotalInvoices: file.TotalInvoices}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error
	if err != nil {
		return nil, fmt.Errorf("create invoice file: %w", err)
	}
	if m.ID == 0 {
		return r.FindInvoiceFile(ctx, file.Filename)
	}
	return &saft.InvoiceFile{ID: m.ID, Filename: m.Filename, ProcessedAt: m.ProcessedAt, TotalInvoices: m.TotalInvoices}, nil
}

// ExistingLineNumbers returns the line numbers already stored for an invoice.
func (r *Repository) ExistingLineNumbers(ctx context.Context, invoiceID int64) (map[int]struct{}, error) {
	var numbers []int
	err := r.db.WithContext(ctx).Model(&invoiceLineModel{}).
		Where("invoice_id = ?", invoiceID).
		Pluck("line_number", &numbers).Error
	if err != nil {
		return nil, fmt.Errorf("query line numbers: %w", err)
	}
	out := make(map[int]struct{}, len(numbers))
	for _, n := range numbers {
		out[n] = struct{}{}
	}
	return out, nil
}

// LinkExists reports whether the file already references the invoice.
func (r *Repository) LinkExists(ctx context.Context, invoiceFileID, invoiceID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&invoiceFileLinkModel{}).
		Where("invoice_file_id = ? AND invoice_id = ?", invoiceFileID, invoiceID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check invoice file link: %w", err)
	}
	return count > 0, nil
}

// InsertLines appends lines; an existing (invoice_id, line_number) is left untouched.
func (r *Repository) InsertLines(ctx context.Context, lines []saft.InvoiceLine) error {
	if len(lines) == 0 {
		return nil
	}
	rows := make([]invoiceLineModel, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, invoiceLineModel{
			InvoiceID:     l.InvoiceID,
			LineNumber:    l.LineNumber,
			ProductCode:   l.ProductCode,
			Description:   l.Description,
			Quantity:      l.Quantity,
			UnitPrice:     l.UnitPrice,
			CreditAmount:  l.CreditAmount,
			TaxPercentage: l.TaxPercentage,
			PriceWithIva:  l.PriceWithIVA,
			Iva:           l.IVA,
		})
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return fmt.Errorf("insert invoice lines: %w", err)
	}
	return nil
}

// InsertLinks appends file-invoice links.
func (r *Repository) InsertLinks(ctx context.Context, links []saft.InvoiceFileLink) error {
	if len(links) == 0 {
		return nil
	}
	rows := make([]invoiceFileLinkModel, 0, len(links))
	for _, l := range links {
		rows = append(rows, invoiceFileLinkModel{InvoiceFileID: l.InvoiceFileID, InvoiceID: l.InvoiceID})
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return fmt.Errorf("insert invoice file links: %w", err)
	}
	return nil
}

// FindInvoiceByNumber returns nil, nil when the number is unknown.
func (r *Repository) FindInvoiceByNumber(ctx context.Context, invoiceNo string) (*saft.InvoiceState, error) {
	var m invoiceModel
	err := r.db.WithContext(ctx).Select("id", "invoice_no", "active").Where("invoice_no = ?", invoiceNo).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find invoice %s: %w", invoiceNo, err)
	}
	return &saft.InvoiceState{ID: m.ID, InvoiceNo: m.InvoiceNo, Active: m.Active}, nil
}

// DeactivateInvoice clears the active flag once; it reports false for an already inactive row.
func (r *Repository) DeactivateInvoice(ctx context.Context, invoiceID int64, d saft.Deactivation) (bool, error) {
	updates := map[string]any{
		"active":         false,
		"deactivated_by": d.CreditNoteFile,
		"deactivated_at": d.At,
	}
	if d.Reason != nil {
		data, err := json.Marshal(d.Reason)
		if err != nil {
			return false, fmt.Errorf("marshal deactivation reason: %w", err)
		}
		updates["deactivation_reason"] = string(data)
	}

	res := r.db.WithContext(ctx).Model(&invoiceModel{}).
		Where("id = ? AND active = ?", invoiceID, true).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("deactivate invoice %d: %w", invoiceID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// DeleteInvoiceCascade removes an invoice with its lines and links in one transaction.
func (r *Repository) DeleteInvoiceCascade(ctx context.Context, invoiceID int64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", invoiceID).Delete(&invoiceLineModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("invoice_id = ?", invoiceID).Delete(&invoiceFileLinkModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&invoiceModel{}, invoiceID).Error
	})
	if err != nil {
		return fmt.Errorf("delete invoice %d: %w", invoiceID, err)
	}
	r.log.Warn("invoice hard-deleted", "invoice_id", invoiceID)
	return nil
}

// Ping checks the underlying connection.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func toInvoiceModel(inv saft.Invoice) (invoiceModel, error) {
	m := invoiceModel{
		InvoiceNo:         inv.InvoiceNo,
		Filial:            inv.Filial,
		Atcud:             inv.ATCUD,
		CompanyID:         inv.CompanyID,
		CustomerID:        inv.CustomerID,
		InvoiceDate:       nullable(inv.InvoiceDate),
		InvoiceStatusDate: nullable(inv.StatusDate),
		InvoiceStatusTime: nullable(inv.StatusTime),
		HashExtract:       inv.HashExtract,
		EndDate:           nullable(inv.EndDate),
		TaxPayable:        inv.TaxPayable,
		NetTotal:          inv.NetTotal,
		GrossTotal:        inv.GrossTotal,
		PaymentAmount:     inv.PaymentAmount,
		TaxType:           inv.TaxType,
		CertificateNumber: inv.CertificateNumber,
		CustomerSnapshot:  nullable(string(inv.CustomerSnapshot)),
		Active:            true,
	}
	if inv.NCReason != nil {
		data, err := json.Marshal(inv.NCReason)
		if err != nil {
			return m, fmt.Errorf("marshal nc reason for %s: %w", inv.InvoiceNo, err)
		}
		m.NcReason = nullable(string(data))
	}
	return m, nil
}
