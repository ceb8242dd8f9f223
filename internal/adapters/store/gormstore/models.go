package gormstore

import "time"

type companyModel struct {
	ID            uint   `gorm:"primaryKey"`
	CompanyID     string `gorm:"uniqueIndex;size:20;not null"`
	CompanyName   string
	AddressDetail string
	City          string
	PostalCode    string
	Country       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (companyModel) TableName() string { return "companies" }

type filialModel struct {
	ID           uint   `gorm:"primaryKey"`
	FilialNumber string `gorm:"uniqueIndex;not null"`
	FilialID     string
	CompanyID    string `gorm:"index;size:20;not null"`
	Nome         string
	Endereco     string
	Cidade       string
	CodigoPostal string
	Pais         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (filialModel) TableName() string { return "filiais" }

// Empty dates are stored as NULL, hence the pointers.
type invoiceModel struct {
	ID                 int64   `gorm:"primaryKey"`
	InvoiceNo          string  `gorm:"uniqueIndex;size:60;not null"`
	Filial             string
	Atcud              string
	CompanyID          string  `gorm:"index;size:20;not null"`
	CustomerID         string
	InvoiceDate        *string `gorm:"type:date"`
	InvoiceStatusDate  *string `gorm:"type:date"`
	InvoiceStatusTime  *string `gorm:"type:time"`
	HashExtract        string
	EndDate            *string `gorm:"type:date"`
	TaxPayable         float64
	NetTotal           float64
	GrossTotal         float64
	PaymentAmount      float64
	TaxType            string
	CertificateNumber  string
	CustomerSnapshot   *string `gorm:"type:jsonb"`
	NcReason           *string `gorm:"type:jsonb"`
	Active             bool    `gorm:"not null;default:true"`
	DeactivatedBy      *string
	DeactivatedAt      *time.Time
	DeactivationReason *string `gorm:"type:jsonb"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (invoiceModel) TableName() string { return "invoices" }

type invoiceLineModel struct {
	ID            int64 `gorm:"primaryKey"`
	InvoiceID     int64 `gorm:"uniqueIndex:uq_invoice_lines_invoice_line;not null"`
	LineNumber    int   `gorm:"uniqueIndex:uq_invoice_lines_invoice_line;not null"`
	ProductCode   string
	Description   string
	Quantity      float64
	UnitPrice     float64
	CreditAmount  float64
	TaxPercentage float64
	PriceWithIva  float64
	Iva           float64
	CreatedAt     time.Time
}

func (invoiceLineModel) TableName() string { return "invoice_lines" }

type invoiceFileModel struct {
	ID            int64     `gorm:"primaryKey"`
	Filename      string    `gorm:"uniqueIndex;not null"`
	ProcessedAt   time.Time `gorm:"not null"`
	TotalInvoices int
	CreatedAt     time.Time
}

func (invoiceFileModel) TableName() string { return "invoice_files" }

type invoiceFileLinkModel struct {
	ID            int64 `gorm:"primaryKey"`
	InvoiceFileID int64 `gorm:"uniqueIndex:uq_invoice_file_invoices;not null"`
	InvoiceID     int64 `gorm:"uniqueIndex:uq_invoice_file_invoices;index;not null"`
}

func (invoiceFileLinkModel) TableName() string { return "invoice_file_invoices" }

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
