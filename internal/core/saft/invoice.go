package saft

import (
	"encoding/json"
	"time"
)

// Company is the taxpayer that issued the documents of an audit file.
type Company struct {
	CompanyID     string `json:"company_id"`
	CompanyName   string `json:"company_name"`
	AddressDetail string `json:"address_detail"`
	City          string `json:"city"`
	PostalCode    string `json:"postal_code"`
	Country       string `json:"country"`
}

// Filial is a branch (store) of a company. FilialNumber is globally unique.
type Filial struct {
	FilialNumber string `json:"filial_number"`
	FilialID     string `json:"filial_id"`
	CompanyID    string `json:"company_id"`
	Name         string `json:"nome"`
	Address      string `json:"endereco"`
	City         string `json:"cidade"`
	PostalCode   string `json:"codigo_postal"`
	Country      string `json:"pais"`
}

// NCReason is the provenance captured from the first referencing line of a credit note.
type NCReason struct {
	InvoiceRef string `json:"fatura_ref"`
	Reason     string `json:"reason"`
}

// Invoice is a regular invoice or credit note header keyed by InvoiceNo.
type Invoice struct {
	ID                int64           `json:"id,omitempty"`
	InvoiceNo         string          `json:"invoice_no"`
	Filial            string          `json:"filial"`
	ATCUD             string          `json:"atcud"`
	CompanyID         string          `json:"company_id"`
	CustomerID        string          `json:"customer_id"`
	InvoiceDate       string          `json:"invoice_date"`
	StatusDate        string          `json:"invoice_status_date"`
	StatusTime        string          `json:"invoice_status_time"`
	HashExtract       string          `json:"hash_extract"`
	EndDate           string          `json:"end_date"`
	TaxPayable        float64         `json:"tax_payable"`
	NetTotal          float64         `json:"net_total"`
	GrossTotal        float64         `json:"gross_total"`
	PaymentAmount     float64         `json:"payment_amount"`
	TaxType           string          `json:"tax_type"`
	CertificateNumber string          `json:"certificate_number"`
	CustomerSnapshot  json.RawMessage `json:"customer_snapshot,omitempty"`
	NCReason          *NCReason       `json:"nc_reason,omitempty"`
	Active            bool            `json:"active"`
}

// InvoiceLine is append-only: a line is never updated once stored.
type InvoiceLine struct {
	InvoiceID     int64   `json:"invoice_id"`
	LineNumber    int     `json:"line_number"`
	ProductCode   string  `json:"product_code"`
	Description   string  `json:"description"`
	Quantity      float64 `json:"quantity"`
	UnitPrice     float64 `json:"unit_price"`
	CreditAmount  float64 `json:"credit_amount"`
	TaxPercentage float64 `json:"tax_percentage"`
	PriceWithIVA  float64 `json:"price_with_iva"`
	IVA           float64 `json:"iva"`
}

// InvoiceFile records one ingested source file.
type InvoiceFile struct {
	ID            int64     `json:"id"`
	Filename      string    `json:"filename"`
	ProcessedAt   time.Time `json:"processed_at"`
	TotalInvoices int       `json:"total_invoices"`
}

// InvoiceFileLink joins a source file to the invoices it carried.
type InvoiceFileLink struct {
	InvoiceFileID int64 `json:"invoice_file_id"`
	InvoiceID     int64 `json:"invoice_id"`
}

// InvoiceKey is what an invoice upsert hands back.
type InvoiceKey struct {
	ID        int64
	InvoiceNo string
}

// InvoiceState is the minimal view the reconciliation engine needs.
type InvoiceState struct {
	ID        int64
	InvoiceNo string
	Active    bool
}

// Deactivation describes why a credit note turned an invoice off.
type Deactivation struct {
	CreditNoteFile string
	Reason         *NCReason
	At             time.Time
}

// ExtractedInvoice pairs a header with the lines read for it.
type ExtractedInvoice struct {
	Invoice Invoice
	Lines   []InvoiceLine
}

// Batch is the canonical in-memory record produced from one audit file.
type Batch struct {
	Filename    string
	Kind        Kind
	ProcessedAt time.Time
	Company     Company
	Filial      string
	Invoices    []ExtractedInvoice
	NCReason    *NCReason
	Warnings    []string
}

// Companies returns the distinct companies of the batch.
func (b *Batch) Companies() []Company {
	if b.Company.CompanyID == "" {
		return nil
	}
	return []Company{b.Company}
}

// Filiais returns the branch derived from the filename, if any.
func (b *Batch) Filiais() []Filial {
	if b.Filial == "" {
		return nil
	}
	return []Filial{{
		FilialNumber: b.Filial,
		FilialID:     b.Filial,
		CompanyID:    b.Company.CompanyID,
		Name:         b.Company.CompanyName,
		Address:      b.Company.AddressDetail,
		City:         b.Company.City,
		PostalCode:   b.Company.PostalCode,
		Country:      b.Company.Country,
	}}
}

// Headers returns the invoice headers in file order.
func (b *Batch) Headers() []Invoice {
	out := make([]Invoice, 0, len(b.Invoices))
	for _, inv := range b.Invoices {
		out = append(out, inv.Invoice)
	}
	return out
}
