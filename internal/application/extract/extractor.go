package extract

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"3tcapital/saftprocessor/internal/core/saft"
	"3tcapital/saftprocessor/internal/infrastructure/xmltree"
)

// Extractor turns a parsed audit file into a normalized batch.
type Extractor struct {
	log *slog.Logger
}

// NewExtractor creates an extractor.
func NewExtractor(log *slog.Logger) *Extractor {
	return &Extractor{log: log.With("component", "extractor")}
}

type customerSnapshot struct {
	CustomerID     string          `json:"CustomerID"`
	CustomerTaxID  string          `json:"CustomerTaxID,omitempty"`
	CompanyName    string          `json:"CompanyName,omitempty"`
	BillingAddress *billingAddress `json:"BillingAddress,omitempty"`
}

type billingAddress struct {
	AddressDetail string `json:"AddressDetail,omitempty"`
	City          string `json:"City,omitempty"`
	PostalCode    string `json:"PostalCode,omitempty"`
	Country       string `json:"Country,omitempty"`
}

// Extract reads company, invoices and lines. A document without an AuditFile root
// or Header is a ParseError; a document without invoices yields an empty batch.
func (e *Extractor) Extract(root *xmltree.Node, filename string, now time.Time) (*saft.Batch, error) {
	name := path.Base(filename)
	if root == nil || root.Name != "AuditFile" {
		return nil, &saft.ParseError{File: name, Reason: "AuditFile root not found"}
	}
	header := root.Child("Header")
	if header == nil {
		return nil, &saft.ParseError{File: name, Reason: "Header not found"}
	}

	filial, ok := saft.FilialFromFilename(name)
	if !ok {
		e.log.Warn("filial pattern not recognized", "file", name)
	}

	batch := &saft.Batch{
		Filename:    name,
		Kind:        saft.KindFromFilename(name),
		ProcessedAt: now,
		Filial:      filial,
		Company: saft.Company{
			CompanyID:     header.Text("CompanyID"),
			CompanyName:   header.Text("CompanyName"),
			AddressDetail: header.Text("CompanyAddress", "AddressDetail"),
			City:          header.Text("CompanyAddress", "City"),
			PostalCode:    header.Text("CompanyAddress", "PostalCode"),
			Country:       header.Text("CompanyAddress", "Country"),
		},
	}
	certificate := header.Text("SoftwareCertificateNumber")
	customers := indexCustomers(root)

	invoices := salesInvoices(root)
	if len(invoices) == 0 {
		e.log.Warn("no invoices found", "file", name)
		return batch, nil
	}

	for _, node := range invoices {
		inv := saft.Invoice{
			InvoiceNo:         node.Text("InvoiceNo"),
			Filial:            filial,
			ATCUD:             node.Text("ATCUD"),
			CompanyID:         batch.Company.CompanyID,
			CustomerID:        node.Text("CustomerID"),
			InvoiceDate:       node.Text("InvoiceDate"),
			HashExtract:       HashExtract(node.Text("Hash")),
			EndDate:           node.Text("EndDate"),
			TaxPayable:        ParseNumber(node.Text("DocumentTotals", "TaxPayable")),
			NetTotal:          ParseNumber(node.Text("DocumentTotals", "NetTotal")),
			GrossTotal:        ParseNumber(node.Text("DocumentTotals", "GrossTotal")),
			PaymentAmount:     paymentAmount(node),
			CertificateNumber: certificate,
			Active:            true,
		}
		if date, clock, found := strings.Cut(node.Text("DocumentStatus", "InvoiceStatusDate"), "T"); found {
			inv.StatusDate, inv.StatusTime = date, clock
		}
		if snap, ok := customers[inv.CustomerID]; ok {
			inv.CustomerSnapshot = snap
		}

		lineNodes := node.All("Line")
		if len(lineNodes) > 0 {
			inv.TaxType = lineNodes[0].Text("Tax", "TaxType")
		}
		if batch.Kind == saft.KindCreditNote {
			inv.NCReason = firstNCReason(lineNodes)
			if batch.NCReason == nil && inv.NCReason != nil {
				batch.NCReason = inv.NCReason
			}
		}

		lines := make([]saft.InvoiceLine, 0, len(lineNodes))
		for _, ln := range lineNodes {
			amounts := DeriveLineAmounts(ln.Text("CreditAmount"), ln.Text("DebitAmount"), ln.Text("Tax", "TaxPercentage"))
			lineNo := ParseInt(ln.Text("LineNumber"))
			if amounts.Amount.IsZero() {
				batch.Warnings = append(batch.Warnings,
					fmt.Sprintf("%s line %d: credit and debit amounts are both zero", inv.InvoiceNo, lineNo))
			}
			lines = append(lines, saft.InvoiceLine{
				LineNumber:    lineNo,
				ProductCode:   ln.Text("ProductCode"),
				Description:   ln.Text("Description"),
				Quantity:      ParseNumber(ln.Text("Quantity")),
				UnitPrice:     parseDecimal(ln.Text("UnitPrice")).Round(4).InexactFloat64(),
				CreditAmount:  amounts.Amount.InexactFloat64(),
				TaxPercentage: ParseNumber(ln.Text("Tax", "TaxPercentage")),
				PriceWithIVA:  amounts.PriceWithIVA.InexactFloat64(),
				IVA:           amounts.IVA.Round(4).InexactFloat64(),
			})
		}

		batch.Invoices = append(batch.Invoices, saft.ExtractedInvoice{Invoice: inv, Lines: lines})
	}

	e.log.Info("invoices extracted", "file", name, "invoices", len(batch.Invoices), "warnings", len(batch.Warnings))
	return batch, nil
}

// HashExtract is the four-character fingerprint printed on receipts.
func HashExtract(hash string) string {
	r := []rune(hash)
	if len(r) > 30 {
		return string([]rune{r[0], r[10], r[20], r[30]})
	}
	return hash
}

func paymentAmount(invoice *xmltree.Node) float64 {
	total := decimal.Zero
	for _, p := range invoice.Find("DocumentTotals", "Payment") {
		total = total.Add(parseDecimal(p.Text("PaymentAmount")))
	}
	return total.InexactFloat64()
}

func indexCustomers(root *xmltree.Node) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage)
	for _, c := range root.Find("MasterFiles", "Customer") {
		id := c.Text("CustomerID")
		if id == "" {
			continue
		}
		snap := customerSnapshot{
			CustomerID:    id,
			CustomerTaxID: c.Text("CustomerTaxID"),
			CompanyName:   c.Text("CompanyName"),
		}
		if addr := c.Child("BillingAddress"); addr != nil {
			snap.BillingAddress = &billingAddress{
				AddressDetail: addr.Text("AddressDetail"),
				City:          addr.Text("City"),
				PostalCode:    addr.Text("PostalCode"),
				Country:       addr.Text("Country"),
			}
		}
		data, err := json.Marshal(snap)
		if err != nil {
			continue
		}
		out[id] = data
	}
	return out
}
