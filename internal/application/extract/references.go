package extract

import (
	"regexp"
	"strings"

	"3tcapital/saftprocessor/internal/core/saft"
	"3tcapital/saftprocessor/internal/infrastructure/xmltree"
)

var invoiceRefPattern = regexp.MustCompile(`FR\s+\d+Y\d{4}/\d+`)

// InvoiceNumberFromReference recovers a regular invoice number such as "FR 201803Y2025/239".
func InvoiceNumberFromReference(ref string) (string, bool) {
	m := invoiceRefPattern.FindString(ref)
	if m == "" {
		return "", false
	}
	return m, true
}

// References collects every reference text of a credit note, across all invoices and lines.
// Invoices without lines are read at the header level.
func References(root *xmltree.Node) []string {
	var refs []string
	for _, inv := range salesInvoices(root) {
		lines := inv.All("Line")
		if len(lines) == 0 {
			refs = append(refs, referenceTexts(inv)...)
			continue
		}
		for _, line := range lines {
			refs = append(refs, referenceTexts(line)...)
		}
	}
	return refs
}

func referenceTexts(n *xmltree.Node) []string {
	var out []string
	for _, block := range n.All("References") {
		out = append(out, blockReferences(block)...)
	}
	return out
}

func blockReferences(block *xmltree.Node) []string {
	var out []string
	for _, ref := range block.All("Reference") {
		if text := strings.TrimSpace(ref.Content); text != "" {
			out = append(out, text)
		}
	}
	return out
}

// firstNCReason returns the first reference/reason pair; later lines are ignored.
func firstNCReason(lines []*xmltree.Node) *saft.NCReason {
	for _, line := range lines {
		blocks := line.All("References")
		if len(blocks) == 0 {
			continue
		}
		reason := &saft.NCReason{}
		for _, block := range blocks {
			if reason.InvoiceRef == "" {
				if refs := blockReferences(block); len(refs) > 0 {
					reason.InvoiceRef = refs[0]
				}
			}
			if reason.Reason == "" {
				reason.Reason = block.Text("Reason")
			}
		}
		return reason
	}
	return nil
}

func salesInvoices(root *xmltree.Node) []*xmltree.Node {
	return root.Find("SourceDocuments", "SalesInvoices", "Invoice")
}
