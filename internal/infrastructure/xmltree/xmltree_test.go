package xmltree

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"3tcapital/saftprocessor/internal/core/saft"
)

func TestDecoder_Decode(t *testing.T) {
	dec, err := NewDecoder()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name     string
		input    []byte
		wantText string
		wantEnc  string
	}{
		{
			name:     "plain utf-8",
			input:    []byte("<a>Técnico</a>"),
			wantText: "<a>Técnico</a>",
			wantEnc:  "utf-8",
		},
		{
			name:     "utf-8 with bom",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("<a>ok</a>")...),
			wantText: "<a>ok</a>",
			wantEnc:  "utf-8",
		},
		{
			name:     "latin-1 falls through",
			input:    []byte{'<', 'a', '>', 'T', 0xE9, 'c', 'n', 'i', 'c', 'o', '<', '/', 'a', '>'},
			wantText: "<a>Técnico</a>",
			wantEnc:  "latin-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, enc, err := dec.Decode(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if text != tt.wantText {
				t.Errorf("text = %q, want %q", text, tt.wantText)
			}
			if enc != tt.wantEnc {
				t.Errorf("encoding = %q, want %q", enc, tt.wantEnc)
			}
		})
	}
}

func TestDecoder_StrictUTF8Only(t *testing.T) {
	dec, err := NewDecoder("utf-8")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, _, err = dec.Decode([]byte{'<', 'a', '>', 0xE9, '<', '/', 'a', '>'})
	var decErr *saft.DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if len(decErr.Tried) != 1 || decErr.Tried[0] != "utf-8" {
		t.Errorf("unexpected tried list: %v", decErr.Tried)
	}
}

func TestNewDecoder_UnknownEncoding(t *testing.T) {
	if _, err := NewDecoder("utf-8", "ebcdic"); err == nil {
		t.Fatal("expected error for unsupported encoding")
	}
}

func TestDecoder_Encodings_PreservesOrder(t *testing.T) {
	dec, _ := NewDecoder()
	got := dec.Encodings()
	for i, want := range DefaultEncodings {
		if got[i] != want {
			t.Errorf("encoding[%d] = %q, want %q", i, got[i], want)
		}
	}
}

func TestDecoder_DecodeFile(t *testing.T) {
	dec, _ := NewDecoder()
	dir := t.TempDir()

	path := filepath.Join(dir, "FR1Y2025_1-Loja.xml")
	if err := os.WriteFile(path, []byte("<AuditFile/>"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	text, enc, err := dec.DecodeFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "<AuditFile/>" || enc != "utf-8" {
		t.Errorf("got (%q, %q)", text, enc)
	}

	_, _, err = dec.DecodeFile(filepath.Join(dir, "missing.xml"))
	var decErr *saft.DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected DecodeError for missing file, got %v", err)
	}
	if decErr.File != "missing.xml" {
		t.Errorf("expected file name in error, got %q", decErr.File)
	}
}

func TestParse_ZeroOneMany(t *testing.T) {
	doc := `<?xml version="1.0" encoding="Windows-1252"?>
<AuditFile xmlns="urn:OECD:StandardAuditFile-Tax:PT_1.04_01">
  <Header><CompanyID>509999999</CompanyID></Header>
  <SourceDocuments>
    <SalesInvoices>
      <Invoice><InvoiceNo>FR 1Y2025/1</InvoiceNo><Line><LineNumber>1</LineNumber></Line></Invoice>
      <Invoice>
        <InvoiceNo>FR 1Y2025/2</InvoiceNo>
        <Line><LineNumber>1</LineNumber></Line>
        <Line><LineNumber>2</LineNumber></Line>
      </Invoice>
    </SalesInvoices>
  </SourceDocuments>
</AuditFile>`

	root, err := Parse(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if root.Name != "AuditFile" {
		t.Fatalf("root = %q, want AuditFile", root.Name)
	}
	if got := root.Text("Header", "CompanyID"); got != "509999999" {
		t.Errorf("CompanyID = %q", got)
	}

	invoices := root.Find("SourceDocuments", "SalesInvoices", "Invoice")
	if len(invoices) != 2 {
		t.Fatalf("expected 2 invoices, got %d", len(invoices))
	}
	if n := len(invoices[0].All("Line")); n != 1 {
		t.Errorf("expected 1 line on first invoice, got %d", n)
	}
	if n := len(invoices[1].All("Line")); n != 2 {
		t.Errorf("expected 2 lines on second invoice, got %d", n)
	}
	if lines := root.Find("SourceDocuments", "SalesInvoices", "Invoice", "Line"); len(lines) != 3 {
		t.Errorf("expected 3 lines overall, got %d", len(lines))
	}

	if root.Find("MasterFiles", "Customer") != nil {
		t.Error("expected nil for absent path")
	}
	if got := root.Text("Missing", "Path"); got != "" {
		t.Errorf("expected empty text for absent path, got %q", got)
	}

	var nilNode *Node
	if nilNode.All("x") != nil || nilNode.Child("x") != nil || nilNode.Text("x") != "" {
		t.Error("expected nil receiver accessors to be safe")
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []string{
		"",
		"just text",
		"<a><b></a>",
		"<a></a><b></b>",
	}
	for _, doc := range tests {
		if _, err := Parse(doc); err == nil {
			t.Errorf("expected error for %q", doc)
		}
	}
}
