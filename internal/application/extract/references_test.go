package extract

import (
	"reflect"
	"testing"
	"time"
	_ "time/tzdata"

	"3tcapital/saftprocessor/internal/infrastructure/xmltree"
)

func TestReferences_Shapes(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want []string
	}{
		{
			name: "single reference",
			doc: `<AuditFile><SourceDocuments><SalesInvoices><Invoice>
				<Line><References><Reference>FR 1Y2025/1</Reference></References></Line>
			</Invoice></SalesInvoices></SourceDocuments></AuditFile>`,
			want: []string{"FR 1Y2025/1"},
		},
		{
			name: "repeated references and blocks across lines",
			doc: `<AuditFile><SourceDocuments><SalesInvoices><Invoice>
				<Line>
					<References><Reference>FR 1Y2025/1</Reference><Reference>FR 1Y2025/2</Reference></References>
					<References><Reference>FR 1Y2025/3</Reference></References>
				</Line>
				<Line><References><Reference> </Reference></References></Line>
				<Line><References><Reference>FR 1Y2025/4</Reference></References></Line>
			</Invoice></SalesInvoices></SourceDocuments></AuditFile>`,
			want: []string{"FR 1Y2025/1", "FR 1Y2025/2", "FR 1Y2025/3", "FR 1Y2025/4"},
		},
		{
			name: "invoice level when there are no lines",
			doc: `<AuditFile><SourceDocuments><SalesInvoices>
				<Invoice><References><Reference>FR 1Y2025/9</Reference></References></Invoice>
				<Invoice><Line><References><Reference>FR 1Y2025/10</Reference></References></Line></Invoice>
			</SalesInvoices></SourceDocuments></AuditFile>`,
			want: []string{"FR 1Y2025/9", "FR 1Y2025/10"},
		},
		{
			name: "no references",
			doc:  `<AuditFile><SourceDocuments><SalesInvoices><Invoice><Line/></Invoice></SalesInvoices></SourceDocuments></AuditFile>`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := xmltree.Parse(tt.doc)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got := References(root); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("References() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInvoiceNumberFromReference(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"FR 201803Y2025/239", "FR 201803Y2025/239", true},
		{"Ref: FR  12Y2024/7 (devolução)", "FR  12Y2024/7", true},
		{"NC 201803Y2025/239", "", false},
		{"FR 201803Y25/239", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := InvoiceNumberFromReference(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("InvoiceNumberFromReference(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestExtractOpenGCs(t *testing.T) {
	doc := `<OpenGCs>
  <OpenGCsTotal>45,60</OpenGCsTotal>
  <OpenGCs>3</OpenGCs>
  <GC>
    <number>12</number><OpenTime>12:01</OpenTime><LastTime>12:40</LastTime><guests>2</guests>
    <operatorNo>7</operatorNo><operatorName>Técnico</operatorName>
    <StartOperatorNo>7</StartOperatorNo><StartOperatorName>Técnico</StartOperatorName>
    <total>30.10</total>
  </GC>
  <GC><number>13</number><total>15.5</total></GC>
</OpenGCs>`

	dec, err := xmltree.NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	// The stores export Latin-1.
	latin := make([]byte, 0, len(doc))
	for _, r := range doc {
		latin = append(latin, byte(r))
	}
	text, enc, err := dec.Decode(latin)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if enc != "latin-1" {
		t.Errorf("encoding = %q, want latin-1", enc)
	}
	root, err := xmltree.Parse(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	lisbon, err := time.LoadLocation("Europe/Lisbon")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	now := time.Date(2025, 7, 1, 10, 0, 0, 0, lisbon)

	snap, err := ExtractOpenGCs(root, "/home/x/opengcs-509999999-Gramido.xml", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.SourceFile != "opengcs-509999999-Gramido.xml" {
		t.Errorf("source file = %q", snap.SourceFile)
	}
	if snap.ProcessedAt != "2025-07-01T10:00:00.000000+01:00" {
		t.Errorf("processed at = %q", snap.ProcessedAt)
	}
	if snap.Total != 45.6 || snap.Count != 2 {
		t.Errorf("total/count = %v/%d", snap.Total, snap.Count)
	}
	if len(snap.GCs) != 2 {
		t.Fatalf("expected 2 gcs, got %d", len(snap.GCs))
	}
	if snap.GCs[0].OperatorName != "Técnico" || snap.GCs[0].Guests != 2 || snap.GCs[0].Total != 30.1 {
		t.Errorf("unexpected first gc: %+v", snap.GCs[0])
	}

	if _, err := ExtractOpenGCs(&xmltree.Node{Name: "AuditFile"}, "opengcs-1-x.xml", now); err == nil {
		t.Error("expected error for wrong root")
	}
}
