package reconcile

import (
	"context"
	"errors"
	"testing"

	"3tcapital/saftprocessor/internal/core/saft"
	"3tcapital/saftprocessor/internal/testutil"
)

// fakeInvoices backs a MockRepository with an in-memory invoice table.
type fakeInvoices struct {
	rows    map[string]*saft.InvoiceState
	deleted []int64
	reasons []saft.Deactivation
}

func newFakeInvoices(states ...saft.InvoiceState) *fakeInvoices {
	f := &fakeInvoices{rows: make(map[string]*saft.InvoiceState)}
	for i := range states {
		s := states[i]
		f.rows[s.InvoiceNo] = &s
	}
	return f
}

func (f *fakeInvoices) repo() *testutil.MockRepository {
	return &testutil.MockRepository{
		FindInvoiceByNumberFunc: func(ctx context.Context, no string) (*saft.InvoiceState, error) {
			s, ok := f.rows[no]
			if !ok {
				return nil, nil
			}
			cp := *s
			return &cp, nil
		},
		DeactivateInvoiceFunc: func(ctx context.Context, id int64, d saft.Deactivation) (bool, error) {
			for _, s := range f.rows {
				if s.ID == id {
					if !s.Active {
						return false, nil
					}
					s.Active = false
					f.reasons = append(f.reasons, d)
					return true, nil
				}
			}
			return false, nil
		},
		DeleteInvoiceCascadeFunc: func(ctx context.Context, id int64) error {
			f.deleted = append(f.deleted, id)
			for no, s := range f.rows {
				if s.ID == id {
					delete(f.rows, no)
				}
			}
			return nil
		},
	}
}

func TestEngine_Reconcile_Soft(t *testing.T) {
	store := newFakeInvoices(
		saft.InvoiceState{ID: 1, InvoiceNo: "FR 201803Y2025/239", Active: true},
		saft.InvoiceState{ID: 2, InvoiceNo: "FR 201803Y2025/240", Active: false},
	)
	engine := NewEngine(store.repo(), PolicySoft, testutil.NewNullLogger())
	reason := &saft.NCReason{InvoiceRef: "FR 201803Y2025/239", Reason: "Devolução"}

	refs := []string{
		"FR 201803Y2025/239",
		"FR 201803Y2025/240",
		"FR 201803Y2025/999",
		"sem referência",
	}
	summary := engine.Reconcile(context.Background(), "NC201803Y2025_1-Loja.xml", refs, reason)

	if summary.ReferencesSeen != 4 {
		t.Errorf("references seen = %d", summary.ReferencesSeen)
	}
	if len(summary.Deactivated) != 1 || summary.Deactivated[0] != "FR 201803Y2025/239" {
		t.Errorf("deactivated = %v", summary.Deactivated)
	}
	if len(summary.AlreadyInactive) != 1 || summary.DeactivatedCount() != 2 {
		t.Errorf("already inactive should count as success: %+v", summary)
	}
	if len(summary.Failed) != 2 {
		t.Fatalf("expected 2 failures, got %+v", summary.Failed)
	}
	if summary.Failed[0].Reason != "invoice not found" || summary.Failed[1].InvoiceNo != "" {
		t.Errorf("unexpected failures: %+v", summary.Failed)
	}
	if len(store.reasons) != 1 || store.reasons[0].Reason != reason || store.reasons[0].CreditNoteFile != "NC201803Y2025_1-Loja.xml" {
		t.Errorf("provenance not recorded: %+v", store.reasons)
	}

	warn := summary.Warning("NC201803Y2025_1-Loja.xml")
	if warn == nil || len(warn.Failed) != 2 {
		t.Errorf("expected a reconciliation warning, got %v", warn)
	}
}

func TestEngine_Reconcile_Monotonic(t *testing.T) {
	store := newFakeInvoices(saft.InvoiceState{ID: 1, InvoiceNo: "FR 1Y2025/1", Active: true})
	engine := NewEngine(store.repo(), PolicySoft, testutil.NewNullLogger())

	first := engine.Reconcile(context.Background(), "nc.xml", []string{"FR 1Y2025/1"}, nil)
	second := engine.Reconcile(context.Background(), "nc.xml", []string{"FR 1Y2025/1"}, nil)

	if len(first.Deactivated) != 1 {
		t.Errorf("first run should deactivate, got %+v", first)
	}
	if len(second.Deactivated) != 0 || len(second.AlreadyInactive) != 1 || len(second.Failed) != 0 {
		t.Errorf("second run should be a no-op success, got %+v", second)
	}
	if store.rows["FR 1Y2025/1"].Active {
		t.Error("invoice must stay inactive")
	}
	if len(store.reasons) != 1 {
		t.Errorf("provenance must be written once, got %d", len(store.reasons))
	}
}

func TestEngine_Reconcile_Hard(t *testing.T) {
	store := newFakeInvoices(saft.InvoiceState{ID: 5, InvoiceNo: "FR 1Y2025/5", Active: true})
	engine := NewEngine(store.repo(), PolicyHard, testutil.NewNullLogger())

	summary := engine.Reconcile(context.Background(), "nc.xml", []string{"FR 1Y2025/5"}, nil)
	if len(summary.Deactivated) != 1 || len(store.deleted) != 1 || store.deleted[0] != 5 {
		t.Errorf("hard policy should delete, got %+v / %v", summary, store.deleted)
	}

	again := engine.Reconcile(context.Background(), "nc.xml", []string{"FR 1Y2025/5"}, nil)
	if len(again.Failed) != 1 {
		t.Errorf("a deleted invoice is no longer found, got %+v", again)
	}
}

func TestEngine_Reconcile_StoreErrors(t *testing.T) {
	repo := &testutil.MockRepository{
		FindInvoiceByNumberFunc: func(ctx context.Context, no string) (*saft.InvoiceState, error) {
			if no == "FR 1Y2025/1" {
				return nil, errors.New("connection reset")
			}
			return &saft.InvoiceState{ID: 2, InvoiceNo: no, Active: true}, nil
		},
		DeactivateInvoiceFunc: func(ctx context.Context, id int64, d saft.Deactivation) (bool, error) {
			return false, errors.New("deadlock")
		},
	}
	engine := NewEngine(repo, PolicySoft, testutil.NewNullLogger())

	summary := engine.Reconcile(context.Background(), "nc.xml", []string{"FR 1Y2025/1", "FR 1Y2025/2"}, nil)
	if len(summary.Failed) != 2 {
		t.Fatalf("expected both references to fail, got %+v", summary)
	}
	if summary.Failed[0].Reason != "connection reset" || summary.Failed[1].Reason != "deadlock" {
		t.Errorf("store errors should be carried as messages: %+v", summary.Failed)
	}
}

func TestEngine_Reconcile_NoReferences(t *testing.T) {
	engine := NewEngine(&testutil.MockRepository{}, PolicySoft, testutil.NewNullLogger())
	summary := engine.Reconcile(context.Background(), "nc.xml", nil, nil)
	if summary.ReferencesSeen != 0 || summary.Warning("nc.xml") != nil {
		t.Errorf("empty reference list should be a clean no-op: %+v", summary)
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"", PolicySoft, false},
		{"soft", PolicySoft, false},
		{" HARD ", PolicyHard, false},
		{"archive", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParsePolicy(%q) = (%q, %v)", tt.in, got, err)
		}
	}
}
