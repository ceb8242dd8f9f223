package saft

import "time"

// FileState is a step of the per-file state machine.
type FileState string

const (
	StateDiscovered    FileState = "discovered"
	StateFetched       FileState = "fetched"
	StateDecoded       FileState = "decoded"
	StateExtracted     FileState = "extracted"
	StatePersisted     FileState = "persisted"
	StateReconciled    FileState = "reconciled"
	StateRemoteDeleted FileState = "remote_deleted"
	StateLocalCleaned  FileState = "local_cleaned"
	StateFailed        FileState = "failed"
)

// Status is the outcome reported for a file.
type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusFailed  Status = "failed"
)

// FileResult is the structured outcome of processing one file.
type FileResult struct {
	File           string            `json:"file"`
	Kind           Kind              `json:"kind"`
	Status         Status            `json:"status"`
	State          FileState         `json:"state"`
	Message        string            `json:"message"`
	Invoices       int               `json:"invoices"`
	Reconciliation *ReconcileSummary `json:"reconciliation,omitempty"`
	DurationMs     int64             `json:"duration_ms"`
}

// Failed reports whether the file must be retained for inspection.
func (r FileResult) Failed() bool {
	return r.Status == StatusFailed
}

// FailedReference is a credit-note reference that did not deactivate an invoice.
type FailedReference struct {
	Reference string `json:"reference"`
	InvoiceNo string `json:"invoice_no,omitempty"`
	Reason    string `json:"reason"`
}

// ReconcileSummary counts the effects of one credit note.
type ReconcileSummary struct {
	ReferencesSeen  int               `json:"references_seen"`
	Deactivated     []string          `json:"deactivated"`
	AlreadyInactive []string          `json:"already_inactive,omitempty"`
	Failed          []FailedReference `json:"failed"`
}

// DeactivatedCount includes no-op deactivations of already inactive invoices.
func (s ReconcileSummary) DeactivatedCount() int {
	return len(s.Deactivated) + len(s.AlreadyInactive)
}

// Warning returns a ReconciliationWarning when any reference failed, nil otherwise.
func (s ReconcileSummary) Warning(file string) *ReconciliationWarning {
	if len(s.Failed) == 0 {
		return nil
	}
	return &ReconciliationWarning{File: file, Failed: s.Failed}
}

// PersistOutcome reports what one file's persistence wrote.
type PersistOutcome struct {
	FileID        int64    `json:"file_id"`
	Invoices      int      `json:"invoices"`
	LinesInserted int      `json:"lines_inserted"`
	LinesSkipped  int      `json:"lines_skipped"`
	LinksInserted int      `json:"links_inserted"`
	Errors        []string `json:"errors,omitempty"`
}

// CycleReport summarizes one discovery cycle.
type CycleReport struct {
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Discovered int          `json:"discovered"`
	Admitted   int          `json:"admitted"`
	Deferred   int          `json:"deferred"`
	Succeeded  int          `json:"succeeded"`
	Warnings   int          `json:"warnings"`
	Failed     int          `json:"failed"`
	Results    []FileResult `json:"results"`
}

// Add records a file result and updates the counters.
func (r *CycleReport) Add(res FileResult) {
	r.Results = append(r.Results, res)
	switch res.Status {
	case StatusSuccess:
		r.Succeeded++
	case StatusWarning:
		r.Warnings++
	default:
		r.Failed++
	}
}
