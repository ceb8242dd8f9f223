package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"3tcapital/saftprocessor/internal/application/extract"
	"3tcapital/saftprocessor/internal/core/saft"
)

// Policy selects what a credit note does to the invoices it references.
type Policy string

const (
	// PolicySoft flips the active flag and records provenance. Re-running is a no-op.
	PolicySoft Policy = "soft"
	// PolicyHard deletes lines, links and the invoice. A redelivered invoice file
	// resurrects what was deleted, so this policy is not idempotent.
	PolicyHard Policy = "hard"
)

// ParsePolicy maps a configuration value to a policy, defaulting to soft.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicySoft:
		return PolicySoft, nil
	case PolicyHard:
		return PolicyHard, nil
	default:
		return "", fmt.Errorf("unknown credit note policy %q", s)
	}
}

// Engine resolves credit-note references to invoices and deactivates them.
type Engine struct {
	repo   saft.ReconciliationRepository
	policy Policy
	now    func() time.Time
	log    *slog.Logger
}

// NewEngine creates a reconciliation engine.
func NewEngine(repo saft.ReconciliationRepository, policy Policy, log *slog.Logger) *Engine {
	if policy == "" {
		policy = PolicySoft
	}
	return &Engine{
		repo:   repo,
		policy: policy,
		now:    time.Now,
		log:    log.With("component", "reconcile", "policy", string(policy)),
	}
}

// Reconcile processes every reference independently; one failure never stops the others.
func (e *Engine) Reconcile(ctx context.Context, file string, refs []string, reason *saft.NCReason) saft.ReconcileSummary {
	summary := saft.ReconcileSummary{
		ReferencesSeen: len(refs),
		Deactivated:    []string{},
		Failed:         []saft.FailedReference{},
	}
	log := e.log.With("file", file)

	for _, ref := range refs {
		invoiceNo, ok := extract.InvoiceNumberFromReference(ref)
		if !ok {
			log.Warn("reference does not name an invoice", "reference", ref)
			summary.Failed = append(summary.Failed, saft.FailedReference{Reference: ref, Reason: "no invoice number in reference"})
			continue
		}

		state, err := e.repo.FindInvoiceByNumber(ctx, invoiceNo)
		if err != nil {
			log.Error("invoice lookup failed", "invoice_no", invoiceNo, "error", err)
			summary.Failed = append(summary.Failed, saft.FailedReference{Reference: ref, InvoiceNo: invoiceNo, Reason: err.Error()})
			continue
		}
		if state == nil {
			log.Warn("referenced invoice not found", "invoice_no", invoiceNo)
			summary.Failed = append(summary.Failed, saft.FailedReference{Reference: ref, InvoiceNo: invoiceNo, Reason: "invoice not found"})
			continue
		}

		if e.policy == PolicyHard {
			if err := e.repo.DeleteInvoiceCascade(ctx, state.ID); err != nil {
				log.Error("invoice delete failed", "invoice_no", invoiceNo, "error", err)
				summary.Failed = append(summary.Failed, saft.FailedReference{Reference: ref, InvoiceNo: invoiceNo, Reason: err.Error()})
				continue
			}
			summary.Deactivated = append(summary.Deactivated, invoiceNo)
			log.Info("invoice deleted", "invoice_no", invoiceNo)
			continue
		}

		if !state.Active {
			summary.AlreadyInactive = append(summary.AlreadyInactive, invoiceNo)
			log.Debug("invoice already inactive", "invoice_no", invoiceNo)
			continue
		}

		changed, err := e.repo.DeactivateInvoice(ctx, state.ID, saft.Deactivation{
			CreditNoteFile: file,
			Reason:         reason,
			At:             e.now(),
		})
		if err != nil {
			log.Error("invoice deactivation failed", "invoice_no", invoiceNo, "error", err)
			summary.Failed = append(summary.Failed, saft.FailedReference{Reference: ref, InvoiceNo: invoiceNo, Reason: err.Error()})
			continue
		}
		if !changed {
			// Lost a race with another credit note.
			summary.AlreadyInactive = append(summary.AlreadyInactive, invoiceNo)
			continue
		}
		summary.Deactivated = append(summary.Deactivated, invoiceNo)
		log.Info("invoice deactivated", "invoice_no", invoiceNo)
	}

	log.Info("credit note reconciled",
		"references", summary.ReferencesSeen,
		"deactivated", summary.DeactivatedCount(),
		"failed", len(summary.Failed),
	)
	return summary
}
