package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"3tcapital/saftprocessor/internal/core/saft"
	appctx "3tcapital/saftprocessor/internal/infrastructure/context"
)

// FileProcessor handles one fetched document.
type FileProcessor interface {
	Process(ctx context.Context, doc saft.RemoteDocument) saft.FileResult
}

// Orchestrator runs discovery cycles: list, order, cap, fetch, then process.
type Orchestrator struct {
	source    saft.RemoteSource
	processor FileProcessor
	maxFiles  int
	workers   int
	now       func() time.Time
	log       *slog.Logger
}

// NewOrchestrator creates an orchestrator. maxFiles <= 0 disables the cap.
func NewOrchestrator(source saft.RemoteSource, processor FileProcessor, maxFiles, workers int, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		source:    source,
		processor: processor,
		maxFiles:  maxFiles,
		workers:   workers,
		now:       time.Now,
		log:       log.With("component", "orchestrator"),
	}
}

// RunCycle processes invoice files sequentially, then credit notes concurrently, so every
// invoice of the cycle is stored before any credit note referencing it is reconciled.
// Only a failure to list the remote source returns an error.
func (o *Orchestrator) RunCycle(ctx context.Context) (*saft.CycleReport, error) {
	log := appctx.Logger(ctx, o.log)

	docs, err := o.source.List(ctx)
	if err != nil {
		log.Error("Listing remote documents failed, cycle aborted", "error", err)
		return nil, asFetchError(err)
	}

	admitted, deferred := Admit(docs, o.maxFiles)
	agg := NewResultAggregator(len(docs), len(admitted), deferred, o.now)
	log.Info("Ingestion cycle started", "discovered", len(docs), "admitted", len(admitted), "deferred", deferred)
	if deferred > 0 {
		log.Warn("Batch cap reached, files deferred to the next cycle", "cap", o.maxFiles, "deferred", deferred)
	}

	fetched := o.fetchAll(ctx, admitted, agg, log)

	var invoices, creditNotes []saft.RemoteDocument
	for _, doc := range fetched {
		if doc.Kind() == saft.KindInvoice {
			invoices = append(invoices, doc)
		} else {
			creditNotes = append(creditNotes, doc)
		}
	}

	for _, doc := range invoices {
		if ctx.Err() != nil {
			agg.Add(cancelledResult(doc))
			continue
		}
		agg.Add(o.processor.Process(ctx, doc))
	}

	pool := NewFileWorkerPool(ctx, o.workers, o.processor.Process)
	agg.AddAll(pool.ProcessAll(creditNotes))

	report := agg.Report()
	stats := agg.GetStats()
	log.Info("Ingestion cycle finished",
		"succeeded", report.Succeeded,
		"warnings", report.Warnings,
		"failed", report.Failed,
		"deferred", report.Deferred,
		"duration", stats.Duration.String(),
		"success_rate", stats.SuccessRate,
	)
	return report, nil
}

// RunOpenGCsCycle fetches and stores open guest-check snapshots, all concurrently.
func (o *Orchestrator) RunOpenGCsCycle(ctx context.Context) (*saft.CycleReport, error) {
	log := appctx.Logger(ctx, o.log)

	docs, err := o.source.ListOpenGCs(ctx)
	if err != nil {
		log.Error("Listing OpenGCs snapshots failed, cycle aborted", "error", err)
		return nil, asFetchError(err)
	}

	admitted, deferred := Admit(docs, o.maxFiles)
	agg := NewResultAggregator(len(docs), len(admitted), deferred, o.now)
	log.Info("OpenGCs cycle started", "discovered", len(docs), "admitted", len(admitted), "deferred", deferred)

	fetched := o.fetchAll(ctx, admitted, agg, log)
	pool := NewFileWorkerPool(ctx, o.workers, o.processor.Process)
	agg.AddAll(pool.ProcessAll(fetched))

	report := agg.Report()
	log.Info("OpenGCs cycle finished", "succeeded", report.Succeeded, "warnings", report.Warnings, "failed", report.Failed)
	return report, nil
}

// fetchAll downloads admitted documents. A fetch failure is recorded for that file only.
func (o *Orchestrator) fetchAll(ctx context.Context, docs []saft.RemoteDocument, agg *ResultAggregator, log *slog.Logger) []saft.RemoteDocument {
	fetched := make([]saft.RemoteDocument, 0, len(docs))
	for _, doc := range docs {
		if ctx.Err() != nil {
			agg.Add(cancelledResult(doc))
			continue
		}
		local, err := o.source.Fetch(ctx, doc)
		if err != nil {
			log.Error("Fetch failed", "file", doc.Filename, "error", err)
			agg.Add(saft.FileResult{
				File:    doc.Filename,
				Kind:    doc.Kind(),
				Status:  saft.StatusFailed,
				State:   saft.StateFailed,
				Message: err.Error(),
			})
			continue
		}
		fetched = append(fetched, local)
	}
	return fetched
}

// Admit orders documents by name with invoices ahead of credit notes and applies the cap.
// It returns the admitted documents and how many were deferred.
func Admit(docs []saft.RemoteDocument, maxFiles int) ([]saft.RemoteDocument, int) {
	ordered := append([]saft.RemoteDocument(nil), docs...)
	sort.SliceStable(ordered, func(i, j int) bool {
		ri, rj := kindRank(ordered[i].Kind()), kindRank(ordered[j].Kind())
		if ri != rj {
			return ri < rj
		}
		return ordered[i].Filename < ordered[j].Filename
	})
	if maxFiles <= 0 || len(ordered) <= maxFiles {
		return ordered, 0
	}
	return ordered[:maxFiles], len(ordered) - maxFiles
}

func kindRank(k saft.Kind) int {
	switch k {
	case saft.KindInvoice:
		return 0
	case saft.KindCreditNote:
		return 1
	default:
		return 2
	}
}

func cancelledResult(doc saft.RemoteDocument) saft.FileResult {
	return saft.FileResult{
		File:    doc.Filename,
		Kind:    doc.Kind(),
		Status:  saft.StatusFailed,
		State:   saft.StateFailed,
		Message: "not processed: cycle cancelled",
	}
}

func asFetchError(err error) error {
	var fe *saft.FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &saft.FetchError{Err: err}
}
