package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"3tcapital/saftprocessor/internal/application/extract"
	"3tcapital/saftprocessor/internal/core/audit"
	"3tcapital/saftprocessor/internal/core/opengcs"
	"3tcapital/saftprocessor/internal/core/saft"
	appctx "3tcapital/saftprocessor/internal/infrastructure/context"
	"3tcapital/saftprocessor/internal/infrastructure/xmltree"
)

// Persister writes an extracted batch.
type Persister interface {
	Persist(ctx context.Context, batch *saft.Batch) (*saft.PersistOutcome, error)
}

// Reconciler applies the references of a credit note.
type Reconciler interface {
	Reconcile(ctx context.Context, file string, refs []string, reason *saft.NCReason) saft.ReconcileSummary
}

// Dependencies are the collaborators of a Processor. Audit is optional.
type Dependencies struct {
	Source     saft.RemoteSource
	Decoder    *xmltree.Decoder
	Extractor  *extract.Extractor
	Persister  Persister
	Reconciler Reconciler
	Snapshots  opengcs.Repository
	Audit      audit.Repository
}

// Options tune what happens to files after processing.
type Options struct {
	CleanupLocal        bool
	DeleteOpenGCsRemote bool
	Location            *time.Location
}

// Processor runs the per-file state machine on a fetched document.
type Processor struct {
	deps Dependencies
	opts Options
	now  func() time.Time
	log  *slog.Logger
}

// NewProcessor creates a processor. A nil location means Europe/Lisbon.
func NewProcessor(deps Dependencies, opts Options, log *slog.Logger) (*Processor, error) {
	if deps.Source == nil || deps.Decoder == nil || deps.Extractor == nil || deps.Persister == nil || deps.Reconciler == nil {
		return nil, errors.New("processor: source, decoder, extractor, persister and reconciler are required")
	}
	if opts.Location == nil {
		loc, err := time.LoadLocation("Europe/Lisbon")
		if err != nil {
			return nil, fmt.Errorf("load timezone: %w", err)
		}
		opts.Location = loc
	}
	return &Processor{
		deps: deps,
		opts: opts,
		now:  time.Now,
		log:  log.With("component", "processor"),
	}, nil
}

// run tracks one file through the state machine.
type run struct {
	res      saft.FileResult
	notes    []string
	log      *slog.Logger
	finished bool
}

func (r *run) advance(state saft.FileState) {
	r.log.Debug("File state changed", "from", r.res.State, "to", state)
	r.res.State = state
}

func (r *run) warn(msg string) {
	r.res.Status = saft.StatusWarning
	r.notes = append(r.notes, msg)
}

func (r *run) fail(err error) {
	r.log.Error("File processing failed", "stage", r.res.State, "error", err)
	r.res.Status = saft.StatusFailed
	r.res.State = saft.StateFailed
	r.res.Message = err.Error()
	r.finished = true
}

// Process never returns an error: every outcome, including failures, is a FileResult.
// A failed file keeps its remote and local copies.
func (p *Processor) Process(ctx context.Context, doc saft.RemoteDocument) saft.FileResult {
	start := p.now()
	r := &run{
		res: saft.FileResult{
			File:   doc.Filename,
			Kind:   doc.Kind(),
			Status: saft.StatusSuccess,
			State:  saft.StateFetched,
		},
		log: appctx.Logger(ctx, p.log).With("file", doc.Filename),
	}

	if doc.Kind() == saft.KindOpenGCs {
		p.processOpenGCs(ctx, doc, r)
	} else {
		p.processAuditFile(ctx, doc, r)
	}

	if !r.finished {
		r.res.Message = strings.Join(r.notes, "; ")
	}
	r.res.DurationMs = p.now().Sub(start).Milliseconds()
	r.log.Info("File processed", "status", r.res.Status, "state", r.res.State, "invoices", r.res.Invoices, "duration_ms", r.res.DurationMs)
	p.audit(ctx, r)
	return r.res
}

func (p *Processor) processAuditFile(ctx context.Context, doc saft.RemoteDocument, r *run) {
	root, ok := p.decode(doc, r)
	if !ok {
		return
	}

	batch, err := p.deps.Extractor.Extract(root, doc.Filename, p.now().In(p.opts.Location))
	if err != nil {
		r.fail(err)
		return
	}
	for _, w := range batch.Warnings {
		r.log.Warn("Extraction warning", "warning", w)
	}
	if len(batch.Invoices) == 0 {
		r.fail(&saft.ParseError{File: doc.Filename, Reason: "no invoices"})
		return
	}
	r.advance(saft.StateExtracted)
	r.res.Invoices = len(batch.Invoices)

	outcome, err := p.deps.Persister.Persist(ctx, batch)
	if err != nil {
		r.fail(asPersistenceError(doc.Filename, err))
		return
	}
	r.advance(saft.StatePersisted)
	r.notes = append(r.notes, fmt.Sprintf("%d invoice(s), %d new line(s)", outcome.Invoices, outcome.LinesInserted))
	if len(outcome.Errors) > 0 {
		r.warn(fmt.Sprintf("%d invoice(s) partially persisted", len(outcome.Errors)))
	}

	if r.res.Kind == saft.KindCreditNote {
		summary := p.deps.Reconciler.Reconcile(ctx, doc.Filename, extract.References(root), batch.NCReason)
		r.res.Reconciliation = &summary
		r.advance(saft.StateReconciled)
		if summary.ReferencesSeen == 0 {
			r.log.Warn("Credit note carries no invoice references")
			r.warn("no invoice references found")
		}
		if w := summary.Warning(doc.Filename); w != nil {
			r.log.Warn("Credit note left references unresolved", "failed", len(w.Failed))
			r.warn(w.Error())
		}
	}

	p.cleanup(ctx, doc, r, true)
}

func (p *Processor) processOpenGCs(ctx context.Context, doc saft.RemoteDocument, r *run) {
	name, ok := saft.ParseOpenGCsFilename(doc.Filename)
	if !ok {
		r.fail(&saft.ParseError{File: doc.Filename, Reason: "filename does not follow opengcs-<nif>-<filial>"})
		return
	}
	if p.deps.Snapshots == nil {
		r.fail(&saft.PersistenceError{File: doc.Filename, Reason: "no snapshot repository configured"})
		return
	}

	root, ok := p.decode(doc, r)
	if !ok {
		return
	}

	now := p.now().In(p.opts.Location)
	snap, err := extract.ExtractOpenGCs(root, doc.Filename, now)
	if err != nil {
		r.fail(err)
		return
	}
	r.advance(saft.StateExtracted)

	rec := opengcs.Record{
		LojaID:    name.LojaID(),
		NIF:       name.NIF,
		Filial:    name.Filial,
		Data:      *snap,
		UpdatedAt: now,
	}
	if err := p.deps.Snapshots.Upsert(ctx, rec); err != nil {
		r.fail(asPersistenceError(doc.Filename, err))
		return
	}
	r.advance(saft.StatePersisted)
	r.notes = append(r.notes, fmt.Sprintf("snapshot %s stored with %d open GC(s)", rec.LojaID, len(snap.GCs)))

	p.cleanup(ctx, doc, r, p.opts.DeleteOpenGCsRemote)
}

func (p *Processor) decode(doc saft.RemoteDocument, r *run) (*xmltree.Node, bool) {
	text, encoding, err := p.deps.Decoder.DecodeFile(doc.LocalPath)
	if err != nil {
		r.fail(err)
		return nil, false
	}
	r.log.Debug("File decoded", "encoding", encoding)
	r.advance(saft.StateDecoded)

	root, err := xmltree.Parse(text)
	if err != nil {
		r.fail(&saft.ParseError{File: doc.Filename, Reason: "malformed xml", Err: err})
		return nil, false
	}
	return root, true
}

// cleanup runs after a successful persist. Failing to delete the remote copy is a warning.
func (p *Processor) cleanup(ctx context.Context, doc saft.RemoteDocument, r *run, deleteRemote bool) {
	if deleteRemote {
		if err := p.deps.Source.Delete(ctx, doc); err != nil {
			r.log.Warn("Remote delete failed", "error", err)
			r.warn("remote delete failed: " + err.Error())
		} else {
			r.advance(saft.StateRemoteDeleted)
		}
	}

	if !p.opts.CleanupLocal || doc.LocalPath == "" {
		return
	}
	if err := os.Remove(doc.LocalPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.log.Warn("Local cleanup failed", "path", doc.LocalPath, "error", err)
		return
	}
	r.advance(saft.StateLocalCleaned)
}

func (p *Processor) audit(ctx context.Context, r *run) {
	if p.deps.Audit == nil {
		return
	}
	rec := audit.NewIngestionRecord(appctx.GetCorrelationID(ctx), r.res)
	if err := p.deps.Audit.Save(ctx, rec); err != nil {
		r.log.Error("Failed to write ingestion audit row", "error", err)
	}
}

func asPersistenceError(file string, err error) error {
	var perr *saft.PersistenceError
	if errors.As(err, &perr) {
		return err
	}
	return &saft.PersistenceError{File: file, Reason: "store write failed", Err: err}
}
