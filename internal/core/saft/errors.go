package saft

import (
	"fmt"
	"strings"
)

// FetchError reports that the remote channel could not be listed or a file could not be downloaded.
// With an empty File it aborts the whole cycle.
type FetchError struct {
	File string
	Err  error
}

func (e *FetchError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("fetch remote documents: %v", e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.File, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// DecodeError means none of the candidate encodings could read the file.
type DecodeError struct {
	File  string
	Tried []string
	Err   error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("decode %s", e.File)
	if len(e.Tried) > 0 {
		msg += fmt.Sprintf(" (tried %s)", strings.Join(e.Tried, ", "))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ParseError means the mandatory sections of the document are absent or malformed.
type ParseError struct {
	File   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.File, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.File, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// PersistenceError means the natural-key upsert wrote nothing; the remote file must be kept.
type PersistenceError struct {
	File   string
	Reason string
	Err    error
}

func (e *PersistenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("persist %s: %s: %v", e.File, e.Reason, e.Err)
	}
	return fmt.Sprintf("persist %s: %s", e.File, e.Reason)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ReconciliationWarning lists credit-note references that did not deactivate an invoice.
// It never blocks deletion of a file whose own persistence succeeded.
type ReconciliationWarning struct {
	File   string
	Failed []FailedReference
}

func (e *ReconciliationWarning) Error() string {
	refs := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		refs = append(refs, f.Reference)
	}
	return fmt.Sprintf("reconcile %s: %d unresolved reference(s): %s", e.File, len(e.Failed), strings.Join(refs, "; "))
}
