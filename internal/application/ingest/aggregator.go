package ingest

import (
	"sync"
	"time"

	"3tcapital/saftprocessor/internal/core/saft"
)

// ResultAggregator collects file results from sequential and concurrent phases.
type ResultAggregator struct {
	mu         sync.Mutex
	report     saft.CycleReport
	now        func() time.Time
	totalFiles int
}

// NewResultAggregator starts a report for a cycle.
func NewResultAggregator(discovered, admitted, deferred int, now func() time.Time) *ResultAggregator {
	return &ResultAggregator{
		report: saft.CycleReport{
			StartedAt:  now(),
			Discovered: discovered,
			Admitted:   admitted,
			Deferred:   deferred,
			Results:    make([]saft.FileResult, 0, admitted),
		},
		now:        now,
		totalFiles: admitted,
	}
}

// Add records one result.
func (a *ResultAggregator) Add(res saft.FileResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.report.Add(res)
}

// AddAll records results in order.
func (a *ResultAggregator) AddAll(results []saft.FileResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range results {
		a.report.Add(r)
	}
}

// Report closes the cycle and returns a copy of the report.
func (a *ResultAggregator) Report() *saft.CycleReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.report
	out.FinishedAt = a.now()
	out.Results = append([]saft.FileResult(nil), a.report.Results...)
	return &out
}

// ProcessingStats summarizes throughput of a cycle.
type ProcessingStats struct {
	TotalFiles  int
	Processed   int
	Failed      int
	Duration    time.Duration
	Throughput  float64 // files per second
	SuccessRate float64 // percentage, warnings count as success
}

// GetStats returns processing statistics so far.
func (a *ResultAggregator) GetStats() ProcessingStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	duration := a.now().Sub(a.report.StartedAt)
	processed := a.report.Succeeded + a.report.Warnings
	stats := ProcessingStats{
		TotalFiles: a.totalFiles,
		Processed:  processed,
		Failed:     a.report.Failed,
		Duration:   duration,
	}
	if duration.Seconds() > 0 {
		stats.Throughput = float64(len(a.report.Results)) / duration.Seconds()
	}
	if a.totalFiles > 0 {
		stats.SuccessRate = float64(processed) / float64(a.totalFiles) * 100
	}
	return stats
}
