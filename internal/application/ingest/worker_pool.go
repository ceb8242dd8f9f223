package ingest

import (
	"context"
	"sync"

	"3tcapital/saftprocessor/internal/core/saft"
)

// ProcessFunc handles one fetched document.
type ProcessFunc func(ctx context.Context, doc saft.RemoteDocument) saft.FileResult

// FileJob is a document queued for a worker.
type FileJob struct {
	Document saft.RemoteDocument
	Index    int
}

// FileOutcome is the result of a job, tagged with its submission index.
type FileOutcome struct {
	Result saft.FileResult
	Index  int
}

// FileWorkerPool processes documents concurrently with a fixed number of workers.
type FileWorkerPool struct {
	workerCount int
	jobChan     chan FileJob
	resultChan  chan FileOutcome
	process     ProcessFunc
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewFileWorkerPool creates a pool. workerCount below one is treated as one.
func NewFileWorkerPool(ctx context.Context, workerCount int, process ProcessFunc) *FileWorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	poolCtx, cancel := context.WithCancel(ctx)
	return &FileWorkerPool{
		workerCount: workerCount,
		jobChan:     make(chan FileJob, workerCount*2),
		resultChan:  make(chan FileOutcome, workerCount*2),
		process:     process,
		ctx:         poolCtx,
		cancel:      cancel,
	}
}

// Start launches the workers.
func (p *FileWorkerPool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop closes the job queue and waits for in-flight jobs.
func (p *FileWorkerPool) Stop() {
	close(p.jobChan)
	p.wg.Wait()
	p.cancel()
	close(p.resultChan)
}

// Submit queues a job, blocking while the queue is full.
func (p *FileWorkerPool) Submit(job FileJob) error {
	select {
	case p.jobChan <- job:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Results returns the channel for receiving outcomes.
func (p *FileWorkerPool) Results() <-chan FileOutcome {
	return p.resultChan
}

func (p *FileWorkerPool) worker() {
	defer p.wg.Done()
	for job := range p.jobChan {
		p.resultChan <- FileOutcome{Result: p.process(p.ctx, job.Document), Index: job.Index}
	}
}

// ProcessAll runs every document through the pool and returns the results in
// submission order. Documents that could not be submitted are reported as failed.
func (p *FileWorkerPool) ProcessAll(docs []saft.RemoteDocument) []saft.FileResult {
	results := make([]saft.FileResult, len(docs))
	if len(docs) == 0 {
		return results
	}
	p.Start()

	submitted := make(chan int, 1)
	go func() {
		n := 0
		for i, doc := range docs {
			if err := p.Submit(FileJob{Document: doc, Index: i}); err != nil {
				break
			}
			n++
		}
		submitted <- n
		p.Stop()
	}()

	seen := make([]bool, len(docs))
	for outcome := range p.Results() {
		results[outcome.Index] = outcome.Result
		seen[outcome.Index] = true
	}
	<-submitted

	for i, ok := range seen {
		if !ok {
			results[i] = cancelledResult(docs[i])
		}
	}
	return results
}
