package worker

import (
	"context"
	"log/slog"
	"sync"
)

// Job is a unit of work executed by the pool. Jobs observe the pool
// context for cooperative cancellation.
type Job func(ctx context.Context)

// Pool runs submitted jobs on a bounded set of workers. One pool serves
// one export run: Start, Submit the run's copy jobs, then Drain to wait
// for completion.
type Pool struct {
	workers int
	jobs    chan Job
	logger  *slog.Logger

	wg sync.WaitGroup
}

// NewPool creates a pool with the given number of workers.
func NewPool(workers int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 2
	}
	return &Pool{
		workers: workers,
		jobs:    make(chan Job, workers*2),
		logger:  logger,
	}
}

// Start launches all workers. Workers exit when the context is
// cancelled or the job channel is drained after Drain.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Debug("starting worker pool", "workers", p.workers)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Submit queues a job, blocking while all workers are busy and the
// queue is full. Submit must not be called after Drain.
func (p *Pool) Submit(job Job) {
	p.jobs <- job
}

// Drain closes the queue and waits for in-flight jobs to finish.
func (p *Pool) Drain() {
	close(p.jobs)
	p.wg.Wait()
	p.logger.Debug("worker pool drained")
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	logger := p.logger.With("worker_id", id)

	for job := range p.jobs {
		if ctx.Err() != nil {
			// Keep consuming so Drain does not block, but run nothing.
			continue
		}
		job(ctx)
	}

	logger.Debug("worker stopped")
}
