package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// ErrQueueFull indicates the ingestion queue has no room for another job.
var ErrQueueFull = errors.New("ingestion queue is full")

// ErrPoolClosed indicates the pool no longer accepts jobs.
var ErrPoolClosed = errors.New("ingestion pool is closed")

// Runner executes one ingestion run.
type Runner interface {
	Run(ctx context.Context, id uuid.UUID) error
}

// Pool runs ingestion jobs on a fixed set of background workers behind a
// bounded queue. Enqueue never blocks; callers get ErrQueueFull instead of
// unbounded backpressure.
type Pool struct {
	runner  Runner
	jobs    chan uuid.UUID
	workers int
	logger  *slog.Logger

	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	started bool
}

// NewPool creates a Pool with the given worker count and queue capacity.
func NewPool(runner Runner, workers, queueLen int, logger *slog.Logger) (*Pool, error) {
	if runner == nil {
		return nil, errors.New("runner is required")
	}
	if workers < 1 {
		return nil, errors.New("workers must be at least 1")
	}
	if queueLen < 1 {
		return nil, errors.New("queue length must be at least 1")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		runner:  runner,
		jobs:    make(chan uuid.UUID, queueLen),
		workers: workers,
		logger:  logger,
	}, nil
}

// Start launches the workers. Workers exit when ctx is canceled or the
// pool is closed and the queue drained.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(worker int) {
			defer p.wg.Done()
			p.work(ctx, worker)
		}(i)
	}

	p.logger.Debug("ingestion pool started", "workers", p.workers, "queue_len", cap(p.jobs))
}

func (p *Pool) work(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-p.jobs:
			if !ok {
				return
			}
			if err := p.runner.Run(ctx, id); err != nil {
				// The run already persisted its failure; this log is for
				// operators tailing the service.
				p.logger.Warn("ingestion run failed",
					"worker", worker, "document_id", id, "error", err)
			}
		}
	}
}

// Enqueue submits a document for ingestion without blocking. The send
// happens under the same lock Close holds while closing the channel, so an
// Enqueue can never race a Close onto a closed channel.
func (p *Pool) Enqueue(id uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.jobs <- id:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits for in-flight runs to finish.
// Queued jobs still run unless the Start context is canceled.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}
