// Package worker provides a bounded worker pool that runs queued jobs until
// its context is cancelled. Jobs still queued at cancellation are handed to
// a skip callback instead of being run, so callers can account for them.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// ErrClosed is returned when enqueuing on a closed pool.
var ErrClosed = errors.New("worker pool closed")

// Config is the configuration options for the worker pool.
type Config[J any] struct {
	// Handle runs one job. It receives the pool's context.
	Handle func(ctx context.Context, job J)

	// Skip is called for jobs dequeued after the pool's context is done.
	// Optional.
	Skip func(job J)

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided slog logger
	Logger *slog.Logger
}

// Pool processes jobs on a fixed number of goroutines.
type Pool[J any] struct {
	config *Config[J]
	ctx    context.Context
	queue  chan J
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool[J any](ctx context.Context, c *Config[J]) (*Pool[J], error) {
	if c.Handle == nil {
		return nil, errors.New("worker pool requires a Handle func")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	wp := &Pool[J]{
		config: c,
		ctx:    ctx,
		queue:  make(chan J, c.QueueSize),
		logger: logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is closed,
// resulting in the job being dropped.
func (p *Pool[J]) Enqueue(job J) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.logger.Error("job not queued, pool closed")
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued", "queued", len(p.queue))
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped")
		return false
	}
}

// Submit blocks until the job is queued or the pool's context is done.
func (p *Pool[J]) Submit(job J) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	select {
	case p.queue <- job:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
func (p *Pool[J]) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool[J]) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		if p.ctx.Err() != nil {
			if p.config.Skip != nil {
				p.config.Skip(job)
			}
			continue
		}
		p.config.Handle(p.ctx, job)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}
