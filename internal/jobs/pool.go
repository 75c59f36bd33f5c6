package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrWorkerQueueFull is returned by Submit when the queue has no room.
	ErrWorkerQueueFull = errors.New("worker queue full")

	// ErrPoolClosed is returned by Submit after Close.
	ErrPoolClosed = errors.New("worker pool closed")
)

// Concurrency bounds for the row worker pool.
const (
	DefaultConcurrency = 20
	MinConcurrency     = 1
	MaxConcurrency     = 100
)

// ClampConcurrency maps n into [MinConcurrency, MaxConcurrency]; zero or
// less selects DefaultConcurrency.
func ClampConcurrency(n int) int {
	switch {
	case n <= 0:
		return DefaultConcurrency
	case n > MaxConcurrency:
		return MaxConcurrency
	default:
		return n
	}
}

// TaskHandler executes one row task. Implementations must be safe for
// concurrent use.
type TaskHandler func(ctx context.Context, task RowTask) RowOutcome

// WorkerPool runs row tasks on a fixed number of goroutines that all pull
// from one shared queue. Outcomes are delivered on Results in completion
// order. Workers never touch scheduler state.
type WorkerPool struct {
	name    string
	logger  *slog.Logger
	workers int
	handler TaskHandler

	queue   chan RowTask
	results chan RowOutcome
	group   *errgroup.Group

	mu     sync.Mutex
	closed bool

	stopped   atomic.Bool
	inFlight  atomic.Int32
	completed atomic.Int64
	skipped   atomic.Int64
}

// WorkerPoolConfig configures a new worker pool.
type WorkerPoolConfig struct {
	Name    string
	Logger  *slog.Logger
	Workers int // Number of worker goroutines (clamped by ClampConcurrency)

	// QueueSize bounds both the task queue and the results buffer. Sizing
	// it to the number of tasks guarantees workers never block on a
	// coordinator that has stopped reading.
	QueueSize int

	Handler TaskHandler
}

// PoolStatus reports a pool's current state.
type PoolStatus struct {
	Name       string `json:"name" yaml:"name"`
	Workers    int    `json:"workers" yaml:"workers"`
	InFlight   int    `json:"in_flight" yaml:"in_flight"`
	QueueDepth int    `json:"queue_depth" yaml:"queue_depth"`
	Completed  int64  `json:"completed" yaml:"completed"`
	Skipped    int64  `json:"skipped" yaml:"skipped"`
}

// NewWorkerPool creates a pool. Call Start before Submit.
func NewWorkerPool(cfg WorkerPoolConfig) *WorkerPool {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	name := cfg.Name
	if name == "" {
		name = "rows"
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1
	}

	workers := ClampConcurrency(cfg.Workers)

	return &WorkerPool{
		name:    name,
		logger:  logger.With("pool", name, "workers", workers),
		workers: workers,
		handler: cfg.Handler,
		queue:   make(chan RowTask, queueSize),
		results: make(chan RowOutcome, queueSize),
	}
}

// Start launches the worker goroutines. Workers exit once the queue is
// closed and drained; ctx is handed to every task.
func (p *WorkerPool) Start(ctx context.Context) {
	p.group = &errgroup.Group{}
	for i := 0; i < p.workers; i++ {
		id := i
		p.group.Go(func() error {
			p.worker(ctx, id)
			return nil
		})
	}
	p.logger.Debug("pool started")
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	for task := range p.queue {
		if p.stopped.Load() {
			p.skipped.Add(1)
			continue
		}
		p.inFlight.Add(1)
		outcome := p.run(ctx, task)
		p.inFlight.Add(-1)
		p.completed.Add(1)
		p.logger.Debug("worker completed row", "worker_id", id, "row", task.Input.RowIndex, "is_error", outcome.IsError)
		p.results <- outcome
	}
}

// run executes the handler, converting a panic into a failed outcome so a
// single bad row cannot take down the run.
func (p *WorkerPool) run(ctx context.Context, task RowTask) (outcome RowOutcome) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("row task panicked", "row", task.Input.RowIndex, "panic", r)
			outcome = failed(task.Input.RowIndex, task.Input.Delimiter, fmt.Sprintf("internal error: %v", r))
		}
	}()
	return p.handler(ctx, task)
}

// Submit queues a task without blocking.
func (p *WorkerPool) Submit(task RowTask) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("%w: %s", ErrPoolClosed, p.name)
	}

	select {
	case p.queue <- task:
		return nil
	default:
		p.logger.Warn("pool queue full", "row", task.Input.RowIndex)
		return fmt.Errorf("%w: %s", ErrWorkerQueueFull, p.name)
	}
}

// Results delivers outcomes in completion order.
func (p *WorkerPool) Results() <-chan RowOutcome {
	return p.results
}

// Stop makes workers skip queued tasks they have not started. Tasks
// already running finish and still deliver their outcome.
func (p *WorkerPool) Stop() {
	p.stopped.Store(true)
}

// Close refuses further submissions and lets workers exit once the queue
// is empty. Safe to call more than once.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.queue)
}

// Wait blocks until every worker has exited. Call after Close.
func (p *WorkerPool) Wait() error {
	if p.group == nil {
		return nil
	}
	return p.group.Wait()
}

// Status returns current pool status.
func (p *WorkerPool) Status() PoolStatus {
	return PoolStatus{
		Name:       p.name,
		Workers:    p.workers,
		InFlight:   int(p.inFlight.Load()),
		QueueDepth: len(p.queue),
		Completed:  p.completed.Load(),
		Skipped:    p.skipped.Load(),
	}
}
