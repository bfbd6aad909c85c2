// Package worker runs extraction jobs in the background with bounded
// concurrency and a per-job in-flight guard.
package worker

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var (
	// ErrAlreadyRunning is returned when a run for the same job is in flight.
	// Concurrent runs of one job would interleave writes on the job record.
	ErrAlreadyRunning = eris.New("worker: job already running")

	// ErrQueueFull is returned when the pending queue is at capacity.
	ErrQueueFull = eris.New("worker: queue full")

	// ErrShutdown is returned for submissions after Shutdown has begun.
	ErrShutdown = eris.New("worker: shutting down")
)

// Task is one background job run. The context is canceled on Shutdown.
type Task func(ctx context.Context)

type job struct {
	id string
	fn Task
}

// Runner executes submitted jobs on a fixed pool of workers.
type Runner struct {
	tasks  chan job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inFlight map[string]struct{}
	closed   bool
}

// NewRunner starts concurrency workers with a pending queue of queueSize.
func NewRunner(concurrency, queueSize int) *Runner {
	if concurrency <= 0 {
		concurrency = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		tasks:    make(chan job, queueSize),
		ctx:      ctx,
		cancel:   cancel,
		inFlight: make(map[string]struct{}),
	}

	r.wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go r.worker()
	}
	return r
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for task := range r.tasks {
		r.execute(task)
	}
}

func (r *Runner) execute(task job) {
	defer func() {
		r.mu.Lock()
		delete(r.inFlight, task.id)
		r.mu.Unlock()

		if rec := recover(); rec != nil {
			zap.L().Error("worker: job panicked",
				zap.String("job_id", task.id),
				zap.Any("panic", rec))
		}
	}()
	task.fn(r.ctx)
}

// Submit queues a run for jobID. Returns ErrAlreadyRunning if a run for the
// same job is queued or executing, ErrQueueFull when the queue is at
// capacity. The in-flight reservation is released when the run finishes.
func (r *Runner) Submit(jobID string, fn Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrShutdown
	}
	if _, running := r.inFlight[jobID]; running {
		return eris.Wrapf(ErrAlreadyRunning, "job %s", jobID)
	}

	// The send stays under the lock: Shutdown closes tasks under the same
	// lock, so a submission can never hit a closed channel. The send is
	// non-blocking, so holding the lock here cannot stall workers.
	select {
	case r.tasks <- job{id: jobID, fn: fn}:
		r.inFlight[jobID] = struct{}{}
		return nil
	default:
		return ErrQueueFull
	}
}

// InFlight reports how many jobs are queued or executing.
func (r *Runner) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inFlight)
}

// Shutdown stops accepting work, cancels running job contexts, and waits for
// workers to drain or ctx to expire.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	// Closed under the lock so no Submit can be mid-send.
	close(r.tasks)
	r.mu.Unlock()

	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "worker: shutdown wait")
	}
}
