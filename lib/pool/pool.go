package pool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var plog = logger.GetLogger("pool")

// ErrClosed is returned when work is submitted to a closed pool.
var ErrClosed = errors.New("pool is closed")

// --------------------------------------------------------------------------
// Error Type for recovered panics
// --------------------------------------------------------------------------

// PanicError reports a panic that occurred inside a pooled dispatch.
// The panic is caught at the pool boundary and delivered to the one caller
// that submitted the dispatch; other dispatches and workers are unaffected.
type PanicError struct {
	Value any    // The recovered panic value
	Stack []byte // The worker stack at the time of the panic
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in pool worker: %v", e.Value)
}

// --------------------------------------------------------------------------
// Pool
// --------------------------------------------------------------------------

// task is one queued dispatch. The context belongs to the submitting caller
// and is only consulted to skip work that nobody is waiting for anymore.
type task struct {
	ctx context.Context
	run func()
}

// Pool runs blocking functions on a fixed set of worker goroutines so that
// callers never execute them on their own goroutine. The queue is bounded:
// Submit blocks (backpressure) instead of growing an unbounded backlog.
type Pool struct {
	queue  chan task
	done   chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool

	submitted *metrics.Counter
	completed *metrics.Counter
	skipped   *metrics.Counter
	panics    *metrics.Counter
}

// New creates a pool with the given number of workers and queue capacity.
// Non-positive values fall back to the number of CPUs and a small queue.
//
// Thread-safety: the returned pool is safe for concurrent use.
func New(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = 2 * workers
	}

	p := &Pool{
		queue:     make(chan task, queueSize),
		done:      make(chan struct{}),
		submitted: metrics.GetOrCreateCounter(`skv_pool_dispatches_total{state="submitted"}`),
		completed: metrics.GetOrCreateCounter(`skv_pool_dispatches_total{state="completed"}`),
		skipped:   metrics.GetOrCreateCounter(`skv_pool_dispatches_total{state="skipped"}`),
		panics:    metrics.GetOrCreateCounter(`skv_pool_panics_total`),
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	plog.Debugf("started pool with %d workers (queue %d)", workers, queueSize)
	return p
}

// Submit enqueues fn for execution on a worker. It blocks while the queue is
// full and returns the context error if the caller gives up waiting. The
// function is executed at most once; if ctx is already done by the time a
// worker picks the task up, the task is dropped without running.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (p *Pool) Submit(ctx context.Context, fn func()) error {
	if p.closed.Load() {
		return ErrClosed
	}

	p.submitted.Inc()
	select {
	case p.queue <- task{ctx: ctx, run: fn}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrClosed
	}
}

// Close stops all workers and abandons any still-queued tasks. Tasks already
// running are not preempted; Close waits for them to finish.
//
// Thread-safety: this method is thread-safe; only the first call has effect.
func (p *Pool) Close() {
	if p.closed.CompareAndSwap(false, true) {
		close(p.done)
		p.wg.Wait()
	}
}

// QueueLen reports the number of queued, not yet started dispatches. For
// observability only.
func (p *Pool) QueueLen() int {
	return len(p.queue)
}

// worker is the run loop of a single worker goroutine.
func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		case t := <-p.queue:
			if t.ctx.Err() != nil {
				// The caller is gone, nobody would receive the result.
				p.skipped.Inc()
				continue
			}
			p.invoke(t)
		}
	}
}

// invoke runs one task and contains any panic to this dispatch. Without this
// recover a single misbehaving closure would kill its worker goroutine.
func (p *Pool) invoke(t task) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Inc()
			plog.Errorf("recovered panic in pool worker: %v", r)
		}
	}()

	t.run()
	p.completed.Inc()
}

// --------------------------------------------------------------------------
// Awaitable round trip
// --------------------------------------------------------------------------

// result carries the outcome of an Execute dispatch back to the caller.
type result[T any] struct {
	val T
	err error
}

// Execute dispatches fn to a worker and waits for its result. The calling
// goroutine suspends only for the round trip; the blocking call itself runs
// entirely on the worker.
//
// If ctx is canceled while the dispatch is still queued the task never runs.
// If it is canceled while the dispatch is running, the worker finishes the
// call and the buffered result is simply discarded. A panic inside fn is
// returned to this caller as a *PanicError.
func Execute[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	var zero T

	// Buffered so a worker finishing after the caller gave up never blocks.
	ch := make(chan result[T], 1)

	err := p.Submit(ctx, func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result[T]{err: &PanicError{Value: r, Stack: debug.Stack()}}
				panic(r) // re-raise for the worker-level accounting
			}
		}()
		v, err := fn()
		ch <- result[T]{val: v, err: err}
	})
	if err != nil {
		return zero, err
	}

	select {
	case res := <-ch:
		return res.val, res.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-p.done:
		// Drain a result that may have raced with the shutdown.
		select {
		case res := <-ch:
			return res.val, res.err
		default:
			return zero, ErrClosed
		}
	}
}
