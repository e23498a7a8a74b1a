// Package pool provides a bounded worker pool that turns blocking storage
// engine calls into awaitable results.
//
// The surrounding system runs many concurrent tasks on the shared Go
// scheduler. A blocking disk operation executed directly on a calling
// goroutine would tie that goroutine up for the full duration of the call;
// with many concurrent slow operations this starves unrelated work. The
// pool confines all blocking calls to a fixed set of worker goroutines and
// lets callers await the outcome instead.
//
// The package focuses on:
//   - A fixed worker count with a bounded queue: backpressure is applied by
//     blocking Submit rather than by growing an unbounded backlog
//   - An awaitable round trip (Execute) built on a buffered result channel,
//     so the calling goroutine suspends only until the worker replies
//   - Cancellation semantics: a dispatch still queued when its caller's
//     context dies is dropped without running; a dispatch already running is
//     never preempted - it runs to completion and its result is discarded
//   - Panic containment: a panic inside a dispatched closure is recovered at
//     the pool boundary and reported to its one caller as a *PanicError,
//     without crashing the process or poisoning other workers
//
// Example usage:
//
//	p := pool.New(8, 64)
//	defer p.Close()
//
//	value, err := pool.Execute(ctx, p, func() ([]byte, error) {
//		return engine.Get(key) // blocking call, runs on a worker
//	})
package pool
