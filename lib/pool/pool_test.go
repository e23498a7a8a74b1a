package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestExecuteRoundTrip(t *testing.T) {
	p := New(2, 4)
	defer p.Close()

	got, err := Execute(context.Background(), p, func() (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
}

func TestExecutePropagatesError(t *testing.T) {
	p := New(1, 1)
	defer p.Close()

	sentinel := errors.New("boom")
	_, err := Execute(context.Background(), p, func() (struct{}, error) {
		return struct{}{}, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("expected sentinel error, got %v", err)
	}
}

func TestExecuteNeverRunsInline(t *testing.T) {
	p := New(1, 1)
	defer p.Close()

	// The dispatch blocks until the calling goroutine makes progress past
	// the submit. Inline execution would deadlock here; running on a worker,
	// both sides proceed.
	handshake := make(chan struct{})
	var ran atomic.Bool

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(handshake)
	}()

	_, err := Execute(context.Background(), p, func() (struct{}, error) {
		<-handshake
		ran.Store(true)
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !ran.Load() {
		t.Errorf("dispatch did not run")
	}
}

func TestPanicContainment(t *testing.T) {
	p := New(1, 1)
	defer p.Close()

	_, err := Execute(context.Background(), p, func() (struct{}, error) {
		panic("kaboom")
	})

	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PanicError, got %v", err)
	}
	if pe.Value != "kaboom" {
		t.Errorf("expected panic value to round-trip, got %v", pe.Value)
	}
	if len(pe.Stack) == 0 {
		t.Errorf("expected a captured stack trace")
	}

	// The worker must have survived the panic.
	got, err := Execute(context.Background(), p, func() (int, error) {
		return 1, nil
	})
	if err != nil || got != 1 {
		t.Errorf("worker died after contained panic: got=%d err=%v", got, err)
	}
}

func TestQueuedDispatchSkippedOnCancel(t *testing.T) {
	p := New(1, 1)
	defer p.Close()

	// Occupy the single worker so follow-up dispatches stay queued.
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = Execute(context.Background(), p, func() (struct{}, error) {
			<-release
			return struct{}{}, nil
		})
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := Execute(ctx, p, func() (struct{}, error) {
			ran.Store(true)
			return struct{}{}, nil
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	close(release)
	wg.Wait()

	// Give the worker a chance to (incorrectly) pick the task up.
	time.Sleep(20 * time.Millisecond)
	if ran.Load() {
		t.Errorf("canceled queued dispatch must never run")
	}
}

func TestRunningDispatchNotPreempted(t *testing.T) {
	p := New(1, 1)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		_, err := Execute(ctx, p, func() (struct{}, error) {
			close(started)
			time.Sleep(50 * time.Millisecond)
			close(finished)
			return struct{}{}, nil
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled for the abandoned await, got %v", err)
		}
	}()

	<-started
	cancel()

	// The already-running call completes regardless of the cancellation.
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Errorf("running dispatch was preempted by cancellation")
	}
}

func TestSubmitBackpressure(t *testing.T) {
	p := New(1, 1)
	defer p.Close()

	// Fill the worker and the queue.
	release := make(chan struct{})
	_ = p.Submit(context.Background(), func() { <-release })
	time.Sleep(10 * time.Millisecond)
	_ = p.Submit(context.Background(), func() {})

	// The queue is full now: Submit must block until the context expires.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := p.Submit(ctx, func() {})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error from full queue, got %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Errorf("submit returned before the deadline, no backpressure applied")
	}
	close(release)
}

func TestClosedPoolRejectsWork(t *testing.T) {
	p := New(1, 1)
	p.Close()

	if err := p.Submit(context.Background(), func() {}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Submit, got %v", err)
	}
	_, err := Execute(context.Background(), p, func() (struct{}, error) {
		return struct{}{}, nil
	})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Execute, got %v", err)
	}

	// Closing twice is harmless.
	p.Close()
}

func TestCloseWaitsForRunning(t *testing.T) {
	p := New(2, 2)

	var completed atomic.Int32
	for i := 0; i < 2; i++ {
		_ = p.Submit(context.Background(), func() {
			time.Sleep(30 * time.Millisecond)
			completed.Add(1)
		})
	}
	time.Sleep(10 * time.Millisecond)

	p.Close()
	if completed.Load() != 2 {
		t.Errorf("close returned before running tasks finished (%d/2)", completed.Load())
	}
}

func TestConcurrentExecute(t *testing.T) {
	p := New(4, 16)
	defer p.Close()

	const n = 200
	var sum atomic.Int64
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			v, err := Execute(context.Background(), p, func() (int, error) {
				return i, nil
			})
			if err != nil {
				t.Errorf("execute %d failed: %v", i, err)
				return
			}
			sum.Add(int64(v))
		}(i)
	}
	wg.Wait()

	if want := int64(n * (n - 1) / 2); sum.Load() != want {
		t.Errorf("expected sum %d, got %d", want, sum.Load())
	}
}
