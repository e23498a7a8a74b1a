package watch

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Registry
// --------------------------------------------------------------------------

// waiterSet holds the pending waiters for one exact key. Once a set has been
// notified it is dead: the closed flag tells a concurrently registering
// waiter to fetch a fresh set instead of joining a notification that already
// happened.
type waiterSet struct {
	mu     sync.Mutex
	closed bool
	chans  []chan struct{}
}

// Registry is a per-exact-key wait/notify registry. A waiter registers for a
// key and suspends on the returned channel until the key is next written;
// the write side notifies by key. Each registration receives at most one
// notification, and only for a write that happened after the registration
// completed.
type Registry struct {
	waiters *xsync.MapOf[string, *waiterSet]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		waiters: xsync.NewMapOf[string, *waiterSet](),
	}
}

// Register adds a waiter for key and returns the channel that will be closed
// by the next Notify for that exact key. A write that completed before
// Register returns is never retroactively delivered.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (r *Registry) Register(key []byte) <-chan struct{} {
	ch := make(chan struct{})
	k := string(key)

	for {
		s, _ := r.waiters.LoadOrStore(k, &waiterSet{})

		s.mu.Lock()
		if s.closed {
			// Lost the race against a concurrent Notify, the set is dead.
			s.mu.Unlock()
			continue
		}
		s.chans = append(s.chans, ch)
		s.mu.Unlock()
		return ch
	}
}

// Notify wakes and removes every waiter currently registered for exactly
// key. Keys are matched byte for byte, never by prefix. Notifying a key
// without waiters is a no-op.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (r *Registry) Notify(key []byte) {
	s, ok := r.waiters.LoadAndDelete(string(key))
	if !ok {
		return
	}

	s.mu.Lock()
	s.closed = true
	for _, ch := range s.chans {
		close(ch)
	}
	s.chans = nil
	s.mu.Unlock()
}

// Pending reports the number of keys that currently have at least one
// registered waiter. For observability and tests only.
func (r *Registry) Pending() int {
	return r.waiters.Size()
}
