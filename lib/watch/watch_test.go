package watch

import (
	"sync"
	"testing"
	"time"
)

func fired(ch <-chan struct{}, window time.Duration) bool {
	select {
	case <-ch:
		return true
	case <-time.After(window):
		return false
	}
}

func TestRegisterNotify(t *testing.T) {
	r := NewRegistry()

	ch := r.Register([]byte("k"))
	r.Notify([]byte("k"))

	if !fired(ch, time.Second) {
		t.Errorf("waiter was not notified")
	}
	if r.Pending() != 0 {
		t.Errorf("expected empty registry after notify, got %d pending keys", r.Pending())
	}
}

func TestExactKeyMatch(t *testing.T) {
	r := NewRegistry()

	ch := r.Register([]byte("key"))
	r.Notify([]byte("key2"))
	r.Notify([]byte("ke"))

	if fired(ch, 50*time.Millisecond) {
		t.Errorf("waiter woken by a different key")
	}
}

func TestAtMostOneNotification(t *testing.T) {
	r := NewRegistry()

	ch := r.Register([]byte("k"))
	r.Notify([]byte("k"))
	<-ch

	// A second write must not wake the spent registration again; it simply
	// stays closed, and a fresh registration is required to observe it.
	r.Notify([]byte("k"))

	fresh := r.Register([]byte("k"))
	if fired(fresh, 50*time.Millisecond) {
		t.Errorf("registration observed a write that happened before it")
	}
	r.Notify([]byte("k"))
	if !fired(fresh, time.Second) {
		t.Errorf("fresh registration missed the following write")
	}
}

func TestNotifyWithoutWaiters(t *testing.T) {
	r := NewRegistry()
	r.Notify([]byte("nobody-home")) // must not panic or leak
	if r.Pending() != 0 {
		t.Errorf("expected empty registry, got %d pending keys", r.Pending())
	}
}

func TestMultipleWaitersOneWrite(t *testing.T) {
	r := NewRegistry()

	const n = 10
	chans := make([]<-chan struct{}, n)
	for i := range chans {
		chans[i] = r.Register([]byte("k"))
	}

	r.Notify([]byte("k"))
	for i, ch := range chans {
		if !fired(ch, time.Second) {
			t.Errorf("waiter %d was not notified", i)
		}
	}
}

func TestConcurrentRegisterNotify(t *testing.T) {
	r := NewRegistry()
	key := []byte("contended")

	// Hammer the register/notify race: every registered waiter must be woken
	// by some later notify, and the registry must end up empty after a final
	// sweep.
	var wg sync.WaitGroup
	const rounds = 200

	woken := make(chan struct{}, rounds)
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ch := r.Register(key)
			<-ch
			woken <- struct{}{}
		}()
		go func() {
			defer wg.Done()
			r.Notify(key)
		}()
	}

	// Waiters registered after the last concurrent notify may still be
	// pending; sweep until everyone is through.
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		select {
		case <-done:
			if len(woken) > rounds {
				t.Errorf("more wakeups than registrations")
			}
			return
		case <-time.After(5 * time.Millisecond):
			r.Notify(key)
		}
	}
}
