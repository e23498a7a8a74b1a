package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/VictoriaMetrics/metrics"

	"github.com/ValentinKolb/sKV/lib/pool"
	"github.com/ValentinKolb/sKV/lib/watch"
)

// --------------------------------------------------------------------------
// Map
// --------------------------------------------------------------------------

// Map is the handle to one named keyspace. It bundles the engine reference,
// the keyspace handle, a watch registry and per-operation metrics counters
// computed once at open. Maps are created during Open, never recreated, and
// destroyed with the Database.
//
// Thread-safety: all methods are thread-safe; a Map is shared across
// unboundedly many concurrent streams and point operations.
type Map struct {
	name  string
	e     *engine
	ks    *keyspace
	watch *watch.Registry

	opGet      *metrics.Counter
	opInsert   *metrics.Counter
	opRemove   *metrics.Counter
	opContains *metrics.Counter
	opCount    *metrics.Counter
	opStream   *metrics.Counter
}

// openMap binds to an existing keyspace of the engine. Fails with NotFound
// if the engine has no such keyspace.
func openMap(e *engine, name string) (*Map, error) {
	ks, ok := e.keyspaces[name]
	if !ok {
		return nil, NewError(RetCNotFound, fmt.Sprintf("keyspace %q not found", name))
	}

	counter := func(op string) *metrics.Counter {
		return metrics.GetOrCreateCounter(fmt.Sprintf(`skv_map_ops_total{map=%q,op=%q}`, name, op))
	}

	return &Map{
		name:       name,
		e:          e,
		ks:         ks,
		watch:      watch.NewRegistry(),
		opGet:      counter("get"),
		opInsert:   counter("insert"),
		opRemove:   counter("remove"),
		opContains: counter("contains"),
		opCount:    counter("count"),
		opStream:   counter("stream"),
	}, nil
}

// Name returns the stable, process-lifetime name of the keyspace.
func (m *Map) Name() string {
	return m.name
}

// dispatchErr normalizes errors coming back from a pool round trip. A
// recovered worker panic surfaces as a PoolPanic error; a dispatch rejected
// because the pool is closed surfaces as an IoError; context errors pass
// through untouched so callers can match on them.
func dispatchErr(err error) error {
	if err == nil {
		return nil
	}
	var pe *pool.PanicError
	if errors.As(err, &pe) {
		return WrapError(RetCPoolPanic, "storage dispatch panicked", pe)
	}
	if errors.Is(err, pool.ErrClosed) {
		return WrapError(RetCIoError, "database closed", err)
	}
	return err
}

// --------------------------------------------------------------------------
// Point Operations (each one pool dispatch, never inline on the caller)
// --------------------------------------------------------------------------

// Get retrieves the value for an exact key. The boolean return value
// indicates whether a value for the key was found. The returned value is a
// copy of the stored data and therefore safe to retain and modify.
func (m *Map) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	m.opGet.Inc()

	type getResult struct {
		val []byte
		ok  bool
	}
	res, err := pool.Execute(ctx, m.e.pool, func() (getResult, error) {
		val, ok, err := m.e.get(m.ks, key)
		return getResult{val: val, ok: ok}, err
	})
	if err != nil {
		return nil, false, dispatchErr(err)
	}
	return res.val, res.ok, nil
}

// Insert stores a key-value pair, overwriting any previous value, and wakes
// all watchers of the key once the write is applied. Inserting the same
// pair twice notifies once per call.
func (m *Map) Insert(ctx context.Context, key, value []byte) error {
	m.opInsert.Inc()

	// The notification fires on the worker, after the write applied. A
	// caller abandoning the await does not suppress it: the write still
	// happened, so waiters must still learn about it.
	_, err := pool.Execute(ctx, m.e.pool, func() (struct{}, error) {
		if err := m.e.put(m.ks, key, value); err != nil {
			return struct{}{}, err
		}
		m.watch.Notify(key)
		return struct{}{}, nil
	})
	return dispatchErr(err)
}

// Remove deletes a key-value pair and wakes all watchers of the key.
// Removing an absent key is a no-op: no error, no notification.
func (m *Map) Remove(ctx context.Context, key []byte) error {
	m.opRemove.Inc()

	_, err := pool.Execute(ctx, m.e.pool, func() (struct{}, error) {
		existed, err := m.e.contains(m.ks, key)
		if err != nil {
			return struct{}{}, err
		}
		if !existed {
			return struct{}{}, nil
		}
		if err := m.e.delete(m.ks, key); err != nil {
			return struct{}{}, err
		}
		m.watch.Notify(key)
		return struct{}{}, nil
	})
	return dispatchErr(err)
}

// Contains reports whether a key exists in the keyspace.
func (m *Map) Contains(ctx context.Context, key []byte) (bool, error) {
	m.opContains.Inc()

	ok, err := pool.Execute(ctx, m.e.pool, func() (bool, error) {
		return m.e.contains(m.ks, key)
	})
	if err != nil {
		return false, dispatchErr(err)
	}
	return ok, nil
}

// Count returns the number of live keys in the keyspace. This sweeps the
// keyspace in a single dispatch; prefer Property for cheap size estimates.
func (m *Map) Count(ctx context.Context) (uint64, error) {
	m.opCount.Inc()

	n, err := pool.Execute(ctx, m.e.pool, func() (uint64, error) {
		return m.e.count(m.ks)
	})
	if err != nil {
		return 0, dispatchErr(err)
	}
	return n, nil
}

// --------------------------------------------------------------------------
// Watch
// --------------------------------------------------------------------------

// Watch registers for the next write to exactly key. The returned channel
// is closed the first time, after registration, that the key is inserted,
// updated or removed through any operation on this Map. A write that
// completed before Watch returned is never retroactively delivered.
func (m *Map) Watch(key []byte) <-chan struct{} {
	return m.watch.Register(key)
}

// WaitFor blocks until key is next written or ctx is done.
func (m *Map) WaitFor(ctx context.Context, key []byte) error {
	select {
	case <-m.Watch(key):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// --------------------------------------------------------------------------
// Cork
// --------------------------------------------------------------------------

// Cork returns a new write batch with this Map as its default target.
func (m *Map) Cork() *Cork {
	return newCork(m.e, m)
}

// --------------------------------------------------------------------------
// Introspection (observability only)
// --------------------------------------------------------------------------

// Property returns a named engine property for this keyspace as a string.
// Supported names: "disk-usage" (estimated on-disk size in bytes) and
// "metrics" (the engine's full metrics report).
func (m *Map) Property(name string) (string, error) {
	switch name {
	case "disk-usage":
		size, err := m.e.diskUsage(m.ks)
		if err != nil {
			return "", err
		}
		return strconv.FormatUint(size, 10), nil
	case "metrics":
		return m.e.metricsString(), nil
	default:
		return "", NewError(RetCNotFound, fmt.Sprintf("unknown property %q", name))
	}
}

// PropertyInteger returns a named integer engine property for this
// keyspace. Supported names: "disk-usage".
func (m *Map) PropertyInteger(name string) (uint64, error) {
	switch name {
	case "disk-usage":
		return m.e.diskUsage(m.ks)
	default:
		return 0, NewError(RetCNotFound, fmt.Sprintf("unknown property %q", name))
	}
}
