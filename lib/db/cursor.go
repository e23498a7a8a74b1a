package db

import (
	"context"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/ValentinKolb/sKV/lib/db/util"
	"github.com/ValentinKolb/sKV/lib/pool"
)

// --------------------------------------------------------------------------
// Direction
// --------------------------------------------------------------------------

type direction int8

const (
	forward direction = iota
	reverse
)

// --------------------------------------------------------------------------
// Cursor
// --------------------------------------------------------------------------

// cursor is the single iteration engine all stream adapters are derived
// from. It is parameterized by direction, byte bounds and projection, so the
// adapter combinations never duplicate positioning logic.
//
// The first step performs the initial positioning (first or last key within
// the bounds, depending on direction); every later step moves the native
// iterator one entry. Construction costs nothing: no engine call happens
// before the first step. Once a positioning attempt finds no valid entry the
// cursor is exhausted for good and never advances again.
//
// Every step is one pool dispatch; the blocking engine work never runs on
// the calling goroutine. A caller abandoning a step (context canceled while
// the worker is still advancing) does not stop the worker, so the cursor
// state is split by owner: the engine-side fields below mu are touched only
// under mu - by the dispatch on the worker and by close - while the
// caller-side fields are written exclusively by the pulling goroutine.
type cursor struct {
	m       *Map
	dir     direction
	opts    pebble.IterOptions
	withVal bool

	// Engine-side state. mu serializes close against a dispatch whose
	// awaiting caller gave up; the native iterator is never touched outside
	// of it.
	mu     sync.Mutex
	iter   *pebble.Iterator
	init   bool // has the initial positioning happened
	closed bool

	// Caller-side state, written only by the pulling goroutine.
	done bool // exhausted, failed or closed
	err  error

	// Current entry, assigned from a completed dispatch result. The slices
	// alias the iterator's internal buffer and are invalidated by the next
	// advance (single-outstanding-item rule).
	key []byte
	val []byte
}

// stepEntry carries the entry under the cursor out of one dispatch.
type stepEntry struct {
	key   []byte
	val   []byte
	valid bool
}

func (m *Map) newCursor(dir direction, lower, upper []byte, withVal bool) *cursor {
	m.opStream.Inc()
	return &cursor{
		m:       m,
		dir:     dir,
		withVal: withVal,
		opts: pebble.IterOptions{
			LowerBound: lower,
			UpperBound: upper,
		},
	}
}

// step performs exactly one advance and one fetch on a pool worker and
// reports whether the cursor is positioned at a live entry afterwards. An
// abandoned step (error return from the dispatch) leaves no current entry;
// the worker finishes its advance on its own and only ever touches the
// engine-side state.
func (c *cursor) step(ctx context.Context) bool {
	if c.done {
		return false
	}

	res, err := pool.Execute(ctx, c.m.e.pool, c.advance)
	if err != nil {
		c.err = dispatchErr(err)
		c.done = true
		c.key, c.val = nil, nil
		return false
	}
	if !res.valid {
		c.done = true
		c.key, c.val = nil, nil
		return false
	}
	c.key, c.val = res.key, res.val
	return true
}

// advance runs on a pool worker. It opens the native iterator lazily,
// performs the initial positioning on the first call and a single
// directional move on every later call, then returns the current entry.
func (c *cursor) advance() (stepEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A dispatch can still run after the cursor was closed when its caller
	// gave up waiting and tore the stream down; there is nothing left to do.
	if c.closed {
		return stepEntry{}, nil
	}

	if c.iter == nil {
		iter, err := c.m.e.db.NewIter(&c.opts)
		if err != nil {
			return stepEntry{}, WrapError(RetCIoError, "failed to open iterator", err)
		}
		c.iter = iter
	}

	var valid bool
	switch {
	case !c.init && c.dir == forward:
		valid = c.iter.First()
	case !c.init && c.dir == reverse:
		valid = c.iter.Last()
	case c.dir == forward:
		valid = c.iter.Next()
	default:
		valid = c.iter.Prev()
	}
	c.init = true

	if !valid {
		if err := c.iter.Error(); err != nil {
			return stepEntry{}, WrapError(RetCIoError, "iterator step failed", err)
		}
		return stepEntry{}, nil
	}

	entry := stepEntry{key: c.m.ks.trim(c.iter.Key()), valid: true}
	if c.withVal {
		entry.val = c.iter.Value()
	}
	return entry, nil
}

// close releases the native iterator. Safe to call multiple times and on a
// never-stepped cursor; it waits for an in-flight abandoned advance before
// closing the iterator out from under it.
func (c *cursor) close() error {
	c.done = true
	c.key, c.val = nil, nil

	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.iter == nil {
		return nil
	}
	iter := c.iter
	c.iter = nil
	if err := iter.Close(); err != nil {
		return WrapError(RetCIoError, "failed to close iterator", err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Bound shapes
// --------------------------------------------------------------------------

// boundsAll covers the whole keyspace.
func (m *Map) boundsAll() (lower, upper []byte) {
	return m.ks.lower, m.ks.upper
}

// boundsFrom restricts iteration to "everything from key from" in the given
// direction: forward cursors see keys >= from, reverse cursors keys <= from.
func (m *Map) boundsFrom(dir direction, from []byte) (lower, upper []byte) {
	if dir == forward {
		return m.ks.wrap(from), m.ks.upper
	}
	return m.ks.lower, util.ImmediateSuccessor(m.ks.wrap(from))
}

// boundsPrefix restricts iteration to keys carrying the given prefix. The
// wrapped prefix starts with the keyspace id, so a successor always exists.
func (m *Map) boundsPrefix(prefix []byte) (lower, upper []byte) {
	wrapped := m.ks.wrap(prefix)
	return wrapped, util.PrefixSuccessor(wrapped)
}
