package db

import (
	"context"

	"github.com/VictoriaMetrics/metrics"

	"github.com/ValentinKolb/sKV/lib/pool"
)

// --------------------------------------------------------------------------
// Cork
// --------------------------------------------------------------------------

// corkOp is one buffered write. Keys and values are copied at buffer time
// so callers may reuse their slices immediately.
type corkOp struct {
	m   *Map
	key []byte
	val []byte
	del bool
}

// Cork buffers put/delete operations against one or more Maps without
// touching the engine. Commit applies the whole batch atomically: either
// every operation takes effect or none does. A Cork that is dropped
// uncommitted simply discards its buffer - no partial or delayed
// application ever occurs.
//
// A Cork is private to its creator and not safe for concurrent use; its
// effects are invisible to every reader until Commit succeeds.
type Cork struct {
	e    *engine
	m    *Map // default target, nil for database-level corks
	ops  []corkOp
	done bool
}

var corksCommitted = metrics.GetOrCreateCounter(`skv_cork_commits_total`)

func newCork(e *engine, m *Map) *Cork {
	return &Cork{e: e, m: m}
}

// Put buffers an insert of key/value into the cork's default Map.
func (c *Cork) Put(key, value []byte) *Cork {
	return c.PutIn(c.m, key, value)
}

// Delete buffers a removal of key from the cork's default Map.
func (c *Cork) Delete(key []byte) *Cork {
	return c.DeleteIn(c.m, key)
}

// PutIn buffers an insert of key/value into the given Map.
func (c *Cork) PutIn(m *Map, key, value []byte) *Cork {
	c.target(m)
	c.ops = append(c.ops, corkOp{
		m:   m,
		key: append([]byte(nil), key...),
		val: append([]byte(nil), value...),
	})
	return c
}

// DeleteIn buffers a removal of key from the given Map.
func (c *Cork) DeleteIn(m *Map, key []byte) *Cork {
	c.target(m)
	c.ops = append(c.ops, corkOp{
		m:   m,
		key: append([]byte(nil), key...),
		del: true,
	})
	return c
}

// target validates that an operation names a usable Map.
func (c *Cork) target(m *Map) {
	if m == nil {
		panic("cork operation without a target map")
	}
	if c.done {
		panic("cork reused after commit or discard")
	}
}

// Len reports the number of buffered operations.
func (c *Cork) Len() int {
	return len(c.ops)
}

// Commit applies the entire buffered batch through the engine's atomic
// batch-write facility, then wakes the watchers of every affected key. A
// WriteError means the engine rejected the batch and no operation took
// effect. A committed cork cannot be reused.
func (c *Cork) Commit(ctx context.Context) error {
	if c.done {
		return NewError(RetCWrite, "cork already committed or discarded")
	}
	if len(c.ops) == 0 {
		c.done = true
		return nil
	}

	_, err := pool.Execute(ctx, c.e.pool, func() (struct{}, error) {
		batch := c.e.db.NewBatch()
		defer func() { _ = batch.Close() }()

		for _, op := range c.ops {
			if op.del {
				_ = batch.Delete(op.m.ks.wrap(op.key), nil)
			} else {
				_ = batch.Set(op.m.ks.wrap(op.key), op.val, nil)
			}
		}
		if err := c.e.apply(batch); err != nil {
			return struct{}{}, err
		}

		// All effects are visible now; notifications follow the write, on
		// the worker, so an abandoned await cannot suppress them.
		for _, op := range c.ops {
			op.m.watch.Notify(op.key)
		}
		return struct{}{}, nil
	})
	if err != nil {
		return dispatchErr(err)
	}

	corksCommitted.Inc()
	c.done = true
	c.ops = nil
	return nil
}

// Discard drops all buffered operations without applying any of them. The
// cork cannot be reused afterwards. Discarding is also the implicit fate of
// any cork that goes out of scope uncommitted.
func (c *Cork) Discard() {
	c.done = true
	c.ops = nil
}
