package db

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/lni/dragonboat/v4/logger"

	"github.com/ValentinKolb/sKV/lib/db/util"
	"github.com/ValentinKolb/sKV/lib/pool"
)

var dlog = logger.GetLogger("db")

// --------------------------------------------------------------------------
// Keyspaces
// --------------------------------------------------------------------------

// The engine backend keeps all data in one ordered byte-key space. Named
// keyspaces are carved out of it with a fixed-width prefix: every key of a
// keyspace starts with the big-endian encoding of its id. Prefixes are
// fixed-width so keyspaces can never shadow each other regardless of key
// content, and every keyspace remains independently ordered.
const keyspacePrefixLen = 4

// metaSpaceID is the reserved keyspace persisting name -> id assignments,
// so a name keeps its prefix across reopens.
const metaSpaceID uint32 = 0

// keyspace is the handle to one named keyspace. Immutable after open.
type keyspace struct {
	name  string
	id    uint32
	lower []byte // inclusive lower bound of the keyspace's key range
	upper []byte // exclusive upper bound of the keyspace's key range
}

func newKeyspace(name string, id uint32) *keyspace {
	lower := make([]byte, keyspacePrefixLen)
	binary.BigEndian.PutUint32(lower, id)
	upper := make([]byte, keyspacePrefixLen)
	binary.BigEndian.PutUint32(upper, id+1)
	return &keyspace{name: name, id: id, lower: lower, upper: upper}
}

// wrap prefixes a caller key with the keyspace id.
func (ks *keyspace) wrap(key []byte) []byte {
	return util.Concat(ks.lower, key)
}

// trim strips the keyspace prefix off an engine key.
func (ks *keyspace) trim(key []byte) []byte {
	return key[keyspacePrefixLen:]
}

// --------------------------------------------------------------------------
// Engine
// --------------------------------------------------------------------------

// engine owns the native storage handle, the keyspace handles, the
// operating mode and the worker pool. Its blocking helper methods below are
// only ever called from pool workers (or during open/close, which are
// allowed to block).
type engine struct {
	db        *pebble.DB
	pool      *pool.Pool
	mode      Mode
	writeOpts *pebble.WriteOptions
	keyspaces map[string]*keyspace
}

// pebbleLogger routes the engine backend's internal logging through the
// shared logger facade.
type pebbleLogger struct {
	log logger.ILogger
}

func (l pebbleLogger) Infof(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}

func (l pebbleLogger) Fatalf(format string, args ...interface{}) {
	l.log.Panicf(format, args...)
}

// openEngine creates or opens the on-disk store, creating any configured
// keyspace absent from a prior open. Corruption, an incompatible on-disk
// version or a permission/IO failure surface as an OpenError.
func openEngine(cfg *Config) (*engine, error) {
	start := time.Now()

	opts := &pebble.Options{
		Cache:        pebble.NewCache(int64(cfg.CacheSizeMB) << 20),
		MemTableSize: uint64(cfg.MemTableSizeMB) << 20,
		ReadOnly:     cfg.Mode != ModeReadWrite,
		Logger:       pebbleLogger{dlog},
	}
	// Open takes its own reference on the cache.
	defer opts.Cache.Unref()

	pdb, err := pebble.Open(cfg.Path, opts)
	if err != nil {
		return nil, WrapError(RetCOpenError, fmt.Sprintf("failed to open store at %q", cfg.Path), err)
	}

	writeOpts := pebble.NoSync
	if cfg.SyncWrites {
		writeOpts = pebble.Sync
	}

	e := &engine{
		db:        pdb,
		pool:      pool.New(cfg.PoolWorkers, cfg.PoolQueueSize),
		mode:      cfg.Mode,
		writeOpts: writeOpts,
	}

	if err := e.loadKeyspaces(cfg.Maps); err != nil {
		e.pool.Close()
		_ = pdb.Close()
		return nil, err
	}

	dlog.Infof("opened database at %q (%d keyspaces, mode %s, took %v)",
		cfg.Path, len(e.keyspaces), e.mode, time.Since(start))
	return e, nil
}

// loadKeyspaces reads the persisted name -> id assignments from the meta
// space and assigns fresh ids to configured names not seen before. New
// assignments are written back in one atomic batch.
func (e *engine) loadKeyspaces(names []string) error {
	meta := newKeyspace("", metaSpaceID)

	iter, err := e.db.NewIter(&pebble.IterOptions{
		LowerBound: meta.lower,
		UpperBound: meta.upper,
	})
	if err != nil {
		return WrapError(RetCOpenError, "failed to read keyspace registry", err)
	}

	existing := make(map[string]uint32)
	maxID := metaSpaceID
	for valid := iter.First(); valid; valid = iter.Next() {
		name := string(meta.trim(iter.Key()))
		id := binary.BigEndian.Uint32(iter.Value())
		existing[name] = id
		if id > maxID {
			maxID = id
		}
	}
	if err := iter.Close(); err != nil {
		return WrapError(RetCOpenError, "failed to read keyspace registry", err)
	}

	e.keyspaces = make(map[string]*keyspace, len(names))
	batch := e.db.NewBatch()
	defer func() { _ = batch.Close() }()

	created := 0
	for _, name := range names {
		id, ok := existing[name]
		if !ok {
			if e.mode != ModeReadWrite {
				return NewError(RetCOpenError,
					fmt.Sprintf("keyspace %q does not exist and cannot be created in %s mode", name, e.mode))
			}
			maxID++
			id = maxID
			idBuf := make([]byte, keyspacePrefixLen)
			binary.BigEndian.PutUint32(idBuf, id)
			_ = batch.Set(meta.wrap([]byte(name)), idBuf, nil)
			created++
			dlog.Debugf("creating keyspace %q (id %d)", name, id)
		}
		e.keyspaces[name] = newKeyspace(name, id)
	}

	if created > 0 {
		if err := e.db.Apply(batch, e.writeOpts); err != nil {
			return WrapError(RetCOpenError, "failed to persist keyspace registry", err)
		}
	}
	return nil
}

// close releases the pool workers first so no dispatch can reach the store
// afterwards, then closes the store itself.
func (e *engine) close() error {
	e.pool.Close()
	if err := e.db.Close(); err != nil {
		return WrapError(RetCIoError, "failed to close store", err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Blocking point operations (run on pool workers)
// --------------------------------------------------------------------------

// get returns a copy of the value for key. The engine-owned buffer is
// released before returning, so the result is safe to retain.
func (e *engine) get(ks *keyspace, key []byte) ([]byte, bool, error) {
	val, closer, err := e.db.Get(ks.wrap(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, WrapError(RetCIoError, "get failed", err)
	}

	out := make([]byte, len(val))
	copy(out, val)
	if err := closer.Close(); err != nil {
		return nil, false, WrapError(RetCIoError, "get failed", err)
	}
	return out, true, nil
}

func (e *engine) contains(ks *keyspace, key []byte) (bool, error) {
	_, closer, err := e.db.Get(ks.wrap(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, WrapError(RetCIoError, "contains failed", err)
	}
	_ = closer.Close()
	return true, nil
}

func (e *engine) put(ks *keyspace, key, value []byte) error {
	if e.mode != ModeReadWrite {
		return NewError(RetCWrite, fmt.Sprintf("database is %s", e.mode))
	}
	if err := e.db.Set(ks.wrap(key), value, e.writeOpts); err != nil {
		return WrapError(RetCWrite, "put rejected", err)
	}
	return nil
}

func (e *engine) delete(ks *keyspace, key []byte) error {
	if e.mode != ModeReadWrite {
		return NewError(RetCWrite, fmt.Sprintf("database is %s", e.mode))
	}
	if err := e.db.Delete(ks.wrap(key), e.writeOpts); err != nil {
		return WrapError(RetCWrite, "delete rejected", err)
	}
	return nil
}

// count scans the keyspace and counts live keys. The backend keeps no exact
// per-range counter, so this is a full sweep of the keyspace.
func (e *engine) count(ks *keyspace) (uint64, error) {
	iter, err := e.db.NewIter(&pebble.IterOptions{
		LowerBound: ks.lower,
		UpperBound: ks.upper,
	})
	if err != nil {
		return 0, WrapError(RetCIoError, "count failed", err)
	}

	var n uint64
	for valid := iter.First(); valid; valid = iter.Next() {
		n++
	}
	if err := iter.Error(); err != nil {
		_ = iter.Close()
		return 0, WrapError(RetCIoError, "count failed", err)
	}
	if err := iter.Close(); err != nil {
		return 0, WrapError(RetCIoError, "count failed", err)
	}
	return n, nil
}

// apply commits a batch atomically: either every operation takes effect or
// none does.
func (e *engine) apply(batch *pebble.Batch) error {
	if e.mode != ModeReadWrite {
		return NewError(RetCWrite, fmt.Sprintf("database is %s", e.mode))
	}
	if err := e.db.Apply(batch, e.writeOpts); err != nil {
		return WrapError(RetCWrite, "batch commit rejected", err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Introspection (observability only, never used for correctness decisions)
// --------------------------------------------------------------------------

// diskUsage estimates the on-disk size of one keyspace.
func (e *engine) diskUsage(ks *keyspace) (uint64, error) {
	size, err := e.db.EstimateDiskUsage(ks.lower, ks.upper)
	if err != nil {
		return 0, WrapError(RetCIoError, "disk usage estimate failed", err)
	}
	return size, nil
}

// metricsString returns the backend's internal metrics report.
func (e *engine) metricsString() string {
	return e.db.Metrics().String()
}
