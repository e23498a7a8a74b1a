package db

import "fmt"

// --------------------------------------------------------------------------
// Database
// --------------------------------------------------------------------------

// Database is the top-level registry of all opened Maps, keyed by name. It
// owns the engine (and through it the worker pool) for the lifetime of the
// process.
//
// Thread-safety: the Map registry is immutable after Open, so all methods
// are safe for concurrent use without locking.
type Database struct {
	e     *engine
	maps  map[string]*Map
	names []string
}

// Open loads an existing database or creates a new one, opening one Map per
// configured keyspace name. Fails with an OpenError if the engine is
// unusable (corruption, incompatible on-disk version, permission or I/O
// failure).
func Open(cfg *Config) (*Database, error) {
	if cfg == nil || cfg.Path == "" {
		return nil, NewError(RetCOpenError, "no database path configured")
	}
	cfg = cfg.withDefaults()

	e, err := openEngine(cfg)
	if err != nil {
		return nil, err
	}

	d := &Database{
		e:    e,
		maps: make(map[string]*Map, len(cfg.Maps)),
	}
	for _, name := range cfg.Maps {
		m, err := openMap(e, name)
		if err != nil {
			_ = e.close()
			return nil, err
		}
		d.maps[name] = m
		d.names = append(d.names, name)
	}
	return d, nil
}

// Get returns the Map with the given name. Fails with NotFound if no such
// keyspace was configured at Open.
func (d *Database) Get(name string) (*Map, error) {
	m, ok := d.maps[name]
	if !ok {
		return nil, NewError(RetCNotFound, fmt.Sprintf("keyspace %q not found", name))
	}
	return m, nil
}

// Names returns the names of all opened Maps in configuration order.
func (d *Database) Names() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// IsReadOnly reports whether the store rejects writes.
func (d *Database) IsReadOnly() bool {
	return d.e.mode != ModeReadWrite
}

// IsReadReplica reports whether the store was opened as a read replica.
func (d *Database) IsReadReplica() bool {
	return d.e.mode == ModeReadReplica
}

// Cork returns a new write batch without a default Map; operations name
// their target via PutIn/DeleteIn.
func (d *Database) Cork() *Cork {
	return newCork(d.e, nil)
}

// Close releases the worker pool and the on-disk store. In-flight queued
// dispatches are abandoned and uncommitted corks are never flushed - they
// are simply discarded.
func (d *Database) Close() error {
	return d.e.close()
}
