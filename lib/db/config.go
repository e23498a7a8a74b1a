package db

import "runtime"

// --------------------------------------------------------------------------
// Operating Mode
// --------------------------------------------------------------------------

// Mode selects how the engine opens the on-disk store.
type Mode string

const (
	// ModeReadWrite opens the store for reads and writes (the default).
	ModeReadWrite Mode = "read-write"
	// ModeReadOnly opens the store for reads; all writes are rejected.
	ModeReadOnly Mode = "read-only"
	// ModeReadReplica opens the store as a read replica of a primary
	// process. The engine backend has no dedicated secondary-instance
	// support, so the store is opened read-only; the mode is still reported
	// distinctly so callers can route on it.
	ModeReadReplica Mode = "read-replica"
)

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// Config configures a Database during Open.
type Config struct {
	Path string   // Directory of the on-disk store
	Maps []string // Names of the keyspaces to open (created if absent)
	Mode Mode     // Operating mode (empty = read-write)

	PoolWorkers   int // Number of blocking-call workers (0 = number of CPUs)
	PoolQueueSize int // Dispatch queue capacity (0 = 4x workers)

	CacheSizeMB    int  // Block cache size in MB (0 = 64)
	MemTableSizeMB int  // Memtable size in MB (0 = 32)
	SyncWrites     bool // Fsync every write (durable but slow)
}

// DefaultConfig returns a Config with defaults for the given path and
// keyspace names.
func DefaultConfig(path string, maps ...string) *Config {
	return (&Config{Path: path, Maps: maps}).withDefaults()
}

// withDefaults fills zero fields with their defaults and returns the
// receiver for chaining.
func (c *Config) withDefaults() *Config {
	if c.Mode == "" {
		c.Mode = ModeReadWrite
	}
	if c.PoolWorkers <= 0 {
		c.PoolWorkers = runtime.NumCPU()
	}
	if c.PoolQueueSize <= 0 {
		c.PoolQueueSize = 4 * c.PoolWorkers
	}
	if c.CacheSizeMB <= 0 {
		c.CacheSizeMB = 64
	}
	if c.MemTableSizeMB <= 0 {
		c.MemTableSizeMB = 32
	}
	return c
}
