// Package db provides an async-friendly key-value storage facade on top of
// a synchronous, ordered, embedded storage engine. It bridges blocking
// engine calls into goroutine-based callers without stalling unrelated
// work, and gives higher layers ordered iteration, atomic batches and
// per-key change notification over named keyspaces.
//
// The package focuses on:
//   - Named, independently-ordered keyspaces (Maps) within one store,
//     resolved by name from the Database registry
//   - Point operations (Get, Insert, Remove, Contains, Count) that are each
//     dispatched through a bounded worker pool, never executed inline on
//     the calling goroutine
//   - Lazy, single-pass streams over a keyspace in both directions, with
//     three bound shapes (unbounded, from a key, restricted to a prefix)
//     and two projections (full entries, keys only)
//   - A per-key watch primitive for blocking efficiently on the next write
//     to a specific key instead of polling
//   - Corks: buffered write batches applied atomically on commit and
//     discarded wholesale if never committed
//
// Key Components:
//
//   - Database: the top-level registry of all opened Maps, keyed by name.
//     Open loads or creates the on-disk store and opens one Map per
//     configured keyspace; Close tears down the worker pool and the store.
//
//   - Map: the handle to one named keyspace, bundling the engine reference,
//     precomputed write options, per-operation metrics counters and a watch
//     registry. Maps are created during Open and live as long as the
//     Database.
//
//   - Streams: every stream adapter is derived from one shared cursor that
//     is parameterized by direction, bounds and projection, so forward and
//     reverse, bounded and unbounded iteration can never diverge. Streams
//     are lazy (no engine call before the first pull), single-pass, and
//     yield engine-owned buffers valid only until the next pull - see the
//     Stream type for the exact borrow rules.
//
//   - Cork: an ordered buffer of put/delete operations against one or more
//     Maps, committed atomically through the engine's batch-write facility.
//     Readers observe either all of a cork's effects or none of them.
//
// Error Handling:
//
// Every operation returns an explicit error carrying a RetCode: OpenError
// (engine unusable at startup, fatal for Open), NotFound (recoverable,
// commonly mapped to an empty result), IoError (storage failure, never
// silently retried), PoolPanic (a blocking dispatch panicked and was caught
// at the pool boundary) and WriteError (a write or commit rejected by the
// engine). Retry policy is strictly the caller's responsibility.
//
// Concurrency:
//
// A Map is shared, read-mostly state and safe for unboundedly many
// concurrent streams and point operations; write concurrency across
// distinct keys relies on the engine's own concurrency control. A stream
// reflects the keyspace as of its initial positioning and is not guaranteed
// to observe later writes. A Cork is private and unlocked until its commit.
package db
