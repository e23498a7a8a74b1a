// Package watch implements a per-key wait/notify primitive for observing
// the next write to an exact key.
//
// Higher layers use it to block efficiently on a specific row changing
// (e.g. to serve a long-poll read) instead of polling the storage engine.
//
// Guarantees:
//   - A waiter registered before a write to its key is always woken by that
//     write
//   - A write that completed before registration is never retroactively
//     delivered
//   - Each registration is woken at most once; waiting again requires a new
//     registration
//
// Entries are created on Register and removed on the matching Notify;
// otherwise they persist indefinitely. Only the waiter set itself needs
// mutual exclusion - the registry map is a concurrent xsync.MapOf.
package watch
