package db

import "context"

// --------------------------------------------------------------------------
// Stream adapters
// --------------------------------------------------------------------------

// Stream is a lazy, single-pass pull sequence of key-value pairs over one
// Map, in strict key order for its direction. It performs no engine call
// before the first Next; once Next has returned false it never yields again
// (a new stream must be constructed to iterate anew).
//
// Borrow-lifetime discipline: the slices returned by Key and Value alias the
// engine iterator's internal buffer and are valid only until the next call
// to Next or Close. Callers must fully consume (or copy out) the current
// entry before pulling the next one. Filtering, mapping, limiting and
// collecting are deliberately left to the caller.
type Stream struct {
	cur *cursor
}

// Next advances to the next entry. It returns false when the stream is
// exhausted, failed or canceled; inspect Err to distinguish.
func (s *Stream) Next(ctx context.Context) bool {
	return s.cur.step(ctx)
}

// Key returns the key of the current entry. Valid only until the next call
// to Next or Close.
func (s *Stream) Key() []byte {
	return s.cur.key
}

// Value returns the value of the current entry. Valid only until the next
// call to Next or Close.
func (s *Stream) Value() []byte {
	return s.cur.val
}

// Err returns the first error the stream encountered, if any. Exhaustion is
// not an error.
func (s *Stream) Err() error {
	return s.cur.err
}

// Close releases the stream's engine resources. A constructed but never
// pulled stream holds none.
func (s *Stream) Close() error {
	return s.cur.close()
}

// KeyStream is a Stream that projects keys only; values are never fetched
// from the engine. Same laziness, ordering and borrow rules as Stream.
type KeyStream struct {
	cur *cursor
}

// Next advances to the next entry. It returns false when the stream is
// exhausted, failed or canceled; inspect Err to distinguish.
func (s *KeyStream) Next(ctx context.Context) bool {
	return s.cur.step(ctx)
}

// Key returns the current key. Valid only until the next call to Next or
// Close.
func (s *KeyStream) Key() []byte {
	return s.cur.key
}

// Err returns the first error the stream encountered, if any.
func (s *KeyStream) Err() error {
	return s.cur.err
}

// Close releases the stream's engine resources.
func (s *KeyStream) Close() error {
	return s.cur.close()
}

// --------------------------------------------------------------------------
// Map entry points: entries
// --------------------------------------------------------------------------

// Entries streams all key-value pairs in ascending key order.
func (m *Map) Entries() *Stream {
	lower, upper := m.boundsAll()
	return &Stream{cur: m.newCursor(forward, lower, upper, true)}
}

// EntriesFrom streams key-value pairs in ascending order, starting at the
// first key >= from.
func (m *Map) EntriesFrom(from []byte) *Stream {
	lower, upper := m.boundsFrom(forward, from)
	return &Stream{cur: m.newCursor(forward, lower, upper, true)}
}

// EntriesPrefix streams key-value pairs whose key carries the given prefix,
// in ascending order.
func (m *Map) EntriesPrefix(prefix []byte) *Stream {
	lower, upper := m.boundsPrefix(prefix)
	return &Stream{cur: m.newCursor(forward, lower, upper, true)}
}

// ReverseEntries streams all key-value pairs in descending key order.
func (m *Map) ReverseEntries() *Stream {
	lower, upper := m.boundsAll()
	return &Stream{cur: m.newCursor(reverse, lower, upper, true)}
}

// ReverseEntriesFrom streams key-value pairs in descending order, starting
// at the first key <= from.
func (m *Map) ReverseEntriesFrom(from []byte) *Stream {
	lower, upper := m.boundsFrom(reverse, from)
	return &Stream{cur: m.newCursor(reverse, lower, upper, true)}
}

// ReverseEntriesPrefix streams key-value pairs whose key carries the given
// prefix, in descending order.
func (m *Map) ReverseEntriesPrefix(prefix []byte) *Stream {
	lower, upper := m.boundsPrefix(prefix)
	return &Stream{cur: m.newCursor(reverse, lower, upper, true)}
}

// --------------------------------------------------------------------------
// Map entry points: keys only
// --------------------------------------------------------------------------

// Keys streams all keys in ascending order.
func (m *Map) Keys() *KeyStream {
	lower, upper := m.boundsAll()
	return &KeyStream{cur: m.newCursor(forward, lower, upper, false)}
}

// KeysFrom streams keys in ascending order, starting at the first key >=
// from.
func (m *Map) KeysFrom(from []byte) *KeyStream {
	lower, upper := m.boundsFrom(forward, from)
	return &KeyStream{cur: m.newCursor(forward, lower, upper, false)}
}

// KeysPrefix streams keys carrying the given prefix, in ascending order.
func (m *Map) KeysPrefix(prefix []byte) *KeyStream {
	lower, upper := m.boundsPrefix(prefix)
	return &KeyStream{cur: m.newCursor(forward, lower, upper, false)}
}

// ReverseKeys streams all keys in descending order.
func (m *Map) ReverseKeys() *KeyStream {
	lower, upper := m.boundsAll()
	return &KeyStream{cur: m.newCursor(reverse, lower, upper, false)}
}

// ReverseKeysFrom streams keys in descending order, starting at the first
// key <= from.
func (m *Map) ReverseKeysFrom(from []byte) *KeyStream {
	lower, upper := m.boundsFrom(reverse, from)
	return &KeyStream{cur: m.newCursor(reverse, lower, upper, false)}
}

// ReverseKeysPrefix streams keys carrying the given prefix, in descending
// order.
func (m *Map) ReverseKeysPrefix(prefix []byte) *KeyStream {
	lower, upper := m.boundsPrefix(prefix)
	return &KeyStream{cur: m.newCursor(reverse, lower, upper, false)}
}
