package util

// --------------------------------------------------------------------------
// Key Range Helpers
// --------------------------------------------------------------------------

// PrefixSuccessor returns the smallest byte string that is greater than
// every string carrying prefix as a prefix. It is used as the exclusive
// upper bound of prefix-restricted iterators. Returns nil if no such bound
// exists (empty prefix or all bytes 0xFF).
func PrefixSuccessor(prefix []byte) []byte {
	for i := len(prefix) - 1; i >= 0; i-- {
		if prefix[i] != 0xFF {
			out := make([]byte, i+1)
			copy(out, prefix[:i+1])
			out[i]++
			return out
		}
	}
	return nil
}

// ImmediateSuccessor returns the smallest byte string strictly greater than
// key (key followed by a zero byte). It is used to turn an inclusive key
// into an exclusive upper bound.
func ImmediateSuccessor(key []byte) []byte {
	out := make([]byte, len(key)+1)
	copy(out, key)
	return out
}

// Concat returns a new slice holding the concatenation of its arguments.
func Concat(parts ...[]byte) []byte {
	size := 0
	for _, p := range parts {
		size += len(p)
	}
	out := make([]byte, 0, size)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
