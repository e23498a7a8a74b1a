package util

import (
	"bytes"
	"testing"
)

func TestPrefixSuccessor(t *testing.T) {
	cases := []struct {
		in   []byte
		want []byte
	}{
		{[]byte("abc"), []byte("abd")},
		{[]byte{0x01}, []byte{0x02}},
		{[]byte{0x01, 0xFF}, []byte{0x02}},
		{[]byte{0x01, 0xFF, 0xFF}, []byte{0x02}},
		{[]byte{0xFF}, nil},
		{[]byte{0xFF, 0xFF}, nil},
		{nil, nil},
	}
	for _, c := range cases {
		if got := PrefixSuccessor(c.in); !bytes.Equal(got, c.want) {
			t.Errorf("PrefixSuccessor(%x): expected %x, got %x", c.in, c.want, got)
		}
	}

	// The result must be a fresh slice, never aliasing the input.
	in := []byte{0x01, 0x02}
	out := PrefixSuccessor(in)
	out[0] = 0x99
	if in[0] != 0x01 {
		t.Errorf("PrefixSuccessor mutated its input")
	}
}

func TestImmediateSuccessor(t *testing.T) {
	if got := ImmediateSuccessor([]byte("a")); !bytes.Equal(got, []byte{'a', 0x00}) {
		t.Errorf("expected a\\x00, got %x", got)
	}
	if got := ImmediateSuccessor(nil); !bytes.Equal(got, []byte{0x00}) {
		t.Errorf("expected a single zero byte, got %x", got)
	}

	// Strictly greater than the key, not greater than its extensions.
	key := []byte{0xFF, 0xFF}
	succ := ImmediateSuccessor(key)
	if bytes.Compare(succ, key) <= 0 {
		t.Errorf("successor %x not greater than key %x", succ, key)
	}
	if ext := []byte{0xFF, 0xFF, 0x01}; bytes.Compare(succ, ext) >= 0 {
		t.Errorf("successor %x must sort below the extension %x", succ, ext)
	}
}

func TestConcat(t *testing.T) {
	got := Concat([]byte("ab"), nil, []byte("c"))
	if !bytes.Equal(got, []byte("abc")) {
		t.Errorf("expected abc, got %q", got)
	}

	a, b := []byte("xy"), []byte("z")
	out := Concat(a, b)
	out[0] = '!'
	if a[0] != 'x' {
		t.Errorf("Concat aliased its input")
	}
}
