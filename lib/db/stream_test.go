package db_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ValentinKolb/sKV/lib/db"
)

func seededMap(t *testing.T, keys ...string) (*db.Database, *db.Map) {
	t.Helper()
	d := mustOpen(t, db.DefaultConfig(t.TempDir(), "events"))
	t.Cleanup(func() { _ = d.Close() })

	m, err := d.Get("events")
	if err != nil {
		t.Fatalf("get map failed: %v", err)
	}
	for _, k := range keys {
		if err := m.Insert(context.Background(), []byte(k), []byte("v-"+k)); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}
	return d, m
}

// A constructed stream performs no engine work: closing it unpulled is free
// and writes that land before the first pull are still observed.
func TestStreamLaziness(t *testing.T) {
	ctx := context.Background()
	_, m := seededMap(t)

	s := m.Keys()
	if err := m.Insert(ctx, []byte("written-after-construction"), []byte("v")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	if !s.Next(ctx) {
		t.Fatalf("expected the pre-pull write to be visible")
	}
	if got := string(s.Key()); got != "written-after-construction" {
		t.Errorf("unexpected key %q", got)
	}
	_ = s.Close()

	// Closing a never-pulled stream must be a no-op.
	if err := m.Entries().Close(); err != nil {
		t.Errorf("closing an unpulled stream failed: %v", err)
	}
}

// A stream pins the view it started with; writes after the first pull are
// not guaranteed visible, but must never corrupt iteration. With the engine's
// snapshot iterators they are simply invisible.
func TestStreamStableView(t *testing.T) {
	ctx := context.Background()
	_, m := seededMap(t, "a", "b")

	s := m.Keys()
	defer s.Close()

	if !s.Next(ctx) || string(s.Key()) != "a" {
		t.Fatalf("expected first key a, got %q", s.Key())
	}
	if err := m.Insert(ctx, []byte("aa"), []byte("v")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	var rest []string
	for s.Next(ctx) {
		rest = append(rest, string(s.Key()))
	}
	if len(rest) != 1 || rest[0] != "b" {
		t.Errorf("expected the stream to keep its initial view [b], got %v", rest)
	}
}

func TestStreamCancellation(t *testing.T) {
	_, m := seededMap(t, "a", "b", "c")

	ctx, cancel := context.WithCancel(context.Background())
	s := m.Keys()
	defer s.Close()

	if !s.Next(ctx) {
		t.Fatalf("expected the first pull to succeed")
	}
	cancel()

	if s.Next(ctx) {
		t.Fatalf("expected pull after cancellation to fail")
	}
	if !errors.Is(s.Err(), context.Canceled) {
		t.Errorf("expected context.Canceled in Err, got %v", s.Err())
	}

	// A failed stream stays dead, even with a live context.
	if s.Next(context.Background()) {
		t.Errorf("failed stream yielded again")
	}
}

// A pull abandoned mid-dispatch (context canceled while the worker is still
// advancing) leaves the worker to finish on its own. Reading the current
// entry and tearing the stream down right afterwards must be safe: the
// worker owns the iterator until its advance completes, and close waits for
// it instead of pulling the iterator out from under it.
func TestStreamCancelDuringPull(t *testing.T) {
	d := mustOpen(t, db.DefaultConfig(t.TempDir(), "events"))
	defer d.Close()
	m, _ := d.Get("events")

	for i := 0; i < 500; i++ {
		if err := m.Insert(context.Background(), []byte(fmt.Sprintf("key-%04d", i)), []byte("v")); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	for round := 0; round < 1000; round++ {
		ctx, cancel := context.WithCancel(context.Background())
		s := m.Keys()

		go cancel()
		for s.Next(ctx) {
			_ = s.Key()
		}
		_ = s.Key()

		if err := s.Close(); err != nil {
			t.Fatalf("close after abandoned pull failed: %v", err)
		}
		if s.Err() != nil && !errors.Is(s.Err(), context.Canceled) {
			t.Fatalf("unexpected stream error: %v", s.Err())
		}
		cancel()
	}
}

func TestStreamValues(t *testing.T) {
	ctx := context.Background()
	_, m := seededMap(t, "k1", "k2")

	s := m.Entries()
	defer s.Close()

	for s.Next(ctx) {
		want := []byte("v-" + string(s.Key()))
		if !bytes.Equal(s.Value(), want) {
			t.Errorf("expected value %q for key %q, got %q", want, s.Key(), s.Value())
		}
	}
	if s.Err() != nil {
		t.Fatalf("stream failed: %v", s.Err())
	}
}

// Keys containing the prefix-successor edge cases: 0xff runs must not break
// prefix or from-key bounds.
func TestStreamBinaryKeys(t *testing.T) {
	ctx := context.Background()
	d := mustOpen(t, db.DefaultConfig(t.TempDir(), "events"))
	defer d.Close()
	m, _ := d.Get("events")

	keys := [][]byte{
		{0x00},
		{0x00, 0x00},
		{0xff},
		{0xff, 0x00},
		{0xff, 0xff},
		{0xff, 0xff, 0x01},
	}
	for _, k := range keys {
		if err := m.Insert(ctx, k, []byte("v")); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	collect := func(s *db.KeyStream) [][]byte {
		defer s.Close()
		var out [][]byte
		for s.Next(ctx) {
			out = append(out, append([]byte(nil), s.Key()...))
		}
		if s.Err() != nil {
			t.Fatalf("stream failed: %v", s.Err())
		}
		return out
	}

	if got := collect(m.Keys()); len(got) != len(keys) {
		t.Fatalf("expected %d keys, got %d", len(keys), len(got))
	}

	// All-0xff prefix: the exclusive upper bound still exists because the
	// carry lands in the keyspace prefix.
	got := collect(m.KeysPrefix([]byte{0xff, 0xff}))
	if len(got) != 2 || !bytes.Equal(got[0], []byte{0xff, 0xff}) || !bytes.Equal(got[1], []byte{0xff, 0xff, 0x01}) {
		t.Errorf("unexpected 0xff-prefix result: %v", got)
	}

	// Reverse-from an all-0xff key is inclusive.
	got = collect(m.ReverseKeysFrom([]byte{0xff, 0xff}))
	if len(got) != 5 || !bytes.Equal(got[0], []byte{0xff, 0xff}) {
		t.Errorf("unexpected reverse-from result: %v", got)
	}

	// The empty prefix spans the whole keyspace.
	if got := collect(m.KeysPrefix(nil)); len(got) != len(keys) {
		t.Errorf("expected the empty prefix to match everything, got %d keys", len(got))
	}
}

func TestConcurrentStreams(t *testing.T) {
	ctx := context.Background()
	d := mustOpen(t, db.DefaultConfig(t.TempDir(), "events"))
	defer d.Close()
	m, _ := d.Get("events")

	const n = 100
	for i := 0; i < n; i++ {
		if err := m.Insert(ctx, []byte(fmt.Sprintf("key-%03d", i)), []byte("v")); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	// Several independent streams over the same map, interleaved pulls.
	fwd := m.Keys()
	rev := m.ReverseKeys()
	defer fwd.Close()
	defer rev.Close()

	for i := 0; i < n; i++ {
		if !fwd.Next(ctx) || !rev.Next(ctx) {
			t.Fatalf("stream ended early at %d", i)
		}
		wantFwd := fmt.Sprintf("key-%03d", i)
		wantRev := fmt.Sprintf("key-%03d", n-1-i)
		if string(fwd.Key()) != wantFwd {
			t.Errorf("forward stream at %d: expected %q, got %q", i, wantFwd, fwd.Key())
		}
		if string(rev.Key()) != wantRev {
			t.Errorf("reverse stream at %d: expected %q, got %q", i, wantRev, rev.Key())
		}
	}
	if fwd.Next(ctx) || rev.Next(ctx) {
		t.Errorf("expected both streams exhausted")
	}
}
