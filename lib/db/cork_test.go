package db_test

import (
	"context"
	"testing"

	"github.com/ValentinKolb/sKV/lib/db"
)

func TestCorkBuffersAreCopies(t *testing.T) {
	ctx := context.Background()
	_, m := seededMap(t)

	key := []byte("k")
	value := []byte("original")

	cork := m.Cork().Put(key, value)

	// Mutating the caller's slices after buffering must not leak into the
	// committed data.
	key[0] = 'X'
	copy(value, []byte("CLOBBERED"))

	if err := cork.Commit(ctx); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	got, ok, err := m.Get(ctx, []byte("k"))
	if err != nil || !ok {
		t.Fatalf("expected committed key, got ok=%v err=%v", ok, err)
	}
	if string(got) != "original" {
		t.Errorf("buffered value aliased the caller's slice: %q", got)
	}
}

func TestCorkLastWriteWins(t *testing.T) {
	ctx := context.Background()
	_, m := seededMap(t)

	err := m.Cork().
		Put([]byte("k"), []byte("first")).
		Put([]byte("k"), []byte("second")).
		Commit(ctx)
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	got, _, _ := m.Get(ctx, []byte("k"))
	if string(got) != "second" {
		t.Errorf("expected buffer order to be preserved, got %q", got)
	}

	// Delete after put inside the same cork removes the key.
	err = m.Cork().
		Put([]byte("k2"), []byte("v")).
		Delete([]byte("k2")).
		Commit(ctx)
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if ok, _ := m.Contains(ctx, []byte("k2")); ok {
		t.Errorf("expected delete-after-put to win")
	}
}

func TestCorkEmptyCommit(t *testing.T) {
	_, m := seededMap(t)

	cork := m.Cork()
	if cork.Len() != 0 {
		t.Fatalf("fresh cork not empty")
	}
	if err := cork.Commit(context.Background()); err != nil {
		t.Errorf("empty commit must succeed, got %v", err)
	}
}

func TestCorkReusePanics(t *testing.T) {
	_, m := seededMap(t)

	cork := m.Cork().Put([]byte("k"), []byte("v"))
	if err := cork.Commit(context.Background()); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Errorf("expected buffering into a spent cork to panic")
		}
	}()
	cork.Put([]byte("k2"), []byte("v"))
}

func TestDatabaseCorkRequiresTarget(t *testing.T) {
	d := mustOpen(t, db.DefaultConfig(t.TempDir(), "events"))
	defer d.Close()

	cork := d.Cork()
	defer func() {
		if recover() == nil {
			t.Errorf("expected Put without a target map to panic on a database-level cork")
		}
	}()
	cork.Put([]byte("k"), []byte("v"))
}
