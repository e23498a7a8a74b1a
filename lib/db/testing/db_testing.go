package testing

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/ValentinKolb/sKV/lib/db"
)

// TestMaps are the keyspace names a factory-built Database must contain.
var TestMaps = []string{"alpha", "beta"}

// DatabaseFactory is a function that creates a fresh Database instance for
// one test. Implementations typically open a store under t.TempDir() with
// the TestMaps keyspaces.
type DatabaseFactory func(t testing.TB) *db.Database

// RunDatabaseTests runs a comprehensive test suite against a factory-built
// Database.
func RunDatabaseTests(t *testing.T, name string, factory DatabaseFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("PointOps", func(t *testing.T) {
			testPointOps(t, factory(t))
		})

		t.Run("Ordering", func(t *testing.T) {
			testOrdering(t, factory(t))
		})

		t.Run("MirrorImage", func(t *testing.T) {
			testMirrorImage(t, factory(t))
		})

		t.Run("FromKey", func(t *testing.T) {
			testFromKey(t, factory(t))
		})

		t.Run("Prefix", func(t *testing.T) {
			testPrefix(t, factory(t))
		})

		t.Run("SinglePass", func(t *testing.T) {
			testSinglePass(t, factory(t))
		})

		t.Run("RemoveAbsent", func(t *testing.T) {
			testRemoveAbsent(t, factory(t))
		})

		t.Run("DoubleInsert", func(t *testing.T) {
			testDoubleInsert(t, factory(t))
		})

		t.Run("Watch", func(t *testing.T) {
			testWatch(t, factory(t))
		})

		t.Run("WatchTwoWaiters", func(t *testing.T) {
			testWatchTwoWaiters(t, factory(t))
		})

		t.Run("Cork", func(t *testing.T) {
			testCork(t, factory(t))
		})

		t.Run("CorkConcurrentVisibility", func(t *testing.T) {
			testCorkConcurrentVisibility(t, factory(t))
		})

		t.Run("CorkDiscard", func(t *testing.T) {
			testCorkDiscard(t, factory(t))
		})

		t.Run("KeyspaceIsolation", func(t *testing.T) {
			testKeyspaceIsolation(t, factory(t))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func openMap(t testing.TB, d *db.Database, name string) *db.Map {
	t.Helper()
	m, err := d.Get(name)
	if err != nil {
		t.Fatalf("expected keyspace %q to exist: %v", name, err)
	}
	return m
}

func mustInsert(t testing.TB, m *db.Map, key, value string) {
	t.Helper()
	if err := m.Insert(context.Background(), []byte(key), []byte(value)); err != nil {
		t.Fatalf("insert of %q failed: %v", key, err)
	}
}

// collectKeys drains a key stream, copying every yielded key out before the
// next pull.
func collectKeys(t testing.TB, s *db.KeyStream) []string {
	t.Helper()
	defer s.Close()

	var out []string
	for s.Next(context.Background()) {
		out = append(out, string(s.Key()))
	}
	if err := s.Err(); err != nil {
		t.Fatalf("key stream failed: %v", err)
	}
	return out
}

// collectEntries drains an entry stream into copied key and value slices.
func collectEntries(t testing.TB, s *db.Stream) (keys, values []string) {
	t.Helper()
	defer s.Close()

	for s.Next(context.Background()) {
		keys = append(keys, string(s.Key()))
		values = append(values, string(s.Value()))
	}
	if err := s.Err(); err != nil {
		t.Fatalf("entry stream failed: %v", err)
	}
	return keys, values
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func reversed(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[len(in)-1-i] = s
	}
	return out
}

// notified reports whether ch fires within the given window.
func notified(ch <-chan struct{}, window time.Duration) bool {
	select {
	case <-ch:
		return true
	case <-time.After(window):
		return false
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPointOps(t *testing.T, d *db.Database) {
	defer d.Close()
	ctx := context.Background()
	m := openMap(t, d, "alpha")

	key := []byte("point-key")
	value1 := []byte("value1")
	value2 := []byte("value2")

	if _, ok, err := m.Get(ctx, key); err != nil || ok {
		t.Errorf("expected absent key, got ok=%v err=%v", ok, err)
	}

	mustInsert(t, m, string(key), string(value1))

	got, ok, err := m.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected key to exist after insert, got ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, value1) {
		t.Errorf("expected value %s, got %s", value1, got)
	}

	// The returned value must be a safe copy.
	got[0] = 'X'
	again, _, _ := m.Get(ctx, key)
	if !bytes.Equal(again, value1) {
		t.Errorf("mutating a returned value corrupted the stored entry")
	}

	mustInsert(t, m, string(key), string(value2))
	got, _, _ = m.Get(ctx, key)
	if !bytes.Equal(got, value2) {
		t.Errorf("expected overwritten value %s, got %s", value2, got)
	}

	if ok, err := m.Contains(ctx, key); err != nil || !ok {
		t.Errorf("expected contains=true, got ok=%v err=%v", ok, err)
	}

	if n, err := m.Count(ctx); err != nil || n != 1 {
		t.Errorf("expected count=1, got n=%d err=%v", n, err)
	}

	if err := m.Remove(ctx, key); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if ok, _ := m.Contains(ctx, key); ok {
		t.Errorf("expected key to be gone after remove")
	}
	if n, _ := m.Count(ctx); n != 0 {
		t.Errorf("expected count=0 after remove, got %d", n)
	}
}

// Scenario from the contract: insert "a", "c", "b" into an empty map.
func testOrdering(t *testing.T, d *db.Database) {
	defer d.Close()
	m := openMap(t, d, "alpha")

	for _, k := range []string{"a", "c", "b"} {
		mustInsert(t, m, k, "v-"+k)
	}

	keys, values := collectEntries(t, m.Entries())
	if !equalStrings(keys, []string{"a", "b", "c"}) {
		t.Errorf("expected forward keys [a b c], got %v", keys)
	}
	if !equalStrings(values, []string{"v-a", "v-b", "v-c"}) {
		t.Errorf("expected forward values to follow keys, got %v", values)
	}

	keys, _ = collectEntries(t, m.ReverseEntries())
	if !equalStrings(keys, []string{"c", "b", "a"}) {
		t.Errorf("expected reverse keys [c b a], got %v", keys)
	}

	keys = collectKeys(t, m.KeysPrefix([]byte("a")))
	if !equalStrings(keys, []string{"a"}) {
		t.Errorf("expected prefix \"a\" to yield exactly [a], got %v", keys)
	}
}

func testMirrorImage(t *testing.T, d *db.Database) {
	defer d.Close()
	m := openMap(t, d, "alpha")

	inserted := []string{"mm", "a", "zz", "m", "ab", "z", "aa"}
	for _, k := range inserted {
		mustInsert(t, m, k, k)
	}

	forward := collectKeys(t, m.Keys())
	backward := collectKeys(t, m.ReverseKeys())

	expected := append([]string(nil), inserted...)
	sort.Strings(expected)

	if !equalStrings(forward, expected) {
		t.Errorf("expected ascending byte order %v, got %v", expected, forward)
	}
	if !equalStrings(backward, reversed(forward)) {
		t.Errorf("expected reverse stream to mirror forward stream, got %v vs %v", backward, forward)
	}
}

func testFromKey(t *testing.T, d *db.Database) {
	defer d.Close()
	m := openMap(t, d, "alpha")

	for _, k := range []string{"b", "d", "f"} {
		mustInsert(t, m, k, k)
	}

	// Forward from K: subsequence starting at the first key >= K.
	if keys := collectKeys(t, m.KeysFrom([]byte("c"))); !equalStrings(keys, []string{"d", "f"}) {
		t.Errorf("expected from \"c\" to yield [d f], got %v", keys)
	}
	if keys := collectKeys(t, m.KeysFrom([]byte("d"))); !equalStrings(keys, []string{"d", "f"}) {
		t.Errorf("expected from \"d\" to be inclusive, got %v", keys)
	}

	// Reverse from K: subsequence starting at the first key <= K.
	if keys := collectKeys(t, m.ReverseKeysFrom([]byte("c"))); !equalStrings(keys, []string{"b"}) {
		t.Errorf("expected reverse from \"c\" to yield [b], got %v", keys)
	}
	if keys := collectKeys(t, m.ReverseKeysFrom([]byte("d"))); !equalStrings(keys, []string{"d", "b"}) {
		t.Errorf("expected reverse from \"d\" to be inclusive, got %v", keys)
	}

	// Out-of-range starting points.
	if keys := collectKeys(t, m.KeysFrom([]byte("g"))); len(keys) != 0 {
		t.Errorf("expected from past-the-end to be empty, got %v", keys)
	}
	if keys := collectKeys(t, m.ReverseKeysFrom([]byte("a"))); len(keys) != 0 {
		t.Errorf("expected reverse from before-the-start to be empty, got %v", keys)
	}
}

func testPrefix(t *testing.T, d *db.Database) {
	defer d.Close()
	m := openMap(t, d, "alpha")

	inserted := []string{"p", "p1", "pa", "pz", "q", "o", "pa1"}
	for _, k := range inserted {
		mustInsert(t, m, k, k)
	}

	keys := collectKeys(t, m.KeysPrefix([]byte("p")))
	if !equalStrings(keys, []string{"p", "p1", "pa", "pa1", "pz"}) {
		t.Errorf("expected only p-prefixed keys in order, got %v", keys)
	}

	keys = collectKeys(t, m.ReverseKeysPrefix([]byte("p")))
	if !equalStrings(keys, []string{"pz", "pa1", "pa", "p1", "p"}) {
		t.Errorf("expected descending p-prefixed keys, got %v", keys)
	}

	if keys := collectKeys(t, m.KeysPrefix([]byte("x"))); len(keys) != 0 {
		t.Errorf("expected empty prefix stream, got %v", keys)
	}
}

func testSinglePass(t *testing.T, d *db.Database) {
	defer d.Close()
	ctx := context.Background()
	m := openMap(t, d, "alpha")

	mustInsert(t, m, "only", "v")

	s := m.Keys()
	defer s.Close()

	if !s.Next(ctx) {
		t.Fatalf("expected one entry")
	}
	if s.Next(ctx) {
		t.Fatalf("expected exhaustion after the single entry")
	}

	// Once exhausted, a stream never yields again - even after new writes.
	mustInsert(t, m, "later", "v")
	for i := 0; i < 3; i++ {
		if s.Next(ctx) {
			t.Fatalf("exhausted stream yielded again on pull %d", i)
		}
	}
	if s.Err() != nil {
		t.Errorf("exhaustion must not be an error, got %v", s.Err())
	}
}

func testRemoveAbsent(t *testing.T, d *db.Database) {
	defer d.Close()
	ctx := context.Background()
	m := openMap(t, d, "alpha")

	key := []byte("never-written")
	ch := m.Watch(key)

	if err := m.Remove(ctx, key); err != nil {
		t.Fatalf("removing an absent key must not fail, got %v", err)
	}
	if notified(ch, 100*time.Millisecond) {
		t.Errorf("removing an absent key must not notify watchers")
	}
}

func testDoubleInsert(t *testing.T, d *db.Database) {
	defer d.Close()
	ctx := context.Background()
	m := openMap(t, d, "alpha")

	key := []byte("dup")
	value := []byte("same")

	ch1 := m.Watch(key)
	if err := m.Insert(ctx, key, value); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if !notified(ch1, time.Second) {
		t.Errorf("first insert did not notify")
	}

	ch2 := m.Watch(key)
	if err := m.Insert(ctx, key, value); err != nil {
		t.Fatalf("second insert failed: %v", err)
	}
	if !notified(ch2, time.Second) {
		t.Errorf("second identical insert did not notify")
	}

	got, ok, err := m.Get(ctx, key)
	if err != nil || !ok || !bytes.Equal(got, value) {
		t.Errorf("state after double insert differs, got %q ok=%v err=%v", got, ok, err)
	}
	if n, _ := m.Count(ctx); n != 1 {
		t.Errorf("expected one live key, got %d", n)
	}
}

func testWatch(t *testing.T, d *db.Database) {
	defer d.Close()
	ctx := context.Background()
	m := openMap(t, d, "alpha")

	key := []byte("watched")

	before := m.Watch(key)
	if err := m.Insert(ctx, key, []byte("v")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if !notified(before, time.Second) {
		t.Errorf("waiter registered before the write was not notified")
	}

	// A registration after the write must not see it retroactively.
	after := m.Watch(key)
	if notified(after, 100*time.Millisecond) {
		t.Errorf("waiter registered after the write was retroactively notified")
	}

	// ...but the next write wakes it.
	if err := m.Remove(ctx, key); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if !notified(after, time.Second) {
		t.Errorf("waiter was not notified by the next write")
	}

	// Writes to other keys never leak through, not even prefixes.
	other := m.Watch([]byte("watch"))
	if err := m.Insert(ctx, []byte("watched-sibling"), []byte("v")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if notified(other, 100*time.Millisecond) {
		t.Errorf("watch matched by prefix instead of exact key")
	}
}

func testWatchTwoWaiters(t *testing.T, d *db.Database) {
	defer d.Close()
	ctx := context.Background()
	m := openMap(t, d, "alpha")

	key := []byte("x")
	first := m.Watch(key)
	second := m.Watch(key)

	if err := m.Insert(ctx, key, []byte("v")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if !notified(first, time.Second) || !notified(second, time.Second) {
		t.Errorf("a single write must resolve every pending waiter")
	}

	third := m.Watch(key)
	if notified(third, 100*time.Millisecond) {
		t.Errorf("waiter registered after the write must stay pending")
	}
	if err := m.Insert(ctx, key, []byte("v2")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if !notified(third, time.Second) {
		t.Errorf("pending waiter was not resolved by the following write")
	}
}

func testCork(t *testing.T, d *db.Database) {
	defer d.Close()
	ctx := context.Background()
	alpha := openMap(t, d, "alpha")
	beta := openMap(t, d, "beta")

	mustInsert(t, alpha, "stale", "old")

	cork := alpha.Cork()
	for i := 0; i < 5; i++ {
		cork.Put([]byte(fmt.Sprintf("batch-%d", i)), []byte("v"))
	}
	cork.Delete([]byte("stale"))
	cork.PutIn(beta, []byte("cross"), []byte("v"))

	// Nothing is visible before commit.
	if n, _ := alpha.Count(ctx); n != 1 {
		t.Fatalf("cork leaked before commit, count=%d", n)
	}

	watched := alpha.Watch([]byte("batch-0"))
	if err := cork.Commit(ctx); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	// All effects land at once.
	if n, _ := alpha.Count(ctx); n != 5 {
		t.Errorf("expected 5 live keys after commit, got %d", n)
	}
	if ok, _ := alpha.Contains(ctx, []byte("stale")); ok {
		t.Errorf("batched delete did not apply")
	}
	if ok, _ := beta.Contains(ctx, []byte("cross")); !ok {
		t.Errorf("cross-map batched put did not apply")
	}
	if !notified(watched, time.Second) {
		t.Errorf("commit did not notify watchers of batched keys")
	}

	if err := cork.Commit(ctx); err == nil {
		t.Errorf("expected committing a spent cork to fail")
	}
}

// A reader running concurrently with commits must observe either none or
// all of each cork's effects. Every commit adds a full batch of fresh keys,
// so any count that is not a multiple of the batch size is a partially
// visible cork. Count sweeps the keyspace through a single iterator, which
// pins one consistent view.
func testCorkConcurrentVisibility(t *testing.T, d *db.Database) {
	defer d.Close()
	ctx := context.Background()
	m := openMap(t, d, "alpha")

	const batchSize = 10
	const commits = 50

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < commits; i++ {
			cork := m.Cork()
			for j := 0; j < batchSize; j++ {
				cork.Put([]byte(fmt.Sprintf("batch-%03d-%02d", i, j)), []byte("v"))
			}
			if err := cork.Commit(ctx); err != nil {
				t.Errorf("commit %d failed: %v", i, err)
				return
			}
		}
	}()

	for loop := true; loop; {
		select {
		case <-done:
			loop = false
		default:
			n, err := m.Count(ctx)
			if err != nil {
				t.Fatalf("count during commits failed: %v", err)
			}
			if n%batchSize != 0 {
				t.Fatalf("observed a partially applied cork: count=%d", n)
			}
		}
	}

	if n, err := m.Count(ctx); err != nil || n != batchSize*commits {
		t.Errorf("expected %d keys after all commits, got n=%d err=%v", batchSize*commits, n, err)
	}
}

func testCorkDiscard(t *testing.T, d *db.Database) {
	defer d.Close()
	ctx := context.Background()
	m := openMap(t, d, "alpha")

	cork := m.Cork()
	cork.Put([]byte("ghost"), []byte("v"))
	cork.Discard()

	if ok, _ := m.Contains(ctx, []byte("ghost")); ok {
		t.Errorf("discarded cork must leave no trace")
	}

	// A cork that merely goes out of scope behaves the same.
	func() {
		dropped := m.Cork()
		dropped.Put([]byte("ghost2"), []byte("v"))
	}()
	if ok, _ := m.Contains(ctx, []byte("ghost2")); ok {
		t.Errorf("dropped cork must leave no trace")
	}
}

func testKeyspaceIsolation(t *testing.T, d *db.Database) {
	defer d.Close()
	ctx := context.Background()
	alpha := openMap(t, d, "alpha")
	beta := openMap(t, d, "beta")

	mustInsert(t, alpha, "shared-key", "from-alpha")
	mustInsert(t, beta, "shared-key", "from-beta")
	mustInsert(t, beta, "beta-only", "v")

	got, _, _ := alpha.Get(ctx, []byte("shared-key"))
	if !bytes.Equal(got, []byte("from-alpha")) {
		t.Errorf("keyspaces bled into each other: %q", got)
	}

	if keys := collectKeys(t, alpha.Keys()); !equalStrings(keys, []string{"shared-key"}) {
		t.Errorf("alpha sees foreign keys: %v", keys)
	}
	if keys := collectKeys(t, beta.Keys()); !equalStrings(keys, []string{"beta-only", "shared-key"}) {
		t.Errorf("beta keys wrong: %v", keys)
	}

	// Watches are per-map: a write in beta must not wake alpha's waiter.
	ch := alpha.Watch([]byte("shared-key"))
	mustInsert(t, beta, "shared-key", "again")
	if notified(ch, 100*time.Millisecond) {
		t.Errorf("watch notification crossed keyspaces")
	}
}
