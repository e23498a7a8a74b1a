// Package testing provides a reusable conformance suite for the storage
// facade. It is meant to be invoked from the _test.go files of any package
// that assembles a Database - local stores, read replicas, future engine
// variants - so every assembly is held to the same contract.
//
// Usage:
//
//	func TestLocalStore(t *testing.T) {
//		factory := func(t testing.TB) *db.Database {
//			d, err := db.Open(db.DefaultConfig(t.TempDir(), dbtesting.TestMaps...))
//			if err != nil {
//				t.Fatal(err)
//			}
//			return d
//		}
//		dbtesting.RunDatabaseTests(t, "pebble", factory)
//	}
//
// The suite covers point operations, iteration order (forward/reverse
// mirroring, prefix exclusion, from-key subsequences), stream single-pass
// semantics, watch delivery rules, cork atomicity and keyspace isolation.
// RunDatabaseBenchmarks measures the corresponding hot paths.
package testing
