package testing

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/sKV/lib/db"
)

// RunDatabaseBenchmarks runs all benchmarks against a factory-built Database.
func RunDatabaseBenchmarks(b *testing.B, name string, factory DatabaseFactory) {
	b.Run(name+"/Insert", func(b *testing.B) {
		benchmarkInsert(b, factory(b))
	})

	b.Run(name+"/InsertExisting", func(b *testing.B) {
		benchmarkInsertExisting(b, factory(b))
	})

	b.Run(name+"/Get", func(b *testing.B) {
		benchmarkGet(b, factory(b))
	})

	b.Run(name+"/Contains", func(b *testing.B) {
		benchmarkContains(b, factory(b))
	})

	b.Run(name+"/Stream", func(b *testing.B) {
		benchmarkStream(b, factory(b))
	})

	b.Run(name+"/CorkCommit", func(b *testing.B) {
		benchmarkCorkCommit(b, factory(b))
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func benchmarkInsert(b *testing.B, d *db.Database) {
	b.Cleanup(func() { _ = d.Close() })

	ctx := context.Background()
	m := openMap(b, d, "alpha")

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := []byte(fmt.Sprintf("bench-key-%d", counter))
			value := []byte(fmt.Sprintf("bench-value-%d", counter))
			_ = m.Insert(ctx, key, value)
			counter++
		}
	})
}

func benchmarkInsertExisting(b *testing.B, d *db.Database) {
	b.Cleanup(func() { _ = d.Close() })

	ctx := context.Background()
	m := openMap(b, d, "alpha")

	numKeys := 10_000
	for i := 0; i < numKeys; i++ {
		mustInsert(b, m, fmt.Sprintf("bench-key-%d", i), fmt.Sprintf("bench-value-%d", i))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := []byte(fmt.Sprintf("bench-key-%d", counter%numKeys))
			value := []byte(fmt.Sprintf("bench-value-%d", counter))
			_ = m.Insert(ctx, key, value)
			counter++
		}
	})
}

func benchmarkGet(b *testing.B, d *db.Database) {
	b.Cleanup(func() { _ = d.Close() })

	ctx := context.Background()
	m := openMap(b, d, "alpha")

	numKeys := 10_000
	for i := 0; i < numKeys; i++ {
		mustInsert(b, m, fmt.Sprintf("bench-key-%d", i), fmt.Sprintf("bench-value-%d", i))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := []byte(fmt.Sprintf("bench-key-%d", counter%numKeys))
			_, _, _ = m.Get(ctx, key)
			counter++
		}
	})
}

func benchmarkContains(b *testing.B, d *db.Database) {
	b.Cleanup(func() { _ = d.Close() })

	ctx := context.Background()
	m := openMap(b, d, "alpha")

	numKeys := 10_000
	for i := 0; i < numKeys; i++ {
		mustInsert(b, m, fmt.Sprintf("bench-key-%d", i), "v")
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			// Alternate between hits and misses.
			key := []byte(fmt.Sprintf("bench-key-%d", counter%(2*numKeys)))
			_, _ = m.Contains(ctx, key)
			counter++
		}
	})
}

func benchmarkStream(b *testing.B, d *db.Database) {
	b.Cleanup(func() { _ = d.Close() })

	ctx := context.Background()
	m := openMap(b, d, "alpha")

	numKeys := 10_000
	for i := 0; i < numKeys; i++ {
		mustInsert(b, m, fmt.Sprintf("bench-key-%08d", i), fmt.Sprintf("bench-value-%d", i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s := m.Entries()
		n := 0
		for s.Next(ctx) {
			n++
		}
		_ = s.Close()
		if n != numKeys {
			b.Fatalf("expected %d entries, streamed %d", numKeys, n)
		}
	}
}

func benchmarkCorkCommit(b *testing.B, d *db.Database) {
	b.Cleanup(func() { _ = d.Close() })

	ctx := context.Background()
	m := openMap(b, d, "alpha")

	const batchSize = 100
	var counter int64

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cork := m.Cork()
		for j := 0; j < batchSize; j++ {
			n := atomic.AddInt64(&counter, 1)
			cork.Put([]byte(fmt.Sprintf("bench-key-%d", n)), []byte("v"))
		}
		if err := cork.Commit(ctx); err != nil {
			b.Fatalf("commit failed: %v", err)
		}
	}
}
