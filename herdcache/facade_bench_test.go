package herdcache

import (
	"context"
	"strconv"
	"testing"
)

// benchmarkApply exercises Apply against a warm backend, mirroring the
// teacher's read/write mix benchmark but over the coalescing path instead
// of a plain map cache.
func benchmarkApply(b *testing.B, backendHitPct int) {
	backend := newFakeBackend[string]()
	for i := 0; i < 50_000; i++ {
		k := "k:" + strconv.Itoa(i)
		if i%100 < backendHitPct {
			backend.data[k] = "v"
		}
	}

	c, err := New[string](Config[string]{
		Backend:     backend,
		Hasher:      identityHasher{},
		MaxCapacity: 100_000,
	})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { c.Shutdown(context.Background()) })

	b.ReportAllocs()
	b.ResetTimer()

	keyMask := (1 << 16) - 1
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			k := "k:" + strconv.Itoa(i&keyMask)
			c.Apply(context.Background(), k, func(ctx context.Context) (string, error) {
				return "computed", nil
			})
			i++
		}
	})
}

func BenchmarkApply_AllBackendHits(b *testing.B)  { benchmarkApply(b, 100) }
func BenchmarkApply_HalfBackendHits(b *testing.B) { benchmarkApply(b, 50) }
func BenchmarkApply_AllBackendMiss(b *testing.B)  { benchmarkApply(b, 0) }
