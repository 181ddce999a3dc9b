// Command herdbench runs a synthetic Apply/Get workload against a cache,
// always serves Prometheus metrics, and optionally serves pprof.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dominictootell/herdcache/herdcache"
	"github.com/dominictootell/herdcache/backend/memcached"
	"github.com/dominictootell/herdcache/codec"
	"github.com/dominictootell/herdcache/hashing"
	pmet "github.com/dominictootell/herdcache/metrics/prom"
	"github.com/dominictootell/herdcache/policy/twoq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	var (
		capacity = flag.Int("cap", 100_000, "promise-table capacity (entries)")
		shards   = flag.Int("shards", 0, "number of table shards (0=auto)")
		policy   = flag.String("policy", "lru", "eviction policy: lru | 2q")

		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct  = flag.Int("reads", 80, "Get percentage [0..100]; remainder are Apply calls")

		keys    = flag.Int("keys", 1_000_000, "keyspace size")
		zipfS   = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV   = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed    = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		latency = flag.Duration("compute_latency", 5*time.Millisecond, "simulated compute latency on Apply miss")

		servers     = flag.String("memcached", "", "comma-separated memcached host:port list; empty = in-memory stand-in")
		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
	)
	flag.Parse()

	if *pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", *pprofAddr)
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	metrics := pmet.New(nil, "herdcache", "bench", nil)
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("metrics: serving at %s", *metricsAddr)
		log.Println(http.ListenAndServe(*metricsAddr, nil))
	}()

	cfg := herdcache.Config[string]{
		Backend:     backendFor(*servers),
		Hasher:      hashing.XXHash{},
		MaxCapacity: *capacity,
		TableShards: *shards,
		Metrics:     metrics,
	}
	switch *policy {
	case "lru":
		// nil TablePolicy defaults to LRU.
	case "2q":
		cfg.TablePolicy = twoq.New[string, *herdcache.PendingResult[string]](*capacity/4, *capacity/2)
	default:
		log.Fatalf("unknown policy: %q (use lru or 2q)", *policy)
	}

	c, err := herdcache.New[string](cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer c.Shutdown(context.Background())

	readPctVal := *readPct
	keysMax := uint64(*keys - 1)
	seedBase := *seed
	zipfSVal := *zipfS
	zipfVVal := *zipfV
	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}
	computeLatency := *latency

	var reads, applies, hits, misses, total uint64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()

			localR := rand.New(rand.NewSource(seedBase + int64(id)*9973))
			localZipf := rand.NewZipf(localR, zipfSVal, zipfVVal, keysMax)

			keyByZipf := func() string {
				return "k:" + strconv.FormatUint(localZipf.Uint64(), 10)
			}

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				atomic.AddUint64(&total, 1)
				k := keyByZipf()
				if int(localR.Int31n(100)) < readPctVal {
					atomic.AddUint64(&reads, 1)
					v, err := c.Get(ctx, k).Wait(ctx)
					if err == nil && v != "" {
						atomic.AddUint64(&hits, 1)
					} else {
						atomic.AddUint64(&misses, 1)
					}
				} else {
					atomic.AddUint64(&applies, 1)
					c.Apply(ctx, k, func(ctx context.Context) (string, error) {
						time.Sleep(computeLatency)
						return "v:" + k, nil
					})
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	ops := atomic.LoadUint64(&total)
	readsN := atomic.LoadUint64(&reads)
	appliesN := atomic.LoadUint64(&applies)
	hitsN := atomic.LoadUint64(&hits)
	missesN := atomic.LoadUint64(&misses)

	hitRate := 0.0
	if readsN > 0 {
		hitRate = float64(hitsN) / float64(readsN) * 100
	}

	st := c.Stats()
	fmt.Printf("policy=%s cap=%d shards=%d workers=%d keys=%d dur=%v seed=%d\n",
		*policy, *capacity, *shards, workersN, *keys, elapsed, seedBase)
	fmt.Printf("ops=%d (%.0f ops/s)  gets=%d  applies=%d\n",
		ops, float64(ops)/elapsed.Seconds(), readsN, appliesN)
	fmt.Printf("get-hits=%d  get-misses=%d  hit-rate=%.2f%%\n", hitsN, missesN, hitRate)
	fmt.Printf("fresh entries=%d  evictions=%d\n", st.FreshEntries, st.FreshEvictions)
}

// backendFor returns a real memcached-backed client when servers is
// non-empty, or an in-memory stand-in otherwise so the benchmark runs
// without any external dependency.
func backendFor(servers string) herdcache.BackendClient[string] {
	if servers == "" {
		return newMemoryBackend()
	}
	var addrs []string
	for _, s := range splitNonEmpty(servers, ',') {
		addrs = append(addrs, s)
	}
	return memcached.New[string](codec.String{}, addrs...)
}

func splitNonEmpty(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

type memoryBackend struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryBackend() *memoryBackend { return &memoryBackend{data: make(map[string]string)} }

func (b *memoryBackend) Get(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	return v, ok, nil
}

func (b *memoryBackend) Set(_ context.Context, key string, _ time.Duration, value string) <-chan error {
	ch := make(chan error, 1)
	b.mu.Lock()
	b.data[key] = value
	b.mu.Unlock()
	ch <- nil
	return ch
}

func (b *memoryBackend) Delete(_ context.Context, key string) <-chan error {
	ch := make(chan error, 1)
	b.mu.Lock()
	delete(b.data, key)
	b.mu.Unlock()
	ch <- nil
	return ch
}

func (b *memoryBackend) Flush(context.Context) <-chan error {
	ch := make(chan error, 1)
	b.mu.Lock()
	b.data = make(map[string]string)
	b.mu.Unlock()
	ch <- nil
	return ch
}

func (b *memoryBackend) IsAvailable() bool              { return true }
func (b *memoryBackend) Shutdown(context.Context) error { return nil }
