// Package herdcache implements a herd-protected client for a remote
// memcached-compatible cache: request coalescing plus an optional
// stale-value fallback tier.
//
// Design
//
//   - Coalescing: for any canonical key, at most one local compute
//     invocation runs at a time. A PromiseTable maps the key to a
//     PendingResult -- a single-assignment future -- and putIfAbsent is
//     atomic per shard, so every concurrent caller for the same key either
//     wins the claim (and runs compute) or observes the winner's
//     PendingResult directly.
//
//   - Two tiers: the fresh tier always governs coalescing. When
//     Config.UseStaleCache is set, a second PromiseTable namespaces stale
//     lookups under a stale key prefix and first issues its own backend Get
//     for the stale key, so a caller can receive a slightly older value
//     instead of blocking on an in-flight compute; only on a stale miss
//     does it wait for the fresh computation's outcome.
//
//   - Bounded tables: each PromiseTable shard is bounded by a pluggable
//     eviction policy (policy/lru by default, policy/twoq for
//     scan-resistance). Eviction only removes the table's own bookkeeping
//     entry; a caller already holding a *PendingResult reference still
//     observes it resolve normally.
//
//   - Publish ordering: Config.RemoveFromTableBeforeSettingValue selects
//     one of the two legal total orders between resolving a PendingResult
//     and removing it from its table. Both orders are race-free.
//
//   - Backend outage: BackendClient.IsAvailable() false degrades every
//     operation to local-only coalescing -- no backend reads or writes are
//     attempted until availability returns.
//
// Basic usage
//
//	c, err := herdcache.New[string](herdcache.Config[string]{
//	    Backend: backend,
//	    Hasher:  hashing.XXHash{},
//	})
//	result := c.Apply(ctx, "user:42", func(ctx context.Context) (string, error) {
//	    return loadUser(ctx, 42)
//	})
//	v, err := result.Wait(ctx)
//
// With the stale fallback tier
//
//	c, err := herdcache.New[string](herdcache.Config[string]{
//	    Backend:       backend,
//	    Hasher:        hashing.XXHash{},
//	    UseStaleCache: true,
//	})
//
// See package hashing for Hasher implementations, backend/memcached for a
// BackendClient over bradfitz/gomemcache, metrics/prom for a Prometheus
// MetricSink, and logging/zap for a zap-backed Logger.
package herdcache
