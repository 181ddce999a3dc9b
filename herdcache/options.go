package herdcache

import (
	"time"

	"github.com/dominictootell/herdcache/policy"
	"github.com/dominictootell/herdcache/policy/lru"
)

// Config configures a Cache instance. Zero values are safe; sane defaults
// are applied in New():
//   - TimeToLive <= 0             => 60s
//   - StalePrefix == ""           => "stale"
//   - BackendGetTimeout <= 0      => 2500ms
//   - StaleBackendGetTimeout <= 0 => BackendGetTimeout
//   - SetWaitDuration <= 0        => 2s
//   - CanCacheValue == nil        => always true
//   - MaxCapacity <= 0            => 10000
//   - StaleMaxCapacity <= 0       => MaxCapacity
//   - TablePolicy == nil          => LRU
//   - Executor == nil             => one goroutine per task
//   - Metrics == nil              => NopMetricSink
//   - Logger == nil               => NopLogger
type Config[V any] struct {
	// Backend is the remote cache client. Required.
	Backend BackendClient[V]
	// Hasher derives the canonical storage key from a user key. Required.
	Hasher Hasher

	// KeyPrefix is prepended (or hashed together with, see HashKeyPrefix)
	// to every user key before it reaches the backend.
	KeyPrefix string
	// HashKeyPrefix hashes KeyPrefix+userKey as one unit instead of
	// prefixing the hashed key with a literal KeyPrefix.
	HashKeyPrefix bool
	// StalePrefix namespaces the stale tier's backend keys. Default "stale".
	StalePrefix string

	// TimeToLive is the default backend TTL for a successful computation.
	TimeToLive time.Duration
	// StaleTTLAdditional, if > 0, is added to TimeToLive for the stale
	// tier's TTL. If <= 0, the stale tier uses the same TTL as the fresh
	// tier.
	StaleTTLAdditional time.Duration

	// BackendGetTimeout bounds a single fresh-tier backend Get.
	BackendGetTimeout time.Duration
	// StaleBackendGetTimeout bounds a single stale-tier backend Get.
	StaleBackendGetTimeout time.Duration

	// SetWaitDuration bounds how long the computing goroutine waits for a
	// fresh-tier backend Set to complete when WaitForBackendSet is true.
	SetWaitDuration time.Duration
	// WaitForBackendSet makes the fresh-tier write block the computing
	// goroutine (not the caller) for up to SetWaitDuration. The stale-tier
	// write is always fire-and-forget.
	WaitForBackendSet bool
	// WaitForRemove bounds ClearKey/ClearAll's wait on backend
	// delete/flush completion. <= 0 means fire-and-forget.
	WaitForRemove time.Duration

	// UseStaleCache enables the stale fallback tier.
	UseStaleCache bool

	// RemoveFromTableBeforeSettingValue selects one of the two legal
	// orderings between publishing a PendingResult's terminal value and
	// removing it from its PromiseTable: true removes then publishes,
	// false (default) publishes then removes. Both orderings are
	// race-free; this only affects whether a racing putIfAbsent can
	// briefly observe the table still holding an already-resolved
	// promise.
	RemoveFromTableBeforeSettingValue bool

	// CanCacheValue gates whether a successful computation is written to
	// the backend at all. Default: always true.
	CanCacheValue func(V) bool

	// MaxCapacity bounds the fresh-tier promise table. Default 10000.
	MaxCapacity int
	// StaleMaxCapacity bounds the stale-tier promise table. <= 0 means
	// MaxCapacity.
	StaleMaxCapacity int
	// TableShards controls promise-table sharding. <= 0 means auto.
	TableShards int
	// TablePolicy selects the promise table's bounding/eviction policy.
	// Default: LRU (policy/lru).
	TablePolicy policy.Policy[string, *PendingResult[V]]

	// Executor runs scheduled computations. Default: one goroutine per
	// task.
	Executor Executor
	// Metrics receives hit/miss/counter/duration events. Default:
	// NopMetricSink.
	Metrics MetricSink
	// Logger receives structured debug/warn/error lines. Default:
	// NopLogger.
	Logger Logger
}

func (cfg *Config[V]) setDefaults() error {
	if cfg.Backend == nil {
		return ErrBackendRequired
	}
	if cfg.Hasher == nil {
		return ErrHasherRequired
	}
	if cfg.TimeToLive <= 0 {
		cfg.TimeToLive = 60 * time.Second
	}
	if cfg.StalePrefix == "" {
		cfg.StalePrefix = "stale"
	}
	if cfg.BackendGetTimeout <= 0 {
		cfg.BackendGetTimeout = 2500 * time.Millisecond
	}
	if cfg.StaleBackendGetTimeout <= 0 {
		cfg.StaleBackendGetTimeout = cfg.BackendGetTimeout
	}
	if cfg.SetWaitDuration <= 0 {
		cfg.SetWaitDuration = 2 * time.Second
	}
	if cfg.CanCacheValue == nil {
		cfg.CanCacheValue = func(V) bool { return true }
	}
	if cfg.MaxCapacity <= 0 {
		cfg.MaxCapacity = 10_000
	}
	if cfg.StaleMaxCapacity <= 0 {
		cfg.StaleMaxCapacity = cfg.MaxCapacity
	}
	if cfg.TablePolicy == nil {
		cfg.TablePolicy = lru.New[string, *PendingResult[V]]()
	}
	if cfg.Executor == nil {
		cfg.Executor = goroutinePerTask{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NopMetricSink{}
	}
	if cfg.Logger == nil {
		cfg.Logger = NopLogger{}
	}
	return nil
}

// applyOptions is the resolved, per-call view of the optional Apply overrides.
type applyOptions[V any] struct {
	ttl      time.Duration
	canCache func(V) bool
}

// ApplyOption overrides a single Apply call's behavior without widening the
// Config surface with one-off parameters.
type ApplyOption[V any] func(*applyOptions[V])

// WithTTL overrides the backend TTL for this Apply call only.
func WithTTL[V any](ttl time.Duration) ApplyOption[V] {
	return func(o *applyOptions[V]) { o.ttl = ttl }
}

// WithCanCacheValue overrides the cacheability predicate for this Apply call
// only.
func WithCanCacheValue[V any](fn func(V) bool) ApplyOption[V] {
	return func(o *applyOptions[V]) { o.canCache = fn }
}
