package herdcache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// cache is the CacheFacade: it owns the fresh and (optional) stale promise
// tables and dispatches to FreshPath/StalePath. It is keyed by the
// canonical string key only -- the generic parameter is purely the value
// type, unlike the teacher's Cache[K,V] which is also generic over the key.
type cache[V any] struct {
	cfg Config[V]

	fresh *promiseTable[V]
	stale *promiseTable[V]

	closed       atomic.Bool
	shutdownOnce sync.Once
}

// New constructs a Cache with the supplied Config, applying the documented
// defaults for any zero-valued field. It fails only when a required
// collaborator (Backend, Hasher) is missing.
func New[V any](cfg Config[V]) (Cache[V], error) {
	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}

	c := &cache[V]{cfg: cfg}
	c.fresh = newPromiseTable[V](cfg.MaxCapacity, cfg.TableShards, cfg.TablePolicy)
	if cfg.UseStaleCache {
		c.stale = newPromiseTable[V](cfg.StaleMaxCapacity, cfg.TableShards, cfg.TablePolicy)
	}
	return c, nil
}

func (c *cache[V]) backendAvailable() bool {
	return c.cfg.Backend != nil && c.cfg.Backend.IsAvailable()
}

func (c *cache[V]) canonicalKey(userKey string) string {
	return canonicalKey(c.cfg.Hasher, c.cfg.KeyPrefix, c.cfg.HashKeyPrefix, userKey)
}

func (c *cache[V]) resolveApplyOptions(opts []ApplyOption[V]) applyOptions[V] {
	o := applyOptions[V]{ttl: c.cfg.TimeToLive, canCache: c.cfg.CanCacheValue}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (c *cache[V]) staleTTLFor(ttl time.Duration) time.Duration {
	if c.cfg.StaleTTLAdditional > 0 {
		return ttl + c.cfg.StaleTTLAdditional
	}
	return ttl
}

// Stats reports promise-table occupancy.
func (c *cache[V]) Stats() Stats {
	st := Stats{
		FreshEntries:   c.fresh.len(),
		FreshEvictions: c.fresh.evictions(),
	}
	if c.cfg.UseStaleCache {
		st.StaleEntries = c.stale.len()
		st.StaleEvictions = c.stale.evictions()
	}
	return st
}

// ClearKey deletes the stale-namespace entry (if enabled) and then the
// fresh entry for key. Backend failures and timeouts are logged, never
// returned, matching the original implementation's clear(key) semantics.
// When Config.WaitForRemove > 0, both tier outcomes are collected and, if
// either failed, logged together as a single *ClearKeyError.
func (c *cache[V]) ClearKey(ctx context.Context, key string) {
	if !c.backendAvailable() {
		return
	}
	k := c.canonicalKey(key)

	var staleErr, freshErr error
	if c.cfg.UseStaleCache {
		staleErr = c.deleteAndWait(ctx, staleKey(c.cfg.StalePrefix, k), "stale")
	}
	freshErr = c.deleteAndWait(ctx, k, "fresh")

	if c.cfg.WaitForRemove > 0 && (staleErr != nil || freshErr != nil) {
		c.cfg.Logger.Error("clear key failed", Fields{
			"err": &ClearKeyError{Key: key, StaleTierErr: staleErr, FreshTierErr: freshErr},
		})
	}
}

// deleteAndWait issues a backend delete for key. If Config.WaitForRemove <= 0
// it is fire-and-forget: any failure is logged from its own goroutine and nil
// is returned immediately. Otherwise it blocks up to WaitForRemove and
// returns the outcome for the caller to aggregate.
func (c *cache[V]) deleteAndWait(ctx context.Context, key, tier string) error {
	ch := c.cfg.Backend.Delete(ctx, key)
	if ch == nil {
		return nil
	}
	if c.cfg.WaitForRemove <= 0 {
		go func() {
			if err := <-ch; err != nil {
				c.cfg.Logger.Warn("backend delete failed", Fields{"key": key, "tier": tier, "err": err})
			}
		}()
		return nil
	}
	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.WaitForRemove)
	defer cancel()
	select {
	case err := <-ch:
		return err
	case <-waitCtx.Done():
		return waitCtx.Err()
	}
}

// ClearAll clears both promise tables and flushes the backend. If
// waitForClear is true, or Config.WaitForRemove > 0, it blocks (bounded by
// ctx and, if set, WaitForRemove) until the flush completes.
func (c *cache[V]) ClearAll(ctx context.Context, waitForClear bool) {
	c.fresh.clear()
	if c.cfg.UseStaleCache {
		c.stale.clear()
	}
	if !c.backendAvailable() {
		return
	}
	ch := c.cfg.Backend.Flush(ctx)
	if ch == nil {
		return
	}
	if !waitForClear && c.cfg.WaitForRemove <= 0 {
		go func() { <-ch }()
		return
	}
	if c.cfg.WaitForRemove > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, c.cfg.WaitForRemove)
		defer cancel()
		select {
		case err := <-ch:
			if err != nil {
				c.cfg.Logger.Warn("backend flush failed", Fields{"err": err})
			}
		case <-waitCtx.Done():
			c.cfg.Logger.Warn("timeout waiting for backend flush", nil)
		}
		return
	}
	select {
	case err := <-ch:
		if err != nil {
			c.cfg.Logger.Warn("backend flush failed", Fields{"err": err})
		}
	case <-ctx.Done():
	}
}

// Shutdown clears both promise tables and releases the backend client.
// Idempotent via sync.Once, grounded on the teacher's closed atomic.Bool
// guard plus cascache's closeOnce pattern for the underlying client release.
func (c *cache[V]) Shutdown(ctx context.Context) {
	c.shutdownOnce.Do(func() {
		c.closed.Store(true)
		c.fresh.clear()
		if c.cfg.UseStaleCache {
			c.stale.clear()
		}
		if c.cfg.Backend != nil {
			if err := c.cfg.Backend.Shutdown(ctx); err != nil {
				c.cfg.Logger.Warn("backend shutdown error", Fields{"err": err})
			}
		}
	})
}

var _ Cache[struct{}] = (*cache[struct{}])(nil)
