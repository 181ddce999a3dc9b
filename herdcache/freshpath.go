package herdcache

import (
	"context"
	"reflect"
	"time"
)

// Get performs a read-only lookup at the fresh tier: no computation is ever
// scheduled. See the Cache interface doc for behavior on backend outage and
// stale-mode composition.
func (c *cache[V]) Get(ctx context.Context, key string) *PendingResult[V] {
	if c.closed.Load() {
		return failedResult[V](ErrShutdown)
	}
	k := c.canonicalKey(key)

	if !c.backendAvailable() {
		if p := c.fresh.get(k); p != nil {
			c.cfg.Metrics.CacheHit(CacheTypeValueCalculation)
			c.logHit(k, CacheTypeValueCalculation)
			return p
		}
		return resolvedResult[V](zeroOf[V]())
	}

	if p := c.fresh.get(k); p != nil {
		c.cfg.Metrics.CacheHit(CacheTypeValueCalculation)
		c.logHit(k, CacheTypeValueCalculation)
		if c.cfg.UseStaleCache {
			o := c.resolveApplyOptions(nil)
			return c.lookupStale(ctx, k, p, o)
		}
		return p
	}
	c.cfg.Metrics.CacheMiss(CacheTypeValueCalculation)
	c.logMiss(k, CacheTypeValueCalculation)

	result := newPendingResult[V]()
	detached := context.WithoutCancel(ctx)
	c.cfg.Executor.Go(func() {
		v, ok := c.backendGet(detached, k, c.cfg.BackendGetTimeout, CacheTypeDistributedCache)
		if !ok {
			result.resolve(zeroOf[V]())
			return
		}
		result.resolve(v)
	})
	return result
}

// Apply coalesces concurrent callers for key: step-by-step, this implements
// the fresh-tier protocol --
//  1. If the backend is unavailable, degrade to local-only coalescing: skip
//     every backend read/write, still guarantee single-flight.
//  2. Claim the key in the fresh PromiseTable; a non-nil prior return means
//     another caller already owns this generation.
//  3. On a claim win, consult the backend before computing at all; a
//     backend hit publishes immediately without invoking compute.
//  4. On a genuine miss, schedule compute on the Executor. On success,
//     write the stale tier first (if enabled, fire-and-forget) and then the
//     fresh tier (optionally waited on), then publish.
func (c *cache[V]) Apply(ctx context.Context, key string, compute ComputeFunc[V], opts ...ApplyOption[V]) *PendingResult[V] {
	if c.closed.Load() {
		return failedResult[V](ErrShutdown)
	}
	o := c.resolveApplyOptions(opts)
	k := c.canonicalKey(key)

	if !c.backendAvailable() {
		return c.localOnlyApply(key, k, compute)
	}

	p := newPendingResult[V]()
	if prior := c.fresh.putIfAbsent(k, p); prior != nil {
		c.cfg.Metrics.CacheHit(CacheTypeValueCalculation)
		c.logHit(k, CacheTypeValueCalculation)
		if c.cfg.UseStaleCache {
			return c.lookupStale(ctx, k, prior, o)
		}
		return prior
	}
	c.cfg.Metrics.CacheMiss(CacheTypeValueCalculation)
	c.logMiss(k, CacheTypeValueCalculation)

	if v, ok := c.backendGet(ctx, k, c.cfg.BackendGetTimeout, CacheTypeDistributedCache); ok {
		c.publishSuccess(p, v, k, c.fresh)
		return p
	}

	detached := context.WithoutCancel(ctx)
	c.cfg.Executor.Go(func() {
		c.computeAndWrite(detached, k, compute, p, o)
	})
	return p
}

func (c *cache[V]) localOnlyApply(userKey, canonical string, compute ComputeFunc[V]) *PendingResult[V] {
	c.cfg.Logger.Warn("backend unavailable, degrading to local-only coalescing", Fields{"key": userKey})

	p := newPendingResult[V]()
	if prior := c.fresh.putIfAbsent(canonical, p); prior != nil {
		c.cfg.Metrics.CacheHit(CacheTypeDisabled)
		c.logHit(canonical, CacheTypeDisabled)
		return prior
	}
	c.cfg.Metrics.CacheMiss(CacheTypeDisabled)
	c.logMiss(canonical, CacheTypeDisabled)

	c.cfg.Executor.Go(func() {
		v, err := compute(context.Background())
		if err != nil {
			c.publishFailure(p, err, canonical, c.fresh)
			return
		}
		c.publishSuccess(p, v, canonical, c.fresh)
	})
	return p
}

func (c *cache[V]) computeAndWrite(ctx context.Context, key string, compute ComputeFunc[V], p *PendingResult[V], o applyOptions[V]) {
	start := time.Now()
	v, err := compute(ctx)
	if err != nil {
		c.cfg.Metrics.IncrementCounter(CounterValueCalculationFailure)
		c.cfg.Metrics.SetDuration(DurationValueCalculation, time.Since(start).Nanoseconds())
		c.publishFailure(p, err, key, c.fresh)
		return
	}
	c.cfg.Metrics.SetDuration(DurationValueCalculationTime, time.Since(start).Nanoseconds())

	if !isNilValue(v) && o.canCache(v) {
		if c.cfg.UseStaleCache {
			staleTTL := time.Duration(ttlSeconds(c.staleTTLFor(o.ttl))) * time.Second
			c.asyncBackendSet(ctx, staleKey(c.cfg.StalePrefix, key), v, staleTTL)
		}
		c.backendSet(ctx, key, v, time.Duration(ttlSeconds(o.ttl))*time.Second, c.cfg.WaitForBackendSet)
	}
	c.cfg.Metrics.IncrementCounter(CounterValueCalculationSuccess)
	c.publishSuccess(p, v, key, c.fresh)
}

// publishSuccess and publishFailure apply the configured ordering between
// resolving the promise and removing it from its table (Config.
// RemoveFromTableBeforeSettingValue). Both orderings are race-free; an
// observer already holding the *PendingResult reference is unaffected
// either way.
func (c *cache[V]) publishSuccess(p *PendingResult[V], v V, key string, table *promiseTable[V]) {
	if c.cfg.RemoveFromTableBeforeSettingValue {
		table.remove(key)
		p.resolve(v)
		return
	}
	p.resolve(v)
	table.remove(key)
}

func (c *cache[V]) publishFailure(p *PendingResult[V], err error, key string, table *promiseTable[V]) {
	if c.cfg.RemoveFromTableBeforeSettingValue {
		table.remove(key)
		p.fail(err)
		return
	}
	p.fail(err)
	table.remove(key)
}

func (c *cache[V]) backendGet(ctx context.Context, key string, timeout time.Duration, cacheType string) (V, bool) {
	start := time.Now()
	getCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	v, ok, err := c.cfg.Backend.Get(getCtx, key, timeout)
	c.cfg.Metrics.IncrementCounter(cacheType)
	c.cfg.Metrics.SetDuration(cacheType, time.Since(start).Nanoseconds())
	if err != nil {
		c.cfg.Logger.Warn("backend get error, treating as miss", Fields{"key": key, "err": err})
		return zeroOf[V](), false
	}
	if !ok {
		c.cfg.Metrics.CacheMiss(cacheType)
		c.logMiss(key, cacheType)
		return zeroOf[V](), false
	}
	c.cfg.Metrics.CacheHit(cacheType)
	c.logHit(key, cacheType)
	return v, true
}

// backendSet issues a Set and, if wait is true, blocks the calling
// goroutine (never the original caller of Apply) up to
// Config.SetWaitDuration for the outcome.
func (c *cache[V]) backendSet(ctx context.Context, key string, v V, ttl time.Duration, wait bool) {
	c.cfg.Metrics.IncrementCounter(CounterDistributedCacheWrites)
	ch := c.cfg.Backend.Set(ctx, key, ttl, v)
	if !wait || ch == nil {
		if ch != nil {
			go drainSetError(ch, c.cfg.Logger, key)
		}
		return
	}
	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.SetWaitDuration)
	defer cancel()
	select {
	case err := <-ch:
		if err != nil {
			c.cfg.Logger.Warn("backend set failed", Fields{"key": key, "err": err})
		}
	case <-waitCtx.Done():
		c.cfg.Logger.Warn("timeout waiting for backend set", Fields{"key": key})
	}
}

// asyncBackendSet is always fire-and-forget: used for the stale tier, whose
// write must be issued before the fresh write but never blocks it.
func (c *cache[V]) asyncBackendSet(ctx context.Context, key string, v V, ttl time.Duration) {
	c.cfg.Metrics.IncrementCounter(CounterDistributedCacheWrites)
	ch := c.cfg.Backend.Set(ctx, key, ttl, v)
	if ch == nil {
		return
	}
	go drainSetError(ch, c.cfg.Logger, key)
}

func drainSetError(ch <-chan error, logger Logger, key string) {
	if err := <-ch; err != nil {
		logger.Warn("backend set failed", Fields{"key": key, "err": err})
	}
}

func failedResult[V any](err error) *PendingResult[V] {
	p := newPendingResult[V]()
	p.fail(err)
	return p
}

func resolvedResult[V any](v V) *PendingResult[V] {
	p := newPendingResult[V]()
	p.resolve(v)
	return p
}

func zeroOf[V any]() V {
	var zero V
	return zero
}

// isNilValue reports whether v is a nil pointer/interface/slice/map/chan/
// func. Go generics give no uniform nil-comparable constraint over `any`,
// so this falls back to reflection to mirror the original implementation's
// "Supplier returned null" check for reference-typed V.
func isNilValue[V any](v V) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return rv.IsNil()
	default:
		return false
	}
}
