package herdcache

import "context"

// lookupStale implements StalePath: it claims a promise in the stale
// PromiseTable keyed by staleKey(freshKey), and resolves it from the stale
// tier's own backend entry. On a stale-tier miss or error it degrades to
// the fresh computation's own eventual outcome -- freshFuture -- so a
// caller racing a still-computing fresh value never sees a failure the
// fresh path itself wouldn't have produced.
func (c *cache[V]) lookupStale(ctx context.Context, freshKey string, freshFuture *PendingResult[V], o applyOptions[V]) *PendingResult[V] {
	sKey := staleKey(c.cfg.StalePrefix, freshKey)

	p := newPendingResult[V]()
	if prior := c.stale.putIfAbsent(sKey, p); prior != nil {
		c.cfg.Metrics.CacheHit(CacheTypeStaleValueCalculation)
		c.logHit(sKey, CacheTypeStaleValueCalculation)
		return prior
	}
	c.cfg.Metrics.CacheMiss(CacheTypeStaleValueCalculation)
	c.logMiss(sKey, CacheTypeStaleValueCalculation)

	detached := context.WithoutCancel(ctx)
	c.cfg.Executor.Go(func() {
		if v, ok := c.backendGet(detached, sKey, c.cfg.StaleBackendGetTimeout, CacheTypeStaleCache); ok {
			c.publishSuccess(p, v, sKey, c.stale)
			return
		}
		fv, ferr := freshFuture.Wait(context.Background())
		if ferr != nil {
			c.publishFailure(p, ferr, sKey, c.stale)
			return
		}
		c.publishSuccess(p, fv, sKey, c.stale)
	})
	return p
}
