// Package prom adapts herdcache.MetricSink to Prometheus collectors.
package prom

import (
	"time"

	"github.com/dominictootell/herdcache/herdcache"
	"github.com/prometheus/client_golang/prometheus"
)

// Adapter implements herdcache.MetricSink and exports Prometheus counters
// and a histogram. Safe for concurrent use; all Prometheus metric types are
// goroutine-safe.
type Adapter struct {
	hits      *prometheus.CounterVec
	misses    *prometheus.CounterVec
	counters  *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

// New constructs a Prometheus metrics adapter.
//   - reg:         registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "cache_hits_total",
			Help:        "Cache hits by tier",
			ConstLabels: constLabels,
		}, []string{"cache_type"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "cache_misses_total",
			Help:        "Cache misses by tier",
			ConstLabels: constLabels,
		}, []string{"cache_type"}),
		counters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "events_total",
			Help:        "Named counters emitted by the cache",
			ConstLabels: constLabels,
		}, []string{"name"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "duration_seconds",
			Help:        "Named durations emitted by the cache",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"name"}),
	}
	reg.MustRegister(a.hits, a.misses, a.counters, a.durations)
	return a
}

// CacheHit increments the hit counter for the given tier.
func (a *Adapter) CacheHit(cacheType string) { a.hits.WithLabelValues(cacheType).Inc() }

// CacheMiss increments the miss counter for the given tier.
func (a *Adapter) CacheMiss(cacheType string) { a.misses.WithLabelValues(cacheType).Inc() }

// IncrementCounter increments a named event counter.
func (a *Adapter) IncrementCounter(name string) { a.counters.WithLabelValues(name).Inc() }

// SetDuration records a named duration, given in nanoseconds, into a histogram.
func (a *Adapter) SetDuration(name string, nanos int64) {
	a.durations.WithLabelValues(name).Observe(time.Duration(nanos).Seconds())
}

// Compile-time check: ensure Adapter implements herdcache.MetricSink.
var _ herdcache.MetricSink = (*Adapter)(nil)
