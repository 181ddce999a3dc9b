package herdcache

// Cache-type strings used as both CacheHit/CacheMiss arguments and, where
// noted in freshpath.go/stalepath.go, as counter/duration metric names.
// Values match the original implementation's CACHE_TYPE_* constants.
const (
	CacheTypeValueCalculation      = "value_calculation_cache"
	CacheTypeStaleValueCalculation = "stale_value_calculation_cache"
	CacheTypeDisabled              = "disabled_cache"
	CacheTypeStaleCache            = "stale_distributed_cache"
	CacheTypeDistributedCache      = "distributed_cache"
)

// Counter and duration metric names recorded around backend writes and
// computations.
const (
	CounterDistributedCacheWrites  = "distributed_cache_writes"
	CounterValueCalculationSuccess = "value_calculation_success"
	CounterValueCalculationFailure = "value_calculation_failure"

	DurationValueCalculationTime = "value_calculation_time"
	DurationValueCalculation     = "value_calculation"
)

// NopMetricSink discards every event. It is the default MetricSink.
type NopMetricSink struct{}

func (NopMetricSink) CacheHit(string)           {}
func (NopMetricSink) CacheMiss(string)          {}
func (NopMetricSink) IncrementCounter(string)   {}
func (NopMetricSink) SetDuration(string, int64) {}

var _ MetricSink = NopMetricSink{}
