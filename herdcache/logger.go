package herdcache

// Fields is a set of structured key/value pairs attached to a log line.
type Fields map[string]any

// Logger receives structured debug/info/warn/error lines. A cache hit or
// miss is always logged at Debug with exactly the two fields the operation
// cares about (e.g. {"cachehit": key, "cachetype": cacheType}), so that a
// JSON-encoding Logger (see logging/zap) produces a single-purpose line per
// event rather than a free-text message.
type Logger interface {
	Debug(msg string, fields Fields)
	Info(msg string, fields Fields)
	Warn(msg string, fields Fields)
	Error(msg string, fields Fields)
}

// NopLogger discards every line. It is the default Logger.
type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}

var _ Logger = NopLogger{}

func (c *cache[V]) logHit(key, cacheType string) {
	c.cfg.Logger.Debug("cache hit", Fields{"cachehit": key, "cachetype": cacheType})
}

func (c *cache[V]) logMiss(key, cacheType string) {
	c.cfg.Logger.Debug("cache miss", Fields{"cachemiss": key, "cachetype": cacheType})
}
