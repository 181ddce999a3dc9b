// Package zap adapts herdcache.Logger to a *zap.Logger.
package zap

import (
	"github.com/dominictootell/herdcache/herdcache"
	"go.uber.org/zap"
)

// Logger wraps a *zap.Logger to satisfy herdcache.Logger.
type Logger struct{ L *zap.Logger }

func (z Logger) Debug(msg string, f herdcache.Fields) { z.L.Debug(msg, zf(f)...) }
func (z Logger) Info(msg string, f herdcache.Fields)  { z.L.Info(msg, zf(f)...) }
func (z Logger) Warn(msg string, f herdcache.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z Logger) Error(msg string, f herdcache.Fields) { z.L.Error(msg, zf(f)...) }

func zf(f herdcache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		out = append(out, zap.Any(k, v))
	}
	return out
}

var _ herdcache.Logger = Logger{}
