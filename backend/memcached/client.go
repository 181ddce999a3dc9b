// Package memcached adapts github.com/bradfitz/gomemcache/memcache to
// herdcache.BackendClient.
package memcached

import (
	"context"
	"errors"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/dominictootell/herdcache/codec"
	"github.com/dominictootell/herdcache/herdcache"
)

// Client is a herdcache.BackendClient backed by a memcached connection pool.
// The zero value is not usable; construct with New.
type Client[V any] struct {
	mc    *memcache.Client
	codec codec.Codec[V]
}

// New builds a Client dialing the given memcached servers (host:port pairs,
// using gomemcache's default server list, which picks a server by the
// CRC32 of the key modulo the number of addresses). enc is the
// serialization strategy; pass
// codec.JSON[V]{} for a sane default.
func New[V any](enc codec.Codec[V], servers ...string) *Client[V] {
	return &Client[V]{mc: memcache.New(servers...), codec: enc}
}

// Get implements herdcache.BackendClient. gomemcache has no native
// per-call context support, so the round trip is run on its own goroutine
// and raced against ctx/timeout; a timeout or cancellation abandons the
// goroutine (it still completes and is garbage collected once the Get
// returns, gomemcache has no cancellation hook).
func (c *Client[V]) Get(ctx context.Context, key string, timeout time.Duration) (V, bool, error) {
	var zero V
	type result struct {
		item *memcache.Item
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		item, err := c.mc.Get(key)
		ch <- result{item, err}
	}()

	deadline, cancel := withTimeout(ctx, timeout)
	defer cancel()
	select {
	case <-deadline.Done():
		return zero, false, deadline.Err()
	case r := <-ch:
		if errors.Is(r.err, memcache.ErrCacheMiss) {
			return zero, false, nil
		}
		if r.err != nil {
			return zero, false, r.err
		}
		v, err := c.codec.Decode(r.item.Value)
		if err != nil {
			return zero, false, err
		}
		return v, true, nil
	}
}

// Set implements herdcache.BackendClient. ttl is already truncated to whole
// seconds by the caller; memcached treats zero as "never expires".
func (c *Client[V]) Set(ctx context.Context, key string, ttl time.Duration, value V) <-chan error {
	ch := make(chan error, 1)
	go func() {
		b, err := c.codec.Encode(value)
		if err != nil {
			ch <- err
			return
		}
		ch <- c.mc.Set(&memcache.Item{
			Key:        key,
			Value:      b,
			Expiration: int32(ttl / time.Second),
		})
	}()
	return ch
}

// Delete implements herdcache.BackendClient. A miss is not an error: the
// key is already absent, which is the caller's desired end state.
func (c *Client[V]) Delete(ctx context.Context, key string) <-chan error {
	ch := make(chan error, 1)
	go func() {
		err := c.mc.Delete(key)
		if errors.Is(err, memcache.ErrCacheMiss) {
			err = nil
		}
		ch <- err
	}()
	return ch
}

// Flush implements herdcache.BackendClient by issuing FlushAll.
func (c *Client[V]) Flush(ctx context.Context) <-chan error {
	ch := make(chan error, 1)
	go func() { ch <- c.mc.FlushAll() }()
	return ch
}

// IsAvailable pings the pool with a lightweight no-op lookup. gomemcache
// does not expose pool health directly, so availability is inferred from
// whether a miss/hit round trip (rather than a connection error) occurs.
func (c *Client[V]) IsAvailable() bool {
	_, err := c.mc.Get("__herdcache_availability_probe__")
	return err == nil || errors.Is(err, memcache.ErrCacheMiss)
}

// Shutdown is a no-op: gomemcache's Client has no explicit close and
// recycles idle connections on its own.
func (c *Client[V]) Shutdown(ctx context.Context) error { return nil }

var _ herdcache.BackendClient[string] = (*Client[string])(nil)

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
