package herdcache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func newTestCache(t *testing.T, backend *fakeBackend[string]) Cache[string] {
	t.Helper()
	c, err := New[string](Config[string]{
		Backend: backend,
		Hasher:  identityHasher{},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Shutdown(context.Background()) })
	return c
}

// Concurrent Apply calls for the same key must coalesce: compute runs
// exactly once no matter how many goroutines race to claim it.
func TestApply_SingleFlight(t *testing.T) {
	t.Parallel()

	var calls int64
	backend := newFakeBackend[string]()
	c := newTestCache(t, backend)

	compute := func(ctx context.Context) (string, error) {
		atomic.AddInt64(&calls, 1)
		time.Sleep(5 * time.Millisecond)
		return "v:k", nil
	}

	const n = 64
	var g errgroup.Group
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for i := 0; i < n; i++ {
		g.Go(func() error {
			v, err := c.Apply(ctx, "k", compute).Wait(ctx)
			if err != nil {
				return err
			}
			if v != "v:k" {
				return errors.New("unexpected value " + v)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("compute must run exactly once, ran %d times", got)
	}
}

// A backend hit on the fresh key must short-circuit compute entirely.
func TestApply_BackendHitSkipsCompute(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend[string]()
	backend.data["k"] = "from-backend"
	c := newTestCache(t, backend)

	called := false
	v, err := c.Apply(context.Background(), "k", func(ctx context.Context) (string, error) {
		called = true
		return "from-compute", nil
	}).Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if called {
		t.Fatal("compute must not run on a backend hit")
	}
	if v != "from-backend" {
		t.Fatalf("want from-backend, got %q", v)
	}
}

// A failing computation fails every observer and never reaches the backend.
func TestApply_ComputeFailurePropagates(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("boom")
	backend := newFakeBackend[string]()
	c := newTestCache(t, backend)

	_, err := c.Apply(context.Background(), "k", func(ctx context.Context) (string, error) {
		return "", wantErr
	}).Wait(context.Background())
	if !errors.Is(err, wantErr) {
		t.Fatalf("want %v, got %v", wantErr, err)
	}
	if backend.has("k") {
		t.Fatal("failed computation must not be written to the backend")
	}
}

// CanCacheValue can veto a successful computation's backend write.
func TestApply_CanCacheValueRejectsWrite(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend[string]()
	c := newTestCache(t, backend)

	_, err := c.Apply(context.Background(), "k", func(ctx context.Context) (string, error) {
		return "v", nil
	}, WithCanCacheValue(func(string) bool { return false })).Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if backend.has("k") {
		t.Fatal("rejected value must not reach the backend")
	}
}

// When the backend is unavailable, Apply still coalesces locally and never
// touches the backend.
func TestApply_BackendUnavailableDegradesToLocalOnly(t *testing.T) {
	t.Parallel()

	var calls int64
	backend := newFakeBackend[string]()
	backend.available.Store(false)
	c := newTestCache(t, backend)

	v, err := c.Apply(context.Background(), "k", func(ctx context.Context) (string, error) {
		atomic.AddInt64(&calls, 1)
		return "computed", nil
	}).Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v != "computed" {
		t.Fatalf("want computed, got %q", v)
	}
	if len(backend.setOrder()) != 0 {
		t.Fatal("no backend writes should occur while unavailable")
	}
}

// The stale tier's write must be issued before the fresh tier's write on a
// successful computation.
func TestApply_StaleWritePrecedesFreshWrite(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend[string]()
	c, err := New[string](Config[string]{
		Backend:       backend,
		Hasher:        identityHasher{},
		UseStaleCache: true,
		StalePrefix:   "stale:",
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Shutdown(context.Background()) })

	_, err = c.Apply(context.Background(), "k", func(ctx context.Context) (string, error) {
		return "v", nil
	}).Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// Writes race with the publish; poll briefly for both to land.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && len(backend.setOrder()) < 2 {
		time.Sleep(time.Millisecond)
	}

	order := backend.setOrder()
	if len(order) != 2 {
		t.Fatalf("want 2 backend writes, got %v", order)
	}
	if order[0] != "stale:k" || order[1] != "k" {
		t.Fatalf("want stale write before fresh write, got %v", order)
	}
}

// ClearKey deletes the stale entry before the fresh entry.
func TestClearKey_DeletesStaleBeforeFresh(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend[string]()
	c, err := New[string](Config[string]{
		Backend:       backend,
		Hasher:        identityHasher{},
		UseStaleCache: true,
		StalePrefix:   "stale:",
		WaitForRemove: time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Shutdown(context.Background()) })

	c.ClearKey(context.Background(), "k")

	order := backend.delOrder()
	if len(order) != 2 || order[0] != "stale:k" || order[1] != "k" {
		t.Fatalf("want [stale:k k], got %v", order)
	}
}

// Shutdown is idempotent and operations after it fail with ErrShutdown.
func TestShutdown_IdempotentAndRejectsLateOps(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend[string]()
	c, err := New[string](Config[string]{Backend: backend, Hasher: identityHasher{}})
	if err != nil {
		t.Fatal(err)
	}
	c.Shutdown(context.Background())
	c.Shutdown(context.Background()) // must not panic

	_, err = c.Apply(context.Background(), "k", func(ctx context.Context) (string, error) {
		return "v", nil
	}).Wait(context.Background())
	if !errors.Is(err, ErrShutdown) {
		t.Fatalf("want ErrShutdown, got %v", err)
	}
}

// The fresh PromiseTable never exceeds MaxCapacity.
func TestApply_PromiseTableIsBounded(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend[string]()
	backend.getDelay = 20 * time.Millisecond
	c, err := New[string](Config[string]{
		Backend:     backend,
		Hasher:      identityHasher{},
		MaxCapacity: 4,
		TableShards: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Shutdown(context.Background()) })

	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	cc, ok := c.(*cache[string])
	if !ok {
		t.Fatal("expected *cache[string]")
	}
	for i := 0; i < 32; i++ {
		key := string(rune('a' + i%26))
		c.Apply(context.Background(), key, func(ctx context.Context) (string, error) {
			<-block
			return "v", nil
		})
		if n := cc.fresh.len(); n > 4 {
			t.Fatalf("table grew past capacity: %d", n)
		}
	}
}
