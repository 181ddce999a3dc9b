package herdcache

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/dominictootell/herdcache/internal/util"
	"github.com/dominictootell/herdcache/policy"
)

// promiseTable is the bounded, sharded CanonicalKey -> *PendingResult[V]
// map. putIfAbsent is atomic under a shard lock; eviction only removes the
// table's own bookkeeping entry -- a waiter that already holds a
// *PendingResult[V] reference still observes it resolve normally, since the
// promise and the table entry are independent objects.
type promiseTable[V any] struct {
	shards []*tableShard[V]
	mask   uint64
}

func newPromiseTable[V any](capacity, shardCount int, pol policy.Policy[string, *PendingResult[V]]) *promiseTable[V] {
	if capacity <= 0 {
		capacity = 1
	}
	if shardCount <= 0 {
		shardCount = util.ReasonableShardCount()
	} else {
		shardCount = int(util.NextPow2(uint64(shardCount)))
	}
	// Never run more shards than entries, and split capacity so the
	// per-shard bounds sum to exactly capacity.
	for shardCount > 1 && shardCount > capacity {
		shardCount /= 2
	}
	shards := make([]*tableShard[V], shardCount)
	for i := range shards {
		perShardCap := capacity / shardCount
		if i < capacity%shardCount {
			perShardCap++
		}
		shards[i] = newTableShard[V](perShardCap, pol)
	}
	return &promiseTable[V]{shards: shards, mask: uint64(shardCount - 1)}
}

func (t *promiseTable[V]) shardFor(key string) *tableShard[V] {
	return t.shards[xxhash.Sum64String(key)&t.mask]
}

// putIfAbsent inserts p under key if no entry exists yet and returns nil, or
// returns the existing entry's promise without modifying the table.
func (t *promiseTable[V]) putIfAbsent(key string, p *PendingResult[V]) *PendingResult[V] {
	return t.shardFor(key).putIfAbsent(key, p)
}

func (t *promiseTable[V]) get(key string) *PendingResult[V] {
	return t.shardFor(key).get(key)
}

func (t *promiseTable[V]) remove(key string) {
	t.shardFor(key).remove(key)
}

func (t *promiseTable[V]) clear() {
	for _, s := range t.shards {
		s.clear()
	}
}

func (t *promiseTable[V]) len() int {
	n := 0
	for _, s := range t.shards {
		n += s.len()
	}
	return n
}

// evictions sums each shard's padded atomic eviction counter. Reading it
// never contends with the per-shard mutex that guards the hot put/get path.
func (t *promiseTable[V]) evictions() int64 {
	var n int64
	for _, s := range t.shards {
		n += s.evictions.Load()
	}
	return n
}

// tableShard is an independent partition of a promiseTable with its own
// lock, map, and intrusive MRU/LRU list, following the teacher's sharded-map
// layout but bounded purely on entry count (no TTL/cost accounting -- a
// promise is either in flight or it is not).
type tableShard[V any] struct {
	mu   sync.Mutex
	m    map[string]*tableNode[V]
	head *tableNode[V]
	tail *tableNode[V]
	n    int
	cap  int
	pol  policy.ShardPolicy[string, *PendingResult[V]]

	// evictions is updated under mu but read lock-free from Stats/metrics
	// goroutines; padded to keep it off the cache line mu and the map
	// header live on.
	evictions util.PaddedAtomicInt64
}

func newTableShard[V any](capacity int, pol policy.Policy[string, *PendingResult[V]]) *tableShard[V] {
	s := &tableShard[V]{m: make(map[string]*tableNode[V], capacity), cap: capacity}
	s.pol = pol.New(tableShardHooks[V]{s: s})
	return s
}

func (s *tableShard[V]) putIfAbsent(key string, p *PendingResult[V]) *PendingResult[V] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.m[key]; ok {
		return n.val
	}
	n := &tableNode[V]{key: key, val: p}
	s.m[key] = n
	if ev := s.pol.OnAdd(n); ev != nil {
		s.evictLocked(ev.(*tableNode[V]))
	}
	s.enforceCapacityLocked()
	return nil
}

func (s *tableShard[V]) get(key string) *PendingResult[V] {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[key]
	if !ok {
		return nil
	}
	s.pol.OnGet(n)
	return n.val
}

func (s *tableShard[V]) remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[key]
	if !ok {
		return
	}
	s.pol.OnRemove(n)
	s.removeNodeLocked(n)
	delete(s.m, key)
}

func (s *tableShard[V]) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = make(map[string]*tableNode[V])
	s.head, s.tail = nil, nil
	s.n = 0
}

func (s *tableShard[V]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// -------------------- internals (mu held) --------------------

func (s *tableShard[V]) insertFrontLocked(n *tableNode[V]) {
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
	s.n++
}

func (s *tableShard[V]) moveToFrontLocked(n *tableNode[V]) {
	if n == s.head {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
}

func (s *tableShard[V]) removeNodeLocked(n *tableNode[V]) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.head == n {
		s.head = n.next
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev, n.next = nil, nil
	s.n--
}

func (s *tableShard[V]) backLocked() *tableNode[V] { return s.tail }

func (s *tableShard[V]) evictLocked(n *tableNode[V]) {
	s.pol.OnRemove(n)
	s.removeNodeLocked(n)
	delete(s.m, n.key)
	s.evictions.Add(1)
}

func (s *tableShard[V]) enforceCapacityLocked() {
	for s.n > s.cap {
		tail := s.backLocked()
		if tail == nil {
			break
		}
		s.evictLocked(tail)
	}
}

// -------------------- policy hooks --------------------

type tableShardHooks[V any] struct{ s *tableShard[V] }

func (h tableShardHooks[V]) MoveToFront(x policy.Node[string, *PendingResult[V]]) {
	h.s.moveToFrontLocked(x.(*tableNode[V]))
}
func (h tableShardHooks[V]) PushFront(x policy.Node[string, *PendingResult[V]]) {
	h.s.insertFrontLocked(x.(*tableNode[V]))
}
func (h tableShardHooks[V]) Remove(x policy.Node[string, *PendingResult[V]]) {
	h.s.removeNodeLocked(x.(*tableNode[V]))
}
func (h tableShardHooks[V]) Back() policy.Node[string, *PendingResult[V]] {
	if h.s.tail == nil {
		return nil
	}
	return h.s.tail
}
func (h tableShardHooks[V]) Len() int { return h.s.n }
