package herdcache

import "time"

// canonicalKey derives the string actually stored against the backend and
// used as the PromiseTable key. Three policies, selected by prefix/
// hashPrefix:
//   - no prefix:        hash(userKey)
//   - prefix, unhashed: prefix + hash(userKey)
//   - prefix, hashed:   hash(prefix + userKey)
func canonicalKey(h Hasher, prefix string, hashPrefix bool, userKey string) string {
	switch {
	case prefix == "":
		return h.Hash(userKey)
	case hashPrefix:
		return h.Hash(prefix + userKey)
	default:
		return prefix + h.Hash(userKey)
	}
}

// staleKey namespaces a canonical key for the stale tier.
func staleKey(stalePrefix, canonical string) string {
	return stalePrefix + canonical
}

// ttlSeconds truncates sub-second TTLs to 0, matching the memcached
// convention that a zero expiry means "no expiry".
func ttlSeconds(d time.Duration) int64 {
	if d < time.Second {
		return 0
	}
	return int64(d / time.Second)
}
