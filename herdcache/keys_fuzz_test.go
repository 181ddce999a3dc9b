//go:build go1.18

package herdcache

import (
	"strings"
	"testing"
)

// Fuzz canonicalKey/staleKey derivation under arbitrary prefix/key inputs.
// Guards against panics and checks the invariants that hold regardless of
// policy: staleKey always extends canonicalKey, and hashing the same inputs
// twice must be deterministic.
func FuzzCanonicalKey(f *testing.F) {
	f.Add("", "", false, "")
	f.Add("ns:", "a", false, "stale")
	f.Add("ns:", "a", true, "stale:")
	f.Add("", strings.Repeat("x", 512), true, "s")

	f.Fuzz(func(t *testing.T, prefix, userKey string, hashPrefix bool, stalePrefix string) {
		const limit = 1 << 10
		if len(userKey) > limit {
			userKey = userKey[:limit]
		}

		h := identityHasher{}
		k1 := canonicalKey(h, prefix, hashPrefix, userKey)
		k2 := canonicalKey(h, prefix, hashPrefix, userKey)
		if k1 != k2 {
			t.Fatalf("canonicalKey is not deterministic: %q vs %q", k1, k2)
		}

		sk := staleKey(stalePrefix, k1)
		if !strings.HasPrefix(sk, stalePrefix) {
			t.Fatalf("staleKey %q must start with stalePrefix %q", sk, stalePrefix)
		}
		if !strings.HasSuffix(sk, k1) {
			t.Fatalf("staleKey %q must end with the canonical key %q", sk, k1)
		}
	})
}
