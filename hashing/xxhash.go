// Package hashing provides Hasher implementations for herdcache's canonical
// key derivation.
package hashing

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// XXHash hashes a key with xxhash and renders it as a base-36 string
// (at most 13 characters, not zero-padded), matching the compactness a
// memcached key budget rewards.
type XXHash struct{}

func (XXHash) Hash(key string) string {
	return strconv.FormatUint(xxhash.Sum64String(key), 36)
}
