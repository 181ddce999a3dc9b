package hashing

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
)

// MD5 hex-encodes an MD5 digest of the key. No third-party library in the
// surveyed corpus offers a message digest, so this leans on crypto/md5
// directly; keep it for interop with systems that already key memcached
// entries by MD5.
type MD5 struct{}

func (MD5) Hash(key string) string {
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

// SHA256 hex-encodes a SHA-256 digest of the key.
type SHA256 struct{}

func (SHA256) Hash(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
