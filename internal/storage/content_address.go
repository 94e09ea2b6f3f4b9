package storage

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// ContentID returns the hex-encoded blake2b-256 digest of data: the
// content-addressed identifier programs and stored value blobs are keyed
// by (spec.md §6's "content addressing for programs and blobs"). Two
// callers storing byte-identical blobs land on the same key, so the
// store naturally deduplicates.
func ContentID(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
