// Package hash provides the hashing primitives used across gamecache.
//
// Handle derivation uses FNV-1a 64, which is stable across processes and
// platforms, so a handle computed from an asset path today identifies the
// same cache cell tomorrow. Blob integrity checks use CRC32-Castagnoli,
// which is hardware accelerated on x86 (SSE4.2) and ARM (CRC extension).
package hash

import (
	"hash"
	"hash/crc32"
)

const (
	fnvOffset64 = 14695981039346656037
	fnvPrime64  = 1099511628211
)

// Sum64 computes the FNV-1a 64 hash of data.
func Sum64(data []byte) uint64 {
	h := uint64(fnvOffset64)
	for _, b := range data {
		h ^= uint64(b)
		h *= fnvPrime64
	}
	return h
}

// Sum64String computes the FNV-1a 64 hash of s without allocating.
func Sum64String(s string) uint64 {
	h := uint64(fnvOffset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= fnvPrime64
	}
	return h
}

// crc32cTable is pre-computed for the CRC32-Castagnoli polynomial.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// NewCRC32C returns a streaming CRC32-Castagnoli hash.Hash32.
func NewCRC32C() hash.Hash32 {
	return crc32.New(crc32cTable)
}
