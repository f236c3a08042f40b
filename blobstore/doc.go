// Package blobstore abstracts where asset content lives.
//
// The cache itself never touches files; loaders receive a Store through
// their load context and read whatever blobs they need. Backends:
//
//   - LocalStore: memory-mapped files under a root directory
//   - MemoryStore: in-memory, for tests
//   - blobstore/s3: AWS S3 (ranged reads, streaming uploads)
//   - blobstore/minio: MinIO and other S3-compatible object stores
//
// WithDecompression wraps any Store and transparently decompresses
// blobs written in the framed zstd/lz4 format produced by Compress,
// verifying a CRC32C checksum on the way in. Blobs without the frame
// magic pass through untouched.
package blobstore
