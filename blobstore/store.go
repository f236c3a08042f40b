package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store is an abstraction for accessing immutable asset content
// (packed textures, meshes, shader binaries).
type Store interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
}

// Blob is a read-only handle to a content blob.
type Blob interface {
	io.ReaderAt
	io.Closer
	// Size returns the size of the blob in bytes.
	Size() int64
}

// Mappable is an optional interface for Blobs that support zero-copy
// access to the underlying bytes.
type Mappable interface {
	// Bytes returns the underlying byte slice.
	// The slice is valid until the Blob is closed.
	Bytes() ([]byte, error)
}

// WritableBlob is a streaming write handle, used by asset deployment
// helpers and tests. Close commits the blob.
type WritableBlob interface {
	io.Writer
	io.Closer
}

// WritableStore is an optional interface for Stores that can also
// create blobs.
type WritableStore interface {
	Store
	// Create creates a new blob for streaming writes.
	Create(ctx context.Context, name string) (WritableBlob, error)
}
