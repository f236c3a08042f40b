// Package asset defines the capability contract between the cache and
// the resource types it manages.
//
// A resource type (texture, mesh, shader, ...) makes itself cacheable by
// supplying a Loader. The cache never inspects the loaded value; it only
// drives Load/Unload at the right times and hands out references.
package asset

import (
	"context"

	"github.com/hupe1980/gamecache/blobstore"
	"github.com/hupe1980/gamecache/internal/hash"
)

// Handle is a stable integer identifying a cacheable resource. It is
// derived from the Loader's hash, is safe to copy, compare, and pass
// across goroutines, and never changes meaning for the lifetime of the
// Manager that issued it.
type Handle uint64

// InvalidHandle is never issued for a resource.
const InvalidHandle Handle = 0

// Allocator hands out scratch memory to a loader invocation. Memory
// obtained from it is valid only until the load or unload call returns;
// anything the loader wants to retain must be copied out.
type Allocator interface {
	AllocBytes(size int) ([]byte, error)
}

// ThrottleFunc rate-limits content IO. Loaders call it before large
// reads so background loads do not starve the frame loop of bandwidth.
type ThrottleFunc func(ctx context.Context, bytes int) error

// LoadContext carries everything a Loader needs to produce its resource.
type LoadContext struct {
	// Content is the read-only source of asset bytes.
	Content blobstore.Store
	// Scratch is working memory for the duration of the call.
	Scratch Allocator
	// Throttle is optional; nil means unlimited IO.
	Throttle ThrottleFunc
}

// ThrottleIO applies the context's IO throttle, if any.
func (lc *LoadContext) ThrottleIO(ctx context.Context, bytes int) error {
	if lc.Throttle == nil {
		return nil
	}
	return lc.Throttle(ctx, bytes)
}

// Loader is the capability a resource type supplies to be cacheable.
//
// Hash must be deterministic over the resource's identity (its path or
// content digest): two Loaders that hash identically are treated as the
// same cached resource. Load and Unload are invoked by at most one
// goroutine at a time per cache cell; the loaded value must be treated
// as read-only by everyone else once Load returns.
type Loader interface {
	Hash() uint64
	Load(ctx context.Context, lc *LoadContext) error
	Unload(scratch Allocator)
}

// Sizer is an optional interface for Loaders that can report the size
// of their loaded resource. The Manager uses it for memory accounting.
type Sizer interface {
	SizeBytes() int64
}

// HashBytes derives a handle-compatible hash from identifying bytes.
// The result is never zero, so it cannot collide with InvalidHandle.
func HashBytes(data []byte) uint64 {
	return NormalizeHash(hash.Sum64(data))
}

// HashString derives a handle-compatible hash from an identifying
// string, typically an asset path.
func HashString(s string) uint64 {
	return NormalizeHash(hash.Sum64String(s))
}

// NormalizeHash maps a raw Loader hash into handle space. Zero is
// reserved for InvalidHandle and remaps to a fixed odd constant; every
// other value passes through unchanged.
func NormalizeHash(h uint64) uint64 {
	if h == 0 {
		return 0x9e3779b97f4a7c15
	}
	return h
}
