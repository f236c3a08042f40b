// Package arena provides the scratch memory that backs loader
// execution.
//
// An Arena is a chunked bump allocator over anonymous memory mappings:
// allocation is a CAS on the current chunk's offset, and Reset rewinds
// everything in one step instead of freeing individual allocations.
// Loader working memory is short-lived and discarded wholesale after
// each load or unload call, which is exactly the pattern arenas are
// good at.
//
// A ScratchPool hands out one arena per loader invocation so concurrent
// loads never contend on a single allocator lock.
package arena

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/gamecache/internal/mmap"
)

// MemoryAcquirer is consulted before an arena grows. It lets a budget
// controller cap total scratch memory across all arenas.
type MemoryAcquirer interface {
	AcquireMemory(ctx context.Context, bytes int64) error
	ReleaseMemory(bytes int64)
}

// ErrAllocationFailed is returned when an allocation cannot be
// satisfied.
var ErrAllocationFailed = errors.New("arena: allocation failed")

const (
	// DefaultChunkSize is the default chunk size (1 MiB).
	DefaultChunkSize = 1 << 20
	// DefaultRetainBytes is the capacity kept across Reset calls.
	DefaultRetainBytes = 4 << 20
	// alignment for all allocations.
	alignment = 8
)

type chunk struct {
	mapping *mmap.Mapping
	data    []byte
	offset  atomic.Int64
}

// Arena is a chunked bump allocator. Allocations may happen from
// multiple goroutines; Reset and Free must not run concurrently with
// allocations.
type Arena struct {
	chunkSize   int
	retainBytes int
	acquirer    MemoryAcquirer

	mu      sync.Mutex // guards chunk growth
	chunks  []*chunk
	current atomic.Pointer[chunk]

	used atomic.Int64

	// poolIndex is the slot in the owning ScratchPool, or -1.
	poolIndex int
}

// Option configures an Arena.
type Option func(*Arena)

// WithMemoryAcquirer sets the memory acquirer consulted on growth.
func WithMemoryAcquirer(acquirer MemoryAcquirer) Option {
	return func(a *Arena) {
		a.acquirer = acquirer
	}
}

// New creates an Arena with one pre-allocated chunk.
func New(chunkSize, retainBytes int, opts ...Option) (*Arena, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if retainBytes < chunkSize {
		retainBytes = chunkSize
	}

	a := &Arena{
		chunkSize:   chunkSize,
		retainBytes: retainBytes,
		poolIndex:   -1,
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := a.grow(chunkSize); err != nil {
		return nil, err
	}
	return a, nil
}

// grow appends a chunk of at least size bytes. Callers must not hold mu.
func (a *Arena) grow(size int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.growLocked(size)
}

func (a *Arena) growLocked(size int) error {
	if size < a.chunkSize {
		size = a.chunkSize
	}

	if a.acquirer != nil {
		if err := a.acquirer.AcquireMemory(context.Background(), int64(size)); err != nil {
			return fmt.Errorf("%w: %w", ErrAllocationFailed, err)
		}
	}

	m, err := mmap.MapAnon(size)
	if err != nil {
		if a.acquirer != nil {
			a.acquirer.ReleaseMemory(int64(size))
		}
		return fmt.Errorf("%w: %w", ErrAllocationFailed, err)
	}

	c := &chunk{mapping: m, data: m.Bytes()}
	a.chunks = append(a.chunks, c)
	a.current.Store(c)
	return nil
}

// AllocBytes allocates size bytes. The slice is valid until the next
// Reset or Free.
func (a *Arena) AllocBytes(size int) ([]byte, error) {
	if size <= 0 {
		return nil, nil
	}
	aligned := (size + alignment - 1) &^ (alignment - 1)

	for {
		curr := a.current.Load()
		if curr == nil {
			return nil, fmt.Errorf("%w: arena is closed", ErrAllocationFailed)
		}

		if buf := tryAlloc(curr, size, aligned); buf != nil {
			a.used.Add(int64(aligned))
			return buf, nil
		}

		// Current chunk is full; grow under the lock unless someone beat
		// us to it.
		if a.current.Load() != curr {
			continue
		}
		a.mu.Lock()
		if a.current.Load() != curr {
			a.mu.Unlock()
			continue
		}
		err := a.growLocked(aligned)
		a.mu.Unlock()
		if err != nil {
			return nil, err
		}
	}
}

func tryAlloc(c *chunk, size, aligned int) []byte {
	old := c.offset.Load()
	next := old + int64(aligned)
	if next > int64(len(c.data)) {
		return nil
	}
	if !c.offset.CompareAndSwap(old, next) {
		return nil
	}
	return c.data[old : old+int64(size) : next]
}

// Used returns the bytes handed out since the last Reset.
func (a *Arena) Used() int64 {
	return a.used.Load()
}

// Reset rewinds the arena, invalidating every slice it handed out.
// Capacity up to the retained ceiling is kept mapped for reuse; excess
// chunks are returned to the OS. Must not race with AllocBytes.
// Resetting a freed arena is a no-op.
func (a *Arena) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.chunks) == 0 {
		return
	}

	kept := 0
	retained := 0
	for _, c := range a.chunks {
		if kept == 0 || retained+len(c.data) <= a.retainBytes {
			c.offset.Store(0)
			retained += len(c.data)
			a.chunks[kept] = c
			kept++
			continue
		}
		a.release(c)
	}
	a.chunks = a.chunks[:kept]
	a.current.Store(a.chunks[0])
	a.used.Store(0)
}

// Free returns all memory to the OS. The arena cannot be reused.
func (a *Arena) Free() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, c := range a.chunks {
		a.release(c)
	}
	a.chunks = nil
	a.current.Store(nil)
	a.used.Store(0)
}

func (a *Arena) release(c *chunk) {
	size := int64(len(c.data))
	_ = c.mapping.Close()
	if a.acquirer != nil {
		a.acquirer.ReleaseMemory(size)
	}
}
