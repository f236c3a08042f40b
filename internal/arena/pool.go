package arena

import (
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bitset"
)

// ScratchPool is a fixed set of arenas handed out one per loader
// invocation, plus a shared overflow arena for the case where every
// pooled arena is busy.
//
// The pooled arenas give each concurrent load private scratch memory
// with no allocator contention. Availability is a bitset guarded by a
// short critical section; the arenas' contents are never touched under
// that lock. The overflow arena is shared by however many callers spill
// into it and is reset only when the last of them releases it.
type ScratchPool struct {
	mu     sync.Mutex
	avail  *bitset.BitSet
	arenas []*Arena

	overflow      *Arena
	overflowUsers atomic.Int32
	overflowGrabs atomic.Uint64
}

// NewScratchPool creates a pool of n arenas plus the overflow arena.
func NewScratchPool(n, chunkSize, retainBytes int, opts ...Option) (*ScratchPool, error) {
	if n <= 0 {
		n = 1
	}

	p := &ScratchPool{
		avail:  bitset.New(uint(n)),
		arenas: make([]*Arena, n),
	}
	for i := 0; i < n; i++ {
		a, err := New(chunkSize, retainBytes, opts...)
		if err != nil {
			p.Free()
			return nil, err
		}
		a.poolIndex = i
		p.arenas[i] = a
		p.avail.Set(uint(i))
	}

	overflow, err := New(chunkSize, retainBytes, opts...)
	if err != nil {
		p.Free()
		return nil, err
	}
	p.overflow = overflow
	return p, nil
}

// Acquire hands out an arena for the duration of one load or unload
// call. It never blocks: when all pooled arenas are busy, the shared
// overflow arena is returned instead.
func (p *ScratchPool) Acquire() *Arena {
	p.mu.Lock()
	if i, ok := p.avail.NextSet(0); ok {
		p.avail.Clear(i)
		p.mu.Unlock()
		return p.arenas[i]
	}
	// Taking the user count under the same lock keeps a release-time
	// reset from racing a fresh overflow acquisition.
	p.overflowUsers.Add(1)
	p.mu.Unlock()

	p.overflowGrabs.Add(1)
	return p.overflow
}

// Release returns an arena to the pool. Pooled arenas are reset to
// their retained baseline immediately; the overflow arena is reset only
// when its user count drops to zero, since others may still hold
// allocations from it.
func (p *ScratchPool) Release(a *Arena) {
	if a == nil {
		return
	}
	if a == p.overflow {
		p.mu.Lock()
		if p.overflowUsers.Add(-1) == 0 {
			a.Reset()
		}
		p.mu.Unlock()
		return
	}

	a.Reset()
	p.mu.Lock()
	p.avail.Set(uint(a.poolIndex))
	p.mu.Unlock()
}

// OverflowAcquires reports how often callers spilled into the overflow
// arena. A steadily climbing value means the pool is undersized.
func (p *ScratchPool) OverflowAcquires() uint64 {
	return p.overflowGrabs.Load()
}

// Free releases every arena. The pool cannot be reused.
func (p *ScratchPool) Free() {
	p.mu.Lock()
	p.avail.ClearAll()
	p.mu.Unlock()

	for _, a := range p.arenas {
		if a != nil {
			a.Free()
		}
	}
	if p.overflow != nil {
		p.overflow.Free()
	}
}
