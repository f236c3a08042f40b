// Package cell implements the per-resource state machine and the
// handle-to-cell table at the core of the cache.
//
// # State encoding
//
// Each cell carries a single atomic uint32 state word. The top of the
// integer range is reserved for sentinels, in descending order:
//
//	StateLoading     (exclusive, transient)
//	StateUnloading   (exclusive, transient)
//	StateUnloaded    (quiescent, unreferenced)
//	StateMaxRefCount (saturation sentinel, still loaded)
//
// Every value below StateMaxRefCount is a plain reference count, with 0
// meaning "loaded, unreferenced". "Is this a countable reference state"
// is therefore a single unsigned comparison against StateMaxRefCount.
//
// # Ownership
//
// Whichever goroutine wins the CAS into StateLoading or StateUnloading
// owns the transition: it is the only one allowed to mutate the loader's
// resource value, and it must move the state forward (or roll it back)
// before anyone else can act on the cell. All other access is lock-free
// reads and reference-count CAS loops.
package cell

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/gamecache/asset"
)

const (
	// StateLoading marks a cell whose load body is running.
	StateLoading uint32 = math.MaxUint32
	// StateUnloading marks a cell whose unload body is running.
	StateUnloading uint32 = math.MaxUint32 - 1
	// StateUnloaded marks a cell with no loaded resource.
	StateUnloaded uint32 = math.MaxUint32 - 2
	// StateMaxRefCount is the reference-count saturation sentinel. A cell
	// at this value is loaded but cannot accept further references.
	StateMaxRefCount uint32 = math.MaxUint32 - 3
)

// RefResult reports the outcome of a reference-count operation.
type RefResult int

const (
	// RefAdded means the reference was taken and must be paired with
	// RemoveRef.
	RefAdded RefResult = iota
	// RefNotLoaded means the cell holds no loaded resource right now;
	// the caller must load first.
	RefNotLoaded
	// RefSaturated means the count is pinned at the saturation sentinel.
	// Non-fatal: the cell is unchanged.
	RefSaturated
)

// Cell is the per-handle record: one atomic state word plus the owning
// Loader. The state word sits on its own cache line so reference-count
// traffic on one cell does not bounce the line holding its neighbors'
// metadata.
type Cell struct {
	state atomic.Uint32
	_     [60]byte

	loader asset.Loader
	mu     sync.Mutex
	cond   *sync.Cond
}

func newCell(ldr asset.Loader) *Cell {
	c := &Cell{loader: ldr}
	c.cond = sync.NewCond(&c.mu)
	c.state.Store(StateUnloaded)
	return c
}

// Loader returns the capability object this cell was interned with.
func (c *Cell) Loader() asset.Loader {
	return c.loader
}

// StateWord returns the raw state word. Diagnostic use only; the value
// may be stale by the time the caller looks at it.
func (c *Cell) StateWord() uint32 {
	return c.state.Load()
}

// Refs reports the current reference count. ok is false when the cell
// is not in a countable state (unloaded or mid-transition).
func (c *Cell) Refs() (n uint32, ok bool) {
	s := c.state.Load()
	if s > StateMaxRefCount {
		return 0, false
	}
	return s, true
}

// setState publishes a new state and wakes anyone parked on the old one.
// The store happens under the cell mutex so a waiter cannot observe the
// old state, park, and miss the broadcast.
func (c *Cell) setState(s uint32) {
	c.mu.Lock()
	c.state.Store(s)
	c.cond.Broadcast()
	c.mu.Unlock()
}

// waitWhile parks until the state word moves off s. Wakeups may be
// spurious; callers always re-read the state afterwards and re-decide.
func (c *Cell) waitWhile(s uint32) {
	c.mu.Lock()
	for c.state.Load() == s {
		c.cond.Wait()
	}
	c.mu.Unlock()
}

// Load drives the cell to a loaded state, invoking do at most once.
//
// The decision restarts from a fresh state read after every failed CAS
// or wait. ran reports whether this call executed do; when another
// goroutine already loaded the cell (or is loading it right now), Load
// returns immediately with ran == false and no error — loading is
// idempotent.
func (c *Cell) Load(do func() error) (ran bool, err error) {
	for {
		switch s := c.state.Load(); s {
		case StateUnloaded:
			if !c.state.CompareAndSwap(StateUnloaded, StateLoading) {
				continue
			}
			return c.runLoad(do)
		case StateUnloading:
			// An unload body is mid-flight. It always terminates, so this
			// wait is bounded; re-evaluate from the new state afterwards.
			c.waitWhile(StateUnloading)
		default:
			return false, nil
		}
	}
}

// runLoad executes the load body while this goroutine owns the
// StateLoading transition. The rollback to StateUnloaded is deferred so
// it runs on every exit path — error or panic — unless the happy path
// committed first.
func (c *Cell) runLoad(do func() error) (ran bool, err error) {
	committed := false
	defer func() {
		if !committed {
			c.setState(StateUnloaded)
		}
	}()

	if err = do(); err != nil {
		return false, err
	}
	committed = true
	c.setState(0)
	return true, nil
}

// Unload drives the cell to StateUnloaded, invoking do at most once.
// It never fails: unloaded reports whether the cell ended up (or already
// was) unloaded, and is false only while references are outstanding.
func (c *Cell) Unload(do func()) (ran, unloaded bool) {
	for {
		switch s := c.state.Load(); {
		case s == 0:
			if !c.state.CompareAndSwap(0, StateUnloading) {
				continue
			}
			c.runUnload(do)
			return true, true
		case s == StateUnloaded, s == StateUnloading:
			return false, true
		case s == StateLoading:
			c.waitWhile(StateLoading)
		default:
			// References outstanding; progress requires them to drop first.
			return false, false
		}
	}
}

func (c *Cell) runUnload(do func()) {
	// Unload bodies do not fail by contract; the state still lands on
	// StateUnloaded if do panics.
	defer c.setState(StateUnloaded)
	do()
}

// AddRef takes a reference, cooperatively waiting out an in-flight load.
func (c *Cell) AddRef() RefResult {
	return c.addRef(true)
}

// AddRefIfCached takes a reference only if the resource is immediately
// available. It never blocks: loading, unloading, and unloaded all
// uniformly report RefNotLoaded. This is the frame-loop fast path.
func (c *Cell) AddRefIfCached() RefResult {
	return c.addRef(false)
}

func (c *Cell) addRef(waitLoading bool) RefResult {
	for {
		s := c.state.Load()
		switch {
		case s < StateMaxRefCount:
			if c.state.CompareAndSwap(s, s+1) {
				return RefAdded
			}
		case s == StateMaxRefCount:
			return RefSaturated
		case s == StateLoading && waitLoading:
			c.waitWhile(StateLoading)
		default:
			return RefNotLoaded
		}
	}
}

// RemoveRef drops a reference. It is idempotent on cells that hold no
// references: calls in unreferenced, unloaded, or mid-transition states
// are no-ops rather than errors.
func (c *Cell) RemoveRef() {
	for {
		s := c.state.Load()
		if s == 0 || s > StateMaxRefCount {
			return
		}
		if c.state.CompareAndSwap(s, s-1) {
			return
		}
	}
}
