package cell

import (
	"sync"
	"sync/atomic"

	"github.com/hupe1980/gamecache/asset"
)

// Table maps handles to cells. Lookups are lock-free against a
// copy-on-write snapshot; only the rare insert of a brand-new handle
// takes the mutex. Entries are never removed, so a *Cell obtained here
// stays valid for the table's entire lifetime — callers hold raw cell
// pointers instead of re-resolving handles.
type Table struct {
	mu    sync.Mutex // serializes inserts
	cells atomic.Pointer[map[asset.Handle]*Cell]
}

// NewTable creates an empty table.
func NewTable() *Table {
	t := &Table{}
	m := make(map[asset.Handle]*Cell)
	t.cells.Store(&m)
	return t
}

// Lookup returns the cell for h, or nil if h was never interned.
func (t *Table) Lookup(h asset.Handle) *Cell {
	return (*t.cells.Load())[h]
}

// Intern returns the cell for the resource identified by ldr, creating
// it in the unloaded state on first sight. Two loaders that hash
// identically share one cell; the loader supplied by the first Intern
// call wins.
func (t *Table) Intern(ldr asset.Loader) (asset.Handle, *Cell, bool) {
	h := asset.Handle(asset.NormalizeHash(ldr.Hash()))

	if c := t.Lookup(h); c != nil {
		return h, c, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Re-check under the lock; another goroutine may have inserted
	// between our snapshot read and here.
	old := *t.cells.Load()
	if c, ok := old[h]; ok {
		return h, c, false
	}

	c := newCell(ldr)
	next := make(map[asset.Handle]*Cell, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[h] = c
	t.cells.Store(&next)
	return h, c, true
}

// Len returns the number of interned handles.
func (t *Table) Len() int {
	return len(*t.cells.Load())
}

// Range calls fn for each entry of a consistent snapshot until fn
// returns false. Cells interned concurrently with the iteration may or
// may not be visited.
func (t *Table) Range(fn func(h asset.Handle, c *Cell) bool) {
	for h, c := range *t.cells.Load() {
		if !fn(h, c) {
			return
		}
	}
}
