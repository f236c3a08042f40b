package gamecache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/gamecache/asset"
	"github.com/hupe1980/gamecache/blobstore"
	"github.com/hupe1980/gamecache/internal/arena"
	"github.com/hupe1980/gamecache/internal/budget"
	"github.com/hupe1980/gamecache/internal/cell"
	"github.com/hupe1980/gamecache/internal/taskpool"
)

// Manager is the cache façade. It owns the handle table, the scratch
// arena pool, and a worker pool for scheduled loads and unloads.
//
// Handles issued by a Manager stay valid until Close. Cells are created
// on first Intern and never removed, so the Manager can hand out
// references without generation checks.
type Manager struct {
	table   *cell.Table
	scratch *arena.ScratchPool
	workers *taskpool.Pool
	budget  *budget.Controller
	content blobstore.Store
	logger  *Logger
	metrics MetricsCollector

	closed atomic.Bool

	mu          sync.Mutex // guards loaded
	loaded      *roaring64.Bitmap
	loadedBytes atomic.Int64
}

// New creates a Manager reading asset content from store.
func New(store blobstore.Store, optFns ...Option) (*Manager, error) {
	o := applyOptions(optFns)

	ctrl := budget.NewController(o.budget)
	scratch, err := arena.NewScratchPool(
		o.scratchArenas,
		o.arenaChunkSize,
		o.arenaRetainBytes,
		arena.WithMemoryAcquirer(ctrl),
	)
	if err != nil {
		return nil, translateError(err)
	}

	return &Manager{
		table:   cell.NewTable(),
		scratch: scratch,
		workers: taskpool.New(o.workers),
		budget:  ctrl,
		content: store,
		logger:  o.logger,
		metrics: o.metrics,
		loaded:  roaring64.New(),
	}, nil
}

// Intern registers ldr's resource and returns its handle without
// loading anything. Interning the same resource twice returns the same
// handle.
func (m *Manager) Intern(ldr asset.Loader) (asset.Handle, error) {
	if m.closed.Load() {
		return asset.InvalidHandle, ErrClosed
	}
	h, _, _ := m.table.Intern(ldr)
	return h, nil
}

// Load loads ldr's resource synchronously, blocking until the loader's
// load body completes. It is idempotent: if the resource is already
// resident (or being loaded by someone else right now), Load returns
// the handle immediately without running the loader again.
func (m *Manager) Load(ctx context.Context, ldr asset.Loader) (asset.Handle, error) {
	if m.closed.Load() {
		return asset.InvalidHandle, ErrClosed
	}

	start := time.Now()
	h, c, _ := m.table.Intern(ldr)
	ran, err := m.loadCell(ctx, h, c)
	if ran || err != nil {
		m.metrics.RecordLoad(time.Since(start), err)
	}
	m.logger.LogLoad(h, ran, err)
	if err != nil {
		return h, translateError(err)
	}
	return h, nil
}

// loadCell drives c to a loaded state, running the loader body with
// pooled scratch memory.
func (m *Manager) loadCell(ctx context.Context, h asset.Handle, c *cell.Cell) (bool, error) {
	ran, err := c.Load(func() error {
		scratch := m.scratch.Acquire()
		defer m.scratch.Release(scratch)

		lc := &asset.LoadContext{
			Content:  m.content,
			Scratch:  scratch,
			Throttle: m.budget.ThrottleIO,
		}
		return c.Loader().Load(ctx, lc)
	})
	if err != nil {
		return false, err
	}
	if ran {
		m.trackLoaded(h, c.Loader())
	}
	return ran, nil
}

// Unload unloads the resource if and only if no references are
// outstanding. It never fails: the return value reports whether the
// resource is unloaded now, and false only means references still
// exist. After Close the cell is left untouched and Unload reports
// false; Close already swept everything unreferenced.
func (m *Manager) Unload(h asset.Handle) bool {
	if m.closed.Load() {
		return false
	}
	c := m.table.Lookup(h)
	if c == nil {
		return true
	}

	start := time.Now()
	ran, unloaded := m.unloadCell(h, c)
	m.metrics.RecordUnload(time.Since(start), unloaded)
	if ran || !unloaded {
		m.logger.LogUnload(h, unloaded)
	}
	return unloaded
}

func (m *Manager) unloadCell(h asset.Handle, c *cell.Cell) (ran, unloaded bool) {
	size := loaderSize(c.Loader())
	ran, unloaded = c.Unload(func() {
		scratch := m.scratch.Acquire()
		defer m.scratch.Release(scratch)
		c.Loader().Unload(scratch)
	})
	if ran {
		m.untrackLoaded(h, size)
	}
	return ran, unloaded
}

// Get returns the resource for h, taking a reference that must be
// released with Unget. If the resource was evicted back to the unloaded
// state, Get loads it on demand.
//
// The returned value is the asset.Loader the handle was interned with;
// callers type-assert it to their concrete resource type.
func (m *Manager) Get(ctx context.Context, h asset.Handle) (asset.Loader, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	c := m.table.Lookup(h)
	if c == nil {
		return nil, ErrNotFound
	}

	loadedOnDemand := false
	for {
		switch c.AddRef() {
		case cell.RefAdded:
			m.metrics.RecordGet(!loadedOnDemand)
			return c.Loader(), nil
		case cell.RefSaturated:
			m.logger.LogSaturation(h)
			m.metrics.RecordSaturation()
			return nil, ErrSaturated
		case cell.RefNotLoaded:
			ran, err := m.loadCell(ctx, h, c)
			if err != nil {
				m.metrics.RecordGet(false)
				return nil, translateError(err)
			}
			loadedOnDemand = loadedOnDemand || ran
		}
	}
}

// TryGet is the non-blocking variant of Get for time-critical callers:
// it never loads and never waits. ok is false whenever the resource is
// not immediately available (unloaded, mid-load, mid-unload, or
// saturated).
func (m *Manager) TryGet(h asset.Handle) (asset.Loader, bool) {
	c := m.table.Lookup(h)
	if c == nil {
		return nil, false
	}

	switch c.AddRefIfCached() {
	case cell.RefAdded:
		m.metrics.RecordGet(true)
		return c.Loader(), true
	case cell.RefSaturated:
		m.logger.LogSaturation(h)
		m.metrics.RecordSaturation()
		return nil, false
	default:
		m.metrics.RecordGet(false)
		return nil, false
	}
}

// Unget releases a reference taken by Get or TryGet. Handles that hold
// no reference are ignored.
func (m *Manager) Unget(h asset.Handle) {
	if c := m.table.Lookup(h); c != nil {
		c.RemoveRef()
	}
}

// LoadedHandles returns a snapshot of the handles whose resources are
// currently resident.
func (m *Manager) LoadedHandles() *roaring64.Bitmap {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded.Clone()
}

// LoadedBytes returns the total declared size of resident resources.
// Loaders that do not implement asset.Sizer count as zero.
func (m *Manager) LoadedBytes() int64 {
	return m.loadedBytes.Load()
}

// ScratchOverflowAcquires reports how often a load spilled into the
// shared overflow arena because all pooled arenas were busy.
func (m *Manager) ScratchOverflowAcquires() uint64 {
	return m.scratch.OverflowAcquires()
}

func (m *Manager) trackLoaded(h asset.Handle, ldr asset.Loader) {
	m.loadedBytes.Add(loaderSize(ldr))
	m.mu.Lock()
	m.loaded.Add(uint64(h))
	m.mu.Unlock()
}

func (m *Manager) untrackLoaded(h asset.Handle, size int64) {
	m.loadedBytes.Add(-size)
	m.mu.Lock()
	m.loaded.Remove(uint64(h))
	m.mu.Unlock()
}

// loaderSize returns the declared resource size, or 0 if the loader
// does not report one.
func loaderSize(ldr asset.Loader) int64 {
	if s, ok := ldr.(asset.Sizer); ok {
		return s.SizeBytes()
	}
	return 0
}
