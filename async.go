package gamecache

import (
	"context"
	"sync"

	"github.com/hupe1980/gamecache/asset"
)

type taskKind uint8

const (
	taskLoad taskKind = iota
	taskUnload
)

// task is a pooled record describing one scheduled operation. Records
// carry everything the worker needs, so the closure handed to the pool
// captures nothing but the record itself.
type task struct {
	kind   taskKind
	mgr    *Manager
	handle asset.Handle
}

var taskRecords = sync.Pool{
	New: func() any { return new(task) },
}

func newTask(kind taskKind, mgr *Manager, h asset.Handle) *task {
	t := taskRecords.Get().(*task)
	t.kind = kind
	t.mgr = mgr
	t.handle = h
	return t
}

func (t *task) run() {
	kind, mgr, h := t.kind, t.mgr, t.handle
	*t = task{}
	taskRecords.Put(t)

	switch kind {
	case taskLoad:
		mgr.asyncLoad(h)
	case taskUnload:
		mgr.asyncUnload(h)
	}
}

// ScheduleLoad interns ldr and queues its load on the worker pool,
// returning the handle immediately. The load itself runs when a worker
// and a background slot are free; failures are logged and counted, not
// returned. Use Get to both wait for the result and obtain a
// reference.
func (m *Manager) ScheduleLoad(ctx context.Context, ldr asset.Loader) (asset.Handle, error) {
	if m.closed.Load() {
		return asset.InvalidHandle, ErrClosed
	}

	h, _, _ := m.table.Intern(ldr)
	if err := m.workers.Submit(ctx, newTask(taskLoad, m, h).run); err != nil {
		return h, translateError(err)
	}
	return h, nil
}

// ScheduleUnload queues an unload of h on the worker pool. Like Unload
// it is best-effort: a resource with outstanding references stays
// resident, and that outcome is only visible through logs and metrics.
func (m *Manager) ScheduleUnload(ctx context.Context, h asset.Handle) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if err := m.workers.Submit(ctx, newTask(taskUnload, m, h).run); err != nil {
		return translateError(err)
	}
	return nil
}

// ScheduleLoadAll schedules a load for every loader, returning handles
// in the same order. The first scheduling error stops the batch;
// already scheduled loads proceed.
func (m *Manager) ScheduleLoadAll(ctx context.Context, loaders []asset.Loader) ([]asset.Handle, error) {
	handles := make([]asset.Handle, 0, len(loaders))
	for _, ldr := range loaders {
		h, err := m.ScheduleLoad(ctx, ldr)
		if err != nil {
			return handles, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// ScheduleUnloadAll schedules an unload for every handle. The first
// scheduling error stops the batch.
func (m *Manager) ScheduleUnloadAll(ctx context.Context, handles []asset.Handle) error {
	for _, h := range handles {
		if err := m.ScheduleUnload(ctx, h); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) asyncLoad(h asset.Handle) {
	c := m.table.Lookup(h)
	if c == nil {
		return
	}

	ctx := context.Background()
	if err := m.budget.AcquireBackground(ctx); err != nil {
		m.logger.LogAsyncFailure("load", h, err)
		m.metrics.RecordAsyncFailure("load")
		return
	}
	defer m.budget.ReleaseBackground()

	ran, err := m.loadCell(ctx, h, c)
	if err != nil {
		m.logger.LogAsyncFailure("load", h, err)
		m.metrics.RecordAsyncFailure("load")
		return
	}
	m.logger.LogLoad(h, ran, nil)
}

func (m *Manager) asyncUnload(h asset.Handle) {
	c := m.table.Lookup(h)
	if c == nil {
		return
	}

	ctx := context.Background()
	if err := m.budget.AcquireBackground(ctx); err != nil {
		m.logger.LogAsyncFailure("unload", h, err)
		m.metrics.RecordAsyncFailure("unload")
		return
	}
	defer m.budget.ReleaseBackground()

	ran, unloaded := m.unloadCell(h, c)
	if ran || !unloaded {
		m.logger.LogUnload(h, unloaded)
	}
	if !unloaded {
		m.metrics.RecordAsyncFailure("unload")
	}
}
