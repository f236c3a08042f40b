package gamecache

import (
	"github.com/hupe1980/gamecache/asset"
	"github.com/hupe1980/gamecache/internal/cell"
)

// Close shuts the Manager down: it stops accepting new operations,
// waits for in-flight scheduled work to drain, unloads every resource
// that holds no references, and releases scratch memory.
//
// Resources with outstanding references at Close are leaked by the
// caller; each one is logged as a warning and left resident so the
// references stay valid. Close is idempotent.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	m.workers.Close()

	leaked := 0
	m.table.Range(func(h asset.Handle, c *cell.Cell) bool {
		_, unloaded := m.unloadCell(h, c)
		if !unloaded {
			if n, ok := c.Refs(); ok {
				m.logger.Warn("resource still referenced at close",
					"handle", uint64(h),
					"refs", n,
				)
			}
			leaked++
		}
		return true
	})
	if leaked > 0 {
		m.logger.Warn("close leaked resources", "count", leaked)
	}

	m.scratch.Free()
	return nil
}
