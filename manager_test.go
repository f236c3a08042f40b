package gamecache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gamecache/asset"
	"github.com/hupe1980/gamecache/blobstore"
	"github.com/hupe1980/gamecache/loaders"
)

// testLoader is a scriptable asset.Loader for exercising the Manager.
type testLoader struct {
	name    string
	size    int64
	loadErr error
	block   chan struct{} // if non-nil, Load parks until closed

	loads   atomic.Int32
	unloads atomic.Int32
}

func (l *testLoader) Hash() uint64 { return asset.HashString(l.name) }

func (l *testLoader) Load(context.Context, *asset.LoadContext) error {
	if l.block != nil {
		<-l.block
	}
	if l.loadErr != nil {
		return l.loadErr
	}
	l.loads.Add(1)
	return nil
}

func (l *testLoader) Unload(asset.Allocator) { l.unloads.Add(1) }

func (l *testLoader) SizeBytes() int64 { return l.size }

func newTestManager(t *testing.T, optFns ...Option) *Manager {
	t.Helper()
	m, err := New(blobstore.NewMemoryStore(), optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestManagerLoadGetUngetUnload(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	ldr := &testLoader{name: "textures/a", size: 64}
	h, err := m.Load(ctx, ldr)
	require.NoError(t, err)
	require.NotEqual(t, asset.InvalidHandle, h)
	assert.EqualValues(t, 1, ldr.loads.Load())
	assert.Equal(t, int64(64), m.LoadedBytes())

	got, err := m.Get(ctx, h)
	require.NoError(t, err)
	assert.Same(t, ldr, got.(*testLoader))

	// Unload is blocked by the outstanding reference.
	assert.False(t, m.Unload(h))
	assert.EqualValues(t, 0, ldr.unloads.Load())

	m.Unget(h)
	assert.True(t, m.Unload(h))
	assert.EqualValues(t, 1, ldr.unloads.Load())
	assert.Equal(t, int64(0), m.LoadedBytes())
}

func TestManagerLoadIdempotent(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	ldr := &testLoader{name: "a"}
	h1, err := m.Load(ctx, ldr)
	require.NoError(t, err)
	h2, err := m.Load(ctx, ldr)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.EqualValues(t, 1, ldr.loads.Load())
}

func TestManagerConcurrentLoadRunsOnce(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	ldr := &testLoader{name: "a"}

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := m.Load(ctx, &testLoader{name: "a"}); err != nil {
				t.Errorf("Load: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	// The first interned loader owns the cell; later duplicates are
	// never invoked at all.
	h, _, _ := m.table.Intern(ldr)
	c := m.table.Lookup(h)
	require.NotNil(t, c)
	assert.EqualValues(t, 1, c.Loader().(*testLoader).loads.Load())
}

func TestManagerLoadFailure(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	boom := errors.New("decode failed")
	h, err := m.Load(ctx, &testLoader{name: "bad", loadErr: boom})
	assert.ErrorIs(t, err, ErrUnexpected)
	assert.ErrorIs(t, err, boom)
	require.NotEqual(t, asset.InvalidHandle, h)

	// The cell rolled back; a corrected loader for the same resource can
	// load afterwards.
	// (Same name hashes to the same cell; the failing loader stays
	// interned, so clear its error instead.)
	c := m.table.Lookup(h)
	c.Loader().(*testLoader).loadErr = nil

	_, err = m.Get(ctx, h)
	require.NoError(t, err)
	m.Unget(h)
}

func TestManagerGetLoadsOnDemand(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	ldr := &testLoader{name: "a"}
	h, err := m.Intern(ldr)
	require.NoError(t, err)
	assert.EqualValues(t, 0, ldr.loads.Load())

	got, err := m.Get(ctx, h)
	require.NoError(t, err)
	assert.Same(t, ldr, got.(*testLoader))
	assert.EqualValues(t, 1, ldr.loads.Load())
	m.Unget(h)
}

func TestManagerGetUnknownHandle(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Get(context.Background(), asset.Handle(12345))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManagerTryGet(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	// Unknown handle.
	_, ok := m.TryGet(asset.Handle(99))
	assert.False(t, ok)

	// Interned but not loaded: TryGet never loads.
	ldr := &testLoader{name: "a"}
	h, err := m.Intern(ldr)
	require.NoError(t, err)
	_, ok = m.TryGet(h)
	assert.False(t, ok)
	assert.EqualValues(t, 0, ldr.loads.Load())

	// Loaded.
	_, err = m.Load(ctx, ldr)
	require.NoError(t, err)
	got, ok := m.TryGet(h)
	require.True(t, ok)
	assert.Same(t, ldr, got.(*testLoader))
	m.Unget(h)

	// Mid-load: TryGet refuses instead of waiting.
	slow := &testLoader{name: "slow", block: make(chan struct{})}
	sh, err := m.ScheduleLoad(ctx, slow)
	require.NoError(t, err)
	_, ok = m.TryGet(sh)
	assert.False(t, ok)
	close(slow.block)
}

func TestManagerUngetWithoutRef(t *testing.T) {
	m := newTestManager(t)

	ldr := &testLoader{name: "a"}
	h, err := m.Load(context.Background(), ldr)
	require.NoError(t, err)

	// Spurious Unget calls must not wreck the state machine.
	m.Unget(h)
	m.Unget(asset.Handle(4242))

	assert.True(t, m.Unload(h))
}

func TestManagerLoadedHandles(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	h1, err := m.Load(ctx, &testLoader{name: "a"})
	require.NoError(t, err)
	h2, err := m.Load(ctx, &testLoader{name: "b"})
	require.NoError(t, err)

	loaded := m.LoadedHandles()
	assert.EqualValues(t, 2, loaded.GetCardinality())
	assert.True(t, loaded.Contains(uint64(h1)))
	assert.True(t, loaded.Contains(uint64(h2)))

	require.True(t, m.Unload(h1))
	loaded = m.LoadedHandles()
	assert.EqualValues(t, 1, loaded.GetCardinality())
	assert.False(t, loaded.Contains(uint64(h1)))
}

func TestManagerMetrics(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	m := newTestManager(t, WithMetricsCollector(metrics))
	ctx := context.Background()

	h, err := m.Load(ctx, &testLoader{name: "a"})
	require.NoError(t, err)

	_, err = m.Get(ctx, h)
	require.NoError(t, err)
	m.Unget(h)
	m.Unload(h)

	_, err = m.Load(ctx, &testLoader{name: "bad", loadErr: errors.New("boom")})
	require.Error(t, err)

	stats := metrics.GetStats()
	assert.EqualValues(t, 2, stats.LoadCount)
	assert.EqualValues(t, 1, stats.LoadErrors)
	assert.EqualValues(t, 1, stats.GetCount)
	assert.EqualValues(t, 1, stats.UnloadCount)
}

func TestManagerClose(t *testing.T) {
	m, err := New(blobstore.NewMemoryStore())
	require.NoError(t, err)
	ctx := context.Background()

	resident := &testLoader{name: "resident"}
	_, err = m.Load(ctx, resident)
	require.NoError(t, err)

	leaked := &testLoader{name: "leaked"}
	lh, err := m.Load(ctx, leaked)
	require.NoError(t, err)
	_, err = m.Get(ctx, lh)
	require.NoError(t, err)

	require.NoError(t, m.Close())

	// Unreferenced resources were swept; the referenced one survives so
	// the outstanding pointer stays valid.
	assert.EqualValues(t, 1, resident.unloads.Load())
	assert.EqualValues(t, 0, leaked.unloads.Load())

	// The façade rejects further work.
	_, err = m.Load(ctx, &testLoader{name: "late"})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = m.Get(ctx, lh)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = m.ScheduleLoad(ctx, &testLoader{name: "late"})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.ScheduleUnload(ctx, lh), ErrClosed)

	// Idempotent.
	require.NoError(t, m.Close())
}

func TestManagerUnloadAfterClose(t *testing.T) {
	m, err := New(blobstore.NewMemoryStore())
	require.NoError(t, err)
	ctx := context.Background()

	ldr := &testLoader{name: "held"}
	h, err := m.Load(ctx, ldr)
	require.NoError(t, err)
	_, err = m.Get(ctx, h)
	require.NoError(t, err)

	// Close leaves the referenced cell resident. Dropping the reference
	// afterwards and retrying the unload must not touch the freed
	// scratch pool.
	require.NoError(t, m.Close())
	m.Unget(h)

	assert.False(t, m.Unload(h))
	assert.EqualValues(t, 0, ldr.unloads.Load())
}

func TestManagerScheduleLoad(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	ldr := &testLoader{name: "a", size: 32}
	h, err := m.ScheduleLoad(ctx, ldr)
	require.NoError(t, err)
	require.NotEqual(t, asset.InvalidHandle, h)

	// Get waits for the scheduled load to publish the resource.
	got, err := m.Get(ctx, h)
	require.NoError(t, err)
	assert.Same(t, ldr, got.(*testLoader))
	assert.EqualValues(t, 1, ldr.loads.Load())
	m.Unget(h)
}

func TestManagerScheduleUnload(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	ldr := &testLoader{name: "a"}
	h, err := m.Load(ctx, ldr)
	require.NoError(t, err)

	require.NoError(t, m.ScheduleUnload(ctx, h))

	require.Eventually(t, func() bool {
		return ldr.unloads.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestManagerScheduleLoadAll(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	ldrs := []asset.Loader{
		&testLoader{name: "a"},
		&testLoader{name: "b"},
		&testLoader{name: "c"},
	}
	handles, err := m.ScheduleLoadAll(ctx, ldrs)
	require.NoError(t, err)
	require.Len(t, handles, 3)

	for _, h := range handles {
		_, err := m.Get(ctx, h)
		require.NoError(t, err)
		m.Unget(h)
	}

	require.NoError(t, m.ScheduleUnloadAll(ctx, handles))
	require.Eventually(t, func() bool {
		return m.LoadedHandles().IsEmpty()
	}, 2*time.Second, 5*time.Millisecond)
}

func TestManagerAsyncLoadFailureSurfacesInMetrics(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	m := newTestManager(t, WithMetricsCollector(metrics))
	ctx := context.Background()

	_, err := m.ScheduleLoad(ctx, &testLoader{name: "bad", loadErr: errors.New("boom")})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return metrics.GetStats().AsyncFailures == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestManagerBytesLoaderEndToEnd(t *testing.T) {
	store := blobstore.NewMemoryStore()
	store.Put("shaders/basic.wgsl", []byte("fn main() {}"))

	m, err := New(store)
	require.NoError(t, err)
	defer m.Close()

	ctx := context.Background()
	// loaders.Bytes goes through the real load context: content store,
	// scratch, throttle.
	ldr := loaders.NewBytes("shaders/basic.wgsl")
	h, err := m.Load(ctx, ldr)
	require.NoError(t, err)

	got, err := m.Get(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, []byte("fn main() {}"), got.(*loaders.Bytes).Data())
	m.Unget(h)
}
