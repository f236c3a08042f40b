// Package gamecache provides a concurrent resource cache for game
// assets: textures, meshes, shaders, or anything else that supplies an
// asset.Loader.
//
// The cache sits between "a resource key" and "a loaded, shareable,
// reference-counted resource". Each distinct resource gets one cache
// cell driven by a lock-free state machine, so concurrent loads of the
// same asset execute the underlying read-and-decode exactly once, and a
// resource is never unloaded while references are outstanding.
//
// # Quick start
//
//	store := blobstore.NewLocalStore("./assets")
//	mgr, err := gamecache.New(store,
//	    gamecache.WithWorkers(4),
//	    gamecache.WithLogger(gamecache.NewTextLogger(slog.LevelInfo)),
//	)
//	if err != nil {
//	    panic(err)
//	}
//	defer mgr.Close()
//
//	// Synchronous load.
//	tex := loaders.NewBytes("textures/crate.qoi")
//	h, err := mgr.Load(ctx, tex)
//
//	// Take and release references.
//	res, err := mgr.Get(ctx, h)
//	defer mgr.Unget(h)
//
//	// Fire-and-forget preload from a worker thread.
//	mgr.ScheduleLoad(ctx, loaders.NewBytes("meshes/goon.glb"))
//
//	// Non-blocking query for the frame loop.
//	if res, ok := mgr.TryGet(h); ok {
//	    draw(res)
//	    mgr.Unget(h)
//	}
//
// # Concurrency model
//
// Load and unload bodies run under exclusive ownership of the cell's
// transition; everyone else sees the resource only after it is
// published as loaded, and treats it as read-only. TryGet, Unget, and
// successful Get calls on resident resources are lock-free. Loader
// scratch memory comes from a pooled arena per invocation, so parallel
// loads do not contend on a shared allocator.
package gamecache
