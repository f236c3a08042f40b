package gamecache

import (
	"runtime"

	"github.com/hupe1980/gamecache/internal/arena"
	"github.com/hupe1980/gamecache/internal/budget"
)

type options struct {
	workers          int
	scratchArenas    int
	arenaChunkSize   int
	arenaRetainBytes int
	budget           budget.Config
	logger           *Logger
	metrics          MetricsCollector
}

// Option configures the Manager constructor.
type Option func(*options)

func applyOptions(optFns []Option) options {
	o := options{
		workers:          runtime.GOMAXPROCS(0),
		scratchArenas:    runtime.GOMAXPROCS(0),
		arenaChunkSize:   arena.DefaultChunkSize,
		arenaRetainBytes: arena.DefaultRetainBytes,
		logger:           NoopLogger(),
		metrics:          NoopMetricsCollector{},
	}
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

// WithWorkers sets the number of goroutines executing scheduled loads
// and unloads. Defaults to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithScratchArenas sets the number of pooled scratch arenas. Loads
// beyond this concurrency share the overflow arena. Defaults to
// GOMAXPROCS.
func WithScratchArenas(n int) Option {
	return func(o *options) {
		o.scratchArenas = n
	}
}

// WithArenaChunkSize sets the scratch arena chunk size in bytes.
func WithArenaChunkSize(bytes int) Option {
	return func(o *options) {
		o.arenaChunkSize = bytes
	}
}

// WithArenaRetainBytes sets how much scratch capacity each arena keeps
// mapped between uses. Larger values trade memory for fewer mmap calls
// on big loads.
func WithArenaRetainBytes(bytes int) Option {
	return func(o *options) {
		o.arenaRetainBytes = bytes
	}
}

// WithMemoryLimit caps total scratch memory across all arenas. Loads
// that would exceed the cap fail with ErrOutOfMemory. 0 means
// unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.budget.MemoryLimitBytes = bytes
	}
}

// WithMaxBackgroundJobs caps concurrently running scheduled loads and
// unloads. Defaults to 1.
func WithMaxBackgroundJobs(n int64) Option {
	return func(o *options) {
		o.budget.MaxBackgroundJobs = n
	}
}

// WithIOLimit caps content read throughput for loaders that honor the
// load context's throttle. 0 means unlimited.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.budget.IOLimitBytesPerSec = bytesPerSec
	}
}

// WithLogger sets the logger. Defaults to NoopLogger.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetricsCollector sets the metrics collector. Defaults to
// NoopMetricsCollector.
func WithMetricsCollector(m MetricsCollector) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}
