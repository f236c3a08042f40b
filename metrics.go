package gamecache

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational
// metrics. Implement it to integrate with monitoring systems like
// Prometheus.
type MetricsCollector interface {
	// RecordLoad is called after each load attempt that executed (or
	// failed to execute) a loader body. duration is the total time
	// taken, err is nil on success.
	RecordLoad(duration time.Duration, err error)

	// RecordUnload is called after each unload attempt. unloaded is
	// false when outstanding references blocked the unload.
	RecordUnload(duration time.Duration, unloaded bool)

	// RecordGet is called after each Get/TryGet. hit is true when a
	// reference was handed out without loading.
	RecordGet(hit bool)

	// RecordAsyncFailure is called when a scheduled load or unload
	// fails. op is "load" or "unload".
	RecordAsyncFailure(op string)

	// RecordSaturation is called when a reference-count saturation is
	// observed.
	RecordSaturation()
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordLoad(time.Duration, error)    {}
func (NoopMetricsCollector) RecordUnload(time.Duration, bool)   {}
func (NoopMetricsCollector) RecordGet(bool)                     {}
func (NoopMetricsCollector) RecordAsyncFailure(string)          {}
func (NoopMetricsCollector) RecordSaturation()                  {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and tests without external dependencies.
type BasicMetricsCollector struct {
	LoadCount      atomic.Int64
	LoadErrors     atomic.Int64
	LoadTotalNanos atomic.Int64
	UnloadCount    atomic.Int64
	UnloadDeferred atomic.Int64
	GetCount       atomic.Int64
	GetMisses      atomic.Int64
	AsyncFailures  atomic.Int64
	Saturations    atomic.Int64
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(duration time.Duration, err error) {
	b.LoadCount.Add(1)
	b.LoadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// RecordUnload implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUnload(_ time.Duration, unloaded bool) {
	b.UnloadCount.Add(1)
	if !unloaded {
		b.UnloadDeferred.Add(1)
	}
}

// RecordGet implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGet(hit bool) {
	b.GetCount.Add(1)
	if !hit {
		b.GetMisses.Add(1)
	}
}

// RecordAsyncFailure implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAsyncFailure(string) {
	b.AsyncFailures.Add(1)
}

// RecordSaturation implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSaturation() {
	b.Saturations.Add(1)
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	LoadCount      int64
	LoadErrors     int64
	LoadAvgNanos   int64
	UnloadCount    int64
	UnloadDeferred int64
	GetCount       int64
	GetMisses      int64
	AsyncFailures  int64
	Saturations    int64
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	s := BasicMetricsStats{
		LoadCount:      b.LoadCount.Load(),
		LoadErrors:     b.LoadErrors.Load(),
		UnloadCount:    b.UnloadCount.Load(),
		UnloadDeferred: b.UnloadDeferred.Load(),
		GetCount:       b.GetCount.Load(),
		GetMisses:      b.GetMisses.Load(),
		AsyncFailures:  b.AsyncFailures.Load(),
		Saturations:    b.Saturations.Load(),
	}
	if s.LoadCount > 0 {
		s.LoadAvgNanos = b.LoadTotalNanos.Load() / s.LoadCount
	}
	return s
}
