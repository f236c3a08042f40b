package gamecache

import (
	"log/slog"
	"os"

	"github.com/hupe1980/gamecache/asset"
)

// Logger wraps slog.Logger with gamecache-specific context. All cache
// logging flows through it so field names stay consistent.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler. If handler is nil,
// a text handler to stderr at Info level is used.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	}))
}

// WithHandle adds a handle field to the logger.
func (l *Logger) WithHandle(h asset.Handle) *Logger {
	return &Logger{Logger: l.Logger.With("handle", uint64(h))}
}

// LogLoad logs a synchronous load.
func (l *Logger) LogLoad(h asset.Handle, ran bool, err error) {
	switch {
	case err != nil:
		l.Error("load failed", "handle", uint64(h), "error", err)
	case ran:
		l.Debug("load completed", "handle", uint64(h))
	default:
		l.Debug("load skipped, already resident", "handle", uint64(h))
	}
}

// LogUnload logs an unload attempt.
func (l *Logger) LogUnload(h asset.Handle, unloaded bool) {
	if unloaded {
		l.Debug("unload completed", "handle", uint64(h))
	} else {
		l.Debug("unload deferred, references outstanding", "handle", uint64(h))
	}
}

// LogAsyncFailure logs a failed scheduled operation. Scheduled work has
// no caller to report to, so this is the only place the error surfaces.
func (l *Logger) LogAsyncFailure(op string, h asset.Handle, err error) {
	l.Error("scheduled operation failed",
		"op", op,
		"handle", uint64(h),
		"error", err,
	)
}

// LogSaturation logs a reference-count saturation event.
func (l *Logger) LogSaturation(h asset.Handle) {
	l.Warn("reference count saturated", "handle", uint64(h))
}
