package gamecache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/hupe1980/gamecache/blobstore"
	"github.com/hupe1980/gamecache/internal/arena"
	"github.com/hupe1980/gamecache/internal/taskpool"
)

var (
	// ErrNotFound is returned when a resource's content does not exist.
	ErrNotFound = errors.New("gamecache: resource not found")

	// ErrAccessDenied is returned when the content source refuses access.
	ErrAccessDenied = errors.New("gamecache: access denied")

	// ErrOutOfMemory is returned when a scratch or budget allocation
	// fails.
	ErrOutOfMemory = errors.New("gamecache: out of memory")

	// ErrUnexpected wraps loader-specific errors the cache does not
	// understand, so resource-private error types never leak across the
	// cache boundary.
	ErrUnexpected = errors.New("gamecache: unexpected loader error")

	// ErrSaturated is returned by Get when a cell's reference count is
	// pinned at the saturation sentinel. Non-fatal; the cell is
	// unchanged.
	ErrSaturated = errors.New("gamecache: reference count saturated")

	// ErrClosed is returned for operations on a closed Manager.
	ErrClosed = errors.New("gamecache: manager is closed")
)

// translateError maps loader and infrastructure errors onto the public
// error surface. Context cancellation passes through untouched.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAccessDenied),
		errors.Is(err, ErrOutOfMemory),
		errors.Is(err, ErrUnexpected),
		errors.Is(err, ErrClosed):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, blobstore.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %w", ErrAccessDenied, err)
	case errors.Is(err, arena.ErrAllocationFailed):
		return fmt.Errorf("%w: %w", ErrOutOfMemory, err)
	case errors.Is(err, taskpool.ErrClosed):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	default:
		return fmt.Errorf("%w: %w", ErrUnexpected, err)
	}
}
