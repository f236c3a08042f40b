// Package loaders provides ready-made asset.Loader implementations for
// resources without a structured format: raw binary blobs and text
// (shader source, config). Structured resource types supply their own
// loaders; these double as reference implementations of the capability
// contract.
package loaders

import (
	"context"
	"fmt"
	"io"

	"github.com/hupe1980/gamecache/asset"
)

// Bytes loads a named blob fully into memory and retains it.
type Bytes struct {
	// Name is the blob name within the content store.
	Name string

	data []byte
}

// NewBytes creates a loader for the named blob.
func NewBytes(name string) *Bytes {
	return &Bytes{Name: name}
}

// Hash implements asset.Loader.
func (b *Bytes) Hash() uint64 {
	return asset.HashString("bytes:" + b.Name)
}

// Load implements asset.Loader.
func (b *Bytes) Load(ctx context.Context, lc *asset.LoadContext) error {
	blob, err := lc.Content.Open(ctx, b.Name)
	if err != nil {
		return fmt.Errorf("open %q: %w", b.Name, err)
	}
	defer blob.Close()

	size := blob.Size()
	if err := lc.ThrottleIO(ctx, int(size)); err != nil {
		return err
	}

	// The retained copy outlives the scratch arena, so it lives on the
	// heap; scratch is not used for the final buffer.
	data := make([]byte, size)
	if _, err := blob.ReadAt(data, 0); err != nil && err != io.EOF {
		return fmt.Errorf("read %q: %w", b.Name, err)
	}
	b.data = data
	return nil
}

// Unload implements asset.Loader.
func (b *Bytes) Unload(asset.Allocator) {
	b.data = nil
}

// Data returns the loaded bytes. Only valid while the caller holds a
// reference obtained from the Manager.
func (b *Bytes) Data() []byte {
	return b.data
}

// SizeBytes implements asset.Sizer.
func (b *Bytes) SizeBytes() int64 {
	return int64(len(b.data))
}

// Text loads a named blob as a string, e.g. shader source.
type Text struct {
	Bytes
}

// NewText creates a loader for the named blob.
func NewText(name string) *Text {
	return &Text{Bytes: Bytes{Name: name}}
}

// Hash implements asset.Loader. Text and Bytes loaders for the same
// name intentionally share a cache cell; the representation difference
// is view-only.
func (t *Text) Hash() uint64 {
	return t.Bytes.Hash()
}

// String returns the loaded text.
func (t *Text) String() string {
	return string(t.data)
}
