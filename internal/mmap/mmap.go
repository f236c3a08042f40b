// Package mmap provides read-only file mappings and anonymous read-write
// mappings.
//
// File mappings back the local blob store: asset content is accessed
// zero-copy without buffering whole files through the heap. Anonymous
// mappings back the scratch arenas, keeping loader working memory
// outside the Go garbage collector.
//
// On platforms without mmap support the package falls back to ordinary
// heap buffers; the API is identical, only the zero-copy property is
// lost.
package mmap

import (
	"os"
	"sync/atomic"
)

// Mapping owns a mapped byte range and is responsible for unmapping it.
type Mapping struct {
	data   []byte
	closed atomic.Bool
	unmap  func([]byte) error
}

// Open maps the file at path read-only.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size == 0 {
		return &Mapping{}, nil
	}

	data, err := mapFile(f, int(size))
	if err != nil {
		return nil, err
	}
	return &Mapping{data: data, unmap: unmapMemory}, nil
}

// MapAnon creates an anonymous read-write mapping of the given size.
func MapAnon(size int) (*Mapping, error) {
	if size <= 0 {
		return &Mapping{}, nil
	}
	data, err := mapAnon(size)
	if err != nil {
		return nil, err
	}
	return &Mapping{data: data, unmap: unmapMemory}, nil
}

// Bytes returns the mapped byte range. The slice is valid until Close.
func (m *Mapping) Bytes() []byte {
	return m.data
}

// Len returns the size of the mapping in bytes.
func (m *Mapping) Len() int {
	return len(m.data)
}

// Close unmaps the range. It is idempotent. Callers must ensure no
// goroutine touches Bytes() after Close returns.
func (m *Mapping) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	if m.data == nil || m.unmap == nil {
		return nil
	}
	data := m.data
	m.data = nil
	return m.unmap(data)
}
