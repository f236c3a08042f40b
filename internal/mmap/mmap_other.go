//go:build !unix

package mmap

import (
	"io"
	"os"
)

// Heap-backed fallback. File contents are read eagerly and anonymous
// mappings are plain allocations.

func mapFile(f *os.File, size int) ([]byte, error) {
	buf := make([]byte, size)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func mapAnon(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func unmapMemory([]byte) error {
	return nil
}
