package mmap

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob")
	if err := os.WriteFile(path, []byte("mapped content"), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if got := m.Len(); got != 14 {
		t.Fatalf("Len = %d, want 14", got)
	}
	if got := string(m.Bytes()); got != "mapped content" {
		t.Fatalf("Bytes = %q", got)
	}
}

func TestOpenMissing(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("Open of missing file succeeded")
	}
}

func TestMapAnon(t *testing.T) {
	m, err := MapAnon(4096)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	buf := m.Bytes()
	if len(buf) != 4096 {
		t.Fatalf("len = %d, want 4096", len(buf))
	}
	for i := range buf {
		buf[i] = byte(i)
	}
	for i := range buf {
		if buf[i] != byte(i) {
			t.Fatalf("buf[%d] = %d", i, buf[i])
		}
	}
}

func TestCloseIdempotent(t *testing.T) {
	m, err := MapAnon(4096)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
}
