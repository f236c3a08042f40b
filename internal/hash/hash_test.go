package hash

import (
	"hash/fnv"
	"testing"
)

func TestSum64MatchesStdlib(t *testing.T) {
	inputs := []string{"", "a", "textures/crate.qoi", "meshes/goon.glb", "\x00\xff"}

	for _, s := range inputs {
		h := fnv.New64a()
		h.Write([]byte(s))
		want := h.Sum64()

		if got := Sum64([]byte(s)); got != want {
			t.Errorf("Sum64(%q) = %x, want %x", s, got, want)
		}
		if got := Sum64String(s); got != want {
			t.Errorf("Sum64String(%q) = %x, want %x", s, got, want)
		}
	}
}

func TestCRC32C(t *testing.T) {
	// Known-answer: CRC32-Castagnoli of "123456789".
	if got := CRC32C([]byte("123456789")); got != 0xE3069283 {
		t.Fatalf("CRC32C = %x, want e3069283", got)
	}
}

func TestNewCRC32CStreaming(t *testing.T) {
	data := []byte("streaming checksum input")

	h := NewCRC32C()
	h.Write(data[:7])
	h.Write(data[7:])

	if got, want := h.Sum32(), CRC32C(data); got != want {
		t.Fatalf("streaming = %x, one-shot = %x", got, want)
	}
}
