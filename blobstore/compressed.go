package blobstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/gamecache/internal/hash"
)

// Compression identifies the algorithm used for a framed blob.
type Compression uint8

const (
	// CompressionNone stores the payload uncompressed (still framed and
	// checksummed).
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast, hot assets).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses zstd (better ratio, cold assets).
	CompressionZSTD Compression = 2
)

// Frame layout: magic[4] algo[1] crc32c[4] usize[4] payload.
// The checksum covers the uncompressed payload.
var frameMagic = [4]byte{'G', 'C', 'B', '1'}

const frameHeaderSize = 13

// ErrChecksum is returned when a framed blob fails CRC verification.
var ErrChecksum = errors.New("blobstore: content checksum mismatch")

// zstd encoders and decoders are expensive to construct; pool them.
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Compress frames data with the given algorithm. The result can be
// stored in any Store and read back through WithDecompression.
func Compress(data []byte, algo Compression) ([]byte, error) {
	var payload []byte
	switch algo {
	case CompressionNone:
		payload = data
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			// Incompressible, store as-is.
			algo = CompressionNone
			payload = data
		} else {
			payload = buf[:n]
		}
	case CompressionZSTD:
		enc := getZstdEncoder()
		payload = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("blobstore: unknown compression %d", algo)
	}

	out := make([]byte, frameHeaderSize+len(payload))
	copy(out, frameMagic[:])
	out[4] = byte(algo)
	binary.LittleEndian.PutUint32(out[5:], hash.CRC32C(data))
	binary.LittleEndian.PutUint32(out[9:], uint32(len(data)))
	copy(out[frameHeaderSize:], payload)
	return out, nil
}

// WithDecompression wraps a Store so that framed blobs are transparently
// decompressed and checksum-verified on Open. Unframed blobs pass
// through untouched.
func WithDecompression(inner Store) Store {
	return &decompressStore{inner: inner}
}

type decompressStore struct {
	inner Store
}

func (s *decompressStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}

	var header [frameHeaderSize]byte
	if b.Size() < frameHeaderSize {
		return b, nil
	}
	if _, err := b.ReadAt(header[:], 0); err != nil {
		_ = b.Close()
		return nil, err
	}
	if [4]byte(header[:4]) != frameMagic {
		return b, nil
	}
	defer b.Close()

	algo := Compression(header[4])
	sum := binary.LittleEndian.Uint32(header[5:])
	usize := binary.LittleEndian.Uint32(header[9:])

	payload := make([]byte, b.Size()-frameHeaderSize)
	if _, err := b.ReadAt(payload, frameHeaderSize); err != nil && err != io.EOF {
		return nil, err
	}

	var data []byte
	switch algo {
	case CompressionNone:
		data = payload
	case CompressionLZ4:
		data = make([]byte, usize)
		n, err := lz4.UncompressBlock(payload, data)
		if err != nil {
			return nil, err
		}
		if uint32(n) != usize {
			return nil, fmt.Errorf("blobstore: lz4 size mismatch: got %d, want %d", n, usize)
		}
	case CompressionZSTD:
		dec := getZstdDecoder()
		data, err = dec.DecodeAll(payload, make([]byte, 0, usize))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, err
		}
		if uint32(len(data)) != usize {
			return nil, fmt.Errorf("blobstore: zstd size mismatch: got %d, want %d", len(data), usize)
		}
	default:
		return nil, fmt.Errorf("blobstore: unknown compression %d", algo)
	}

	if hash.CRC32C(data) != sum {
		return nil, ErrChecksum
	}
	return NewMemoryBlob(data), nil
}
