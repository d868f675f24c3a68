package codec

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compressor compresses/decompresses payload bytes for remote tier stores.
// Implementations must be safe for concurrent use.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Name() string
}

// CompressorByName returns a built-in compressor by its stable name.
func CompressorByName(name string) (Compressor, bool) {
	switch name {
	case "none":
		return Noop{}, true
	case "zstd":
		return Zstd{}, true
	case "lz4":
		return LZ4{}, true
	default:
		return nil, false
	}
}

// Noop passes payloads through unchanged.
type Noop struct{}

// Compress returns data unchanged.
func (Noop) Compress(data []byte) ([]byte, error) { return data, nil }

// Decompress returns data unchanged.
func (Noop) Decompress(data []byte) ([]byte, error) { return data, nil }

// Name returns "none".
func (Noop) Name() string { return "none" }

// Zstd compresses with klauspost zstd at the default speed level.
// Encoders/decoders are pooled; EncodeAll/DecodeAll never retain buffers.
type Zstd struct{}

var (
	zstdEncPool sync.Pool
	zstdDecPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Compress compresses data with zstd.
func (Zstd) Compress(data []byte) ([]byte, error) {
	enc := getZstdEncoder()
	defer zstdEncPool.Put(enc)
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

// Decompress decompresses zstd data.
func (Zstd) Decompress(data []byte) ([]byte, error) {
	dec := getZstdDecoder()
	defer zstdDecPool.Put(dec)
	return dec.DecodeAll(data, nil)
}

// Name returns "zstd".
func (Zstd) Name() string { return "zstd" }

// LZ4 compresses with lz4 block format. The uncompressed length is stored in
// a 4-byte little-endian prefix so Decompress can size its buffer exactly.
// Incompressible payloads are stored raw, signaled by a zero-length block.
type LZ4 struct{}

// Compress compresses data with lz4.
func (LZ4) Compress(data []byte) ([]byte, error) {
	buf := make([]byte, 4+lz4.CompressBlockBound(len(data)))
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(data)))
	n, err := lz4.CompressBlock(data, buf[4:], nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Incompressible: keep raw bytes after the prefix.
		return append(buf[:4], data...), nil
	}
	return buf[:4+n], nil
}

// Decompress decompresses lz4 block data produced by Compress.
func (LZ4) Decompress(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("lz4: truncated input (%d bytes)", len(data))
	}
	size := binary.LittleEndian.Uint32(data[:4])
	if size == 0 {
		return []byte{}, nil
	}
	if uint32(len(data)-4) == size {
		// Stored raw (incompressible at write time).
		return append([]byte(nil), data[4:]...), nil
	}
	out := make([]byte, size)
	n, err := lz4.UncompressBlock(data[4:], out)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

// Name returns "lz4".
func (LZ4) Name() string { return "lz4" }
