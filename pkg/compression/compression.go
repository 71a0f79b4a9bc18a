package compression

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type identifies which codec, if any, a frame was compressed with.
type Type uint8

const (
	None Type = iota
	Lz4
	Zstd
)

func (t Type) String() string {
	switch t {
	case Lz4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return "none"
	}
}

// thresholds maps compression_level (0-6, validated by pkg/config) to
// the minimum payload size, in bytes, at which each codec kicks in.
// Lower levels favor low-latency Lz4 over a wider size range; level 6
// always prefers the better-ratio Zstd once a frame is worth
// compressing at all. Level 0 disables compression outright.
var thresholds = [7]struct {
	lz4Min  int
	zstdMin int
}{
	0: {lz4Min: 0, zstdMin: 0},          // compression disabled
	1: {lz4Min: 512, zstdMin: 1 << 20},  // favor lz4, zstd only for very large frames
	2: {lz4Min: 384, zstdMin: 1 << 18},
	3: {lz4Min: 256, zstdMin: 1 << 16},
	4: {lz4Min: 192, zstdMin: 1 << 14},
	5: {lz4Min: 128, zstdMin: 4096},
	6: {lz4Min: 0, zstdMin: 128}, // favor zstd aggressively
}

// Determine picks the codec to apply to a payload of n bytes at the
// given compression_level, or None if the frame is too small to be
// worth compressing (or the level disables it).
func Determine(n int, level int) Type {
	if level < 0 || level > 6 {
		level = 0
	}
	t := thresholds[level]
	if t.zstdMin > 0 && n >= t.zstdMin {
		return Zstd
	}
	if t.lz4Min > 0 && n >= t.lz4Min {
		return Lz4
	}
	return None
}

// Compress encodes data with the codec Determine selects for its size
// at the given level. It returns (data, None, nil) unmodified when no
// codec applies.
func Compress(data []byte, level int) ([]byte, Type, error) {
	switch Determine(len(data), level) {
	case Zstd:
		out, err := compressZstd(data)
		if err != nil {
			return nil, None, err
		}
		return out, Zstd, nil
	case Lz4:
		out, err := compressLz4(data)
		if err != nil {
			return nil, None, err
		}
		return out, Lz4, nil
	default:
		return data, None, nil
	}
}

// Decompress reverses Compress given the Type it reports.
func Decompress(data []byte, t Type) ([]byte, error) {
	switch t {
	case Zstd:
		return decompressZstd(data)
	case Lz4:
		return decompressLz4(data)
	case None:
		return data, nil
	default:
		return nil, fmt.Errorf("compression: unknown type %d", t)
	}
}

func compressZstd(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("compression: zstd writer: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, make([]byte, 0, len(data))), nil
}

func decompressZstd(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("compression: zstd reader: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("compression: zstd decode: %w", err)
	}
	return out, nil
}

func compressLz4(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compression: lz4 write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compression: lz4 close: %w", err)
	}
	return buf.Bytes(), nil
}

func decompressLz4(data []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("compression: lz4 read: %w", err)
	}
	return out, nil
}
