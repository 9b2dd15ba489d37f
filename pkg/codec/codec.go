// Package codec implements the transfer codec applied to payloads
// crossing the network boundary. Encoding is symmetric: whatever
// algorithm compresses an upload decompresses the matching download.
package codec

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Algorithm identifies a compression algorithm. The name travels with
// the payload (Content-Encoding), so values are protocol constants.
type Algorithm int

const (
	None Algorithm = iota
	Gzip
	Zstd
)

func (a Algorithm) String() string {
	switch a {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", int(a))
	}
}

// ParseAlgorithm parses an algorithm from its string representation.
// The empty string means no encoding.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch name {
	case "", "none", "identity":
		return None, nil
	case "gzip":
		return Gzip, nil
	case "zstd":
		return Zstd, nil
	default:
		return 0, fmt.Errorf("unknown codec algorithm: %q", name)
	}
}

// ErrMismatch is returned when a payload does not carry the framing of
// the algorithm it was declared with. The payload is never returned
// partially decoded.
var ErrMismatch = errors.New("codec: payload does not match declared algorithm")

// Magic prefixes used to verify framing before decoding.
var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Shared zstd encoder/decoder, reused across calls. Both are safe for
// concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("codec: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("codec: zstd decoder initialization failed: " + err.Error())
	}
}

// Encode compresses data with the given algorithm. For None the input
// is returned unchanged (no copy).
func Encode(data []byte, alg Algorithm) ([]byte, error) {
	switch alg {
	case None:
		return data, nil
	case Gzip:
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, fmt.Errorf("gzip encode: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("gzip encode: %w", err)
		}
		return buf.Bytes(), nil
	case Zstd:
		return zstdEncoder.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("unsupported codec algorithm: %d", alg)
	}
}

// Decode reverses Encode. A payload whose framing does not match alg
// returns ErrMismatch rather than corrupted bytes.
func Decode(data []byte, alg Algorithm) ([]byte, error) {
	switch alg {
	case None:
		return data, nil
	case Gzip:
		if !bytes.HasPrefix(data, gzipMagic) {
			return nil, ErrMismatch
		}
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		return out, nil
	case Zstd:
		if !bytes.HasPrefix(data, zstdMagic) {
			return nil, ErrMismatch
		}
		out, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decode: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported codec algorithm: %d", alg)
	}
}
