// Package inflate expands compressed envelopes to their declared size.
package inflate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

var ErrLengthMismatch = errors.New("decompressed length mismatch")

// LengthMismatchError reports an envelope whose payload did not inflate to
// exactly the declared size. Actual is a lower bound when the payload ran long.
type LengthMismatchError struct {
	Declared int
	Actual   int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("decompressed %d bytes, declared %d", e.Actual, e.Declared)
}

func (e *LengthMismatchError) Unwrap() error { return ErrLengthMismatch }

// ErrTooLarge is returned before any allocation when an envelope declares
// more than MaxDecompressedSize bytes.
var ErrTooLarge = errors.New("declared size exceeds limit")

// MaxDecompressedSize bounds the declared size of one envelope, which is read
// from the wire unchecked.
var MaxDecompressedSize = 16 << 20

type SizeLimitError struct {
	Declared int
	Limit    int
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("declared size %d exceeds limit %d", e.Declared, e.Limit)
}

func (e *SizeLimitError) Unwrap() error { return ErrTooLarge }

func checkSize(size int) error {
	if size < 0 {
		return fmt.Errorf("negative declared size %d", size)
	}
	if size > MaxDecompressedSize {
		return &SizeLimitError{Declared: size, Limit: MaxDecompressedSize}
	}
	return nil
}

// Decompressor returns exactly size bytes or an error; it never pads or
// truncates.
type Decompressor interface {
	Decompress(src []byte, size int) ([]byte, error)
}

// ByName picks a decompressor from configuration.
func ByName(name string) (Decompressor, error) {
	switch name {
	case "", "flate", "deflate":
		return Flate{}, nil
	case "lz4":
		return LZ4Block{}, nil
	case "zstd":
		return Zstd{}, nil
	}
	return nil, fmt.Errorf("unknown compression %q", name)
}

// Flate inflates raw deflate streams.
type Flate struct{}

func (Flate) Decompress(src []byte, size int) ([]byte, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}
	zr := flate.NewReader(bytes.NewReader(src))
	defer zr.Close()

	out := make([]byte, size)
	n, err := io.ReadFull(zr, out)
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF) && size > 0:
		return nil, &LengthMismatchError{Declared: size, Actual: n}
	case err != nil:
		return nil, fmt.Errorf("inflate: %w", err)
	}

	var extra [1]byte
	m, err := zr.Read(extra[:])
	if m > 0 {
		return nil, &LengthMismatchError{Declared: size, Actual: size + m}
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	return out, nil
}

// LZ4Block decodes a single LZ4 block with no frame header.
type LZ4Block struct{}

func (LZ4Block) Decompress(src []byte, size int) ([]byte, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}
	// one spare byte so an over-long block shows up as a mismatch
	out := make([]byte, size+1)
	n, err := lz4.UncompressBlock(src, out)
	if err != nil {
		return nil, fmt.Errorf("lz4 block: %w", err)
	}
	if n != size {
		return nil, &LengthMismatchError{Declared: size, Actual: n}
	}
	return out[:n], nil
}

// Zstd decodes a single zstd frame.
type Zstd struct{}

// MaxZstdMemory caps the window a frame may ask the decoder for.
const MaxZstdMemory = 64 << 20

var (
	zstdDecoder     *zstd.Decoder
	zstdDecoderErr  error
	zstdDecoderOnce sync.Once
)

func sharedZstd() (*zstd.Decoder, error) {
	zstdDecoderOnce.Do(func() {
		zstdDecoder, zstdDecoderErr = zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(MaxZstdMemory),
		)
	})
	return zstdDecoder, zstdDecoderErr
}

func (Zstd) Decompress(src []byte, size int) ([]byte, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}
	dec, err := sharedZstd()
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	out, err := dec.DecodeAll(src, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	if len(out) != size {
		return nil, &LengthMismatchError{Declared: size, Actual: len(out)}
	}
	return out, nil
}
