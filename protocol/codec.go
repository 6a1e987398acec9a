package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"golang.org/x/text/encoding/charmap"
)

var (
	ErrShortBuffer = errors.New("read past end of buffer")
	ErrMalformed   = errors.New("malformed payload")
)

// IsParseError reports whether err came from decoding a message.
func IsParseError(err error) bool {
	return errors.Is(err, ErrShortBuffer) || errors.Is(err, ErrMalformed)
}

// ParseError reports a read that would run past the end of a message.
type ParseError struct {
	Offset int
	Want   int
	Have   int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse at offset %d: want %d bytes, have %d", e.Offset, e.Want, e.Have)
}

func (e *ParseError) Unwrap() error { return ErrShortBuffer }

// Reader decodes little-endian values from a byte slice. The cursor only
// moves forward.
type Reader struct {
	buf []byte
	off int
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

func (r *Reader) Offset() int    { return r.off }
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

// Rest returns the unread bytes without advancing.
func (r *Reader) Rest() []byte {
	return r.buf[r.off:]
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, &ParseError{Offset: r.off, Want: n, Have: r.Remaining()}
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) Skip(n int) error {
	_, err := r.take(n)
	return err
}

func (r *Reader) U8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) U16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) U32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) I32() (int32, error) {
	v, err := r.U32()
	return int32(v), err
}

func (r *Reader) F64() (float64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// String reads bytes up to a zero terminator and maps each byte to the code
// point of the same value. The terminator is consumed but not returned.
func (r *Reader) String() (string, error) {
	start := r.off
	for i := start; i < len(r.buf); i++ {
		if r.buf[i] != 0 {
			continue
		}
		raw := r.buf[start:i]
		r.off = i + 1
		s, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if err != nil {
			return "", fmt.Errorf("decode string at offset %d: %w", start, err)
		}
		return string(s), nil
	}
	return "", &ParseError{Offset: start, Want: r.Remaining() + 1, Have: r.Remaining()}
}

// Writer encodes into a buffer whose size is fixed at construction.
type Writer struct {
	buf []byte
	off int
	err error
}

func NewWriter(size int) *Writer {
	return &Writer{buf: make([]byte, size)}
}

func (w *Writer) put(n int) []byte {
	if w.err != nil {
		return nil
	}
	if len(w.buf)-w.off < n {
		w.err = fmt.Errorf("write %d bytes at offset %d: buffer size %d", n, w.off, len(w.buf))
		return nil
	}
	b := w.buf[w.off : w.off+n]
	w.off += n
	return b
}

func (w *Writer) U8(v uint8) {
	if b := w.put(1); b != nil {
		b[0] = v
	}
}

func (w *Writer) U16(v uint16) {
	if b := w.put(2); b != nil {
		binary.LittleEndian.PutUint16(b, v)
	}
}

func (w *Writer) U32(v uint32) {
	if b := w.put(4); b != nil {
		binary.LittleEndian.PutUint32(b, v)
	}
}

func (w *Writer) I32(v int32) {
	w.U32(uint32(v))
}

func (w *Writer) F64(v float64) {
	if b := w.put(8); b != nil {
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	}
}

// String writes the low byte of every rune followed by a zero terminator.
func (w *Writer) String(s string) {
	for _, c := range s {
		w.U8(uint8(c))
	}
	w.U8(0)
}

// Bytes returns the encoded buffer, or the first write error.
func (w *Writer) Bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.buf, nil
}
