// Package formats provides parsers for Call of Duty asset file formats.
package formats

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// ErrUnexpectedEOF is returned when a read runs past the end of the input
// buffer. The reader's offset is left unchanged by the failed read.
var ErrUnexpectedEOF = errors.New("unexpected end of data")

// Reader is a cursor over an in-memory asset buffer. All reads advance the
// cursor; a read that would pass the end of the buffer fails with
// ErrUnexpectedEOF without advancing. The byte order defaults to
// little-endian, which covers every format in this package.
type Reader struct {
	data  []byte
	off   int
	order binary.ByteOrder
}

// NewReader returns a little-endian reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data, order: binary.LittleEndian}
}

// NewReaderOrder returns a reader with an explicit byte order.
func NewReaderOrder(data []byte, order binary.ByteOrder) *Reader {
	return &Reader{data: data, order: order}
}

// Offset returns the current cursor position.
func (r *Reader) Offset() int { return r.off }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.off }

// take reserves n bytes at the cursor, advancing past them.
func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.data) {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d of %d", ErrUnexpectedEOF, n, r.off, len(r.data))
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

// Skip advances the cursor by n bytes.
func (r *Reader) Skip(n int) error {
	_, err := r.take(n)
	return err
}

// Bytes reads n raw bytes.
func (r *Reader) Bytes(n int) ([]byte, error) {
	return r.take(n)
}

// Uint8 reads an unsigned byte.
func (r *Reader) Uint8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Int8 reads a signed byte.
func (r *Reader) Int8() (int8, error) {
	v, err := r.Uint8()
	return int8(v), err
}

// Uint16 reads an unsigned 16-bit integer.
func (r *Reader) Uint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(b), nil
}

// Int16 reads a signed 16-bit integer.
func (r *Reader) Int16() (int16, error) {
	v, err := r.Uint16()
	return int16(v), err
}

// Uint32 reads an unsigned 32-bit integer.
func (r *Reader) Uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(b), nil
}

// Int32 reads a signed 32-bit integer.
func (r *Reader) Int32() (int32, error) {
	v, err := r.Uint32()
	return int32(v), err
}

// Uint64 reads an unsigned 64-bit integer.
func (r *Reader) Uint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return r.order.Uint64(b), nil
}

// Int64 reads a signed 64-bit integer.
func (r *Reader) Int64() (int64, error) {
	v, err := r.Uint64()
	return int64(v), err
}

// Float32 reads a 32-bit float.
func (r *Reader) Float32() (float32, error) {
	v, err := r.Uint32()
	return math.Float32frombits(v), err
}

// Float64 reads a 64-bit float.
func (r *Reader) Float64() (float64, error) {
	v, err := r.Uint64()
	return math.Float64frombits(v), err
}

// Vec2 reads two consecutive 32-bit floats.
func (r *Reader) Vec2() (mgl32.Vec2, error) {
	b, err := r.take(8)
	if err != nil {
		return mgl32.Vec2{}, err
	}
	return mgl32.Vec2{
		math.Float32frombits(r.order.Uint32(b[0:])),
		math.Float32frombits(r.order.Uint32(b[4:])),
	}, nil
}

// Vec3 reads three consecutive 32-bit floats.
func (r *Reader) Vec3() (mgl32.Vec3, error) {
	b, err := r.take(12)
	if err != nil {
		return mgl32.Vec3{}, err
	}
	return mgl32.Vec3{
		math.Float32frombits(r.order.Uint32(b[0:])),
		math.Float32frombits(r.order.Uint32(b[4:])),
		math.Float32frombits(r.order.Uint32(b[8:])),
	}, nil
}

// CString reads bytes up to a NUL terminator and returns them as a string.
// The terminator is consumed but not included.
func (r *Reader) CString() (string, error) {
	start := r.off
	for i := r.off; i < len(r.data); i++ {
		if r.data[i] == 0 {
			r.off = i + 1
			return string(r.data[start:i]), nil
		}
	}
	return "", fmt.Errorf("%w: unterminated string at offset %d", ErrUnexpectedEOF, start)
}

// FixedString reads n bytes and trims everything from the first NUL.
func (r *Reader) FixedString(n int) (string, error) {
	b, err := r.take(n)
	if err != nil {
		return "", err
	}
	for i, c := range b {
		if c == 0 {
			return string(b[:i]), nil
		}
	}
	return string(b), nil
}

// cstringAt reads a NUL-terminated string at an absolute offset without
// touching any cursor. Used by the offset-table material layout.
func cstringAt(data []byte, off uint32) (string, error) {
	if int64(off) >= int64(len(data)) {
		return "", fmt.Errorf("%w: string offset %d beyond %d bytes", ErrUnexpectedEOF, off, len(data))
	}
	for i := int(off); i < len(data); i++ {
		if data[i] == 0 {
			return string(data[off:i]), nil
		}
	}
	return "", fmt.Errorf("%w: unterminated string at offset %d", ErrUnexpectedEOF, off)
}
