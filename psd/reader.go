package psd

import (
	"encoding/binary"
	"fmt"
)

// reader walks a byte slice without copying. Slices it hands out alias the
// input buffer and must be treated as read-only.
type reader struct {
	buf []byte
	pos int
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

func (r *reader) remaining() int {
	return len(r.buf) - r.pos
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || n > r.remaining() {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, r.pos, r.remaining())
	}

	b := r.buf[r.pos : r.pos+n : r.pos+n]
	r.pos += n

	return b, nil
}

func (r *reader) skip(n int) error {
	_, err := r.bytes(n)

	return err
}

func (r *reader) u8() (uint8, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}

	return b[0], nil
}

func (r *reader) u16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) i16() (int16, error) {
	v, err := r.u16()

	return int16(v), err
}

func (r *reader) u32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) i32() (int32, error) {
	v, err := r.u32()

	return int32(v), err
}

func (r *reader) u64() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint64(b), nil
}

// length reads a section length, which is 32 bits in PSD and 64 bits in PSB.
func (r *reader) length(wide bool) (int, error) {
	if !wide {
		v, err := r.u32()

		return int(v), err
	}

	v, err := r.u64()
	if err != nil {
		return 0, err
	}

	if v > uint64(r.remaining()) {
		return 0, fmt.Errorf("%w: section length %d exceeds %d remaining bytes", ErrTruncated, v, r.remaining())
	}

	return int(v), nil
}

// section reads a length-prefixed block and returns a reader scoped to it.
func (r *reader) section(wide bool) (*reader, error) {
	n, err := r.length(wide)
	if err != nil {
		return nil, err
	}

	b, err := r.bytes(n)
	if err != nil {
		return nil, err
	}

	return newReader(b), nil
}

// pascal reads a Pascal string whose total size, length byte included, is
// padded to a multiple of pad.
func (r *reader) pascal(pad int) ([]byte, error) {
	n, err := r.u8()
	if err != nil {
		return nil, err
	}

	s, err := r.bytes(int(n))
	if err != nil {
		return nil, err
	}

	if rem := (int(n) + 1) % pad; rem != 0 {
		if err := r.skip(pad - rem); err != nil {
			return nil, err
		}
	}

	return s, nil
}
