// Package parcel decodes the narrow slice of the binder parcel format needed
// to find the package-name argument of package manager calls.
package parcel

import (
	"encoding/binary"
	"errors"
)

// ErrMalformed is returned when a read would run past the end of the buffer.
var ErrMalformed = errors.New("parcel: malformed buffer")

// Cursor is a sequential little-endian reader over a transaction buffer.
// The offset only moves forward and a failed read leaves it untouched.
type Cursor struct {
	buf []byte
	off int
}

// NewCursor returns a cursor positioned at the start of buf.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Offset returns the current read offset.
func (c *Cursor) Offset() int { return c.off }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.buf) - c.off }

func (c *Cursor) has(n int) bool {
	return n >= 0 && n <= len(c.buf)-c.off
}

// Skip advances the cursor by n bytes.
func (c *Cursor) Skip(n int) error {
	if !c.has(n) {
		return ErrMalformed
	}
	c.off += n
	return nil
}

// ReadUint32 reads one 32-bit word.
func (c *Cursor) ReadUint32() (uint32, error) {
	if !c.has(4) {
		return 0, ErrMalformed
	}
	v := binary.LittleEndian.Uint32(c.buf[c.off:])
	c.off += 4
	return v, nil
}

// ReadString16 consumes the body of a String16 whose length word has already
// been read: chars UTF-16 units, a NUL unit and padding to the next word.
// The returned slice aliases the buffer and covers the chars*2 data bytes only.
func (c *Cursor) ReadString16(chars uint32) ([]byte, error) {
	n := int(chars)
	if uint32(n) != chars || n < 0 || n > len(c.buf) {
		return nil, ErrMalformed
	}
	data := n * 2
	total := pad4(data + 2)
	if !c.has(total) {
		return nil, ErrMalformed
	}
	s := c.buf[c.off : c.off+data : c.off+data]
	c.off += total
	return s, nil
}

// String16Size is the encoded size of a String16 body of chars units,
// excluding its length word.
func String16Size(chars int) int {
	return pad4(chars*2 + 2)
}

func pad4(n int) int {
	return (n + 3) &^ 3
}
