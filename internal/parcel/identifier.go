package parcel

import "unicode/utf16"

// Identifier is a package name inside a transaction buffer. It does not own
// its bytes.
type Identifier struct {
	// Off is the offset of the first UTF-16 unit within the buffer.
	Off int
	// Chars is the length in UTF-16 units.
	Chars int

	data []byte
}

// Extract reads the length-prefixed package name at the cursor.
func Extract(c *Cursor) (Identifier, error) {
	n, err := c.ReadUint32()
	if err != nil {
		return Identifier{}, err
	}
	off := c.Offset()
	data, err := c.ReadString16(n)
	if err != nil {
		return Identifier{}, err
	}
	return Identifier{Off: off, Chars: int(n), data: data}, nil
}

// Bytes returns the UTF-16LE data, aliasing the transaction buffer.
func (id Identifier) Bytes() []byte { return id.data }

// Empty reports whether the name has no characters or starts with NUL.
func (id Identifier) Empty() bool {
	return id.Chars == 0 || len(id.data) == 0 || (id.data[0] == 0 && (len(id.data) < 2 || id.data[1] == 0))
}

// String decodes the name for logging.
func (id Identifier) String() string {
	units := make([]uint16, len(id.data)/2)
	for i := range units {
		units[i] = uint16(id.data[2*i]) | uint16(id.data[2*i+1])<<8
	}
	return string(utf16.Decode(units))
}
