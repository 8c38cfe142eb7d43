package parcel

import (
	"bytes"
	"fmt"
	"unicode/utf16"
)

// Shape selects how many 4-byte header words precede the interface token.
type Shape int

const (
	// ShapeOneWord is the strict-mode policy word only (SDK < 29).
	ShapeOneWord Shape = 1
	// ShapeTwoWord adds the work-source uid (SDK 29).
	ShapeTwoWord Shape = 2
	// ShapeThreeWord adds the vendor header word (SDK >= 30).
	ShapeThreeWord Shape = 3
)

// ShapeForSDK maps a platform SDK level to its envelope shape.
func ShapeForSDK(sdk int) Shape {
	switch {
	case sdk >= 30:
		return ShapeThreeWord
	case sdk == 29:
		return ShapeTwoWord
	default:
		return ShapeOneWord
	}
}

// ParseShape accepts "1", "2", "3" or the names one/two/three.
func ParseShape(s string) (Shape, error) {
	switch s {
	case "1", "one":
		return ShapeOneWord, nil
	case "2", "two":
		return ShapeTwoWord, nil
	case "3", "three":
		return ShapeThreeWord, nil
	}
	return 0, fmt.Errorf("invalid envelope shape %q", s)
}

// Valid reports whether s is one of the known shapes.
func (s Shape) Valid() bool {
	return s >= ShapeOneWord && s <= ShapeThreeWord
}

// HeaderBytes is the size of the leading header words.
func (s Shape) HeaderBytes() int {
	return int(s) * 4
}

func (s Shape) String() string {
	switch s {
	case ShapeOneWord:
		return "one-word"
	case ShapeTwoWord:
		return "two-word"
	case ShapeThreeWord:
		return "three-word"
	}
	return fmt.Sprintf("Shape(%d)", int(s))
}

// PackageManagerDescriptor is the interface token of the package manager.
const PackageManagerDescriptor = "android.content.pm.IPackageManager"

// DescriptorChars is the descriptor length in UTF-16 units, without the NUL.
const DescriptorChars = len(PackageManagerDescriptor)

// DescriptorBytes is the encoded String16 body of the descriptor.
var DescriptorBytes = String16Size(DescriptorChars)

var descriptorUTF16 = encodeUTF16LE(PackageManagerDescriptor)

// Check selects how strictly the interface token is compared.
type Check int

const (
	// CheckLength compares only the descriptor length. A call embedding an
	// unrelated string of the same length at that offset is a false positive.
	CheckLength Check = iota
	// CheckExact also compares the descriptor bytes.
	CheckExact
)

// ParseCheck accepts "length" or "exact".
func ParseCheck(s string) (Check, error) {
	switch s {
	case "", "length":
		return CheckLength, nil
	case "exact":
		return CheckExact, nil
	}
	return 0, fmt.Errorf("invalid descriptor check %q", s)
}

// Validator recognises package manager calls.
type Validator struct {
	Shape Shape
	Check Check
	// TrailingWords are skipped between the descriptor and the identifier.
	TrailingWords int
	// Opcodes restricts inspection to these transaction codes when non-empty.
	Opcodes map[uint32]struct{}
}

// MinSize is the smallest buffer that can hold the envelope, the identifier
// length word and one following word.
func (v Validator) MinSize() int {
	return v.Shape.HeaderBytes() + 4 + DescriptorBytes + 4*v.TrailingWords + 8
}

// AcceptsCode reports whether code passes the opcode whitelist.
func (v Validator) AcceptsCode(code uint32) bool {
	if len(v.Opcodes) == 0 {
		return true
	}
	_, ok := v.Opcodes[code]
	return ok
}

// Validate reports whether buf starts with a package manager envelope.
func (v Validator) Validate(buf []byte) bool {
	_, ok := v.Open(buf)
	return ok
}

// ValidateCode is Validate gated by the opcode whitelist.
func (v Validator) ValidateCode(code uint32, buf []byte) bool {
	if !v.AcceptsCode(code) {
		return false
	}
	return v.Validate(buf)
}

// Open validates the envelope and returns a cursor positioned at the
// identifier argument.
func (v Validator) Open(buf []byte) (*Cursor, bool) {
	if !v.Shape.Valid() || len(buf) < v.MinSize() {
		return nil, false
	}
	c := NewCursor(buf)
	if c.Skip(v.Shape.HeaderBytes()) != nil {
		return nil, false
	}
	n, err := c.ReadUint32()
	if err != nil || n != uint32(DescriptorChars) {
		return nil, false
	}
	desc, err := c.ReadString16(n)
	if err != nil {
		return nil, false
	}
	if v.Check == CheckExact && !bytes.Equal(desc, descriptorUTF16) {
		return nil, false
	}
	if c.Skip(4*v.TrailingWords) != nil {
		return nil, false
	}
	return c, true
}

func encodeUTF16LE(s string) []byte {
	units := utf16.Encode([]rune(s))
	b := make([]byte, len(units)*2)
	for i, u := range units {
		b[2*i] = byte(u)
		b[2*i+1] = byte(u >> 8)
	}
	return b
}
