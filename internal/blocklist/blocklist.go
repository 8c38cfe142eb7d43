// Package blocklist holds the set of package names to hide and matches
// transaction data against it.
package blocklist

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MaxSize is the largest blocklist accepted.
const MaxSize = 512

var (
	ErrEmpty    = errors.New("blocklist: empty")
	ErrTooLarge = errors.New("blocklist: exceeds maximum size")
)

// Format is the on-disk entry header layout.
type Format int

const (
	// FormatByte entries are [u8 length][bytes].
	FormatByte Format = iota
	// FormatWord entries are [u32 little-endian length][bytes].
	FormatWord
)

// ParseFormat accepts "byte" or "word".
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "byte":
		return FormatByte, nil
	case "word":
		return FormatWord, nil
	}
	return 0, fmt.Errorf("invalid blocklist format %q", s)
}

func (f Format) headerSize() int {
	if f == FormatWord {
		return 4
	}
	return 1
}

// Convention is how an entry's stored bytes relate to the UTF-16 name found
// in a transaction.
type Convention int

const (
	// ConventionOddByte entries hold the UTF-16LE name without its final
	// high byte, so a name of n characters is stored in 2n-1 bytes. This is
	// what the management tooling writes.
	ConventionOddByte Convention = iota
	// ConventionCharCount entries hold the narrow name, one byte per
	// character.
	ConventionCharCount
)

// ParseConvention accepts "odd-byte" or "char-count".
func ParseConvention(s string) (Convention, error) {
	switch s {
	case "", "odd-byte":
		return ConventionOddByte, nil
	case "char-count":
		return ConventionCharCount, nil
	}
	return 0, fmt.Errorf("invalid blocklist convention %q", s)
}

// Options control how raw blocklist bytes are interpreted.
type Options struct {
	Format     Format
	Convention Convention
	// MaxSize overrides the default cap when positive.
	MaxSize int
}

type entry struct {
	// stored is the entry as found in the file.
	stored []byte
	// wire is the byte pattern the entry occupies in a transaction.
	wire []byte
	bm   *bmTable
}

// Blocklist is an immutable, parsed blocklist. It is safe for concurrent use.
type Blocklist struct {
	raw     []byte
	conv    Convention
	entries []entry
}

// Parse copies data and indexes its entries. A zero length entry ends the
// list; a final entry running past the end of data is dropped.
func Parse(data []byte, opts Options) (*Blocklist, error) {
	limit := opts.MaxSize
	if limit <= 0 {
		limit = MaxSize
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if len(data) > limit {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(data), limit)
	}

	b := &Blocklist{
		raw:  append([]byte(nil), data...),
		conv: opts.Convention,
	}
	hdr := opts.Format.headerSize()
	for i := 0; i+hdr <= len(b.raw); {
		var n int
		if opts.Format == FormatWord {
			n = int(binary.LittleEndian.Uint32(b.raw[i:]))
		} else {
			n = int(b.raw[i])
		}
		if n == 0 {
			break
		}
		start := i + hdr
		if n > len(b.raw)-start {
			break
		}
		stored := b.raw[start : start+n : start+n]
		wire := wireForm(stored, opts.Convention)
		b.entries = append(b.entries, entry{stored: stored, wire: wire, bm: newBMTable(wire)})
		i = start + n
	}
	if len(b.entries) == 0 {
		return nil, ErrEmpty
	}
	return b, nil
}

func wireForm(stored []byte, conv Convention) []byte {
	if conv != ConventionCharCount {
		return stored
	}
	return widen(stored)
}

// widen interleaves zero high bytes, dropping the last one.
func widen(narrow []byte) []byte {
	if len(narrow) == 0 {
		return nil
	}
	w := make([]byte, 2*len(narrow)-1)
	for i, c := range narrow {
		w[2*i] = c
	}
	return w
}

// Len returns the number of entries.
func (b *Blocklist) Len() int { return len(b.entries) }

// Size returns the raw size in bytes.
func (b *Blocklist) Size() int { return len(b.raw) }

// Convention returns the convention the list was parsed with.
func (b *Blocklist) Convention() Convention { return b.conv }

// Entry returns the stored bytes of entry i.
func (b *Blocklist) Entry(i int) []byte { return b.entries[i].stored }

// Name decodes entry i to a package name.
func (b *Blocklist) Name(i int) string { return decodeName(b.entries[i].wire) }

// Names decodes every entry to a package name.
func (b *Blocklist) Names() []string {
	out := make([]string, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, decodeName(e.wire))
	}
	return out
}
