package blocklist

import (
	"bytes"
	"encoding/binary"

	"github.com/binderveil/binderveil/internal/parcel"
)

// MatchResult reports which entry matched and where.
type MatchResult struct {
	Matched bool
	// Entry is the index of the matching entry.
	Entry int
	// Offset is the start of the matched name within the transaction buffer.
	Offset int
}

var noMatch = MatchResult{Entry: -1, Offset: -1}

// Match scans entries in order for one equal to id. Entries are filtered by
// length before any content comparison.
func (b *Blocklist) Match(id parcel.Identifier) MatchResult {
	return b.match(id, bytes.Equal)
}

func (b *Blocklist) match(id parcel.Identifier, equal func(a, b []byte) bool) MatchResult {
	if id.Chars <= 0 {
		return noMatch
	}
	want := id.Chars*2 - 1
	data := id.Bytes()
	if len(data) < want {
		return noMatch
	}
	data = data[:want]
	for i, e := range b.entries {
		if len(e.wire) != want {
			continue
		}
		if equal(e.wire, data) {
			return MatchResult{Matched: true, Entry: i, Offset: id.Off}
		}
	}
	return noMatch
}

// isField reports whether the n wire bytes at off form a whole String16
// field: the unit count comes right before them, and the zero high byte of
// the last unit and the NUL unit come right after.
func isField(buf []byte, off, n int) bool {
	if off < 4 || off+n+3 > len(buf) {
		return false
	}
	if binary.LittleEndian.Uint32(buf[off-4:]) != uint32((n+1)/2) {
		return false
	}
	return buf[off+n] == 0 && buf[off+n+1] == 0 && buf[off+n+2] == 0
}

// MatchTail compares every entry with the end of buf after trailing zero
// bytes are dropped. The odd-byte form of a name ends on its last low byte,
// which is where the trimmed tail of a zero-padded transaction ends. A hit
// must be the whole final field, not the suffix of a longer name.
func (b *Blocklist) MatchTail(buf []byte) MatchResult {
	end := len(buf)
	for end > 0 && buf[end-1] == 0 {
		end--
	}
	for i, e := range b.entries {
		n := len(e.wire)
		if n > end {
			continue
		}
		if bytes.Equal(e.wire, buf[end-n:end]) && isField(buf, end-n, n) {
			return MatchResult{Matched: true, Entry: i, Offset: end - n}
		}
	}
	return noMatch
}

// Search looks for an entry anywhere in buf that occupies a whole String16
// field and reports the first entry found. Occurrences inside a longer name
// are skipped.
func (b *Blocklist) Search(buf []byte) MatchResult {
	for i, e := range b.entries {
		n := len(e.wire)
		for start := 0; start+n <= len(buf); {
			off := e.bm.index(buf[start:])
			if off < 0 {
				break
			}
			off += start
			if isField(buf, off, n) {
				return MatchResult{Matched: true, Entry: i, Offset: off}
			}
			start = off + 1
		}
	}
	return noMatch
}
