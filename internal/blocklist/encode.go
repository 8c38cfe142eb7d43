package blocklist

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// EncodeName returns the stored form of a package name. Package names are
// ASCII; anything else is rejected.
func EncodeName(name string, conv Convention) ([]byte, error) {
	if name == "" {
		return nil, fmt.Errorf("empty package name")
	}
	for i := 0; i < len(name); i++ {
		if c := name[i]; c == 0 || c > 0x7f {
			return nil, fmt.Errorf("package name %q is not ASCII", name)
		}
	}
	if conv == ConventionCharCount {
		return []byte(name), nil
	}
	return widen([]byte(name)), nil
}

func decodeName(wire []byte) string {
	var sb strings.Builder
	sb.Grow((len(wire) + 1) / 2)
	for i := 0; i < len(wire); i += 2 {
		sb.WriteByte(wire[i])
	}
	return sb.String()
}

// Span locates one entry, header included, in a raw blocklist file.
type Span struct {
	Name       string
	Start, End int
}

// Spans lists the entries of a raw file without applying the size cap, so
// that oversized files can still be repaired.
func Spans(data []byte, opts Options) []Span {
	hdr := opts.Format.headerSize()
	var out []Span
	for i := 0; i+hdr <= len(data); {
		var n int
		if opts.Format == FormatWord {
			n = int(binary.LittleEndian.Uint32(data[i:]))
		} else {
			n = int(data[i])
		}
		if n == 0 || n > len(data)-i-hdr {
			break
		}
		stored := data[i+hdr : i+hdr+n]
		out = append(out, Span{
			Name:  decodeName(wireForm(stored, opts.Convention)),
			Start: i,
			End:   i + hdr + n,
		})
		i += hdr + n
	}
	return out
}

// AppendEntry appends name after the last readable entry of a raw file,
// replacing any terminator. It fails if the entry does not fit the header or
// the result would exceed the size cap.
func AppendEntry(data []byte, name string, opts Options) ([]byte, error) {
	stored, err := EncodeName(name, opts.Convention)
	if err != nil {
		return nil, err
	}
	limit := opts.MaxSize
	if limit <= 0 {
		limit = MaxSize
	}
	if opts.Format == FormatByte && len(stored) > 0xff {
		return nil, fmt.Errorf("package name %q too long for a one-byte header", name)
	}
	out := append([]byte(nil), data[:liveLen(data, opts)]...)
	if opts.Format == FormatWord {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(stored)))
	} else {
		out = append(out, byte(len(stored)))
	}
	out = append(out, stored...)
	if len(out) > limit {
		return nil, fmt.Errorf("%w: adding %q needs %d bytes", ErrTooLarge, name, len(out))
	}
	return out, nil
}

// liveLen is the length of the readable prefix of data. A terminator and
// anything after it are unreachable by Parse.
func liveLen(data []byte, opts Options) int {
	spans := Spans(data, opts)
	if len(spans) == 0 {
		return 0
	}
	return spans[len(spans)-1].End
}

// RemoveEntry drops every entry named name and reports whether any was found.
// Bytes past the last readable entry are dropped as well.
func RemoveEntry(data []byte, name string, opts Options) ([]byte, bool) {
	spans := Spans(data, opts)
	data = data[:0]
	if len(spans) > 0 {
		data = data[:spans[len(spans)-1].End]
	}
	out := make([]byte, 0, len(data))
	prev := 0
	found := false
	for _, s := range spans {
		if s.Name != name {
			continue
		}
		out = append(out, data[prev:s.Start]...)
		prev = s.End
		found = true
	}
	out = append(out, data[prev:]...)
	return out, found
}
