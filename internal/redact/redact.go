// Package redact rewrites transactions that name a blocked package.
package redact

// notFoundReply is the reply substituted for a blocked lookup: an empty
// exception header followed by status 2.
var notFoundReply = [8]byte{0, 0, 0, 0, 2, 0, 0, 0}

// NotFoundReply returns a fresh copy of the substituted reply bytes.
func NotFoundReply() []byte {
	b := notFoundReply
	return b[:]
}

// Truncate zeroes the byte at off so the callee reads an empty name.
// It reports whether buf changed. Offsets outside buf are ignored.
func Truncate(buf []byte, off int) bool {
	if off < 0 || off >= len(buf) {
		return false
	}
	if buf[off] == 0 {
		return false
	}
	buf[off] = 0
	return true
}

// Reply is the writable part of a transaction reply.
type Reply interface {
	SetData(data []byte)
}

// SubstituteReply replaces the reply payload with NotFoundReply.
func SubstituteReply(r Reply) {
	if r == nil {
		return
	}
	r.SetData(NotFoundReply())
}
