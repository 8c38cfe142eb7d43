// Package companion serves the blocklist file to hooked processes over a
// local socket.
package companion

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Wire format: [8 bytes signed size, little-endian][size bytes]. A size of
// zero or less means no blocklist is available.
const headerSize = 8

var (
	ErrUnavailable = errors.New("companion: blocklist unavailable")
	ErrTooLarge    = errors.New("companion: blocklist too large")
)

// WriteBlob sends data with its size header. An empty blob is sent as
// unavailable.
func WriteBlob(w io.Writer, data []byte) error {
	hdr := make([]byte, headerSize)
	binary.LittleEndian.PutUint64(hdr, uint64(int64(len(data))))
	if _, err := w.Write(hdr); err != nil {
		return fmt.Errorf("write size: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write blocklist: %w", err)
	}
	return nil
}

// WriteUnavailable sends a zero size header.
func WriteUnavailable(w io.Writer) error {
	return WriteBlob(w, nil)
}

// ReadBlob reads one size-prefixed blob, looping over short reads until the
// announced size has arrived.
func ReadBlob(r io.Reader, maxSize int) ([]byte, error) {
	hdr := make([]byte, headerSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, fmt.Errorf("read size: %w", err)
	}
	size := int64(binary.LittleEndian.Uint64(hdr))
	if size <= 0 {
		return nil, ErrUnavailable
	}
	if size > int64(maxSize) {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, size, maxSize)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read blocklist: %w", err)
	}
	return buf, nil
}
