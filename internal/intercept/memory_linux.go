//go:build linux

package intercept

import (
	"fmt"
	"strconv"

	"golang.org/x/sys/unix"
)

// ProcMemory reads and writes a process address space through /proc/<pid>/mem.
type ProcMemory struct {
	fd int
}

// OpenProcMemory opens the memory of pid, or of the calling process when pid
// is 0.
func OpenProcMemory(pid int) (*ProcMemory, error) {
	path := "/proc/self/mem"
	if pid != 0 {
		path = "/proc/" + strconv.Itoa(pid) + "/mem"
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &ProcMemory{fd: fd}, nil
}

func (m *ProcMemory) Read(addr uint64, n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("read %d bytes at %#x: negative size", n, addr)
	}
	buf := make([]byte, n)
	for off := 0; off < n; {
		k, err := unix.Pread(m.fd, buf[off:], int64(addr)+int64(off))
		if err != nil {
			return nil, fmt.Errorf("read %d bytes at %#x: %w", n, addr, err)
		}
		if k == 0 {
			return nil, fmt.Errorf("read %d bytes at %#x: short read", n, addr)
		}
		off += k
	}
	return buf, nil
}

func (m *ProcMemory) Write(addr uint64, b []byte) error {
	for off := 0; off < len(b); {
		k, err := unix.Pwrite(m.fd, b[off:], int64(addr)+int64(off))
		if err != nil {
			return fmt.Errorf("write %d bytes at %#x: %w", len(b), addr, err)
		}
		if k == 0 {
			return fmt.Errorf("write %d bytes at %#x: short write", len(b), addr)
		}
		off += k
	}
	return nil
}

// Close releases the file descriptor.
func (m *ProcMemory) Close() error {
	if m == nil || m.fd < 0 {
		return nil
	}
	err := unix.Close(m.fd)
	m.fd = -1
	return err
}
