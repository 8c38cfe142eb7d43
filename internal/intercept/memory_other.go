//go:build !linux

package intercept

import "errors"

// ProcMemory is only available on Linux.
type ProcMemory struct{}

func OpenProcMemory(pid int) (*ProcMemory, error) {
	return nil, errors.New("process memory access requires linux")
}

func (m *ProcMemory) Read(addr uint64, n int) ([]byte, error) {
	return nil, errors.New("process memory access requires linux")
}

func (m *ProcMemory) Write(addr uint64, b []byte) error {
	return errors.New("process memory access requires linux")
}

func (m *ProcMemory) Close() error { return nil }
