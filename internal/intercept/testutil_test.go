package intercept

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/binderveil/binderveil/internal/blocklist"
	"github.com/binderveil/binderveil/internal/parcel"
	"github.com/stretchr/testify/require"
)

// fakeMemory maps base addresses to byte regions.
type fakeMemory struct {
	regions  map[uint64][]byte
	writes   int
	failAt   uint64
	readOnly bool
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{regions: map[uint64][]byte{}}
}

func (m *fakeMemory) region(addr uint64, n int) ([]byte, error) {
	for base, b := range m.regions {
		if addr >= base && addr-base+uint64(n) <= uint64(len(b)) {
			off := addr - base
			return b[off : off+uint64(n)], nil
		}
	}
	return nil, fmt.Errorf("unmapped %#x+%d", addr, n)
}

func (m *fakeMemory) Read(addr uint64, n int) ([]byte, error) {
	if m.failAt != 0 && addr == m.failAt {
		return nil, fmt.Errorf("fault at %#x", addr)
	}
	b, err := m.region(addr, n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

func (m *fakeMemory) Write(addr uint64, p []byte) error {
	if m.readOnly {
		return fmt.Errorf("read-only %#x", addr)
	}
	b, err := m.region(addr, len(p))
	if err != nil {
		return err
	}
	m.writes++
	copy(b, p)
	return nil
}

const (
	argAddr   = 0x1000
	writeAddr = 0x2000
	dataAddr  = 0x3000
)

// mapTransaction lays out a binder_write_read pointing at one command that
// carries payload, and returns the payload region.
func mapTransaction(m *fakeMemory, cmd, code uint32, payload []byte) []byte {
	td := parcel.TransactionData{Code: code, DataSize: uint64(len(payload)), Buffer: dataAddr}
	wb := binary.LittleEndian.AppendUint32(nil, cmd)
	wb = append(wb, td.Encode()...)
	bwr := parcel.WriteRead{WriteSize: uint64(len(wb)), WriteBuffer: writeAddr}

	data := append([]byte(nil), payload...)
	m.regions[argAddr] = bwr.Encode()
	m.regions[writeAddr] = wb
	m.regions[dataAddr] = data
	return data
}

func testBlocklist(t *testing.T, names ...string) *blocklist.Blocklist {
	t.Helper()
	var raw []byte
	var err error
	for _, n := range names {
		raw, err = blocklist.AppendEntry(raw, n, blocklist.Options{})
		require.NoError(t, err)
	}
	bl, err := blocklist.Parse(raw, blocklist.Options{})
	require.NoError(t, err)
	return bl
}

func testContext(t *testing.T, shape parcel.Shape, strategy MatchStrategy, names ...string) *Context {
	t.Helper()
	ctx, err := NewContext(testBlocklist(t, names...), parcel.Validator{Shape: shape}, strategy)
	require.NoError(t, err)
	return ctx
}

type countingIoctl struct {
	calls int
	ret   int
	// seen is a copy of the payload as the original observed it.
	seen []byte
	mem  *fakeMemory
}

func (c *countingIoctl) Ioctl(fd int, request uint32, arg uint64) int {
	c.calls++
	if c.mem != nil {
		if b, ok := c.mem.regions[dataAddr]; ok {
			c.seen = append([]byte(nil), b...)
		}
	}
	return c.ret
}
