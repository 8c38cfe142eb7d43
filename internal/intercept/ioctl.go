package intercept

import (
	"errors"

	"github.com/binderveil/binderveil/internal/parcel"
)

// MaxPayload bounds the transaction payload read from the caller's memory.
const MaxPayload = 1 << 20

var errPayloadSize = errors.New("intercept: transaction payload too large")

// Memory gives access to the caller's address space for the ioctl path,
// where the driver structures hold raw addresses.
type Memory interface {
	Read(addr uint64, n int) ([]byte, error)
	Write(addr uint64, b []byte) error
}

// Ioctler is an ioctl implementation: the original one or a hook around it.
type Ioctler interface {
	Ioctl(fd int, request uint32, arg uint64) int
}

// IoctlFunc adapts a function to Ioctler.
type IoctlFunc func(fd int, request uint32, arg uint64) int

func (f IoctlFunc) Ioctl(fd int, request uint32, arg uint64) int { return f(fd, request, arg) }

// IoctlHook inspects BINDER_WRITE_READ requests before handing them to the
// original implementation.
type IoctlHook struct {
	d    *Dispatcher
	mem  Memory
	orig Ioctler
}

// NewIoctlHook wraps orig.
func NewIoctlHook(d *Dispatcher, mem Memory, orig Ioctler) *IoctlHook {
	return &IoctlHook{d: d, mem: mem, orig: orig}
}

// Ioctl redacts an outgoing package manager transaction if needed and then
// calls the original exactly once, returning its result unchanged.
func (h *IoctlHook) Ioctl(fd int, request uint32, arg uint64) int {
	if request == parcel.BinderWriteRead {
		h.inspect(arg)
	}
	return h.orig.Ioctl(fd, request, arg)
}

func (h *IoctlHook) inspect(arg uint64) {
	td, data, err := h.payload(arg)
	if err != nil {
		h.d.record(Decision{Outcome: OutcomeMalformed})
		return
	}
	if td == nil {
		h.d.record(Decision{Outcome: OutcomeSkipped})
		return
	}

	// data is a copy; Handle truncates it and only the changed byte goes back.
	dec := h.d.Handle(td.Code, data)
	if dec.Outcome != OutcomeRedacted {
		return
	}
	off := dec.Match.Offset
	if err := h.mem.Write(td.Buffer+uint64(off), data[off:off+1]); err != nil {
		h.d.logger.Warn("write back redacted name", "code", td.Code, "error", err)
	}
}

// payload copies the first pending transaction out of the caller's memory.
// It returns a nil TransactionData when the write buffer holds none.
func (h *IoctlHook) payload(arg uint64) (*parcel.TransactionData, []byte, error) {
	raw, err := h.mem.Read(arg, parcel.WriteReadSize)
	if err != nil {
		return nil, nil, err
	}
	bwr, err := parcel.DecodeWriteRead(raw)
	if err != nil {
		return nil, nil, err
	}
	if bwr.WriteSize == 0 || bwr.WriteConsumed >= bwr.WriteSize {
		return nil, nil, nil
	}
	pending := bwr.WriteSize - bwr.WriteConsumed
	want := min(pending, uint64(4+parcel.TransactionDataSize))
	cmdBuf, err := h.mem.Read(bwr.WriteBuffer+bwr.WriteConsumed, int(want))
	if err != nil {
		return nil, nil, err
	}
	cmd, err := parcel.NextCommand(cmdBuf)
	if err != nil {
		return nil, nil, err
	}
	if cmd.Txn == nil {
		return nil, nil, nil
	}

	td := cmd.Txn
	if td.DataSize > MaxPayload {
		return nil, nil, errPayloadSize
	}
	data, err := h.mem.Read(td.Buffer, int(td.DataSize))
	if err != nil {
		return nil, nil, err
	}
	return td, data, nil
}
