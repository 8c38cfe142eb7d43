package intercept

import (
	"github.com/binderveil/binderveil/internal/redact"
)

// Transactor is a binder transact implementation.
type Transactor interface {
	Transact(handle, code uint32, data []byte, reply redact.Reply, flags uint32) int32
}

// TransactFunc adapts a function to Transactor.
type TransactFunc func(handle, code uint32, data []byte, reply redact.Reply, flags uint32) int32

func (f TransactFunc) Transact(handle, code uint32, data []byte, reply redact.Reply, flags uint32) int32 {
	return f(handle, code, data, reply, flags)
}

// TransactHook lets the original transact run and then replaces the reply of
// a blocked lookup with a not-found reply.
type TransactHook struct {
	d    *Dispatcher
	orig Transactor
}

// NewTransactHook wraps orig.
func NewTransactHook(d *Dispatcher, orig Transactor) *TransactHook {
	return &TransactHook{d: d, orig: orig}
}

func (h *TransactHook) Transact(handle, code uint32, data []byte, reply redact.Reply, flags uint32) int32 {
	status := h.orig.Transact(handle, code, data, reply, flags)
	dec := h.d.Inspect(code, data)
	if dec.Outcome == OutcomeRedacted {
		redact.SubstituteReply(reply)
	}
	h.d.record(dec)
	return status
}
