package intercept

import (
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/binderveil/binderveil/internal/metrics"
	"github.com/binderveil/binderveil/internal/redact"
)

// Dispatcher runs inline on every intercepted call. It holds no per-call
// state; the Context is published once and only loaded afterwards.
type Dispatcher struct {
	ctx     atomic.Pointer[Context]
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewDispatcher publishes ctx for use by the hooks. m may be nil.
func NewDispatcher(ctx *Context, m *metrics.Collector) *Dispatcher {
	d := &Dispatcher{
		metrics: m,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	d.ctx.Store(ctx)
	return d
}

// SetLogger sets the logger used for redaction events.
func (d *Dispatcher) SetLogger(logger *slog.Logger) {
	if logger != nil {
		d.logger = logger
	}
}

// Context returns the published context.
func (d *Dispatcher) Context() *Context { return d.ctx.Load() }

// Inspect classifies a transaction payload without modifying it.
func (d *Dispatcher) Inspect(code uint32, data []byte) Decision {
	ctx := d.ctx.Load()
	if ctx == nil {
		return Decision{Outcome: OutcomePassthrough, Code: code}
	}
	return ctx.Inspect(code, data)
}

// Handle inspects data and, when it names a blocked package, truncates the
// name in place.
func (d *Dispatcher) Handle(code uint32, data []byte) Decision {
	dec := d.Inspect(code, data)
	if dec.Outcome == OutcomeRedacted {
		redact.Truncate(data, dec.Match.Offset)
	}
	d.record(dec)
	return dec
}

func (d *Dispatcher) record(dec Decision) {
	d.metrics.IncCall(string(dec.Outcome))
	if dec.Outcome == OutcomeRedacted {
		d.logger.Debug("redacted package manager call",
			"code", dec.Code, "package", dec.Name, "entry", dec.Match.Entry)
	}
}
