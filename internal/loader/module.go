package loader

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/gobwas/glob"

	"github.com/binderveil/binderveil/internal/blocklist"
	"github.com/binderveil/binderveil/internal/companion"
	"github.com/binderveil/binderveil/internal/intercept"
	"github.com/binderveil/binderveil/internal/metrics"
	"github.com/binderveil/binderveil/internal/parcel"
	"github.com/binderveil/binderveil/internal/redact"
)

// Symbols hooked in the binder library.
const (
	SymbolIoctl    = "ioctl"
	SymbolTransact = "_ZN7android8BpBinder8transactEjRKNS_6ParcelEPS1_j"
)

// HookKind selects the interception point.
type HookKind string

const (
	HookIoctl    HookKind = "ioctl"
	HookTransact HookKind = "transact"
)

// ParseHookKind accepts "ioctl" or "transact".
func ParseHookKind(s string) (HookKind, error) {
	switch HookKind(s) {
	case HookIoctl, HookTransact:
		return HookKind(s), nil
	default:
		return "", fmt.Errorf("unknown hook %q", s)
	}
}

var ErrCommit = errors.New("loader: hook commit failed")

// Config selects which processes are hooked and how.
type Config struct {
	// Targets are glob patterns matched against the process name.
	Targets   []string
	Library   string
	Hook      HookKind
	MaxSize   int
	Blocklist blocklist.Options
	// Validator.Shape is detected from the SDK level when zero.
	Validator parcel.Validator
	Strategy  intercept.MatchStrategy
}

// Module runs the per-process specialization lifecycle.
type Module struct {
	cfg     Config
	host    Host
	targets []glob.Glob
	metrics *metrics.Collector
	logger  *slog.Logger

	props  PropertyReader
	lookup func(name string) (LibraryIdentity, error)
	memory func() (intercept.Memory, error)
}

// New compiles the target patterns.
func New(cfg Config, host Host, m *metrics.Collector) (*Module, error) {
	if cfg.Library == "" {
		cfg.Library = "libbinder.so"
	}
	if cfg.Hook == "" {
		cfg.Hook = HookIoctl
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = blocklist.MaxSize
	}
	mod := &Module{
		cfg:     cfg,
		host:    host,
		metrics: m,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		props:   Getprop{},
		lookup:  LookupLibrary,
		memory: func() (intercept.Memory, error) {
			return intercept.OpenProcMemory(0)
		},
	}
	for _, p := range cfg.Targets {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("target %q: %w", p, err)
		}
		mod.targets = append(mod.targets, g)
	}
	return mod, nil
}

// SetLogger sets the logger for lifecycle events.
func (m *Module) SetLogger(logger *slog.Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// SetPropertyReader replaces the system property source.
func (m *Module) SetPropertyReader(p PropertyReader) { m.props = p }

// IsTarget reports whether process matches one of the target patterns.
func (m *Module) IsTarget(process string) bool {
	for _, g := range m.targets {
		if g.Match(process) {
			return true
		}
	}
	return false
}

// Specialize runs before the app's code starts. Non-target processes unload
// the module. Target processes get the blocklist from the companion, build
// the dispatcher and commit the hook. Any failure disables the feature for
// this process and unloads the module; the returned dispatcher is then nil.
func (m *Module) Specialize(process string) (*intercept.Dispatcher, error) {
	if !m.IsTarget(process) {
		m.host.SetOption(OptionUnloadModule)
		return nil, nil
	}
	m.host.SetOption(OptionForceDenylistUnmount)

	data, err := m.fetch()
	if err != nil {
		return m.disable(process, fmt.Errorf("fetch blocklist: %w", err))
	}
	bl, err := blocklist.Parse(data, m.cfg.Blocklist)
	if err != nil {
		return m.disable(process, fmt.Errorf("parse blocklist: %w", err))
	}

	v := m.cfg.Validator
	if v.Shape == 0 {
		if v.Shape, err = DetectShape(m.props); err != nil {
			return m.disable(process, fmt.Errorf("detect envelope: %w", err))
		}
	}
	ctx, err := intercept.NewContext(bl, v, m.cfg.Strategy)
	if err != nil {
		return m.disable(process, err)
	}
	d := intercept.NewDispatcher(ctx, m.metrics)
	d.SetLogger(m.logger)

	lib, err := m.lookup(m.cfg.Library)
	if err != nil {
		return m.disable(process, err)
	}
	handle, release, err := m.register(lib, d)
	if err != nil {
		return m.disable(process, err)
	}
	if !m.host.CommitHooks(handle) {
		release()
		return m.disable(process, ErrCommit)
	}
	m.logger.Info("hook installed",
		"process", process,
		"hook", string(m.cfg.Hook),
		"entries", bl.Len(),
		"shape", v.Shape.String())
	return d, nil
}

func (m *Module) fetch() ([]byte, error) {
	conn, err := m.host.ConnectCompanion()
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return companion.ReadBlob(conn, m.cfg.MaxSize)
}

// register hands the hook to the host. The returned release func frees
// resources held by a hook that never got committed.
func (m *Module) register(lib LibraryIdentity, d *intercept.Dispatcher) (HookHandle, func(), error) {
	if m.cfg.Hook == HookTransact {
		orig := new(intercept.Transactor)
		forward := intercept.TransactFunc(func(handle, code uint32, data []byte, reply redact.Reply, flags uint32) int32 {
			return (*orig).Transact(handle, code, data, reply, flags)
		})
		h, err := m.host.RegisterHook(lib, SymbolTransact, intercept.NewTransactHook(d, forward), orig)
		return h, func() {}, err
	}

	mem, err := m.memory()
	if err != nil {
		return 0, nil, fmt.Errorf("open memory: %w", err)
	}
	release := func() {
		if c, ok := mem.(io.Closer); ok {
			c.Close()
		}
	}
	orig := new(intercept.Ioctler)
	forward := intercept.IoctlFunc(func(fd int, request uint32, arg uint64) int {
		return (*orig).Ioctl(fd, request, arg)
	})
	h, err := m.host.RegisterHook(lib, SymbolIoctl, intercept.NewIoctlHook(d, mem, forward), orig)
	if err != nil {
		release()
		return 0, nil, err
	}
	return h, release, nil
}

func (m *Module) disable(process string, err error) (*intercept.Dispatcher, error) {
	m.logger.Warn("interception disabled", "process", process, "error", err)
	m.host.SetOption(OptionUnloadModule)
	return nil, err
}
