// Package loader wires the interceptor into a freshly specialized app
// process through the hook host.
package loader

import "io"

// Option is a request to the hook host about the module's lifetime.
type Option int

const (
	// OptionUnloadModule asks the host to unmap the module after
	// specialization.
	OptionUnloadModule Option = iota
	// OptionForceDenylistUnmount asks the host to revert root mounts in the
	// process.
	OptionForceDenylistUnmount
)

func (o Option) String() string {
	switch o {
	case OptionUnloadModule:
		return "unload_module"
	case OptionForceDenylistUnmount:
		return "force_denylist_unmount"
	default:
		return "unknown"
	}
}

// HookHandle identifies one registered hook.
type HookHandle int

// Host is the facility that runs the module inside the target process.
//
// RegisterHook accepts a replacement and a pointer the host fills with the
// displaced implementation at commit time. Supported pairs are
// (intercept.Ioctler, *intercept.Ioctler) and
// (intercept.Transactor, *intercept.Transactor).
type Host interface {
	ConnectCompanion() (io.ReadCloser, error)
	RegisterHook(lib LibraryIdentity, symbol string, replacement, orig any) (HookHandle, error)
	CommitHooks(handles ...HookHandle) bool
	SetOption(opt Option)
}
