package event

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var defaultReg atomic.Pointer[Registry]

// Default returns the process-wide registry, created on first use with a
// no-op logger. Prefer passing a *Registry explicitly; Default exists for
// call sites with no construction path to hang one on.
func Default() *Registry {
	for {
		if r := defaultReg.Load(); r != nil {
			return r
		}
		defaultReg.CompareAndSwap(nil, NewRegistry(zap.NewNop()))
	}
}

// SetDefault installs r as the process-wide registry and returns the previous
// one (nil if none was created yet). A nil r clears it; the next Default call
// creates a fresh registry.
func SetDefault(r *Registry) *Registry {
	return defaultReg.Swap(r)
}
