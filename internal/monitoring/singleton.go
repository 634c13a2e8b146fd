package monitoring

import (
	"sync"

	"github.com/cmvayette/digitalbackbone-sub002/internal/config"
)

var (
	globalMu sync.RWMutex
	global   *Monitor
)

// Init creates a new process-wide Monitor from cfg and installs it as
// the global singleton, replacing whatever was previously installed.
// This is the "explicit initialization entry point" spec.md §9 calls
// for: reinitialization replaces the global outright rather than
// merging state with the prior instance.
func Init(cfg config.Config, opts ...Option) *Monitor {
	m := New(cfg, opts...)
	globalMu.Lock()
	global = m
	globalMu.Unlock()
	return m
}

// Get returns the process-wide Monitor installed by the most recent Init
// call, or nil if none has been installed yet.
func Get() *Monitor {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// ResetGlobal clears the global singleton, mainly for test isolation.
func ResetGlobal() {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = nil
}
