// Package controlfunction tracks local and remote participants on a CAN
// bus by address and NAME.
package controlfunction

import (
	"sync"

	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/canframe"
)

// Type distinguishes a locally-owned control function (allowed to
// transmit) from a remote one that is only ever observed.
type Type int

const (
	// Internal control functions are owned by this process and may
	// transmit.
	Internal Type = iota
	// External control functions are remote participants that are only
	// observed, never addressed for transmission by this module.
	External
)

// ControlFunction is a participant identified by an 8-bit address and a
// 64-bit NAME. Address may change during a session's lifetime; consumers
// that hold a reference must re-check Address()/IsValid() rather than
// caching the address.
type ControlFunction struct {
	mu      sync.RWMutex
	kind    Type
	name    uint64
	address uint8
	valid   bool
}

// New creates a control function with the given NAME, initial address and
// kind. A control function created with canframe.AddressNull starts out
// invalid; any other one is valid until invalidated via
// SetAddress(canframe.AddressNull) or Invalidate.
func New(kind Type, name uint64, address uint8) *ControlFunction {
	return &ControlFunction{
		kind:    kind,
		name:    name,
		address: address,
		valid:   address != canframe.AddressNull,
	}
}

// Type reports whether this control function is Internal or External.
func (cf *ControlFunction) Type() Type {
	return cf.kind
}

// Name returns the control function's 64-bit NAME.
func (cf *ControlFunction) Name() uint64 {
	cf.mu.RLock()
	defer cf.mu.RUnlock()
	return cf.name
}

// Address returns the control function's current 8-bit address.
func (cf *ControlFunction) Address() uint8 {
	cf.mu.RLock()
	defer cf.mu.RUnlock()
	return cf.address
}

// IsValid reports whether the control function currently has a usable
// address (0..253). Sessions and working sets must call this every tick
// rather than caching the result, since address claim can invalidate a
// control function at any time.
func (cf *ControlFunction) IsValid() bool {
	cf.mu.RLock()
	defer cf.mu.RUnlock()
	return cf.valid && cf.address < canframe.AddressNull
}

// SetAddress updates the control function's address. Setting it to
// AddressNull marks the control function invalid.
func (cf *ControlFunction) SetAddress(address uint8) {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	cf.address = address
	cf.valid = address != canframe.AddressNull
}

// Invalidate marks the control function as having lost its address,
// without knowing a replacement value.
func (cf *ControlFunction) Invalidate() {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	cf.valid = false
	cf.address = canframe.AddressNull
}
