// Package vkbd owns a kernel-emulated keyboard.
//
// A Keyboard is created once, after declaring every key it may emit, and
// destroyed on every exit path of its owner. Only one live Keyboard may
// exist per process.
//
// Platform support:
// - Linux: /dev/uinput (requires write access, usually the input group or root)
// - Other platforms: Create returns ErrUnsupported
package vkbd

import (
	"errors"
	"sync/atomic"
	"time"
)

var (
	// ErrPermissionDenied means the emulation interface exists but may not
	// be opened by this process.
	ErrPermissionDenied = errors.New("vkbd: permission denied")
	// ErrAlreadyCreated means another Keyboard is live in this process.
	ErrAlreadyCreated = errors.New("vkbd: keyboard already created")
	// ErrUnsupported is returned on platforms without an input emulation
	// interface.
	ErrUnsupported = errors.New("vkbd: not supported on this platform")
	// ErrClosed is returned by writes after Destroy.
	ErrClosed = errors.New("vkbd: keyboard destroyed")
)

// Options describes the device to create.
type Options struct {
	Path    string
	Name    string
	Vendor  uint16
	Product uint16
	// Settle is how long Create waits after activation so other processes
	// can see the device before the first event.
	Settle time.Duration
}

// DefaultOptions returns the stock device identity.
func DefaultOptions() Options {
	return Options{
		Path:    "/dev/uinput",
		Name:    "xhisper",
		Vendor:  0x1234,
		Product: 0x5678,
		Settle:  100 * time.Millisecond,
	}
}

// maxNameLen is the size of the name field in the kernel setup struct,
// less the terminating NUL.
const maxNameLen = 79

// live guards the one-keyboard-per-process invariant.
var live atomic.Bool

func acquire() error {
	if !live.CompareAndSwap(false, true) {
		return ErrAlreadyCreated
	}
	return nil
}

func release() {
	live.Store(false)
}
