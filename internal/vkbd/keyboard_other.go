//go:build !linux

package vkbd

import (
	"xhisper/internal/keymap"
)

// Keyboard is never live on this platform.
type Keyboard struct{}

// Create returns ErrUnsupported on this platform.
func Create(opts Options, keys []keymap.KeyID) (*Keyboard, error) {
	return nil, ErrUnsupported
}

func (k *Keyboard) Name() string { return "" }

func (k *Keyboard) DeclaredKeys() int { return 0 }

func (k *Keyboard) EmitKey(key keymap.KeyID, pressed bool) error { return ErrUnsupported }

func (k *Keyboard) Sync() error { return ErrUnsupported }

// Destroy is a no-op on this platform.
func (k *Keyboard) Destroy() error { return nil }
