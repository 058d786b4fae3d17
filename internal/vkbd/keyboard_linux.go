//go:build linux

package vkbd

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"xhisper/internal/keymap"
)

// linux/uinput.h and linux/input-event-codes.h
const (
	uiSetEvBit   = 0x40045564
	uiSetKeyBit  = 0x40045565
	uiDevSetup   = 0x405c5503
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502

	evSyn     = 0x00
	evKey     = 0x01
	synReport = 0

	busUSB = 0x03
)

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// uinputSetup matches struct uinput_setup.
type uinputSetup struct {
	ID           inputID
	Name         [80]byte
	FFEffectsMax uint32
}

// inputEvent matches struct input_event.
type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// Keyboard is a live virtual keyboard.
type Keyboard struct {
	mu   sync.Mutex
	file *os.File
	name string
	keys int
}

// Create opens the emulation interface, declares keys, activates the device
// and waits for it to settle.
func Create(opts Options, keys []keymap.KeyID) (*Keyboard, error) {
	if len(opts.Name) > maxNameLen {
		return nil, fmt.Errorf("vkbd: device name longer than %d bytes", maxNameLen)
	}
	if err := acquire(); err != nil {
		return nil, err
	}

	kb, err := create(opts, keys)
	if err != nil {
		release()
		return nil, err
	}
	return kb, nil
}

func create(opts Options, keys []keymap.KeyID) (*Keyboard, error) {
	f, err := os.OpenFile(opts.Path, os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		if errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM) {
			return nil, fmt.Errorf("%w: open %s", ErrPermissionDenied, opts.Path)
		}
		return nil, fmt.Errorf("vkbd: open %s: %w", opts.Path, err)
	}
	fd := f.Fd()

	fail := func(step string, err error) (*Keyboard, error) {
		f.Close()
		return nil, fmt.Errorf("vkbd: %s: %w", step, err)
	}

	if err := ioctl(fd, uiSetEvBit, evKey); err != nil {
		return fail("declare EV_KEY", err)
	}
	if err := ioctl(fd, uiSetEvBit, evSyn); err != nil {
		return fail("declare EV_SYN", err)
	}
	for _, k := range keys {
		if err := ioctl(fd, uiSetKeyBit, uintptr(k)); err != nil {
			return fail(fmt.Sprintf("declare key %d", k), err)
		}
	}

	setup := uinputSetup{
		ID: inputID{
			Bustype: busUSB,
			Vendor:  opts.Vendor,
			Product: opts.Product,
		},
	}
	copy(setup.Name[:], opts.Name)
	if err := ioctl(fd, uiDevSetup, uintptr(unsafe.Pointer(&setup))); err != nil {
		return fail("device setup", err)
	}
	if err := ioctl(fd, uiDevCreate, 0); err != nil {
		return fail("device create", err)
	}

	if opts.Settle > 0 {
		time.Sleep(opts.Settle)
	}

	return &Keyboard{file: f, name: opts.Name, keys: len(keys)}, nil
}

// Name returns the device name shown to other processes.
func (k *Keyboard) Name() string { return k.name }

// DeclaredKeys returns how many keys were declared at creation.
func (k *Keyboard) DeclaredKeys() int { return k.keys }

// EmitKey writes a single key transition. Callers follow it with Sync.
func (k *Keyboard) EmitKey(key keymap.KeyID, pressed bool) error {
	var value int32
	if pressed {
		value = 1
	}
	return k.write(evKey, uint16(key), value)
}

// Sync writes a SYN_REPORT marker.
func (k *Keyboard) Sync() error {
	return k.write(evSyn, synReport, 0)
}

func (k *Keyboard) write(typ, code uint16, value int32) error {
	ev := inputEvent{Type: typ, Code: code, Value: value}

	var buf bytes.Buffer
	buf.Grow(int(unsafe.Sizeof(ev)))
	if err := binary.Write(&buf, binary.NativeEndian, &ev); err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.file == nil {
		return ErrClosed
	}
	_, err := k.file.Write(buf.Bytes())
	return err
}

// Destroy deactivates and closes the device. It is safe to call more than
// once and on a nil Keyboard.
func (k *Keyboard) Destroy() error {
	if k == nil {
		return nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.file == nil {
		return nil
	}

	f := k.file
	k.file = nil
	defer release()

	derr := ioctl(f.Fd(), uiDevDestroy, 0)
	cerr := f.Close()
	if derr != nil {
		return fmt.Errorf("vkbd: device destroy: %w", derr)
	}
	return cerr
}

func ioctl(fd, req, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, arg)
	if errno != 0 {
		return errno
	}
	return nil
}
