// Package sequencer turns logical actions into ordered, timed key
// press/release transitions on a virtual keyboard.
//
// Every transition is followed immediately by a synchronization report so
// the kernel delivers a coherent state change. The delays between
// transitions let receiving applications that poll input observe distinct
// press and release pairs, and keep modifier+key interleaving from racing
// their own key-state tracking.
//
// Writes are best effort. A failed write is neither retried nor returned;
// it is only counted.
package sequencer

import (
	"sync/atomic"
	"time"

	"xhisper/internal/action"
	"xhisper/internal/keymap"
)

// Device is the sink for raw key transitions.
type Device interface {
	EmitKey(key keymap.KeyID, pressed bool) error
	Sync() error
}

// Timing holds the delays applied between transitions.
type Timing struct {
	// ShiftSettle is the wait after shift goes down before the shifted key.
	ShiftSettle time.Duration
	// KeyHold is how long a key stays down.
	KeyHold time.Duration
	// ReleaseSettle is the wait after a key comes up before its bracketing
	// modifier is released.
	ReleaseSettle time.Duration
	// ModifierSettle is the wait after ctrl goes down in the paste shortcut.
	ModifierSettle time.Duration
}

// DefaultTiming returns the tuned defaults. Shift settle is kept shorter
// than the ordinary key hold.
func DefaultTiming() Timing {
	return Timing{
		ShiftSettle:    2 * time.Millisecond,
		KeyHold:        8 * time.Millisecond,
		ReleaseSettle:  2 * time.Millisecond,
		ModifierSettle: 8 * time.Millisecond,
	}
}

// Sequencer emits key sequences for actions. It is meant to be driven by a
// single goroutine; SetTiming may be called from any goroutine.
type Sequencer struct {
	dev    Device
	timing atomic.Pointer[Timing]
	sleep  func(time.Duration)

	failures atomic.Uint64
}

// New creates a sequencer writing to dev.
func New(dev Device, timing Timing) *Sequencer {
	s := &Sequencer{
		dev:   dev,
		sleep: time.Sleep,
	}
	s.timing.Store(&timing)
	return s
}

// Timing returns the delays currently in effect.
func (s *Sequencer) Timing() Timing {
	return *s.timing.Load()
}

// SetTiming replaces the delays. It takes effect from the next action.
func (s *Sequencer) SetTiming(t Timing) {
	s.timing.Store(&t)
}

// WriteFailures returns the number of device writes that failed.
func (s *Sequencer) WriteFailures() uint64 {
	return s.failures.Load()
}

// Perform dispatches an action to its sequence and reports whether any
// events were emitted. Invalid actions and unsupported characters are
// ignored.
func (s *Sequencer) Perform(a action.Action) bool {
	switch a.Kind {
	case action.KindTypeChar:
		return s.TypeChar(a.Code)
	case action.KindPaste:
		s.Paste()
		return true
	case action.KindBackspace:
		s.Backspace()
		return true
	case action.KindPressModifier:
		return s.PressModifier(a.Modifier)
	}
	return false
}

// TypeChar types one ASCII character, bracketing it with left shift when
// the table requires. Unsupported codes emit nothing and return false.
func (s *Sequencer) TypeChar(code byte) bool {
	m := keymap.Lookup(code)
	if !m.Supported() {
		return false
	}
	t := s.Timing()

	if m.Shift {
		s.emit(keymap.KeyLeftShift, true)
		s.sleep(t.ShiftSettle)
	}

	s.emit(m.Key, true)
	s.sleep(t.KeyHold)
	s.emit(m.Key, false)
	s.sleep(t.ReleaseSettle)

	if m.Shift {
		s.emit(keymap.KeyLeftShift, false)
	}
	return true
}

// Paste sends the ctrl+V shortcut.
func (s *Sequencer) Paste() {
	t := s.Timing()

	s.emit(keymap.KeyLeftCtrl, true)
	s.sleep(t.ModifierSettle)
	s.emit(keymap.KeyV, true)
	s.sleep(t.KeyHold)
	s.emit(keymap.KeyV, false)
	s.sleep(t.ReleaseSettle)
	s.emit(keymap.KeyLeftCtrl, false)
}

// Backspace taps the backspace key.
func (s *Sequencer) Backspace() {
	s.PressKey(keymap.KeyBackspace)
}

// PressModifier taps a modifier on its own. Unknown modifiers are ignored.
func (s *Sequencer) PressModifier(m action.Modifier) bool {
	key, ok := m.Key()
	if !ok {
		return false
	}
	s.PressKey(key)
	return true
}

// PressKey presses and releases a single key with no shift bracketing.
func (s *Sequencer) PressKey(key keymap.KeyID) {
	s.emit(key, true)
	s.sleep(s.Timing().KeyHold)
	s.emit(key, false)
}

func (s *Sequencer) emit(key keymap.KeyID, pressed bool) {
	if err := s.dev.EmitKey(key, pressed); err != nil {
		s.failures.Add(1)
	}
	if err := s.dev.Sync(); err != nil {
		s.failures.Add(1)
	}
}
