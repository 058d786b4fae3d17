// Package action defines the logical text-entry requests the daemon carries
// out: type one character, paste, backspace, or tap a modifier key.
package action

import (
	"fmt"

	"xhisper/internal/keymap"
)

// Kind tags the variant held by an Action.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindTypeChar
	KindPaste
	KindBackspace
	KindPressModifier
)

func (k Kind) String() string {
	switch k {
	case KindTypeChar:
		return "type"
	case KindPaste:
		return "paste"
	case KindBackspace:
		return "backspace"
	case KindPressModifier:
		return "modifier"
	default:
		return "invalid"
	}
}

// Modifier names a standalone modifier key. Tapping one is used for input
// method or layout switching and for bracketing a batch of other actions.
type Modifier uint8

const (
	ModifierNone Modifier = iota
	LeftAlt
	RightAlt
	LeftCtrl
	RightCtrl
	LeftShift
	RightShift
	Super
)

var modifierKeys = map[Modifier]keymap.KeyID{
	LeftAlt:    keymap.KeyLeftAlt,
	RightAlt:   keymap.KeyRightAlt,
	LeftCtrl:   keymap.KeyLeftCtrl,
	RightCtrl:  keymap.KeyRightCtrl,
	LeftShift:  keymap.KeyLeftShift,
	RightShift: keymap.KeyRightShift,
	Super:      keymap.KeyLeftMeta,
}

var modifierNames = map[Modifier]string{
	LeftAlt:    "leftalt",
	RightAlt:   "rightalt",
	LeftCtrl:   "leftctrl",
	RightCtrl:  "rightctrl",
	LeftShift:  "leftshift",
	RightShift: "rightshift",
	Super:      "super",
}

// Key returns the physical key for the modifier.
func (m Modifier) Key() (keymap.KeyID, bool) {
	k, ok := modifierKeys[m]
	return k, ok
}

func (m Modifier) String() string {
	if name, ok := modifierNames[m]; ok {
		return name
	}
	return fmt.Sprintf("modifier(%d)", uint8(m))
}

// ParseModifier resolves a CLI verb such as "leftalt" to a Modifier.
func ParseModifier(name string) (Modifier, bool) {
	for m, n := range modifierNames {
		if n == name {
			return m, true
		}
	}
	return ModifierNone, false
}

// Action is a single logical request. Only the field matching Kind is
// meaningful.
type Action struct {
	Kind     Kind
	Code     byte
	Modifier Modifier
}

// TypeChar returns an action that types the given ASCII code.
func TypeChar(code byte) Action {
	return Action{Kind: KindTypeChar, Code: code}
}

// Paste returns the paste-shortcut action.
func Paste() Action {
	return Action{Kind: KindPaste}
}

// Backspace returns the backspace action.
func Backspace() Action {
	return Action{Kind: KindBackspace}
}

// PressModifier returns an action that taps the given modifier.
func PressModifier(m Modifier) Action {
	return Action{Kind: KindPressModifier, Modifier: m}
}

// Valid reports whether the action is a well-formed variant.
func (a Action) Valid() bool {
	switch a.Kind {
	case KindTypeChar, KindPaste, KindBackspace:
		return true
	case KindPressModifier:
		_, ok := a.Modifier.Key()
		return ok
	default:
		return false
	}
}

func (a Action) String() string {
	switch a.Kind {
	case KindPressModifier:
		return "modifier:" + a.Modifier.String()
	default:
		return a.Kind.String()
	}
}
