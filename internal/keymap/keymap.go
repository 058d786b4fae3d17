// Package keymap translates ASCII codes into Linux input key codes for a
// US QWERTY keyboard.
//
// The table covers exactly the 128 ASCII codes. Each entry records the
// physical key and whether shift must be held to produce the character.
// Control characters other than tab and line feed, DEL, and every code
// above 0x7f have no mapping: non-ASCII text goes through clipboard paste.
package keymap

import (
	"github.com/bendahl/uinput"
)

// KeyID identifies a physical key by its Linux KEY_* code, independent of
// shift state.
type KeyID uint16

// Modifier and editing keys used outside the character table.
const (
	KeyLeftCtrl   KeyID = uinput.KeyLeftctrl
	KeyRightCtrl  KeyID = uinput.KeyRightctrl
	KeyLeftAlt    KeyID = uinput.KeyLeftalt
	KeyRightAlt   KeyID = uinput.KeyRightalt
	KeyLeftShift  KeyID = uinput.KeyLeftshift
	KeyRightShift KeyID = uinput.KeyRightshift
	KeyLeftMeta   KeyID = uinput.KeyLeftmeta
	KeyBackspace  KeyID = uinput.KeyBackspace
	KeyV          KeyID = uinput.KeyV
)

// Mapping is the table entry for one character code.
type Mapping struct {
	Key   KeyID
	Shift bool
	ok    bool
}

// Supported reports whether the character can be typed as a key event.
func (m Mapping) Supported() bool {
	return m.ok
}

func key(k int) Mapping     { return Mapping{Key: KeyID(k), ok: true} }
func shifted(k int) Mapping { return Mapping{Key: KeyID(k), Shift: true, ok: true} }

// asciiTable is indexed by ASCII code. Zero values are unsupported.
var asciiTable = [128]Mapping{
	'\t': key(uinput.KeyTab),
	'\n': key(uinput.KeyEnter),

	' ':  key(uinput.KeySpace),
	'!':  shifted(uinput.Key1),
	'"':  shifted(uinput.KeyApostrophe),
	'#':  shifted(uinput.Key3),
	'$':  shifted(uinput.Key4),
	'%':  shifted(uinput.Key5),
	'&':  shifted(uinput.Key7),
	'\'': key(uinput.KeyApostrophe),
	'(':  shifted(uinput.Key9),
	')':  shifted(uinput.Key0),
	'*':  shifted(uinput.Key8),
	'+':  shifted(uinput.KeyEqual),
	',':  key(uinput.KeyComma),
	'-':  key(uinput.KeyMinus),
	'.':  key(uinput.KeyDot),
	'/':  key(uinput.KeySlash),

	'0': key(uinput.Key0),
	'1': key(uinput.Key1),
	'2': key(uinput.Key2),
	'3': key(uinput.Key3),
	'4': key(uinput.Key4),
	'5': key(uinput.Key5),
	'6': key(uinput.Key6),
	'7': key(uinput.Key7),
	'8': key(uinput.Key8),
	'9': key(uinput.Key9),

	':': shifted(uinput.KeySemicolon),
	';': key(uinput.KeySemicolon),
	'<': shifted(uinput.KeyComma),
	'=': key(uinput.KeyEqual),
	'>': shifted(uinput.KeyDot),
	'?': shifted(uinput.KeySlash),
	'@': shifted(uinput.Key2),

	'[':  key(uinput.KeyLeftbrace),
	'\\': key(uinput.KeyBackslash),
	']':  key(uinput.KeyRightbrace),
	'^':  shifted(uinput.Key6),
	'_':  shifted(uinput.KeyMinus),
	'`':  key(uinput.KeyGrave),

	'{': shifted(uinput.KeyLeftbrace),
	'|': shifted(uinput.KeyBackslash),
	'}': shifted(uinput.KeyRightbrace),
	'~': shifted(uinput.KeyGrave),
}

// letterKeys lists the physical keys for 'a' through 'z'.
var letterKeys = [26]int{
	uinput.KeyA, uinput.KeyB, uinput.KeyC, uinput.KeyD, uinput.KeyE,
	uinput.KeyF, uinput.KeyG, uinput.KeyH, uinput.KeyI, uinput.KeyJ,
	uinput.KeyK, uinput.KeyL, uinput.KeyM, uinput.KeyN, uinput.KeyO,
	uinput.KeyP, uinput.KeyQ, uinput.KeyR, uinput.KeyS, uinput.KeyT,
	uinput.KeyU, uinput.KeyV, uinput.KeyW, uinput.KeyX, uinput.KeyY,
	uinput.KeyZ,
}

func init() {
	for i, k := range letterKeys {
		asciiTable['a'+i] = key(k)
		asciiTable['A'+i] = shifted(k)
	}
}

// Lookup returns the mapping for an ASCII code. Codes >= 128 are never
// looked up and always come back unsupported.
func Lookup(code byte) Mapping {
	if code >= 128 {
		return Mapping{}
	}
	return asciiTable[code]
}

// Modifiers returns the modifier keys the virtual keyboard must be able to
// emit, in declaration order.
func Modifiers() []KeyID {
	return []KeyID{
		KeyLeftCtrl, KeyRightCtrl,
		KeyLeftAlt, KeyRightAlt,
		KeyLeftShift, KeyRightShift,
		KeyLeftMeta,
	}
}

// DeclaredKeys returns every key the virtual keyboard declares before
// activation: the three letter rows, the digit row, the punctuation and
// whitespace keys referenced by the table, backspace, and the modifiers.
// Every key Lookup can return is in this set.
func DeclaredKeys() []KeyID {
	keys := make([]KeyID, 0, 64)
	for k := uinput.KeyQ; k <= uinput.KeyP; k++ {
		keys = append(keys, KeyID(k))
	}
	for k := uinput.KeyA; k <= uinput.KeyL; k++ {
		keys = append(keys, KeyID(k))
	}
	for k := uinput.KeyZ; k <= uinput.KeyM; k++ {
		keys = append(keys, KeyID(k))
	}
	for k := uinput.Key1; k <= uinput.Key0; k++ {
		keys = append(keys, KeyID(k))
	}
	for _, k := range []int{
		uinput.KeySpace, uinput.KeyMinus, uinput.KeyEqual,
		uinput.KeyLeftbrace, uinput.KeyRightbrace,
		uinput.KeySemicolon, uinput.KeyApostrophe, uinput.KeyGrave,
		uinput.KeyBackslash, uinput.KeyComma, uinput.KeyDot, uinput.KeySlash,
		uinput.KeyTab, uinput.KeyEnter, uinput.KeyBackspace,
	} {
		keys = append(keys, KeyID(k))
	}
	return append(keys, Modifiers()...)
}
