package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xhisper/internal/keymap"
)

func TestModifierKeys(t *testing.T) {
	tests := []struct {
		mod  Modifier
		name string
		key  keymap.KeyID
	}{
		{LeftAlt, "leftalt", keymap.KeyLeftAlt},
		{RightAlt, "rightalt", keymap.KeyRightAlt},
		{LeftCtrl, "leftctrl", keymap.KeyLeftCtrl},
		{RightCtrl, "rightctrl", keymap.KeyRightCtrl},
		{LeftShift, "leftshift", keymap.KeyLeftShift},
		{RightShift, "rightshift", keymap.KeyRightShift},
		{Super, "super", keymap.KeyLeftMeta},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ok := tt.mod.Key()
			require.True(t, ok)
			assert.Equal(t, tt.key, key)
			assert.Equal(t, tt.name, tt.mod.String())

			parsed, ok := ParseModifier(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.mod, parsed)
		})
	}
}

func TestParseModifierUnknown(t *testing.T) {
	for _, name := range []string{"", "alt", "LeftAlt", "meta", "paste"} {
		_, ok := ParseModifier(name)
		assert.False(t, ok, name)
	}
}

func TestValid(t *testing.T) {
	assert.True(t, TypeChar('x').Valid())
	assert.True(t, TypeChar(0xff).Valid(), "unsupported codes are still well-formed requests")
	assert.True(t, Paste().Valid())
	assert.True(t, Backspace().Valid())
	assert.True(t, PressModifier(Super).Valid())

	assert.False(t, Action{}.Valid())
	assert.False(t, PressModifier(ModifierNone).Valid())
	assert.False(t, PressModifier(Modifier(99)).Valid())
}

func TestString(t *testing.T) {
	assert.Equal(t, "type", TypeChar('a').String())
	assert.Equal(t, "paste", Paste().String())
	assert.Equal(t, "backspace", Backspace().String())
	assert.Equal(t, "modifier:rightalt", PressModifier(RightAlt).String())
	assert.Equal(t, "invalid", Action{}.String())
}
