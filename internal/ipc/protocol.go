// Package ipc carries text-entry commands from short-lived clients to the
// long-running xhisper owner process.
//
// The protocol is designed for:
// - One datagram per command, no framing beyond datagram boundaries
// - A single opcode byte, plus one payload byte for the type command
// - Fire-and-forget delivery with no acknowledgment
// - No versioning: both ends upgrade together
package ipc

import (
	"errors"
	"fmt"

	"xhisper/internal/action"
)

// DefaultName is the well-known channel name, without the leading '@' that
// marks an abstract socket address.
const DefaultName = "xhisper_socket"

// Opcode is the first byte of every command.
type Opcode byte

const (
	OpPaste      Opcode = 'p'
	OpType       Opcode = 't'
	OpBackspace  Opcode = 'b'
	OpRightAlt   Opcode = 'r'
	OpLeftAlt    Opcode = 'L'
	OpLeftCtrl   Opcode = 'C'
	OpRightCtrl  Opcode = 'R'
	OpLeftShift  Opcode = 'S'
	OpRightShift Opcode = 'T'
	OpSuper      Opcode = 'M'
)

// MaxCommandSize is the largest well-formed datagram.
const MaxCommandSize = 2

// ErrInvalidCommand is returned for datagrams that do not decode to an
// action. The server drops such datagrams.
var ErrInvalidCommand = errors.New("ipc: invalid command")

var modifierOps = map[Opcode]action.Modifier{
	OpRightAlt:   action.RightAlt,
	OpLeftAlt:    action.LeftAlt,
	OpLeftCtrl:   action.LeftCtrl,
	OpRightCtrl:  action.RightCtrl,
	OpLeftShift:  action.LeftShift,
	OpRightShift: action.RightShift,
	OpSuper:      action.Super,
}

var opsByModifier = func() map[action.Modifier]Opcode {
	m := make(map[action.Modifier]Opcode, len(modifierOps))
	for op, mod := range modifierOps {
		m[mod] = op
	}
	return m
}()

// Encode returns the wire form of an action.
func Encode(a action.Action) ([]byte, error) {
	switch a.Kind {
	case action.KindTypeChar:
		return []byte{byte(OpType), a.Code}, nil
	case action.KindPaste:
		return []byte{byte(OpPaste)}, nil
	case action.KindBackspace:
		return []byte{byte(OpBackspace)}, nil
	case action.KindPressModifier:
		if op, ok := opsByModifier[a.Modifier]; ok {
			return []byte{byte(op)}, nil
		}
		return nil, fmt.Errorf("%w: unknown modifier %d", ErrInvalidCommand, a.Modifier)
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidCommand, a)
}

// Decode parses one datagram.
//
// The type command must be exactly two bytes. Every other opcode accepts a
// single byte and ignores a trailing one. Empty datagrams, datagrams longer
// than MaxCommandSize, and unknown opcodes are invalid.
func Decode(b []byte) (action.Action, error) {
	if len(b) == 0 {
		return action.Action{}, fmt.Errorf("%w: empty datagram", ErrInvalidCommand)
	}
	if len(b) > MaxCommandSize {
		return action.Action{}, fmt.Errorf("%w: %d bytes", ErrInvalidCommand, len(b))
	}

	op := Opcode(b[0])
	switch op {
	case OpType:
		if len(b) != 2 {
			return action.Action{}, fmt.Errorf("%w: type without payload", ErrInvalidCommand)
		}
		return action.TypeChar(b[1]), nil
	case OpPaste:
		return action.Paste(), nil
	case OpBackspace:
		return action.Backspace(), nil
	}

	if mod, ok := modifierOps[op]; ok {
		return action.PressModifier(mod), nil
	}
	return action.Action{}, fmt.Errorf("%w: unknown opcode 0x%02x", ErrInvalidCommand, b[0])
}
