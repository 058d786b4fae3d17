package ipc

import (
	"fmt"

	"xhisper/internal/action"
)

// Send delivers one action to the owner bound at name. No response is read:
// a nil error means the datagram was handed to the kernel, not that the
// action ran.
func Send(name string, a action.Action) error {
	payload, err := Encode(a)
	if err != nil {
		return err
	}
	return sendRaw(name, payload)
}

func sendRaw(name string, payload []byte) error {
	conn, err := dial(name)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.Write(payload); err != nil {
		return classifyConnectErr(name, fmt.Errorf("send: %w", err))
	}
	return nil
}
