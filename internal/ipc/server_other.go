//go:build !linux

package ipc

import (
	"net"
)

// Listen returns ErrUnsupported: abstract socket names exist only on Linux.
func Listen(name string) (*Server, error) {
	return nil, ErrUnsupported
}

func dial(name string) (*net.UnixConn, error) {
	return nil, ErrUnsupported
}

func classifyConnectErr(name string, err error) error {
	return err
}
