//go:build linux

package ipc

import (
	"errors"
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// abstractAddr returns the abstract-namespace address for name. Go maps a
// leading '@' to the leading NUL byte the kernel expects.
func abstractAddr(name string) *net.UnixAddr {
	return &net.UnixAddr{Name: "@" + name, Net: "unixgram"}
}

// Listen binds the abstract datagram socket name. Binding a name another
// process already holds fails with ErrAlreadyRunning.
func Listen(name string) (*Server, error) {
	if name == "" {
		return nil, errors.New("ipc: empty channel name")
	}
	conn, err := net.ListenUnixgram("unixgram", abstractAddr(name))
	if err != nil {
		switch {
		case errors.Is(err, unix.EADDRINUSE):
			return nil, fmt.Errorf("%w: @%s", ErrAlreadyRunning, name)
		case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
			return nil, fmt.Errorf("%w: bind @%s", ErrPermissionDenied, name)
		}
		return nil, fmt.Errorf("ipc: bind @%s: %w", name, err)
	}
	return newServer(conn, name), nil
}

// classifyConnectErr maps errno values from connect and send to the
// client-facing sentinels.
func classifyConnectErr(name string, err error) error {
	switch {
	case errors.Is(err, unix.ECONNREFUSED), errors.Is(err, unix.ENOENT):
		return fmt.Errorf("%w: @%s", ErrDaemonNotRunning, name)
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return fmt.Errorf("%w: @%s", ErrPermissionDenied, name)
	}
	return fmt.Errorf("ipc: connect @%s: %w", name, err)
}

func dial(name string) (*net.UnixConn, error) {
	conn, err := net.DialUnix("unixgram", nil, abstractAddr(name))
	if err != nil {
		return nil, classifyConnectErr(name, err)
	}
	return conn, nil
}
