package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"xhisper/internal/action"
)

// Common errors
var (
	ErrAlreadyRunning   = errors.New("ipc: another owner is already bound to the channel")
	ErrDaemonNotRunning = errors.New("ipc: owner is not running")
	ErrPermissionDenied = errors.New("ipc: permission denied")
	ErrUnsupported      = errors.New("ipc: abstract datagram sockets are not supported on this platform")
)

// readBufferSize is larger than any valid command so oversized datagrams
// are seen at full length and rejected instead of silently truncated.
const readBufferSize = 64

// Consecutive read errors back off by readRetryDelay each, and Serve gives
// up after maxReadFailures in a row.
const (
	readRetryDelay  = 50 * time.Millisecond
	maxReadFailures = 20
)

// datagramConn is the part of *net.UnixConn the server reads through.
type datagramConn interface {
	Read(b []byte) (int, error)
	Close() error
}

// Handler carries out decoded actions.
type Handler interface {
	// HandleAction runs one action to completion before the next datagram
	// is read.
	HandleAction(ctx context.Context, a action.Action)
}

// HandlerFunc is a function that implements Handler
type HandlerFunc func(ctx context.Context, a action.Action)

func (f HandlerFunc) HandleAction(ctx context.Context, a action.Action) {
	f(ctx, a)
}

// Stats counts datagrams seen by a server.
type Stats struct {
	Received uint64
	Dropped  uint64
}

// Server owns the bound channel. Commands are served strictly one at a
// time in arrival order.
type Server struct {
	conn       datagramConn
	name       string
	logger     *slog.Logger
	retryDelay time.Duration

	closeOnce sync.Once
	closeErr  error

	received atomic.Uint64
	dropped  atomic.Uint64
}

func newServer(conn datagramConn, name string) *Server {
	return &Server{
		conn:       conn,
		name:       name,
		logger:     slog.New(slog.DiscardHandler),
		retryDelay: readRetryDelay,
	}
}

// SetLogger routes drop and read-error diagnostics to l.
func (s *Server) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// Name returns the channel name the server is bound to.
func (s *Server) Name() string {
	return s.name
}

// Addr returns the printable channel address, e.g. "@xhisper_socket".
func (s *Server) Addr() string {
	return "@" + s.name
}

// Stats returns datagram counters.
func (s *Server) Stats() Stats {
	return Stats{Received: s.received.Load(), Dropped: s.dropped.Load()}
}

// Serve receives and dispatches commands until ctx is done or the server
// is closed, in which case it returns nil. Malformed datagrams are logged
// and skipped. Read errors are retried after a delay; Serve returns the
// last one once maxReadFailures happen in a row.
func (s *Server) Serve(ctx context.Context, h Handler) error {
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	buf := make([]byte, readBufferSize)
	failures := 0
	for {
		n, err := s.conn.Read(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			failures++
			if failures >= maxReadFailures {
				return fmt.Errorf("ipc: read @%s: %w", s.name, err)
			}
			if failures == 1 {
				s.logger.Warn("channel read failed", "error", err)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.retryDelay):
			}
			continue
		}
		failures = 0
		s.received.Add(1)

		a, err := Decode(buf[:n])
		if err != nil {
			s.dropped.Add(1)
			s.logger.Debug("dropped datagram", "size", n, "error", err)
			continue
		}

		h.HandleAction(ctx, a)
	}
}

// Close unbinds the channel. It is safe to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
