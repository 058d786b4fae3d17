//go:build linux

package ipc

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xhisper/internal/action"
)

var nameSeq atomic.Uint32

// testName returns a channel name no other test or process is using.
func testName(t *testing.T) string {
	t.Helper()
	base := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	return fmt.Sprintf("xhisper_test_%d_%d_%s", os.Getpid(), nameSeq.Add(1), base)
}

// recordingHandler forwards every action it is given.
type recordingHandler chan action.Action

func (r recordingHandler) HandleAction(_ context.Context, a action.Action) {
	r <- a
}

func (r recordingHandler) next(t *testing.T) action.Action {
	t.Helper()
	select {
	case a := <-r:
		return a
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for action")
		return action.Action{}
	}
}

func startServer(t *testing.T) (*Server, recordingHandler, <-chan error) {
	t.Helper()
	srv, err := Listen(testName(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	h := make(recordingHandler, 16)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, h) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("Serve did not return after cancel")
		}
	})
	return srv, h, done
}

func TestListenTwiceIsAlreadyRunning(t *testing.T) {
	name := testName(t)
	first, err := Listen(name)
	require.NoError(t, err)
	defer first.Close()

	second, err := Listen(name)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Nil(t, second)

	require.NoError(t, first.Close())
	third, err := Listen(name)
	require.NoError(t, err, "name is free again once the owner closes")
	third.Close()
}

func TestListenEmptyName(t *testing.T) {
	_, err := Listen("")
	assert.Error(t, err)
}

func TestAddr(t *testing.T) {
	srv, err := Listen(testName(t))
	require.NoError(t, err)
	defer srv.Close()
	assert.Equal(t, "@"+srv.Name(), srv.Addr())
}

func TestSendTypeShifted(t *testing.T) {
	srv, h, _ := startServer(t)

	require.NoError(t, Send(srv.Name(), action.TypeChar('A')))
	assert.Equal(t, action.TypeChar('A'), h.next(t))
}

func TestSendEveryVerb(t *testing.T) {
	srv, h, _ := startServer(t)

	actions := []action.Action{
		action.Paste(),
		action.Backspace(),
		action.PressModifier(action.LeftAlt),
		action.PressModifier(action.RightAlt),
		action.PressModifier(action.LeftCtrl),
		action.PressModifier(action.RightCtrl),
		action.PressModifier(action.LeftShift),
		action.PressModifier(action.RightShift),
		action.PressModifier(action.Super),
		action.TypeChar(' '),
	}
	for _, a := range actions {
		require.NoError(t, Send(srv.Name(), a))
	}
	for _, want := range actions {
		assert.Equal(t, want, h.next(t))
	}
}

func TestMalformedDatagramsAreDropped(t *testing.T) {
	srv, h, _ := startServer(t)

	require.NoError(t, sendRaw(srv.Name(), []byte("t")))
	require.NoError(t, sendRaw(srv.Name(), []byte("x")))
	require.NoError(t, sendRaw(srv.Name(), []byte("tAB")))
	require.NoError(t, sendRaw(srv.Name(), []byte(strings.Repeat("p", 200))))
	require.NoError(t, sendRaw(srv.Name(), []byte("p")))

	assert.Equal(t, action.Paste(), h.next(t), "loop keeps serving after bad input")
	select {
	case a := <-h:
		t.Fatalf("unexpected action %s", a)
	default:
	}

	stats := srv.Stats()
	assert.Equal(t, uint64(5), stats.Received)
	assert.Equal(t, uint64(4), stats.Dropped)
}

func TestServeReturnsOnCancel(t *testing.T) {
	srv, err := Listen(testName(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, HandlerFunc(func(context.Context, action.Action) {})) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}

	assert.NoError(t, srv.Close(), "second close is a no-op")
	again, err := Listen(srv.Name())
	require.NoError(t, err, "cancel releases the name")
	again.Close()
}

func TestSendWithoutOwner(t *testing.T) {
	err := Send(testName(t), action.Paste())
	assert.ErrorIs(t, err, ErrDaemonNotRunning)
}

func TestSendInvalidActionSendsNothing(t *testing.T) {
	srv, h, _ := startServer(t)

	assert.ErrorIs(t, Send(srv.Name(), action.Action{}), ErrInvalidCommand)
	require.NoError(t, Send(srv.Name(), action.Backspace()))
	assert.Equal(t, action.Backspace(), h.next(t))
}
