//go:build linux

package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xhisper/internal/action"
	"xhisper/internal/daemon"
	"xhisper/internal/ipc"
	"xhisper/internal/keymap"
	"xhisper/internal/vkbd"
)

type nopKeyboard struct{}

func (nopKeyboard) EmitKey(keymap.KeyID, bool) error { return nil }
func (nopKeyboard) Sync() error                      { return nil }
func (nopKeyboard) Name() string                     { return "nop" }
func (nopKeyboard) DeclaredKeys() int                { return 0 }
func (nopKeyboard) Destroy() error                   { return nil }

// bannerWriter cancels once the owner announces it is listening.
type bannerWriter struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	cancel context.CancelFunc
}

func (w *bannerWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, err := w.buf.Write(p)
	if strings.Contains(w.buf.String(), "listening on") {
		w.cancel()
	}
	return n, err
}

func (w *bannerWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func ownerEnv(t *testing.T, stderr *bytes.Buffer) (*Env, string) {
	t.Helper()
	dir := t.TempDir()
	name := fmt.Sprintf("xhisper_cli_test_%d_%s", os.Getpid(), t.Name())
	t.Setenv("XHISPER_CONFIG", filepath.Join(dir, "config.toml"))
	t.Setenv("XDG_STATE_HOME", dir)
	t.Setenv("XHISPER_SOCKET_NAME", name)
	return &Env{
		Stderr: stderr,
		DaemonOptions: func(o *daemon.Options) {
			o.OpenDevice = func(vkbd.Options, []keymap.KeyID) (daemon.Keyboard, error) {
				return nopKeyboard{}, nil
			}
		},
	}, name
}

func TestOwnerServesUntilCancelled(t *testing.T) {
	for _, argv := range []struct {
		argv0 string
		args  []string
	}{
		{"/usr/bin/xhispertoold", nil},
		{"xhispertool", []string{"--daemon"}},
		{"xhispertool", []string{"daemon"}},
	} {
		t.Run(argv.argv0+fmt.Sprint(argv.args), func(t *testing.T) {
			var stderr bytes.Buffer
			env, name := ownerEnv(t, &stderr)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			out := &bannerWriter{cancel: cancel}
			env.Stdout = out

			code := Main(ctx, env, argv.argv0, argv.args)

			assert.Equal(t, ExitOK, code, stderr.String())
			assert.Equal(t, "xhispertoold: listening on @"+name+"\n", out.String())
			assert.Contains(t, stderr.String(), "log_level=info")
		})
	}
}

func TestOwnerAlreadyRunning(t *testing.T) {
	var stdout, stderr bytes.Buffer
	env, name := ownerEnv(t, &stderr)
	env.Stdout = &stdout

	holder, err := ipc.Listen(name)
	require.NoError(t, err)
	defer holder.Close()

	code := RunOwner(context.Background(), env, "")

	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, stderr.String(), "xhispertoold is already running")
	assert.Empty(t, stdout.String())
}

func TestOwnerDevicePermission(t *testing.T) {
	var stdout, stderr bytes.Buffer
	env, _ := ownerEnv(t, &stderr)
	env.Stdout = &stdout
	env.DaemonOptions = func(o *daemon.Options) {
		o.OpenDevice = func(vkbd.Options, []keymap.KeyID) (daemon.Keyboard, error) {
			return nil, vkbd.ErrPermissionDenied
		}
	}

	code := RunOwner(context.Background(), env, "")

	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, stderr.String(), "permission denied")
	assert.Contains(t, stderr.String(), "'input' group")
}

func TestOwnerInvalidConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	env, _ := ownerEnv(t, &stderr)
	env.Stdout = &stdout

	path := filepath.Join(t.TempDir(), "bad.toml")
	writeFile(t, path, "[timing]\nkey_hold_ms = 99999\n")

	code := RunOwner(context.Background(), env, path)

	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, stderr.String(), "timing.key_hold_ms")
}

func TestClientReachesOwner(t *testing.T) {
	var stderr bytes.Buffer
	env, name := ownerEnv(t, &stderr)

	srv, err := ipc.Listen(name)
	require.NoError(t, err)
	defer srv.Close()

	got := make(chan action.Action, 1)
	go srv.Serve(context.Background(), ipc.HandlerFunc(func(_ context.Context, a action.Action) {
		got <- a
	}))

	code := Main(context.Background(), env, "xhispertool", []string{"type", "x"})
	require.Equal(t, ExitOK, code, stderr.String())

	select {
	case a := <-got:
		assert.Equal(t, action.TypeChar('x'), a)
	case <-time.After(2 * time.Second):
		t.Fatal("owner did not receive the command")
	}
}

func TestClientOwnerAbsent(t *testing.T) {
	var stderr bytes.Buffer
	env, _ := ownerEnv(t, &stderr)

	code := Main(context.Background(), env, "xhispertool", []string{"paste"})

	assert.Equal(t, ExitConnect, code)
	assert.Contains(t, stderr.String(), "Please check if xhispertoold is running.")
}
