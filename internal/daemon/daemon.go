// Package daemon runs the owner process: it holds the virtual keyboard,
// binds the command channel and performs each received action.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"xhisper/internal/action"
	"xhisper/internal/config"
	"xhisper/internal/ipc"
	"xhisper/internal/keymap"
	"xhisper/internal/logging"
	"xhisper/internal/metrics"
	"xhisper/internal/sequencer"
	"xhisper/internal/vkbd"
)

// crashRetention is how long crash reports are kept across restarts.
const crashRetention = 30 * 24 * time.Hour

// Keyboard is the device handle the daemon owns for its lifetime.
type Keyboard interface {
	sequencer.Device
	Name() string
	DeclaredKeys() int
	Destroy() error
}

// Options configures a Daemon. Only Config is required.
type Options struct {
	Config *config.Config

	// Loader, when set, is watched and new [timing] values are applied to
	// the running sequencer.
	Loader *config.Loader

	Logger *logging.Logger
	Crash  *logging.CrashHandler

	// Stdout receives the "listening" banner.
	Stdout io.Writer

	OpenDevice func(opts vkbd.Options, keys []keymap.KeyID) (Keyboard, error)
	Listen     func(name string) (*ipc.Server, error)
}

// Daemon is the owner process.
type Daemon struct {
	opts    Options
	logger  *logging.Logger
	metrics *metrics.DaemonMetrics

	mu  sync.Mutex
	seq *sequencer.Sequencer
}

// New fills in defaults for unset options.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil {
		return nil, errors.New("daemon: nil config")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.OpenDevice == nil {
		opts.OpenDevice = openKeyboard
	}
	if opts.Listen == nil {
		opts.Listen = ipc.Listen
	}
	return &Daemon{
		opts:    opts,
		logger:  opts.Logger.WithComponent("daemon"),
		metrics: metrics.NewDaemonMetrics(),
	}, nil
}

func openKeyboard(opts vkbd.Options, keys []keymap.KeyID) (Keyboard, error) {
	kb, err := vkbd.Create(opts, keys)
	if err != nil {
		return nil, err
	}
	return kb, nil
}

// Metrics returns the daemon's action counters.
func (d *Daemon) Metrics() *metrics.DaemonMetrics {
	return d.metrics
}

// Timing reports the sequencer timing while the daemon is serving.
func (d *Daemon) Timing() (sequencer.Timing, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seq == nil {
		return sequencer.Timing{}, false
	}
	return d.seq.Timing(), true
}

// Run creates the device, binds the channel and serves until ctx is done.
// The device is destroyed and the channel released on every return path,
// including a panic in an action.
func (d *Daemon) Run(ctx context.Context) error {
	if d.opts.Crash != nil {
		if err := d.opts.Crash.CleanupOldCrashReports(crashRetention); err != nil {
			d.logger.Debug("crash report cleanup failed", "error", err)
		}
		defer d.opts.Crash.Guard(map[string]any{"component": "daemon"})
	}

	cfg := d.opts.Config

	dev, err := d.opts.OpenDevice(cfg.DeviceOptions(), keymap.DeclaredKeys())
	if err != nil {
		d.logger.Error("virtual keyboard setup failed", "path", cfg.Device.Path, "error", err)
		return fmt.Errorf("create virtual keyboard: %w", err)
	}
	defer func() {
		if err := dev.Destroy(); err != nil {
			d.logger.Warn("destroy virtual keyboard", "error", err)
		}
	}()

	srv, err := d.opts.Listen(cfg.ChannelName())
	if err != nil {
		d.logger.Error("channel bind failed", "socket", "@"+cfg.ChannelName(), "error", err)
		return err
	}
	defer srv.Close()
	srv.SetLogger(d.opts.Logger.WithComponent("ipc").Logger)

	seq := sequencer.New(dev, cfg.SequencerTiming())
	d.mu.Lock()
	d.seq = seq
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.seq = nil
		d.mu.Unlock()
	}()

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	if d.opts.Loader != nil {
		d.watchConfig(runCtx, seq)
		defer d.opts.Loader.Close()
	}

	fmt.Fprintf(d.opts.Stdout, "xhispertoold: listening on %s\n", srv.Addr())
	d.logger.Info("serving",
		"device", dev.Name(),
		"capabilities", dev.DeclaredKeys(),
		"socket", srv.Addr(),
	)

	err = srv.Serve(runCtx, ipc.HandlerFunc(func(_ context.Context, a action.Action) {
		if a.Kind == action.KindPressModifier {
			d.logger.Debug("action", "kind", a.Kind.String(), "modifier", a.Modifier.String())
		} else {
			d.logger.Debug("action", "kind", a.Kind.String())
		}
		var emitted bool
		d.metrics.ActionDuration.Time(func() { emitted = seq.Perform(a) })
		if emitted {
			d.metrics.Action(a.Kind.String()).Inc()
		} else {
			d.metrics.Ignored(a.Kind.String()).Inc()
		}
	}))

	stats := srv.Stats()
	d.logger.Info("shutting down",
		"received", stats.Received,
		"dropped", stats.Dropped,
		"write_failures", seq.WriteFailures(),
		"metrics", d.metrics.Snapshot(),
	)
	return err
}

// watchConfig applies timing changes from the config file as they are
// saved. Device and channel changes only take effect after a restart.
func (d *Daemon) watchConfig(ctx context.Context, seq *sequencer.Sequencer) {
	loader := d.opts.Loader
	loader.OnChange(func(old, new *config.Config) {
		seq.SetTiming(new.SequencerTiming())
		d.logger.Info("timing reloaded", "path", loader.Path())
		if sections := config.RestartRequired(old, new); len(sections) > 0 {
			d.logger.Warn("configuration change requires restart", "sections", sections)
		}
	})

	if err := loader.Watch(); err != nil {
		d.logger.Warn("config watch disabled", "path", loader.Path(), "error", err)
		return
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-loader.Errors():
				d.logger.Warn("config reload rejected", "error", err)
			}
		}
	}()
}
