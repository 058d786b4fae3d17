// Package cli implements the xhispertool and xhispertoold command lines.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"

	"xhisper/internal/action"
	"xhisper/internal/config"
	"xhisper/internal/daemon"
	"xhisper/internal/ipc"
	"xhisper/internal/logging"
	"xhisper/internal/vkbd"
)

// Version is set at build time with -ldflags "-X xhisper/internal/cli.Version=...".
var Version = "dev"

// Exit codes.
const (
	ExitOK      = 0
	ExitUsage   = 1
	ExitConnect = 2
)

// OwnerName is the program name that starts the owner without arguments.
const OwnerName = "xhispertoold"

// Env carries the process surroundings so commands can be run in tests.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer

	// Send delivers one action. Defaults to ipc.Send.
	Send func(name string, a action.Action) error

	// DaemonOptions adjusts the daemon options before it runs.
	DaemonOptions func(*daemon.Options)
}

func (e *Env) send(name string, a action.Action) error {
	if e.Send != nil {
		return e.Send(name, a)
	}
	return ipc.Send(name, a)
}

// Main dispatches on the program name and arguments and returns the exit
// code. argv0 is os.Args[0].
func Main(ctx context.Context, env *Env, argv0 string, args []string) int {
	fs := flag.NewFlagSet(filepath.Base(argv0), flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	configPath := fs.String("config", "", "path to config file")
	daemonMode := fs.Bool("daemon", false, "run the owner process")
	fs.Usage = func() { usage(env.Stderr) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK
		}
		return ExitUsage
	}

	if filepath.Base(argv0) == OwnerName || *daemonMode {
		return RunOwner(ctx, env, *configPath)
	}

	if fs.NArg() < 1 {
		usage(env.Stderr)
		return ExitUsage
	}

	switch verb := fs.Arg(0); verb {
	case "daemon":
		return RunOwner(ctx, env, *configPath)
	case "help":
		usage(env.Stdout)
		return ExitOK
	case "version":
		fmt.Fprintf(env.Stdout, "xhispertool %s\n", Version)
		return ExitOK
	default:
		return RunClient(env, *configPath, fs.Args())
	}
}

// parseVerb turns client arguments into an action.
func parseVerb(args []string) (action.Action, error) {
	switch args[0] {
	case "paste":
		return action.Paste(), nil
	case "backspace":
		return action.Backspace(), nil
	case "type":
		if len(args) != 2 || len(args[1]) != 1 {
			return action.Action{}, errors.New("'type' requires exactly one character argument")
		}
		return action.TypeChar(args[1][0]), nil
	}
	if m, ok := action.ParseModifier(args[0]); ok {
		return action.PressModifier(m), nil
	}
	return action.Action{}, fmt.Errorf("unknown command '%s'", args[0])
}

// RunClient sends one verb to the owner.
func RunClient(env *Env, configPath string, args []string) int {
	a, err := parseVerb(args)
	if err != nil {
		fmt.Fprintf(env.Stderr, "Error: %v\n", err)
		usage(env.Stderr)
		return ExitUsage
	}

	cfg, err := config.Load(configPath)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(env.Stderr, "Error: %v\n", err)
		return ExitUsage
	}

	if err := env.send(cfg.ChannelName(), a); err != nil {
		fmt.Fprintf(env.Stderr, "failed to connect to xhispertoold: %v\n", err)
		switch {
		case errors.Is(err, ipc.ErrDaemonNotRunning):
			fmt.Fprintln(env.Stderr, "Please check if xhispertoold is running.")
			fmt.Fprintln(env.Stderr, "Start it with: xhispertoold &")
		case errors.Is(err, ipc.ErrPermissionDenied):
			fmt.Fprintln(env.Stderr, "Permission denied. Check socket permissions.")
		}
		return ExitConnect
	}
	return ExitOK
}

// RunOwner loads the configuration, sets up logging and runs the daemon
// until ctx is done.
func RunOwner(ctx context.Context, env *Env, configPath string) int {
	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(env.Stderr, "%s: %v\n", OwnerName, err)
		return ExitUsage
	}

	logCfg, err := logging.FromSettings(cfg.Logging, OwnerName)
	if err != nil {
		fmt.Fprintf(env.Stderr, "%s: %v\n", OwnerName, err)
		return ExitUsage
	}
	logCfg.Writer = env.Stderr
	if logCfg.Output == "stdout" {
		logCfg.Writer = env.Stdout
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintf(env.Stderr, "%s: logging: %v\n", OwnerName, err)
		return ExitUsage
	}
	defer func() {
		logger.Sync()
		logger.Close()
	}()
	logging.SetDefault(logger)
	logger.Info("starting",
		"version", Version,
		"config", loader.Path(),
		"log_level", logging.LevelString(logCfg.Level),
	)

	opts := daemon.Options{
		Config: cfg,
		Loader: loader,
		Logger: logger,
		Crash: logging.NewCrashHandler(&logging.CrashHandlerConfig{
			Version:   Version,
			Component: OwnerName,
			Stderr:    env.Stderr,
		}),
		Stdout: env.Stdout,
	}
	if env.DaemonOptions != nil {
		env.DaemonOptions(&opts)
	}

	d, err := daemon.New(opts)
	if err != nil {
		fmt.Fprintf(env.Stderr, "%s: %v\n", OwnerName, err)
		return ExitUsage
	}

	if err := d.Run(ctx); err != nil {
		switch {
		case errors.Is(err, ipc.ErrAlreadyRunning):
			fmt.Fprintf(env.Stderr, "%s is already running\n", OwnerName)
		case errors.Is(err, vkbd.ErrPermissionDenied):
			fmt.Fprintf(env.Stderr, "failed to open %s: permission denied\n", cfg.Device.Path)
			fmt.Fprintln(env.Stderr, "Make sure you're in the 'input' group:")
			fmt.Fprintln(env.Stderr, "  sudo usermod -aG input $USER")
		default:
			fmt.Fprintf(env.Stderr, "%s: %v\n", OwnerName, err)
		}
		return ExitUsage
	}
	return ExitOK
}

func usage(w io.Writer) {
	fmt.Fprint(w, `Usage:
  xhispertool paste            - Paste from clipboard (Ctrl+V)
  xhispertool type <char>      - Type a single ASCII character
  xhispertool backspace        - Press backspace

Input switching keys:
  xhispertool leftalt          - Press left alt
  xhispertool rightalt         - Press right alt
  xhispertool leftctrl         - Press left ctrl
  xhispertool rightctrl        - Press right ctrl
  xhispertool leftshift        - Press left shift
  xhispertool rightshift       - Press right shift
  xhispertool super            - Press super (Windows key)

Daemon:
  xhispertoold                 - Run daemon (or xhispertool --daemon)

Options:
  -config <path>               - Path to config file
`)
}
