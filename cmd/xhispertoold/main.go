// xhispertoold owns the virtual keyboard and serves xhispertool requests
// on the @xhisper_socket abstract datagram socket.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"xhisper/internal/cli"
)

var configPath = flag.String("config", "", "path to config file")

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.RunOwner(ctx, &cli.Env{Stdout: os.Stdout, Stderr: os.Stderr}, *configPath)
	stop()
	os.Exit(code)
}
