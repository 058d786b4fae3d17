// xhispertool - type into the focused window through a virtual keyboard
//
//	xhispertool paste            Paste from clipboard (Ctrl+V)
//	xhispertool type <char>      Type a single ASCII character
//	xhispertool backspace        Press backspace
//	xhispertool leftalt ... super
//	xhispertool --daemon         Run the owner process
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"xhisper/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Main(ctx, &cli.Env{Stdout: os.Stdout, Stderr: os.Stderr}, os.Args[0], os.Args[1:])
	stop()
	os.Exit(code)
}
