// Command hostbridge runs the host bridge from the command line.
//
// Usage:
//
//	hostbridge demo                          # browser-only simulation
//	hostbridge demo --ws-url ws://127.0.0.1:9000/bridge
//	hostbridge serve --stdio --listen :8787
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
