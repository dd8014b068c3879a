// The main package for the gapscan executable.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/gapscan/gapscan/cmd"
)

// main is the entry point of the application. It installs signal
// handling and defers all execution to the Cobra CLI library.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.Execute(ctx)
}
