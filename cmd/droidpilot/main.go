package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/droidmind/droidpilot/cmd"
)

func main() {
	// Cancel the run context on SIGINT/SIGTERM so the loop terminates at
	// the next iteration boundary.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}
