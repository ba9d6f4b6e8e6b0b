package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jtrovato/jetson-inference/internal/cli"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// SIGINT/SIGTERM stop the batch between files; the summary is still printed
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := cli.Run(ctx, os.Args, os.Stdout, os.Stderr, cli.Deps{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	})
	stop()
	os.Exit(code)
}
