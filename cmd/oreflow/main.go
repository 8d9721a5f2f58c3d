package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/matzehuels/oreflow/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	c := cli.New(os.Stderr, cli.LogInfo)
	err := c.RootCommand().ExecuteContext(ctx)
	cancel()

	code := cli.ExitCode(err)
	if code == cli.ExitError {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(code)
}
