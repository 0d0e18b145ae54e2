// subtrack is a command-line client for the subscription tracking service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/wondertwin-ai/subtrack/cmd/subtrack/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
