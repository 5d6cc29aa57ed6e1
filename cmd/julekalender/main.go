package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/florianilch/julekalender/cmd/julekalender/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Execute(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "julekalender: %v\n", err)
		stop()
		os.Exit(1)
	}
}
