package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// SIGINT and SIGTERM abort in-flight requests and sleeps; files already
	// renamed into the cache stay valid.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := Execute(ctx)
	stop()
	os.Exit(code)
}
