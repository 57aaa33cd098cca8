// Package main implements the entry point for the markvault daemon, which
// runs bookmark automation tasks (backups, organization, GitHub sync) against
// a local bookmark collection and exposes a management API.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := initializeApp(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.cleanup()

	if err := app.run(ctx); err != nil {
		log.Fatalf("Application exited with error: %v", err)
	}
}
