package main

import (
	"context"
	"os/signal"
	"syscall"

	"affiliate_sheets/internal/app"
	"affiliate_sheets/internal/commands"
)

func main() {
	app.SetupEnvironment()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	commands.ExecuteContext(ctx)
}
