package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"chowspace/pkg/app"
)

// main acts as a thin adapter so process managers can keep using cmd/server; it always serves.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := append([]string{"serve"}, os.Args[1:]...)
	if err := app.Run(ctx, args, nil); err != nil {
		zap.Must(zap.NewProduction()).Fatal("server stopped with error", zap.Error(err))
	}
}
