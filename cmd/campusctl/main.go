package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/dalemusser/campusdesk/internal/cli"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is normal; the environment may already be set.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := cli.Run(ctx, os.Args[1:], cli.Options{})
	stop()
	os.Exit(code)
}
