package main

import (
	"context"
	"os/signal"
	"syscall"
)

const (
	appName    = "almanac"
	appVersion = "1.0.0"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	executeContext(ctx)
}
