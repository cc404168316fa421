package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/deposit/internal/batch"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := batch.Execute(ctx)
	stop()
	os.Exit(code)
}
