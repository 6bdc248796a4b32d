package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/LabelBox/config"
	"github.com/pkg/errors"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("config parse error, %v", err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = RunLabelWorker(ctx, cfg, defaultWorkerFactories())
	cancel()
	os.Exit(exitCode(err))
}

// exitCode turns the worker result into a process status. A retryable
// failure stops the consumer uncommitted and exits 1, so the supervisor
// restarts the worker and the trigger is redelivered.
func exitCode(err error) int {
	if err == nil || errors.Is(err, context.Canceled) {
		return 0
	}
	slog.Error("label worker stopped", "error", err.Error())
	return 1
}
