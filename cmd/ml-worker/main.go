package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"nutriadvisor/internal/app"
	"nutriadvisor/internal/config"
	"nutriadvisor/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() // best-effort flush

	workerApp, err := app.NewWorker(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize worker", zap.Error(err))
	}
	defer workerApp.Close()

	if err := workerApp.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("worker stopped with error", zap.Error(err))
	}
}
