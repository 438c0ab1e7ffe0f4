package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"orbitspeed/internal/app"
	"orbitspeed/internal/config"
	"orbitspeed/internal/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Server stopped with error: %v", err)
	}
}

func run() error {
	cfg := config.Load()
	appLogger := logger.NewLogger(cfg)
	defer appLogger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApp(cfg, appLogger)
	if err != nil {
		return err
	}
	return application.Run(ctx)
}
