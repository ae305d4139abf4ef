package main

import (
	"context"
	"os/signal"
	"syscall"

	"marketplace/autoposter/internal/config"
	"marketplace/autoposter/internal/container"

	log "github.com/sirupsen/logrus"
)

func main() {
	log.Info("starting marketplace autoposter...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	log.Info("configuration loaded")

	app, err := container.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize container: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Errorf("shutdown error: %v", err)
		}
	}()

	// A SIGINT/SIGTERM cancels the run at the next record boundary; the
	// in-flight submission finishes or fails first.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		if ctx.Err() != nil {
			log.Info("run stopped by operator")
			return
		}
		log.Errorf("run exited with error: %v", err)
		return
	}

	log.Info("run finished")
}
