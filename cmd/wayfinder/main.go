// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"

	"github.com/relabs-tech/wayfinder/internal/app"
	"github.com/relabs-tech/wayfinder/internal/config"
	"github.com/relabs-tech/wayfinder/internal/logging"
)

func main() {
	configPath := flag.String("config", "wayfinder_config.txt", "path to the KEY=VALUE config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting wayfinder")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := app.NewNavigator(cfg, clock.New(), logger)
	if err != nil {
		logger.Fatalf("startup failed: %v", err)
	}
	runErr := n.Run(ctx)
	if err := n.Close(); err != nil {
		logger.Warnf("shutdown: %v", err)
	}
	if runErr != nil {
		logger.Fatalf("fatal: %v", runErr)
	}
	logger.Info("wayfinder stopped")
}
