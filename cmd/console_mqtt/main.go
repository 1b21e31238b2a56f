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

	logger.Info("starting wayfinder console (MQTT subscriber)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunConsoleMQTT(ctx, cfg, logger, os.Stdout); err != nil {
		logger.Fatalf("fatal: %v", err)
	}
}
