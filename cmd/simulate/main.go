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
	"time"

	"github.com/benbjohnson/clock"

	"github.com/relabs-tech/wayfinder/internal/app"
	"github.com/relabs-tech/wayfinder/internal/config"
	"github.com/relabs-tech/wayfinder/internal/logging"
)

func main() {
	configPath := flag.String("config", "wayfinder_config.txt", "path to the KEY=VALUE config file")
	routePath := flag.String("route", "", "route file, overrides ROUTE_FILE")
	speed := flag.Float64("speed", 1.4, "walking speed in m/s")
	period := flag.Duration("period", time.Second, "position update period")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *routePath != "" {
		cfg.RouteFile = *routePath
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting wayfinder simulation (mock compass and position)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := app.SimulateOpts{SpeedMps: *speed, Period: *period}
	if err := app.RunSimulation(ctx, cfg, clock.New(), logger, os.Stdout, opts); err != nil {
		logger.Fatalf("fatal: %v", err)
	}
}
