// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package task drives the independent periodic loops. Loops never call each
// other; they only share state handles.
package task

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Periodic is one independently scheduled unit.
type Periodic struct {
	Name   string
	Period time.Duration
	// Step runs once per tick. A returned error stops the unit.
	Step func() error
	// RestartDelay > 0 restarts the unit after a failed Step instead of
	// failing the whole group. Reset runs before each restart when set.
	RestartDelay time.Duration
	Reset        func() error
}

// Loop is a started ticker bound to a unit. Creating the ticker before the
// goroutine starts keeps mock-clock tests deterministic.
type Loop struct {
	unit   Periodic
	clk    clock.Clock
	ticker *clock.Ticker
}

// Start creates the ticker for p.
func Start(clk clock.Clock, p Periodic) *Loop {
	return &Loop{unit: p, clk: clk, ticker: clk.Ticker(p.Period)}
}

// Run steps on every tick until ctx is done or Step fails.
func (l *Loop) Run(ctx context.Context) error {
	defer l.ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.ticker.C:
			if err := l.unit.Step(); err != nil {
				return fmt.Errorf("%s: %w", l.unit.Name, err)
			}
		}
	}
}

// Supervise runs the loop and restarts it after RestartDelay when a step
// fails. Without a RestartDelay the first failure is returned. A failed
// Reset is retried every RestartDelay until it succeeds or ctx is done.
func (l *Loop) Supervise(ctx context.Context, logger *zap.SugaredLogger) error {
	for {
		err := l.Run(ctx)
		if err == nil || l.unit.RestartDelay <= 0 {
			return err
		}
		logger.Warnw("task failed, restarting", "task", l.unit.Name, "error", err, "delay", l.unit.RestartDelay)

		if !l.restart(ctx, logger) {
			return nil
		}
		l.ticker = l.clk.Ticker(l.unit.Period)
	}
}

// restart waits RestartDelay and runs Reset, as often as it takes. It
// reports false when ctx ended first.
func (l *Loop) restart(ctx context.Context, logger *zap.SugaredLogger) bool {
	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return false
		case <-l.clk.After(l.unit.RestartDelay):
		}
		if l.unit.Reset == nil {
			return true
		}
		err := l.unit.Reset()
		if err == nil {
			return true
		}
		logger.Warnw("task reset failed, retrying", "task", l.unit.Name, "attempt", attempt, "error", err)
	}
}

// Group runs every unit on its own goroutine until ctx is cancelled or one of
// them fails for good.
func Group(ctx context.Context, clk clock.Clock, logger *zap.SugaredLogger, units ...Periodic) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, u := range units {
		l := Start(clk, u)
		logger.Infow("task started", "task", u.Name, "period", u.Period)
		g.Go(func() error { return l.Supervise(ctx, logger) })
	}
	return g.Wait()
}
