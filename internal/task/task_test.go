// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"
)

func waitTick(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("step did not run")
	}
}

func TestLoopStepsOnEveryTick(t *testing.T) {
	clk := clock.NewMock()
	stepped := make(chan struct{}, 1)
	l := Start(clk, Periodic{Name: "nav", Period: time.Second, Step: func() error {
		stepped <- struct{}{}
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	for i := 0; i < 3; i++ {
		clk.Add(time.Second)
		waitTick(t, stepped)
	}

	cancel()
	test.That(t, <-done, test.ShouldBeNil)
}

func TestLoopStopsOnStepError(t *testing.T) {
	clk := clock.NewMock()
	boom := errors.New("boom")
	l := Start(clk, Periodic{Name: "heading", Period: 100 * time.Millisecond, Step: func() error { return boom }})

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()
	clk.Add(100 * time.Millisecond)

	select {
	case err := <-done:
		test.That(t, errors.Is(err, boom), test.ShouldBeTrue)
		test.That(t, err.Error(), test.ShouldContainSubstring, "heading")
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestSuperviseRestartsFailedUnit(t *testing.T) {
	var calls, resets atomic.Int32
	ok := make(chan struct{}, 16)
	l := Start(clock.New(), Periodic{
		Name:         "heading",
		Period:       2 * time.Millisecond,
		RestartDelay: 2 * time.Millisecond,
		Step: func() error {
			if calls.Add(1) == 1 {
				return errors.New("bus glitch")
			}
			select {
			case ok <- struct{}{}:
			default:
			}
			return nil
		},
		Reset: func() error {
			resets.Add(1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Supervise(ctx, zaptest.NewLogger(t).Sugar()) }()

	waitTick(t, ok)
	cancel()
	test.That(t, <-done, test.ShouldBeNil)
	test.That(t, resets.Load(), test.ShouldEqual, int32(1))
}

func TestSuperviseRetriesFailedReset(t *testing.T) {
	var calls, resets atomic.Int32
	ok := make(chan struct{}, 16)
	l := Start(clock.New(), Periodic{
		Name:         "heading",
		Period:       2 * time.Millisecond,
		RestartDelay: 2 * time.Millisecond,
		Step: func() error {
			if calls.Add(1) == 1 {
				return errors.New("bus glitch")
			}
			select {
			case ok <- struct{}{}:
			default:
			}
			return nil
		},
		Reset: func() error {
			// bus stays down for the first two attempts
			if resets.Add(1) <= 2 {
				return errors.New("bus still down")
			}
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Supervise(ctx, zaptest.NewLogger(t).Sugar()) }()

	waitTick(t, ok)
	cancel()
	test.That(t, <-done, test.ShouldBeNil)
	test.That(t, resets.Load(), test.ShouldEqual, int32(3))
}

func TestSuperviseStopsRetryingOnCancel(t *testing.T) {
	clk := clock.NewMock()
	resetCalled := make(chan struct{}, 16)
	failed := make(chan struct{}, 1)
	l := Start(clk, Periodic{
		Name:         "heading",
		Period:       time.Second,
		RestartDelay: time.Second,
		Step: func() error {
			select {
			case failed <- struct{}{}:
			default:
			}
			return errors.New("bus glitch")
		},
		Reset: func() error {
			resetCalled <- struct{}{}
			return errors.New("bus still down")
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Supervise(ctx, zaptest.NewLogger(t).Sugar()) }()

	clk.Add(time.Second)
	waitTick(t, failed)
	for i := 0; i < 3; i++ {
		// After registers its timer asynchronously; keep nudging the clock
		// until the reset attempt shows up.
		deadline := time.After(time.Second)
	wait:
		for {
			select {
			case <-resetCalled:
				break wait
			case <-deadline:
				t.Fatal("reset was not retried")
			default:
				clk.Add(time.Second)
			}
		}
	}

	cancel()
	select {
	case err := <-done:
		test.That(t, err, test.ShouldBeNil)
	case <-time.After(time.Second):
		t.Fatal("supervise did not stop on cancel")
	}
}

func TestSuperviseWithoutRestartFails(t *testing.T) {
	l := Start(clock.New(), Periodic{Name: "nav", Period: time.Millisecond, Step: func() error {
		return errors.New("fatal")
	}})
	err := l.Supervise(context.Background(), zaptest.NewLogger(t).Sugar())
	test.That(t, err, test.ShouldNotBeNil)
}

func TestGroupStopsOnCancel(t *testing.T) {
	var a, b atomic.Int32
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := Group(ctx, clock.New(), zaptest.NewLogger(t).Sugar(),
		Periodic{Name: "fast", Period: time.Millisecond, Step: func() error { a.Add(1); return nil }},
		Periodic{Name: "slow", Period: 10 * time.Millisecond, Step: func() error { b.Add(1); return nil }},
	)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, a.Load(), test.ShouldBeGreaterThan, b.Load())
	test.That(t, b.Load(), test.ShouldBeGreaterThan, int32(0))
}
