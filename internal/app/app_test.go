// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"

	"github.com/relabs-tech/wayfinder/internal/config"
	"github.com/relabs-tech/wayfinder/internal/display"
	"github.com/relabs-tech/wayfinder/internal/gps"
	"github.com/relabs-tech/wayfinder/internal/nav"
	"github.com/relabs-tech/wayfinder/internal/state"
)

// roughly 111 m due north
var northRoute = []gps.Point{
	{Latitude: 52.0000, Longitude: 4.0},
	{Latitude: 52.0010, Longitude: 4.0},
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeRoute(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "route.json")
	body := `[{"lat":52.0,"lon":4.0},{"lat":52.001,"lon":4.0}]`
	test.That(t, os.WriteFile(path, []byte(body), 0o644), test.ShouldBeNil)
	return path
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.CompassSensor = "mock"
	cfg.RouteFile = writeRoute(t)
	cfg.HeadingInterval = 5
	cfg.NavigationInterval = 5
	cfg.DisplayUpdateInterval = 5
	cfg.HeadingRestartDelay = 5
	return cfg
}

func TestPointAlong(t *testing.T) {
	p, done := PointAlong(northRoute, 0)
	test.That(t, p, test.ShouldResemble, northRoute[0])
	test.That(t, done, test.ShouldBeFalse)

	total := nav.Distance(northRoute[0], northRoute[1])
	p, done = PointAlong(northRoute, total/2)
	test.That(t, done, test.ShouldBeFalse)
	test.That(t, p.Latitude, test.ShouldAlmostEqual, 52.0005, 1e-9)

	p, done = PointAlong(northRoute, total+1)
	test.That(t, done, test.ShouldBeTrue)
	test.That(t, p, test.ShouldResemble, northRoute[1])

	_, done = PointAlong(nil, 10)
	test.That(t, done, test.ShouldBeTrue)
}

func TestWalkerFollowsClock(t *testing.T) {
	clk := clock.NewMock()
	w := NewWalker(northRoute, 10, clk)

	p, _ := w.Position()
	test.That(t, p, test.ShouldResemble, northRoute[0])

	clk.Add(5 * time.Second)
	p, _ = w.Position()
	test.That(t, nav.Distance(northRoute[0], p), test.ShouldAlmostEqual, 50, 0.01)

	clk.Add(time.Minute)
	_, done := w.Position()
	test.That(t, done, test.ShouldBeTrue)
}

func TestFormatView(t *testing.T) {
	line := FormatView(display.NewView(state.DisplayState{Angle: 905, Distance: 42, NextWaypoint: 1}))
	test.That(t, line, test.ShouldContainSubstring, "90.5°")
	test.That(t, line, test.ShouldContainSubstring, "42 m")
	test.That(t, line, test.ShouldContainSubstring, "Next: 1")
}

func TestConsoleRendererSkipsRepeats(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleRenderer(&buf)
	v := display.NewView(state.DisplayState{Distance: 1})
	test.That(t, r.Render(v), test.ShouldBeNil)
	test.That(t, r.Render(v), test.ShouldBeNil)
	test.That(t, strings.Count(buf.String(), "\n"), test.ShouldEqual, 1)
}

func TestConsoleHandlers(t *testing.T) {
	cfg := config.Default()
	var buf bytes.Buffer
	hs := consoleHandlers(cfg, &buf, zaptest.NewLogger(t).Sugar())
	test.That(t, hs, test.ShouldHaveLength, 3)

	hs[cfg.TopicDisplay](nil, fakeMessage{topic: cfg.TopicDisplay,
		payload: []byte(`{"angle":0,"distance":3,"next_waypoint":2,"finished":true,"distance_text":"3 m","label":"FINISH"}`)})
	hs[cfg.TopicPosition](nil, fakeMessage{topic: cfg.TopicPosition, payload: []byte(`{"lat":52,"lon":4,"validity":"A"}`)})
	hs[cfg.TopicRoute](nil, fakeMessage{topic: cfg.TopicRoute, payload: []byte(`[{"lat":52,"lon":4},{"lat":52.001,"lon":4}]`)})
	hs[cfg.TopicRoute](nil, fakeMessage{topic: cfg.TopicRoute, payload: []byte(`{}`)})

	out := buf.String()
	test.That(t, out, test.ShouldContainSubstring, "FINISH")
	test.That(t, out, test.ShouldContainSubstring, "lat=52.000000")
	test.That(t, out, test.ShouldContainSubstring, "[ROUTE] waypoints=2")
	test.That(t, strings.Count(out, "\n"), test.ShouldEqual, 3)
}

func TestNewNavigatorRejectsBadRoute(t *testing.T) {
	cfg := testConfig(t)
	cfg.RouteFile = filepath.Join(t.TempDir(), "missing.json")
	_, err := NewNavigator(cfg, clock.New(), zaptest.NewLogger(t).Sugar())
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNavigatorRunsLoops(t *testing.T) {
	cfg := testConfig(t)
	var views []display.View
	var mu sync.Mutex
	rec := display.RendererFunc(func(v display.View) error {
		mu.Lock()
		views = append(views, v)
		mu.Unlock()
		return nil
	})

	n, err := NewNavigator(cfg, clock.New(), zaptest.NewLogger(t).Sugar(), rec)
	test.That(t, err, test.ShouldBeNil)
	defer n.Close()
	test.That(t, n.Store().Compass().Snapshot().Route, test.ShouldHaveLength, 2)

	// standing on the first waypoint: the first step advances, the next
	// measures the whole leg
	n.Store().Compass().SetPosition(northRoute[0])

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	for {
		ds, err := n.Store().Display().Read(10 * time.Millisecond)
		if err == nil && ds.NextWaypoint == 1 && ds.Distance > 0 {
			test.That(t, ds.Distance, test.ShouldEqual, 110)
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("navigation loop never updated the display record")
		}
		time.Sleep(5 * time.Millisecond)
	}
	test.That(t, n.Store().Compass().Snapshot().Bearing, test.ShouldBeGreaterThanOrEqualTo, 0.0)

	cancel()
	select {
	case err := <-done:
		test.That(t, err, test.ShouldBeNil)
	case <-time.After(3 * time.Second):
		t.Fatal("navigator did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	test.That(t, len(views), test.ShouldBeGreaterThan, 0)
}

func TestRunSimulationFinishes(t *testing.T) {
	cfg := testConfig(t)
	out := &syncBuffer{}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := RunSimulation(ctx, cfg, clock.New(), zaptest.NewLogger(t).Sugar(), out,
		SimulateOpts{SpeedMps: 50, Period: 5 * time.Millisecond})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ctx.Err(), test.ShouldBeNil)
	test.That(t, out.String(), test.ShouldContainSubstring, "FINISH")
}

func TestRunSimulationNeedsRoute(t *testing.T) {
	cfg := testConfig(t)
	cfg.RouteFile = ""
	err := RunSimulation(context.Background(), cfg, clock.New(), zaptest.NewLogger(t).Sugar(), &bytes.Buffer{}, SimulateOpts{})
	test.That(t, err, test.ShouldNotBeNil)
}
