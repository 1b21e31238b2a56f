// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/relabs-tech/wayfinder/internal/config"
	"github.com/relabs-tech/wayfinder/internal/display"
	"github.com/relabs-tech/wayfinder/internal/gps"
	"github.com/relabs-tech/wayfinder/internal/nav"
	"github.com/relabs-tech/wayfinder/internal/route"
	"github.com/relabs-tech/wayfinder/internal/task"
)

// Walker moves a simulated position along a route at constant speed.
type Walker struct {
	route    []gps.Point
	speedMps float64
	clk      clock.Clock
	start    time.Time
}

// NewWalker starts walking route at speedMps from now.
func NewWalker(pts []gps.Point, speedMps float64, clk clock.Clock) *Walker {
	return &Walker{route: pts, speedMps: speedMps, clk: clk, start: clk.Now()}
}

// Position returns the current point and whether the end of the route was
// reached.
func (w *Walker) Position() (gps.Point, bool) {
	return PointAlong(w.route, w.speedMps*w.clk.Since(w.start).Seconds())
}

// PointAlong interpolates the point meters along the route, segment by segment.
func PointAlong(pts []gps.Point, meters float64) (gps.Point, bool) {
	if len(pts) == 0 {
		return gps.Point{}, true
	}
	if meters <= 0 {
		return pts[0], len(pts) == 1
	}
	for i := 1; i < len(pts); i++ {
		seg := nav.Distance(pts[i-1], pts[i])
		if meters < seg {
			f := meters / seg
			return gps.Point{
				Latitude:  pts[i-1].Latitude + f*(pts[i].Latitude-pts[i-1].Latitude),
				Longitude: pts[i-1].Longitude + f*(pts[i].Longitude-pts[i-1].Longitude),
			}, false
		}
		meters -= seg
	}
	return pts[len(pts)-1], true
}

// ConsoleRenderer prints a line per changed view.
type ConsoleRenderer struct {
	out  io.Writer
	last display.View
	seen bool
}

// NewConsoleRenderer writes to out.
func NewConsoleRenderer(out io.Writer) *ConsoleRenderer {
	return &ConsoleRenderer{out: out}
}

// Render prints v unless it equals the previous view.
func (c *ConsoleRenderer) Render(v display.View) error {
	if c.seen && v == c.last {
		return nil
	}
	c.last, c.seen = v, true
	_, err := fmt.Fprintln(c.out, FormatView(v))
	return err
}

// FormatView is the one-line console form of a view.
func FormatView(v display.View) string {
	return fmt.Sprintf("[VIEW] ARROW=%5.1f°  %-8s  %s", float64(v.Angle)/10, v.DistanceText, v.Label)
}

// SimulateOpts tune the simulation.
type SimulateOpts struct {
	// SpeedMps is the walking speed; defaults to 1.4 m/s.
	SpeedMps float64
	// Period is how often the simulated fix is updated; defaults to 1 s.
	Period time.Duration
}

// RunSimulation runs the full navigator with the mock compass and a position
// walked along ROUTE_FILE. Views are printed to out. It returns once the
// route is finished or ctx is done.
func RunSimulation(ctx context.Context, cfg *config.Config, clk clock.Clock, logger *zap.SugaredLogger, out io.Writer, opts SimulateOpts) error {
	if cfg.RouteFile == "" {
		return fmt.Errorf("simulate: ROUTE_FILE is required: %w", route.ErrEmptyRoute)
	}
	if opts.SpeedMps <= 0 {
		opts.SpeedMps = 1.4
	}
	if opts.Period <= 0 {
		opts.Period = time.Second
	}

	sim := *cfg
	sim.CompassSensor = "mock"
	sim.GPSSerialPort = ""
	sim.DisplayEnabled = false

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Runs after the console renderer so the FINISH line is always printed.
	stopOnFinish := display.RendererFunc(func(v display.View) error {
		if v.Finished && ctx.Err() == nil {
			logger.Info("simulate: route finished")
			cancel()
		}
		return nil
	})

	n, err := NewNavigator(&sim, clk, logger, NewConsoleRenderer(out), stopOnFinish)
	if err != nil {
		return err
	}
	defer n.Close()

	compass := n.Store().Compass()
	walker := NewWalker(compass.Snapshot().Route, opts.SpeedMps, clk)
	p, _ := walker.Position()
	compass.SetPosition(p)

	n.AddUnit(task.Periodic{
		Name:   "walker",
		Period: opts.Period,
		Step: func() error {
			p, _ := walker.Position()
			compass.SetPosition(p)
			logger.Debugw("simulate: position", "lat", p.Latitude, "lon", p.Longitude)
			return nil
		},
	})

	logger.Infow("simulate: walking route", "speed_mps", opts.SpeedMps)
	return n.Run(ctx)
}
