// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package app wires the navigation core to its hardware and network edges.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/wayfinder/internal/config"
	"github.com/relabs-tech/wayfinder/internal/display"
	"github.com/relabs-tech/wayfinder/internal/gps"
	"github.com/relabs-tech/wayfinder/internal/heading"
	"github.com/relabs-tech/wayfinder/internal/mqttbus"
	"github.com/relabs-tech/wayfinder/internal/nav"
	"github.com/relabs-tech/wayfinder/internal/route"
	"github.com/relabs-tech/wayfinder/internal/sensors"
	"github.com/relabs-tech/wayfinder/internal/state"
	"github.com/relabs-tech/wayfinder/internal/task"
	"github.com/relabs-tech/wayfinder/internal/web"
)

// mockTurnDegPerSec is how fast the mock compass spins.
const mockTurnDegPerSec = 6

// Navigator is the assembled device: shared state, the three loops and every
// enabled edge.
type Navigator struct {
	cfg    *config.Config
	clk    clock.Clock
	logger *zap.SugaredLogger
	store  *state.Store

	units   []task.Periodic
	gpsPort io.ReadCloser
	mqtt    *mqttbus.Client
	web     *web.Server
	closers []io.Closer
}

// NewNavigator opens every configured device. Any failure here is a startup
// error and everything opened so far is released.
func NewNavigator(cfg *config.Config, clk clock.Clock, logger *zap.SugaredLogger, renderers ...display.Renderer) (n *Navigator, err error) {
	n = &Navigator{cfg: cfg, clk: clk, logger: logger, store: state.New()}
	defer func() {
		if err != nil {
			err = multierr.Append(err, n.Close())
			n = nil
		}
	}()

	if cfg.RouteFile != "" {
		pts, err := route.Load(cfg.RouteFile)
		if err != nil {
			return n, err
		}
		n.store.Compass().SetRoute(pts)
		logger.Infow("route loaded", "file", cfg.RouteFile, "waypoints", len(pts), "length_km", route.LengthKm(pts))
	}

	headingUnit, err := n.headingUnit()
	if err != nil {
		return n, err
	}

	params := nav.Params{DetectionThresholdM: cfg.DetectionThresholdM, BearingOffsetDeg: cfg.BearingOffsetDeg}
	navTask := nav.NewTask(n.store.Navigation(), params, logger.Named("nav"))

	if cfg.DisplayEnabled {
		oled, err := display.OpenOLED(cfg.DisplayI2CBus, logger.Named("display"))
		if err != nil {
			return n, err
		}
		n.closers = append(n.closers, oled)
		renderers = append(renderers, oled)
	}

	if cfg.MQTTBroker != "" {
		c, err := mqttbus.Connect(cfg.MQTTBroker, cfg.MQTTClientID, logger.Named("mqtt"))
		if err != nil {
			return n, err
		}
		n.mqtt = c
		if err := c.Subscribe(cfg.TopicPosition, mqttbus.PositionHandler(n.store.Compass(), logger.Named("mqtt"))); err != nil {
			return n, err
		}
		if err := c.Subscribe(cfg.TopicRoute, mqttbus.RouteHandler(n.store.Compass(), logger.Named("mqtt"))); err != nil {
			return n, err
		}
		renderers = append(renderers, mqttbus.NewDisplayPublisher(c, cfg.TopicDisplay))
	}

	if cfg.GPSSerialPort != "" {
		port, err := gps.OpenSerial(cfg.GPSSerialPort, cfg.GPSBaudRate)
		if err != nil {
			return n, err
		}
		n.gpsPort = port
		logger.Infof("gps: serial port opened on %s at %d baud", cfg.GPSSerialPort, cfg.GPSBaudRate)
	}

	if cfg.WebServerPort > 0 {
		n.web = web.New(n.store.Display(), config.Millis(cfg.DisplayReadTimeout),
			config.Millis(cfg.DisplayUpdateInterval), logger.Named("web"))
	}

	presenter := display.NewPresenter(n.store.Display(), config.Millis(cfg.DisplayReadTimeout),
		logger.Named("display"), renderers...)

	n.units = []task.Periodic{
		headingUnit,
		{Name: "nav", Period: config.Millis(cfg.NavigationInterval), Step: navTask.Step},
		{Name: "display", Period: config.Millis(cfg.DisplayUpdateInterval), Step: presenter.Step},
	}
	return n, nil
}

func (n *Navigator) headingUnit() (task.Periodic, error) {
	cfg := n.cfg
	cal := heading.Calibration{
		XOffset:     cfg.CompassXOffset,
		YOffset:     cfg.CompassYOffset,
		RotationRad: cfg.CompassRotationOffsetRad,
	}
	u := task.Periodic{
		Name:         "heading",
		Period:       config.Millis(cfg.HeadingInterval),
		RestartDelay: config.Millis(cfg.HeadingRestartDelay),
	}

	var src sensors.AxisReader
	switch cfg.CompassSensor {
	case "mock":
		n.logger.Info("using mock compass")
		src = sensors.NewMockSource(n.clk, sensors.MockOpts{
			XOffset:     cal.XOffset,
			YOffset:     cal.YOffset,
			RotationRad: cal.RotationRad,
			DegPerSec:   mockTurnDegPerSec,
		})
	default:
		q, bus, err := sensors.OpenQMC5883L(cfg.CompassI2CBus, cfg.CompassI2CAddr, n.logger.Named("heading"))
		if err != nil {
			return u, err
		}
		n.closers = append(n.closers, bus)
		src = q
		u.Reset = q.Configure
	}

	t, err := heading.NewTask(src, cal, n.store.Compass(), n.logger.Named("heading"))
	if err != nil {
		return u, err
	}
	u.Step = t.Step
	return u, nil
}

// Store exposes the shared records.
func (n *Navigator) Store() *state.Store { return n.store }

// AddUnit schedules an extra periodic unit next to the three loops.
func (n *Navigator) AddUnit(u task.Periodic) { n.units = append(n.units, u) }

// Run blocks until ctx is cancelled or a unit fails for good.
func (n *Navigator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return task.Group(ctx, n.clk, n.logger, n.units...) })

	if n.gpsPort != nil {
		g.Go(func() error {
			// A dead receiver leaves navigation on the last known position.
			if err := gps.Stream(ctx, n.gpsPort, n.store.Compass(), n.logger.Named("gps")); err != nil {
				n.logger.Errorf("gps: stream stopped: %v", err)
			}
			return nil
		})
	}

	if n.web != nil {
		addr := fmt.Sprintf(":%d", n.cfg.WebServerPort)
		g.Go(func() error { return n.web.ListenAndServe(ctx, addr) })
	}

	return g.Wait()
}

// Close releases every device opened by NewNavigator.
func (n *Navigator) Close() error {
	var err error
	if n.mqtt != nil {
		n.mqtt.Close()
		n.mqtt = nil
	}
	if n.gpsPort != nil {
		// Stream closes the port itself on cancellation.
		if cerr := n.gpsPort.Close(); !errors.Is(cerr, os.ErrClosed) {
			err = multierr.Append(err, cerr)
		}
		n.gpsPort = nil
	}
	for i := len(n.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, n.closers[i].Close())
	}
	n.closers = nil
	return err
}
