// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package heading

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/relabs-tech/wayfinder/internal/sensors"
	"github.com/relabs-tech/wayfinder/internal/state"
)

// ErrSensorRead wraps every magnetometer read failure.
var ErrSensorRead = errors.New("heading: sensor read failed")

// Calibration is the fixed per-device correction applied to raw samples.
type Calibration struct {
	XOffset     int16   // added to raw X
	YOffset     int16   // added to raw Y
	RotationRad float64 // chassis mounting rotation, subtracted from atan2
}

// DefaultCalibration matches the reference unit.
var DefaultCalibration = Calibration{
	XOffset:     -1711,
	YOffset:     2895,
	RotationRad: 4.18879,
}

// Bearing computes the magnetic heading in degrees, [0, 360).
//
//	bearing = atan2(y + yOff, x + xOff) - rotation
func Bearing(s sensors.Sample, cal Calibration) float64 {
	x := float64(s.X) + float64(cal.XOffset)
	y := float64(s.Y) + float64(cal.YOffset)
	rad := math.Atan2(y, x) - cal.RotationRad
	return NormalizeDeg(rad * 180 / math.Pi)
}

// NormalizeDeg folds any angle into [0, 360).
func NormalizeDeg(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	// -tiny + 360 rounds to 360 in float64.
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// Task is the heading acquisition loop body.
type Task struct {
	src     sensors.AxisReader
	cal     Calibration
	compass state.Compass
	logger  *zap.SugaredLogger
}

// NewTask probes the sensor once. A failure here is a startup error.
func NewTask(src sensors.AxisReader, cal Calibration, compass state.Compass, logger *zap.SugaredLogger) (*Task, error) {
	if _, err := src.ReadAxes(); err != nil {
		return nil, fmt.Errorf("%w: initial read: %v", ErrSensorRead, err)
	}
	return &Task{src: src, cal: cal, compass: compass, logger: logger}, nil
}

// Step performs one acquisition and publishes the bearing under L1.
func (t *Task) Step() error {
	s, err := t.src.ReadAxes()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSensorRead, err)
	}
	b := Bearing(s, t.cal)
	t.compass.SetBearing(b)
	t.logger.Debugw("heading", "x", s.X, "y", s.Y, "z", s.Z, "bearing", b)
	return nil
}
