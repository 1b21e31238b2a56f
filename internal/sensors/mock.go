// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"

	"github.com/benbjohnson/clock"
)

// MockOpts describes a simulated magnetometer. The offsets are the ones the
// heading loop will apply, so the calibrated heading comes out as
// StartDeg + DegPerSec*elapsed.
type MockOpts struct {
	XOffset     int16
	YOffset     int16
	RotationRad float64
	StartDeg    float64
	DegPerSec   float64
	// Field is the horizontal field magnitude in counts. Defaults to 3000.
	Field float64
}

type mockSource struct {
	clk  clock.Clock
	t0   int64
	opts MockOpts
}

// NewMockSource creates a mock magnetometer that turns at a constant rate.
func NewMockSource(clk clock.Clock, opts MockOpts) AxisReader {
	if opts.Field == 0 {
		opts.Field = 3000
	}
	return &mockSource{clk: clk, t0: clk.Now().UnixNano(), opts: opts}
}

func (m *mockSource) ReadAxes() (Sample, error) {
	elapsed := float64(m.clk.Now().UnixNano()-m.t0) / 1e9
	deg := m.opts.StartDeg + m.opts.DegPerSec*elapsed
	a := deg*math.Pi/180 + m.opts.RotationRad

	x := m.opts.Field*math.Cos(a) - float64(m.opts.XOffset)
	y := m.opts.Field*math.Sin(a) - float64(m.opts.YOffset)
	return Sample{X: clamp16(x), Y: clamp16(y)}, nil
}

func clamp16(v float64) int16 {
	v = math.Round(v)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
