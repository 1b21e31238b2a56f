// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

// Sample is one raw three-axis magnetometer reading in sensor counts.
type Sample struct {
	X int16 `json:"x"`
	Y int16 `json:"y"`
	Z int16 `json:"z"`
}

// AxisReader is anything that can produce magnetometer samples on demand.
type AxisReader interface {
	ReadAxes() (Sample, error)
}
