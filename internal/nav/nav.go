// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package nav turns the compass record into the display record: distance and
// relative bearing to the target waypoint, and waypoint advancement.
package nav

import (
	"math"

	"github.com/relabs-tech/wayfinder/internal/gps"
	"github.com/relabs-tech/wayfinder/internal/heading"
	"github.com/relabs-tech/wayfinder/internal/state"
)

// Local equirectangular scale factors.
const (
	KmPerDegLat = 110.574
	KmPerDegLon = 111.320
)

// FullTurn is one revolution in tenths of a degree.
const FullTurn = 3600

// DefaultDetectionThresholdM is the waypoint capture radius of the reference unit.
const DefaultDetectionThresholdM = 5

// Params are the fixed navigation constants.
type Params struct {
	// DetectionThresholdM is the capture radius in meters.
	DetectionThresholdM int
	// BearingOffsetDeg is added to the heading before it is subtracted from
	// the bearing to target (declination or mounting correction).
	BearingOffsetDeg float64
}

// DefaultParams returns the reference unit constants.
func DefaultParams() Params {
	return Params{DetectionThresholdM: DefaultDetectionThresholdM}
}

func rad(deg float64) float64 { return deg * math.Pi / 180 }

// Distance approximates the planar distance in meters. The longitude scale is
// taken at the target latitude.
func Distance(from, to gps.Point) float64 {
	latKm := (to.Latitude - from.Latitude) * KmPerDegLat
	lonKm := (to.Longitude - from.Longitude) * KmPerDegLon * math.Cos(rad(to.Latitude))
	return math.Hypot(latKm, lonKm) * 1000
}

// InitialBearing is the forward azimuth from one point to another in degrees,
// [0, 360).
func InitialBearing(from, to gps.Point) float64 {
	lat1, lat2 := rad(from.Latitude), rad(to.Latitude)
	dLon := rad(to.Longitude - from.Longitude)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	return heading.NormalizeDeg(math.Atan2(y, x) * 180 / math.Pi)
}

// ToTenths converts degrees to tenths of a degree in [0, 3600).
func ToTenths(deg float64) int {
	return wrapTenths(int(math.Floor(deg * 10)))
}

func wrapTenths(t int) int {
	t %= FullTurn
	if t < 0 {
		t += FullTurn
	}
	return t
}

// RelativeAngle is the arrow rotation: the bearing to target minus the
// corrected heading, in tenths of a degree.
func RelativeAngle(targetTenths int, headingDeg, offsetDeg float64) int {
	return wrapTenths(targetTenths - ToTenths(headingDeg+offsetDeg))
}

// Advance moves to the next waypoint when the current one is within the
// threshold. The last index is terminal.
func Advance(index, distance, threshold, length int) int {
	if distance > threshold {
		return index
	}
	if index+1 >= length {
		return index
	}
	return index + 1
}

// Compute derives a new display record. It returns prev and false when there
// is nothing to navigate: no route, or no position fix yet.
//
// A route version change restarts the traversal at waypoint 0. Finished is set
// when the last waypoint is within the threshold and stays set until the
// route changes.
func Compute(cs state.CompassState, prev state.DisplayState, p Params) (state.DisplayState, bool) {
	n := len(cs.Route)
	if n == 0 || !cs.HasPosition {
		return prev, false
	}

	cur := prev
	if cur.RouteVersion != cs.RouteVersion {
		cur = state.DisplayState{RouteVersion: cs.RouteVersion}
	}

	idx := cur.NextWaypoint
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	target := cs.Route[idx]

	dist := int(Distance(cs.Position, target))
	angle := RelativeAngle(ToTenths(InitialBearing(cs.Position, target)), cs.Bearing, p.BearingOffsetDeg)
	finished := cur.Finished || (idx == n-1 && dist <= p.DetectionThresholdM)

	return state.DisplayState{
		Angle:        angle,
		Distance:     dist,
		NextWaypoint: Advance(idx, dist, p.DetectionThresholdM, n),
		Finished:     finished,
		RouteVersion: cs.RouteVersion,
	}, true
}
