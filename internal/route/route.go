// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package route reads the route files uploaded by the companion app.
//
// A route file is a JSON array of waypoints:
//
//	[{"lat": 52.0, "lon": 4.0}, {"lat": 52.01, "lon": 4.01}]
package route

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	geo "github.com/kellydunn/golang-geo"

	"github.com/relabs-tech/wayfinder/internal/gps"
)

// ErrEmptyRoute is returned for a route without waypoints.
var ErrEmptyRoute = errors.New("route: no waypoints")

// Decode parses and validates a route.
func Decode(r io.Reader) ([]gps.Point, error) {
	var pts []gps.Point
	if err := json.NewDecoder(r).Decode(&pts); err != nil {
		return nil, fmt.Errorf("route: decode: %w", err)
	}
	if err := Validate(pts); err != nil {
		return nil, err
	}
	return pts, nil
}

// Parse is Decode on a byte payload.
func Parse(b []byte) ([]gps.Point, error) {
	return Decode(bytes.NewReader(b))
}

// Load reads a route file from disk.
func Load(path string) ([]gps.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("route: open: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Validate rejects empty routes and coordinates outside the valid range.
func Validate(pts []gps.Point) error {
	if len(pts) == 0 {
		return ErrEmptyRoute
	}
	for i, p := range pts {
		if p.Latitude < -90 || p.Latitude > 90 || p.Longitude < -180 || p.Longitude > 180 {
			return fmt.Errorf("route: waypoint %d out of range: %+v", i, p)
		}
	}
	return nil
}

// LengthKm is the great-circle length of the route.
func LengthKm(pts []gps.Point) float64 {
	var total float64
	for i := 1; i < len(pts); i++ {
		a := geo.NewPoint(pts[i-1].Latitude, pts[i-1].Longitude)
		b := geo.NewPoint(pts[i].Latitude, pts[i].Longitude)
		total += a.GreatCircleDistance(b)
	}
	return total
}
