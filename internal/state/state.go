// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package state owns the two records shared between the heading, navigation
// and presentation loops.
//
// The compass record is guarded by L1 and the display record by L2. Callers
// never see the locks. They get one of three capability handles:
//
//   - Compass: L1 only, unbounded wait. Heading loop and position/route sources.
//   - Display: L2 only, optionally bounded wait, read-only copies. Presentation.
//   - Navigation: L1 then L2, released in reverse. Navigation loop only.
//
// Navigation.Transact is the only path that holds both locks. Code holding a
// Display handle must not call into a Compass handle while inside WithDisplay.
package state

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/relabs-tech/wayfinder/internal/gps"
)

// ErrLockTimeout is returned when a bounded wait on the display lock elapses.
var ErrLockTimeout = errors.New("state: display lock wait timed out")

// CompassState is the sensor-side record.
type CompassState struct {
	// Bearing is the magnetic heading in degrees, [0, 360).
	Bearing float64
	// Position is the current location; only meaningful when HasPosition is set.
	Position    gps.Point
	HasPosition bool
	// Route is replaced wholesale by SetRoute and never mutated in place.
	Route []gps.Point
	// RouteVersion increments every time a new route is installed.
	RouteVersion uint64
}

// DisplayState is the presentation-side record. All fields change together.
type DisplayState struct {
	// Angle is the arrow rotation in tenths of a degree, [0, 3600).
	Angle int `json:"angle"`
	// Distance to the current target waypoint in meters.
	Distance int `json:"distance"`
	// NextWaypoint indexes the compass route.
	NextWaypoint int  `json:"next_waypoint"`
	Finished     bool `json:"finished"`
	// RouteVersion is the compass route version this record was computed for.
	RouteVersion uint64 `json:"route_version"`
}

// Store holds both records and their locks. Allocate it once with New.
type Store struct {
	compassMu sync.Mutex // L1
	compass   CompassState

	displaySem *semaphore.Weighted // L2
	display    DisplayState
}

// New allocates both records in their neutral state.
func New() *Store {
	return &Store{
		displaySem: semaphore.NewWeighted(1),
	}
}

// Compass returns the L1 capability.
func (s *Store) Compass() Compass { return Compass{s: s} }

// Display returns the read-only L2 capability.
func (s *Store) Display() Display { return Display{s: s} }

// Navigation returns the two-lock capability.
func (s *Store) Navigation() Navigation { return Navigation{s: s} }

func (s *Store) lockDisplay(timeout time.Duration) error {
	if timeout <= 0 {
		return s.displaySem.Acquire(context.Background(), 1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.displaySem.Acquire(ctx, 1); err != nil {
		return ErrLockTimeout
	}
	return nil
}

func (s *Store) unlockDisplay() { s.displaySem.Release(1) }

// Compass gives exclusive access to the compass record.
type Compass struct{ s *Store }

// WithCompass runs fn holding L1. The wait is unbounded.
func (c Compass) WithCompass(fn func(*CompassState)) {
	c.s.compassMu.Lock()
	defer c.s.compassMu.Unlock()
	fn(&c.s.compass)
}

// SetBearing stores a completed heading acquisition.
func (c Compass) SetBearing(deg float64) {
	c.WithCompass(func(cs *CompassState) { cs.Bearing = deg })
}

// SetPosition stores the current location and marks it as known.
func (c Compass) SetPosition(p gps.Point) {
	c.WithCompass(func(cs *CompassState) {
		cs.Position = p
		cs.HasPosition = true
	})
}

// SetRoute installs a copy of route and bumps the route version.
func (c Compass) SetRoute(route []gps.Point) {
	cp := make([]gps.Point, len(route))
	copy(cp, route)
	c.WithCompass(func(cs *CompassState) {
		cs.Route = cp
		cs.RouteVersion++
	})
}

// Snapshot returns a copy of the compass record.
func (c Compass) Snapshot() CompassState {
	var out CompassState
	c.WithCompass(func(cs *CompassState) {
		out = *cs
		out.Route = append([]gps.Point(nil), cs.Route...)
	})
	return out
}

// Display gives read access to the display record.
type Display struct{ s *Store }

// WithDisplay runs fn with a copy of the display record while holding L2.
// timeout <= 0 waits forever. On timeout fn is not called.
func (d Display) WithDisplay(timeout time.Duration, fn func(DisplayState)) error {
	if err := d.s.lockDisplay(timeout); err != nil {
		return err
	}
	defer d.s.unlockDisplay()
	fn(d.s.display)
	return nil
}

// Read returns a copy of the display record.
func (d Display) Read(timeout time.Duration) (DisplayState, error) {
	var out DisplayState
	err := d.WithDisplay(timeout, func(ds DisplayState) { out = ds })
	return out, err
}

// Navigation is the capability of the navigation loop.
type Navigation struct{ s *Store }

// Transact runs fn holding L1 then L2. fn reads a copy of the compass record
// and may rewrite the display record in place.
func (n Navigation) Transact(fn func(CompassState, *DisplayState)) {
	n.s.compassMu.Lock()
	defer n.s.compassMu.Unlock()

	// Unbounded, cannot fail.
	_ = n.s.lockDisplay(0)
	defer n.s.unlockDisplay()

	fn(n.s.compass, &n.s.display)
}
