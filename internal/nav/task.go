// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package nav

import (
	"go.uber.org/zap"

	"github.com/relabs-tech/wayfinder/internal/state"
)

// Task is the navigation loop body.
type Task struct {
	nav    state.Navigation
	params Params
	logger *zap.SugaredLogger
}

// NewTask binds the navigation capability to the loop.
func NewTask(nav state.Navigation, params Params, logger *zap.SugaredLogger) *Task {
	return &Task{nav: nav, params: params, logger: logger}
}

// Step recomputes the display record in one transaction. It never fails;
// an empty route or missing fix holds the previous record.
func (t *Task) Step() error {
	var (
		before, after state.DisplayState
		updated       bool
	)
	t.nav.Transact(func(cs state.CompassState, ds *state.DisplayState) {
		before = *ds
		after, updated = Compute(cs, *ds, t.params)
		if updated {
			*ds = after
		}
	})

	if !updated {
		t.logger.Debug("nav: no route or position, holding display state")
		return nil
	}
	switch {
	case after.RouteVersion != before.RouteVersion:
		t.logger.Infow("nav: new route", "version", after.RouteVersion)
	case after.NextWaypoint != before.NextWaypoint:
		t.logger.Infow("nav: waypoint reached", "next", after.NextWaypoint, "distance_m", after.Distance)
	}
	if after.Finished && !before.Finished {
		t.logger.Info("nav: route finished")
	}
	t.logger.Debugw("nav", "angle", after.Angle, "distance_m", after.Distance, "next", after.NextWaypoint)
	return nil
}
