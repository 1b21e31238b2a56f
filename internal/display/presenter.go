// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package display is the presentation side: it samples the display record
// with a bounded wait and hands a View to one or more renderers.
package display

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/relabs-tech/wayfinder/internal/state"
)

// View is what a renderer draws.
type View struct {
	state.DisplayState
	// DistanceText is the main readout, e.g. "120 m".
	DistanceText string `json:"distance_text"`
	// Label is "FINISH" once the route is done, otherwise "Next: N".
	Label string `json:"label"`
}

// NewView derives the label texts from a display record.
func NewView(ds state.DisplayState) View {
	v := View{
		DisplayState: ds,
		DistanceText: fmt.Sprintf("%d m", ds.Distance),
	}
	if ds.Finished {
		v.Label = "FINISH"
	} else {
		v.Label = fmt.Sprintf("Next: %d", ds.NextWaypoint)
	}
	return v
}

// Renderer draws a view. Render is never called with a lock held.
type Renderer interface {
	Render(View) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(View) error

// Render calls f.
func (f RendererFunc) Render(v View) error { return f(v) }

// Presenter is the presentation loop body.
type Presenter struct {
	display   state.Display
	timeout   time.Duration
	renderers []Renderer
	logger    *zap.SugaredLogger

	last    View
	skipped atomic.Uint64
}

// NewPresenter reads through d with the given bounded timeout.
func NewPresenter(d state.Display, timeout time.Duration, logger *zap.SugaredLogger, renderers ...Renderer) *Presenter {
	return &Presenter{
		display:   d,
		timeout:   timeout,
		renderers: renderers,
		logger:    logger,
		last:      NewView(state.DisplayState{}),
	}
}

// Step refreshes once. A lock timeout re-renders the previous view. Renderer
// errors are logged and never stop the loop.
func (p *Presenter) Step() error {
	ds, err := p.display.Read(p.timeout)
	switch {
	case err == nil:
		p.last = NewView(ds)
	case errors.Is(err, state.ErrLockTimeout):
		p.skipped.Add(1)
		p.logger.Debug("display: lock busy, showing previous frame")
	default:
		return err
	}

	var errs error
	for _, r := range p.renderers {
		errs = multierr.Append(errs, r.Render(p.last))
	}
	if errs != nil {
		p.logger.Warnw("display: render failed", "error", errs)
	}
	return nil
}

// Last returns the most recently rendered view.
func (p *Presenter) Last() View { return p.last }

// Skipped counts refreshes that fell back to the previous view.
func (p *Presenter) Skipped() uint64 { return p.skipped.Load() }
