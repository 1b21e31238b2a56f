// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package display

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"go.viam.com/test"

	"github.com/relabs-tech/wayfinder/internal/state"
)

func TestNewViewLabels(t *testing.T) {
	v := NewView(state.DisplayState{Distance: 120, NextWaypoint: 3})
	test.That(t, v.DistanceText, test.ShouldEqual, "120 m")
	test.That(t, v.Label, test.ShouldEqual, "Next: 3")

	v = NewView(state.DisplayState{Distance: 2, NextWaypoint: 4, Finished: true})
	test.That(t, v.Label, test.ShouldEqual, "FINISH")
}

type recorder struct {
	views []View
	err   error
}

func (r *recorder) Render(v View) error {
	r.views = append(r.views, v)
	return r.err
}

func TestStepRendersCurrentRecord(t *testing.T) {
	store := state.New()
	store.Navigation().Transact(func(_ state.CompassState, ds *state.DisplayState) {
		ds.Angle = 900
		ds.Distance = 50
		ds.NextWaypoint = 1
	})

	rec := &recorder{}
	p := NewPresenter(store.Display(), 5*time.Millisecond, zaptest.NewLogger(t).Sugar(), rec)
	test.That(t, p.Step(), test.ShouldBeNil)
	test.That(t, rec.views, test.ShouldHaveLength, 1)
	test.That(t, rec.views[0].Angle, test.ShouldEqual, 900)
	test.That(t, rec.views[0].Label, test.ShouldEqual, "Next: 1")
	test.That(t, p.Skipped(), test.ShouldEqual, uint64(0))
}

func TestStepFallsBackToLastViewWhileLocked(t *testing.T) {
	store := state.New()
	store.Navigation().Transact(func(_ state.CompassState, ds *state.DisplayState) {
		ds.Distance = 10
	})

	rec := &recorder{}
	p := NewPresenter(store.Display(), 5*time.Millisecond, zaptest.NewLogger(t).Sugar(), rec)
	test.That(t, p.Step(), test.ShouldBeNil)

	holding := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		store.Navigation().Transact(func(_ state.CompassState, ds *state.DisplayState) {
			ds.Distance = 99
			close(holding)
			<-release
		})
	}()
	<-holding

	test.That(t, p.Step(), test.ShouldBeNil)
	test.That(t, p.Skipped(), test.ShouldEqual, uint64(1))
	test.That(t, rec.views, test.ShouldHaveLength, 2)
	test.That(t, rec.views[1].Distance, test.ShouldEqual, 10)

	close(release)
	<-done
	test.That(t, p.Step(), test.ShouldBeNil)
	test.That(t, p.Last().Distance, test.ShouldEqual, 99)
}

func TestRendererErrorsDoNotStopStep(t *testing.T) {
	store := state.New()
	failing := &recorder{err: errors.New("i2c nack")}
	ok := &recorder{}
	p := NewPresenter(store.Display(), 5*time.Millisecond, zaptest.NewLogger(t).Sugar(), failing, ok)

	test.That(t, p.Step(), test.ShouldBeNil)
	test.That(t, p.Step(), test.ShouldBeNil)
	test.That(t, failing.views, test.ShouldHaveLength, 2)
	test.That(t, ok.views, test.ShouldHaveLength, 2)
}

func TestRendererFunc(t *testing.T) {
	var got View
	r := RendererFunc(func(v View) error { got = v; return nil })
	test.That(t, r.Render(NewView(state.DisplayState{Distance: 7})), test.ShouldBeNil)
	test.That(t, got.DistanceText, test.ShouldEqual, "7 m")
}
