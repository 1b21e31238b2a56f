// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package route

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"

	"github.com/relabs-tech/wayfinder/internal/gps"
)

func TestDecode(t *testing.T) {
	pts, err := Decode(strings.NewReader(`[{"lat":52.0,"lon":4.0},{"lat":52.01,"lon":4.01}]`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pts, test.ShouldResemble, []gps.Point{
		{Latitude: 52.0, Longitude: 4.0},
		{Latitude: 52.01, Longitude: 4.01},
	})
}

func TestDecodeRejects(t *testing.T) {
	_, err := Decode(strings.NewReader(`[]`))
	test.That(t, errors.Is(err, ErrEmptyRoute), test.ShouldBeTrue)

	_, err = Parse([]byte(`[{"lat":95,"lon":0}]`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "waypoint 0 out of range")

	_, err = Parse([]byte(`{"lat":1}`))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestParseMatchesDecode(t *testing.T) {
	body := `[{"lat":52.0,"lon":4.0},{"lat":52.01,"lon":4.01}]`
	fromBytes, err := Parse([]byte(body))
	test.That(t, err, test.ShouldBeNil)
	fromReader, err := Decode(strings.NewReader(body))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, fromBytes, test.ShouldResemble, fromReader)

	_, err = Parse([]byte(`[]`))
	test.That(t, errors.Is(err, ErrEmptyRoute), test.ShouldBeTrue)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "route.json")
	test.That(t, os.WriteFile(path, []byte(`[{"lat":1,"lon":2}]`), 0o644), test.ShouldBeNil)
	pts, err := Load(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(pts), test.ShouldEqual, 1)
}

func TestLengthKm(t *testing.T) {
	test.That(t, LengthKm([]gps.Point{{}}), test.ShouldEqual, 0.0)
	// One degree of longitude on the equator.
	got := LengthKm([]gps.Point{{}, {Longitude: 1}})
	test.That(t, got, test.ShouldAlmostEqual, 111.19, 0.05)
}
