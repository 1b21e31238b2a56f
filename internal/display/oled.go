// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package display

import (
	"fmt"
	"image"
	"image/draw"
	"math"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"
)

// Layout of the 128x64 panel: arrow on the left half, text on the right.
const (
	panelW = 128
	panelH = 64

	arrowCX     = 32
	arrowCY     = 32
	arrowLen    = 26
	arrowHead   = 8
	arrowSpread = 150.0 // degrees between shaft and each head stroke

	textX = 68
)

// OLED renders views on an SSD1306 panel.
type OLED struct {
	dev *ssd1306.Dev
	bus i2c.BusCloser

	last  View
	drawn bool
}

// OpenOLED initializes periph, opens the I2C bus and shows the splash screen.
func OpenOLED(busName string, logger *zap.SugaredLogger) (*OLED, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus: %w", err)
	}

	opts := ssd1306.DefaultOpts
	dev, err := ssd1306.NewI2C(bus, &opts)
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("failed to initialize display: %w", err)
	}
	logger.Infof("display: ssd1306 initialized on bus %q", busName)

	o := &OLED{dev: dev, bus: bus}
	if err := o.dev.Draw(o.dev.Bounds(), Splash(), image.Point{}); err != nil {
		logger.Warnf("display: error showing splash: %v", err)
	}
	return o, nil
}

// Render redraws the panel when the view changed.
func (o *OLED) Render(v View) error {
	if o.drawn && v == o.last {
		return nil
	}
	if err := o.dev.Draw(o.dev.Bounds(), Frame(v), image.Point{}); err != nil {
		return fmt.Errorf("display: draw: %w", err)
	}
	o.last, o.drawn = v, true
	return nil
}

// Close blanks the panel and releases the bus.
func (o *OLED) Close() error {
	return multierr.Combine(o.dev.Halt(), o.bus.Close())
}

func newCanvas() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, panelW, panelH))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

// Splash is shown until the first frame.
func Splash() *image1bit.VerticalLSB {
	img, drawer := newCanvas()

	drawer.Dot = fixed.P(30, 26)
	drawer.DrawString("Wayfinder")

	drawer.Dot = fixed.P(22, 43)
	drawer.DrawString("Waiting for")

	drawer.Dot = fixed.P(46, 56)
	drawer.DrawString("route")

	return img
}

// Frame draws the arrow rotated by v.Angle and the two text lines.
func Frame(v View) *image1bit.VerticalLSB {
	img, drawer := newCanvas()

	drawArrow(img, v.Angle)

	drawer.Dot = fixed.P(textX, 26)
	drawer.DrawString(v.DistanceText)

	drawer.Dot = fixed.P(textX, 46)
	drawer.DrawString(v.Label)

	return img
}

// ArrowTip is where the arrow points for an angle in tenths of a degree,
// measured clockwise from the top of the panel.
func ArrowTip(tenths int) image.Point {
	return polar(arrowCX, arrowCY, arrowLen, float64(tenths)/10)
}

func polar(cx, cy, r int, deg float64) image.Point {
	a := deg * math.Pi / 180
	return image.Point{
		X: cx + int(math.Round(float64(r)*math.Sin(a))),
		Y: cy - int(math.Round(float64(r)*math.Cos(a))),
	}
}

func drawArrow(img draw.Image, tenths int) {
	deg := float64(tenths) / 10
	tail := polar(arrowCX, arrowCY, arrowLen, deg+180)
	tip := ArrowTip(tenths)
	drawLine(img, tail, tip)

	for _, side := range []float64{-arrowSpread, arrowSpread} {
		head := polar(tip.X, tip.Y, arrowHead, deg+side)
		drawLine(img, tip, head)
	}
}

// drawLine is Bresenham's line.
func drawLine(img draw.Image, a, b image.Point) {
	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	e := dx + dy
	x, y := a.X, a.Y
	for {
		img.Set(x, y, image1bit.On)
		if x == b.X && y == b.Y {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x += sx
		}
		if e2 <= dx {
			e += dx
			y += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
