// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
	"go.uber.org/zap"
)

// PositionSink receives every usable fix.
type PositionSink interface {
	SetPosition(Point)
}

// OpenSerial opens the receiver's serial port 8N1.
func OpenSerial(port string, baud int) (io.ReadWriteCloser, error) {
	opts := serial.OpenOptions{
		PortName:              port,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	rw, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("gps: open %s: %w", port, err)
	}
	return rw, nil
}

// Stream reads NMEA sentences until r ends or ctx is done. Valid RMC fixes and
// GGA fixes with a fix quality are forwarded to sink. When r is an io.Closer it
// is closed on cancellation to unblock the read.
func Stream(ctx context.Context, r io.Reader, sink PositionSink, logger *zap.SugaredLogger) error {
	if c, ok := r.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { _ = c.Close() })
		defer stop()
	}

	reader := bufio.NewReader(r)
	var current Fix
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("gps: read: %w", err)
		}

		line = strings.TrimSpace(line)
		// NMEA sentences start with '$'
		if !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			// noisy receiver or partial sentence
			logger.Debugw("gps: nmea parse error", "error", err, "line", line)
			continue
		}

		switch m := sentence.(type) {
		case nmea.RMC:
			current.Time = m.Time.String()
			current.Date = m.Date.String()
			current.Latitude = m.Latitude
			current.Longitude = m.Longitude
			current.SpeedKnots = m.Speed
			current.CourseDeg = m.Course
			current.Validity = m.Validity
			if !current.Valid() {
				continue
			}
			sink.SetPosition(current.Point())
			logger.Debugw("gps: rmc fix", "lat", current.Latitude, "lon", current.Longitude)
		case nmea.GGA:
			if m.FixQuality == nmea.Invalid {
				continue
			}
			current.Latitude = m.Latitude
			current.Longitude = m.Longitude
			sink.SetPosition(current.Point())
			logger.Debugw("gps: gga fix", "lat", m.Latitude, "lon", m.Longitude, "sats", m.NumSatellites)
		default:
			// GSA, GSV, VTG carry no position
		}
	}
}
