// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// QMC5883L registers.
const (
	QMC5883LDefaultAddr = 0x0D

	qmcRegData    = 0x00 // X LSB, X MSB, Y LSB, Y MSB, Z LSB, Z MSB
	qmcRegStatus  = 0x06
	qmcRegControl = 0x09
	qmcRegSetRst  = 0x0B
	qmcRegChipID  = 0x0D

	// Continuous mode, 10 Hz, 2 G, oversampling 512.
	qmcModeContinuous = 0x01
	qmcSetRstPeriod   = 0x01

	// Status register bits.
	qmcStatusOVL = 0x02
	qmcStatusDOR = 0x04
)

// QMC5883L is a magnetometer on an I2C bus.
type QMC5883L struct {
	dev    *i2c.Dev
	logger *zap.SugaredLogger

	overflow bool
}

// OpenQMC5883L initializes periph, opens the named I2C bus and configures the
// chip on it. The returned bus must be closed by the caller.
func OpenQMC5883L(busName string, addr uint16, logger *zap.SugaredLogger) (*QMC5883L, i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("qmc5883l: periph host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, nil, fmt.Errorf("qmc5883l: i2c open %q: %w", busName, err)
	}
	q, err := NewQMC5883L(bus, addr, logger)
	if err != nil {
		_ = bus.Close()
		return nil, nil, err
	}
	return q, bus, nil
}

// NewQMC5883L configures the chip for continuous measurement.
func NewQMC5883L(bus i2c.Bus, addr uint16, logger *zap.SugaredLogger) (*QMC5883L, error) {
	if addr == 0 {
		addr = QMC5883LDefaultAddr
	}
	q := &QMC5883L{dev: &i2c.Dev{Bus: bus, Addr: addr}, logger: logger}
	if err := q.Configure(); err != nil {
		return nil, err
	}
	return q, nil
}

// Configure runs the bring-up sequence. It is safe to repeat after a bus
// fault or a brown-out that reset the chip to standby.
func (q *QMC5883L) Configure() error {
	if err := q.dev.Tx([]byte{qmcRegSetRst, qmcSetRstPeriod}, nil); err != nil {
		return fmt.Errorf("qmc5883l: set/reset period: %w", err)
	}
	if err := q.dev.Tx([]byte{qmcRegControl, qmcModeContinuous}, nil); err != nil {
		return fmt.Errorf("qmc5883l: continuous mode: %w", err)
	}

	id := make([]byte, 1)
	if err := q.dev.Tx([]byte{qmcRegChipID}, id); err != nil {
		return fmt.Errorf("qmc5883l: read chip id: %w", err)
	}
	q.logger.Infof("qmc5883l: chip id 0x%02X at 0x%02X", id[0], q.dev.Addr)
	return nil
}

// ReadAxes checks the status register, then reads the six data registers in
// one transaction. An overflowed sample is still returned; the overflow is
// logged once per episode.
func (q *QMC5883L) ReadAxes() (Sample, error) {
	st, err := q.Status()
	if err != nil {
		return Sample{}, err
	}
	overflow := st&qmcStatusOVL != 0
	switch {
	case overflow && !q.overflow:
		q.logger.Warnf("qmc5883l: field overflow, status 0x%02X", st)
	case !overflow && q.overflow:
		q.logger.Info("qmc5883l: field back in range")
	}
	q.overflow = overflow
	if st&qmcStatusDOR != 0 {
		q.logger.Debug("qmc5883l: data skipped, reads slower than output rate")
	}

	buf := make([]byte, 6)
	if err := q.dev.Tx([]byte{qmcRegData}, buf); err != nil {
		return Sample{}, fmt.Errorf("qmc5883l: read data: %w", err)
	}
	return decodeQMC(buf), nil
}

// Status returns the raw status register (DRDY, OVL, DOR bits).
func (q *QMC5883L) Status() (byte, error) {
	b := make([]byte, 1)
	if err := q.dev.Tx([]byte{qmcRegStatus}, b); err != nil {
		return 0, fmt.Errorf("qmc5883l: read status: %w", err)
	}
	return b[0], nil
}

func decodeQMC(buf []byte) Sample {
	return Sample{
		X: int16(binary.LittleEndian.Uint16(buf[0:2])),
		Y: int16(binary.LittleEndian.Uint16(buf[2:4])),
		Z: int16(binary.LittleEndian.Uint16(buf[4:6])),
	}
}
