// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker   string
	MQTTClientID string

	// Topics
	TopicPosition string
	TopicRoute    string
	TopicDisplay  string

	// Compass hardware: "qmc5883l" or "mock"
	CompassSensor  string
	CompassI2CBus  string
	CompassI2CAddr uint16

	// Compass calibration, raw counts and radians
	CompassXOffset           int16
	CompassYOffset           int16
	CompassRotationOffsetRad float64

	// Navigation
	BearingOffsetDeg    float64
	DetectionThresholdM int
	RouteFile           string

	// Timing, milliseconds
	HeadingInterval       int
	NavigationInterval    int
	DisplayUpdateInterval int
	DisplayReadTimeout    int
	HeadingRestartDelay   int

	// GPS; empty port disables the serial source
	GPSSerialPort string
	GPSBaudRate   int

	// Display
	DisplayEnabled bool
	DisplayI2CBus  string

	// Web Server; 0 disables it
	WebServerPort int

	// Logging: debug, info, warn, error
	LogLevel string
}

// Default returns the settings of the reference unit.
func Default() *Config {
	return &Config{
		MQTTClientID:             "wayfinder",
		TopicPosition:            "wayfinder/position",
		TopicRoute:               "wayfinder/route",
		TopicDisplay:             "wayfinder/display",
		CompassSensor:            "qmc5883l",
		CompassI2CBus:            "1",
		CompassI2CAddr:           0x0D,
		CompassXOffset:           -1711,
		CompassYOffset:           2895,
		CompassRotationOffsetRad: 4.18879,
		DetectionThresholdM:      5,
		HeadingInterval:          100,
		NavigationInterval:       1000,
		DisplayUpdateInterval:    100,
		DisplayReadTimeout:       5,
		HeadingRestartDelay:      1000,
		GPSBaudRate:              9600,
		LogLevel:                 "info",
	}
}

// Load reads the configuration file on top of Default.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines. Blank lines and lines starting with # are skipped.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseInt(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func parseFloat(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func parseOffset(key, value string) (int16, error) {
	v, err := strconv.ParseInt(value, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return int16(v), nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value

	// Topics
	case "TOPIC_POSITION":
		c.TopicPosition = value
	case "TOPIC_ROUTE":
		c.TopicRoute = value
	case "TOPIC_DISPLAY":
		c.TopicDisplay = value

	// Compass hardware
	case "COMPASS_SENSOR":
		if value != "qmc5883l" && value != "mock" {
			return fmt.Errorf("COMPASS_SENSOR must be qmc5883l or mock, got %q", value)
		}
		c.CompassSensor = value
	case "COMPASS_I2C_BUS":
		c.CompassI2CBus = value
	case "COMPASS_I2C_ADDR":
		addr, perr := strconv.ParseUint(value, 0, 16)
		if perr != nil {
			return fmt.Errorf("invalid COMPASS_I2C_ADDR %q: %w", value, perr)
		}
		c.CompassI2CAddr = uint16(addr)

	// Compass calibration
	case "COMPASS_X_OFFSET":
		c.CompassXOffset, err = parseOffset(key, value)
	case "COMPASS_Y_OFFSET":
		c.CompassYOffset, err = parseOffset(key, value)
	case "COMPASS_ROTATION_OFFSET_RAD":
		c.CompassRotationOffsetRad, err = parseFloat(key, value)

	// Navigation
	case "BEARING_OFFSET_DEG":
		c.BearingOffsetDeg, err = parseFloat(key, value)
	case "DETECTION_THRESHOLD_M":
		c.DetectionThresholdM, err = parseInt(key, value)
		if err == nil && c.DetectionThresholdM < 0 {
			return fmt.Errorf("DETECTION_THRESHOLD_M must be >= 0, got %d", c.DetectionThresholdM)
		}
	case "ROUTE_FILE":
		c.RouteFile = value

	// Timing
	case "HEADING_INTERVAL":
		c.HeadingInterval, err = parseInt(key, value)
	case "NAVIGATION_INTERVAL":
		c.NavigationInterval, err = parseInt(key, value)
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = parseInt(key, value)
	case "DISPLAY_READ_TIMEOUT":
		c.DisplayReadTimeout, err = parseInt(key, value)
	case "HEADING_RESTART_DELAY":
		c.HeadingRestartDelay, err = parseInt(key, value)

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		c.GPSBaudRate, err = parseInt(key, value)

	// Display
	case "DISPLAY_ENABLED":
		c.DisplayEnabled, err = strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_ENABLED %q: %w", value, err)
		}
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value)

	case "LOG_LEVEL":
		switch value {
		case "debug", "info", "warn", "error":
			c.LogLevel = value
		default:
			return fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", value)
		}

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.HeadingInterval <= 0 {
		return fmt.Errorf("HEADING_INTERVAL must be > 0")
	}
	if c.NavigationInterval <= 0 {
		return fmt.Errorf("NAVIGATION_INTERVAL must be > 0")
	}
	if c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be > 0")
	}
	if c.DisplayReadTimeout <= 0 {
		return fmt.Errorf("DISPLAY_READ_TIMEOUT must be > 0, the presentation read is always bounded")
	}
	if c.GPSSerialPort != "" && c.GPSBaudRate == 0 {
		return fmt.Errorf("GPS_BAUD_RATE is required when GPS_SERIAL_PORT is set")
	}
	if c.MQTTBroker != "" && c.MQTTClientID == "" {
		return fmt.Errorf("MQTT_CLIENT_ID is required when MQTT_BROKER is set")
	}
	return nil
}

// Millis converts one of the millisecond settings to a Duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
