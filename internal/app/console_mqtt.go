// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/wayfinder/internal/config"
	"github.com/relabs-tech/wayfinder/internal/display"
	"github.com/relabs-tech/wayfinder/internal/gps"
	"github.com/relabs-tech/wayfinder/internal/mqttbus"
	"github.com/relabs-tech/wayfinder/internal/route"
)

// FormatFix is the one-line console form of a position fix.
func FormatFix(f gps.Fix) string {
	return fmt.Sprintf("[GPS ]  time=%s lat=%.6f lon=%.6f speed=%.1fkn course=%.1f° validity=%s",
		f.Time, f.Latitude, f.Longitude, f.SpeedKnots, f.CourseDeg, f.Validity)
}

// consoleHandlers decodes each topic's payload and prints it to out.
func consoleHandlers(cfg *config.Config, out io.Writer, logger *zap.SugaredLogger) map[string]mqtt.MessageHandler {
	return map[string]mqtt.MessageHandler{
		cfg.TopicDisplay: func(_ mqtt.Client, msg mqtt.Message) {
			var v display.View
			if err := json.Unmarshal(msg.Payload(), &v); err != nil {
				logger.Warnf("console: display unmarshal error: %v", err)
				return
			}
			fmt.Fprintln(out, FormatView(v))
		},
		cfg.TopicPosition: func(_ mqtt.Client, msg mqtt.Message) {
			var f gps.Fix
			if err := json.Unmarshal(msg.Payload(), &f); err != nil {
				logger.Warnf("console: position unmarshal error: %v", err)
				return
			}
			fmt.Fprintln(out, FormatFix(f))
		},
		cfg.TopicRoute: func(_ mqtt.Client, msg mqtt.Message) {
			pts, err := route.Parse(msg.Payload())
			if err != nil {
				logger.Warnf("console: route rejected: %v", err)
				return
			}
			fmt.Fprintf(out, "[ROUTE] waypoints=%d length=%.3fkm\n", len(pts), route.LengthKm(pts))
		},
	}
}

// RunConsoleMQTT prints every position, route and display message until ctx
// is done.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger, out io.Writer) error {
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("console: MQTT_BROKER is required")
	}
	client, err := mqttbus.Connect(cfg.MQTTBroker, cfg.MQTTClientID+"-console", logger)
	if err != nil {
		return err
	}
	defer client.Close()

	for topic, h := range consoleHandlers(cfg, out, logger) {
		if err := client.Subscribe(topic, h); err != nil {
			return err
		}
	}

	<-ctx.Done()
	logger.Info("console: shutting down")
	return nil
}
