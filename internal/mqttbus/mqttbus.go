// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mqttbus connects the navigation core to the MQTT broker: position
// fixes and routes come in, display records go out.
package mqttbus

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/relabs-tech/wayfinder/internal/display"
	"github.com/relabs-tech/wayfinder/internal/gps"
	"github.com/relabs-tech/wayfinder/internal/route"
)

// RouteSink receives every accepted route.
type RouteSink interface {
	SetRoute([]gps.Point)
}

// Publisher is the part of mqtt.Client the publishers need.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Client wraps a connected paho client.
type Client struct {
	mqtt.Client
	logger *zap.SugaredLogger
}

// Connect dials broker and blocks until the session is up.
func Connect(broker, clientID string, logger *zap.SugaredLogger) (*Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warnf("mqtt: connection lost: %v", err)
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt: connect %s: %w", broker, token.Error())
	}
	logger.Infof("mqtt: connected to broker at %s", broker)
	return &Client{Client: client, logger: logger}, nil
}

// Subscribe registers h on topic and waits for the broker to confirm.
func (c *Client) Subscribe(topic string, h mqtt.MessageHandler) error {
	token := c.Client.Subscribe(topic, 0, h)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("mqtt: subscribe %s: %w", topic, token.Error())
	}
	c.logger.Infof("mqtt: subscribed to %s", topic)
	return nil
}

// Close disconnects, giving in-flight work 250 ms.
func (c *Client) Close() {
	c.Client.Disconnect(250)
}

// PublishJSON marshals v and publishes it retained. It does not wait for the
// broker; the caller owns the returned token.
func PublishJSON(p Publisher, topic string, v interface{}) (mqtt.Token, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mqtt: marshal for %s: %w", topic, err)
	}
	return p.Publish(topic, 0, true, payload), nil
}

// PositionHandler decodes gps.Fix payloads. Fixes flagged void are dropped;
// a payload without a validity flag is taken as valid.
func PositionHandler(sink gps.PositionSink, logger *zap.SugaredLogger) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		var f gps.Fix
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			logger.Warnf("mqtt: position unmarshal error: %v", err)
			return
		}
		if f.Validity != "" && !f.Valid() {
			logger.Debugw("mqtt: dropping void fix", "validity", f.Validity)
			return
		}
		sink.SetPosition(f.Point())
	}
}

// RouteHandler installs routes published as JSON waypoint arrays.
func RouteHandler(sink RouteSink, logger *zap.SugaredLogger) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		pts, err := route.Parse(msg.Payload())
		if err != nil {
			logger.Warnf("mqtt: rejected route on %s: %v", msg.Topic(), err)
			return
		}
		sink.SetRoute(pts)
		logger.Infow("mqtt: route installed", "waypoints", len(pts), "length_km", route.LengthKm(pts))
	}
}

// DisplayPublisher is a display.Renderer that mirrors the view to a topic.
// Unchanged views are not republished. Render never waits on the broker: at
// most one publish is in flight, and its outcome is collected on a later call.
type DisplayPublisher struct {
	pub   Publisher
	topic string

	last display.View
	sent bool

	pending     mqtt.Token
	pendingView display.View
}

// NewDisplayPublisher publishes to topic through pub.
func NewDisplayPublisher(pub Publisher, topic string) *DisplayPublisher {
	return &DisplayPublisher{pub: pub, topic: topic}
}

// Render publishes v if it differs from the last published view. While an
// earlier publish is still in flight the frame is dropped; a failed publish
// is reported on the next call and the current view is sent again.
func (d *DisplayPublisher) Render(v display.View) error {
	var err error
	if d.pending != nil {
		select {
		case <-d.pending.Done():
		default:
			return nil
		}
		if perr := d.pending.Error(); perr != nil {
			err = fmt.Errorf("mqtt: publish %s: %w", d.topic, perr)
		} else {
			d.last, d.sent = d.pendingView, true
		}
		d.pending = nil
	}

	if d.sent && v == d.last {
		return err
	}
	token, perr := PublishJSON(d.pub, d.topic, v)
	if perr != nil {
		return multierr.Append(err, perr)
	}
	d.pending, d.pendingView = token, v
	return err
}
