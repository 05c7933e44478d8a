// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mqttbridge reaches cubes through a BLE gateway that mirrors each
// characteristic onto an MQTT topic:
//
//	<prefix>/<device>/position   notify, raw frame
//	<prefix>/<device>/euler      notify, raw frame
//	<prefix>/<device>/motor      write, raw frame
//	<prefix>/<device>/config     write, raw frame
//	<prefix>/<device>/caps       retained, "position|euler|motor|config"
package mqttbridge

import (
	"context"
	"fmt"
	"log"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/cube_tracker/internal/transport"
)

const capsTopic = "caps"

// Bridge is a transport.Sender over an MQTT client.
type Bridge struct {
	client mqtt.Client
	prefix string
	qos    byte
}

// Options holds the broker connection settings.
type Options struct {
	Broker      string
	ClientID    string
	TopicPrefix string
}

// Connect dials the broker and returns a Bridge using it.
func Connect(o Options) (*Bridge, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect %s: %w", o.Broker, token.Error())
	}
	log.Printf("mqttbridge: connected to MQTT broker at %s", o.Broker)
	return New(client, o.TopicPrefix), nil
}

// New wraps an already connected client.
func New(client mqtt.Client, prefix string) *Bridge {
	return &Bridge{client: client, prefix: strings.TrimSuffix(prefix, "/")}
}

// Topic returns the topic for one characteristic of a device.
func Topic(prefix, deviceKey string, kind transport.Kind) string {
	return prefix + "/" + deviceKey + "/" + string(kind)
}

// ParseTopic splits "<prefix>/<device>/<name>".
func ParseTopic(prefix, topic string) (deviceKey, name string, ok bool) {
	rest, found := strings.CutPrefix(topic, prefix+"/")
	if !found {
		return "", "", false
	}
	deviceKey, name, found = strings.Cut(rest, "/")
	if !found || deviceKey == "" || name == "" || strings.Contains(name, "/") {
		return "", "", false
	}
	return deviceKey, name, true
}

// Subscribe delivers position and Euler notifications of every device to
// handle, and feeds capability announcements into registry when it is not
// nil.
func (b *Bridge) Subscribe(handle func(transport.Notification), registry *transport.Registry) error {
	for _, kind := range []transport.Kind{transport.KindPosition, transport.KindEuler} {
		topic := b.prefix + "/+/" + string(kind)
		token := b.client.Subscribe(topic, b.qos, b.notificationHandler(handle))
		token.Wait()
		if token.Error() != nil {
			return fmt.Errorf("subscribe %s: %w", topic, token.Error())
		}
		log.Printf("mqttbridge: subscribed to %s", topic)
	}

	if registry == nil {
		return nil
	}
	topic := b.prefix + "/+/" + capsTopic
	token := b.client.Subscribe(topic, b.qos, b.capsHandler(registry))
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	log.Printf("mqttbridge: subscribed to %s", topic)
	return nil
}

func (b *Bridge) notificationHandler(handle func(transport.Notification)) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		key, name, ok := ParseTopic(b.prefix, msg.Topic())
		if !ok {
			log.Printf("mqttbridge: ignoring topic %s", msg.Topic())
			return
		}
		kind, err := transport.ParseKind(name)
		if err != nil {
			log.Printf("mqttbridge: %v", err)
			return
		}
		payload := append([]byte(nil), msg.Payload()...)
		handle(transport.Notification{DeviceKey: key, Kind: kind, Payload: payload})
	}
}

func (b *Bridge) capsHandler(registry *transport.Registry) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		key, _, ok := ParseTopic(b.prefix, msg.Topic())
		if !ok {
			return
		}
		caps, err := transport.ParseCapabilities(string(msg.Payload()))
		if err != nil {
			log.Printf("mqttbridge: caps for %s: %v", key, err)
			return
		}
		registry.Declare(key, caps)
		log.Printf("mqttbridge: %s exposes %s", key, caps)
	}
}

// SubscribeCommands delivers motor and config writes addressed to any
// device. The simulator uses it to play the gateway's part.
func (b *Bridge) SubscribeCommands(handle func(transport.Notification)) error {
	for _, kind := range []transport.Kind{transport.KindMotor, transport.KindConfig} {
		topic := b.prefix + "/+/" + string(kind)
		token := b.client.Subscribe(topic, b.qos, b.notificationHandler(handle))
		token.Wait()
		if token.Error() != nil {
			return fmt.Errorf("subscribe %s: %w", topic, token.Error())
		}
	}
	return nil
}

// SendCommand publishes frame to the device's characteristic topic and
// waits for the broker to accept it or ctx to end.
func (b *Bridge) SendCommand(ctx context.Context, deviceKey string, kind transport.Kind, frame []byte) error {
	return b.publish(ctx, Topic(b.prefix, deviceKey, kind), false, frame)
}

// Publish sends a notification as the gateway would.
func (b *Bridge) Publish(ctx context.Context, n transport.Notification) error {
	return b.publish(ctx, Topic(b.prefix, n.DeviceKey, n.Kind), false, n.Payload)
}

// DeclareCapabilities publishes a retained capability announcement.
func (b *Bridge) DeclareCapabilities(ctx context.Context, deviceKey string, caps transport.Capabilities) error {
	return b.publish(ctx, b.prefix+"/"+deviceKey+"/"+capsTopic, true, []byte(caps.String()))
}

func (b *Bridge) publish(ctx context.Context, topic string, retained bool, payload []byte) error {
	token := b.client.Publish(topic, b.qos, retained, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (b *Bridge) Close() {
	b.client.Disconnect(250)
}
