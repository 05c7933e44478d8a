// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/relabs-tech/cube_tracker/internal/config"
	"github.com/relabs-tech/cube_tracker/internal/transport"
	"github.com/relabs-tech/cube_tracker/internal/transport/mqttbridge"
	"github.com/relabs-tech/cube_tracker/internal/transport/serialbridge"
)

// deviceLink is the configured bridge to the cubes.
type deviceLink interface {
	transport.Sender

	// Listen delivers telemetry notifications until ctx ends.
	Listen(ctx context.Context, handle func(transport.Notification), registry *transport.Registry) error
	// ListenCommands delivers motor and config writes until ctx ends.
	ListenCommands(ctx context.Context, handle func(transport.Notification)) error

	Publish(ctx context.Context, n transport.Notification) error
	DeclareCapabilities(ctx context.Context, deviceKey string, caps transport.Capabilities) error
	Close()
}

// openLink connects to the transport named by cfg.Transport.
func openLink(cfg *config.Config, clientID string) (deviceLink, error) {
	switch cfg.Transport {
	case config.TransportMQTT:
		b, err := mqttbridge.Connect(mqttbridge.Options{
			Broker:      cfg.MQTTBroker,
			ClientID:    clientID,
			TopicPrefix: cfg.TopicPrefix,
		})
		if err != nil {
			return nil, err
		}
		return mqttLink{b}, nil
	case config.TransportSerial:
		b, err := serialbridge.Open(serialbridge.Options{
			PortName: cfg.SerialPort,
			BaudRate: cfg.SerialBaudRate,
		})
		if err != nil {
			return nil, err
		}
		return serialLink{b}, nil
	}
	return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
}

type mqttLink struct {
	*mqttbridge.Bridge
}

func (l mqttLink) Listen(ctx context.Context, handle func(transport.Notification), registry *transport.Registry) error {
	if err := l.Subscribe(handle, registry); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func (l mqttLink) ListenCommands(ctx context.Context, handle func(transport.Notification)) error {
	if err := l.SubscribeCommands(handle); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

type serialLink struct {
	*serialbridge.Bridge
}

func (l serialLink) Listen(ctx context.Context, handle func(transport.Notification), registry *transport.Registry) error {
	return ignoreCanceled(l.Run(ctx, onlyKinds(handle, transport.KindPosition, transport.KindEuler), registry))
}

func (l serialLink) ListenCommands(ctx context.Context, handle func(transport.Notification)) error {
	return ignoreCanceled(l.Run(ctx, onlyKinds(handle, transport.KindMotor, transport.KindConfig), nil))
}

func (l serialLink) Close() {
	l.Bridge.Close()
}

// onlyKinds filters notifications by kind before calling handle.
func onlyKinds(handle func(transport.Notification), kinds ...transport.Kind) func(transport.Notification) {
	return func(n transport.Notification) {
		for _, k := range kinds {
			if n.Kind == k {
				handle(n)
				return
			}
		}
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
