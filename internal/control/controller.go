// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package control sends motor and configuration commands to one cube.
package control

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/relabs-tech/cube_tracker/internal/sample"
	"github.com/relabs-tech/cube_tracker/internal/transport"
	"github.com/relabs-tech/cube_tracker/internal/wire"
)

// DefaultTraceInterval is the pause between move-to commands in Trace.
const DefaultTraceInterval = 500 * time.Millisecond

// ErrUnknownPreset is returned by Preset for an unrecognised name.
var ErrUnknownPreset = errors.New("unknown motor preset")

// Controller drives the cube identified by DeviceKey.
type Controller struct {
	sender    transport.Sender
	deviceKey string
}

// New creates a Controller for deviceKey.
func New(sender transport.Sender, deviceKey string) *Controller {
	return &Controller{sender: sender, deviceKey: deviceKey}
}

// DeviceKey returns the cube this controller drives.
func (c *Controller) DeviceKey() string {
	return c.deviceKey
}

func (c *Controller) motor(ctx context.Context, frame []byte) error {
	if err := c.sender.SendCommand(ctx, c.deviceKey, transport.KindMotor, frame); err != nil {
		return fmt.Errorf("motor command to %s: %w", c.deviceKey, err)
	}
	return nil
}

func (c *Controller) Forward(ctx context.Context) error  { return c.motor(ctx, wire.Forward()) }
func (c *Controller) Backward(ctx context.Context) error { return c.motor(ctx, wire.Backward()) }
func (c *Controller) Left(ctx context.Context) error     { return c.motor(ctx, wire.Left()) }
func (c *Controller) Right(ctx context.Context) error    { return c.motor(ctx, wire.Right()) }
func (c *Controller) Stop(ctx context.Context) error     { return c.motor(ctx, wire.Stop()) }

// Preset sends the named motor preset: forward, backward, left, right or stop.
func (c *Controller) Preset(ctx context.Context, name string) error {
	frame, ok := wire.Preset(name)
	if !ok {
		return fmt.Errorf("%q: %w", name, ErrUnknownPreset)
	}
	return c.motor(ctx, frame)
}

// Drive sets both motors until the next command.
func (c *Controller) Drive(ctx context.Context, left, right wire.MotorDrive) error {
	return c.motor(ctx, wire.EncodeMotorCommand(left, right))
}

// DriveFor sets both motors for d; the cube stops on its own afterwards.
func (c *Controller) DriveFor(ctx context.Context, left, right wire.MotorDrive, d time.Duration) error {
	return c.motor(ctx, wire.EncodeTimedMotorCommand(left, right, d))
}

// MoveTo asks the cube to travel to a mat position and face angle.
func (c *Controller) MoveTo(ctx context.Context, x, y, angle uint16) error {
	return c.motor(ctx, wire.EncodeMoveTo(x, y, angle))
}

// ConfigureEuler switches attitude notifications to Euler angles.
func (c *Controller) ConfigureEuler(ctx context.Context) error {
	if err := c.sender.SendCommand(ctx, c.deviceKey, transport.KindConfig, wire.EncodeEulerConfig()); err != nil {
		return fmt.Errorf("config command to %s: %w", c.deviceKey, err)
	}
	return nil
}

// Trace drives the cube along a recorded history, one move-to per sample
// at the recorded sensor position, pausing interval between commands. It
// returns how many commands were sent.
func (c *Controller) Trace(ctx context.Context, history []sample.Sample, interval time.Duration) (int, error) {
	if interval <= 0 {
		interval = DefaultTraceInterval
	}

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	sent := 0
	for _, s := range history {
		if s.Pose == nil {
			continue
		}
		if sent > 0 {
			timer.Reset(interval)
			select {
			case <-ctx.Done():
				return sent, ctx.Err()
			case <-timer.C:
			}
		}
		if err := c.MoveTo(ctx, s.Pose.SensorX, s.Pose.SensorY, s.Pose.SensorAngle); err != nil {
			return sent, err
		}
		sent++
	}
	log.Printf("control: traced %d points on %s", sent, c.deviceKey)
	return sent, nil
}
