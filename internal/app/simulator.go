// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/cube_tracker/internal/config"
	"github.com/relabs-tech/cube_tracker/internal/orientation"
	"github.com/relabs-tech/cube_tracker/internal/position"
	"github.com/relabs-tech/cube_tracker/internal/transport"
	"github.com/relabs-tech/cube_tracker/internal/wire"
)

// Simulated cube path: a circle in the middle of the default mat.
const (
	simCenterX = 250
	simCenterY = 250
	simRadius  = 80
	simSteps   = 120 // frames per lap
)

// simPose returns the simulated pose for frame step. The cube faces along
// the circle and the sensor sits slightly ahead of the center.
func simPose(step int) position.Pose {
	theta := 2 * math.Pi * float64(step%simSteps) / simSteps
	x := simCenterX + simRadius*math.Cos(theta)
	y := simCenterY + simRadius*math.Sin(theta)

	heading := math.Mod(theta*180/math.Pi+90, 360)
	hr := heading * math.Pi / 180
	return position.Pose{
		X:           uint16(math.Round(x)),
		Y:           uint16(math.Round(y)),
		Angle:       uint16(math.Round(heading)) % 360,
		SensorX:     uint16(math.Round(x + 2*math.Cos(hr))),
		SensorY:     uint16(math.Round(y + 2*math.Sin(hr))),
		SensorAngle: uint16(math.Round(heading)) % 360,
	}
}

// simFrame returns the position notification for step; every lossEvery-th
// frame reports the cube off the mat.
func simFrame(step, lossEvery int) []byte {
	if lossEvery > 0 && step > 0 && step%lossEvery == 0 {
		return wire.PositionMissedFrame()
	}
	return wire.EncodePositionFrame(simPose(step))
}

// describeCommand renders a motor or config write for the log.
func describeCommand(kind transport.Kind, frame []byte) string {
	if len(frame) == 0 {
		return fmt.Sprintf("%s: empty frame", kind)
	}
	if kind == transport.KindConfig {
		if len(frame) == wire.EulerConfigLen && frame[0] == 0x1d {
			return "config: euler notifications enabled"
		}
		return fmt.Sprintf("config: % x", frame)
	}

	switch frame[0] {
	case wire.ControlMotor:
		if len(frame) >= wire.MotorFrameLen {
			return fmt.Sprintf("motor: left %s right %s",
				describeDrive(frame[2], frame[3]), describeDrive(frame[5], frame[6]))
		}
	case wire.ControlMotorTimed:
		if len(frame) >= wire.TimedMotorLen {
			return fmt.Sprintf("motor: left %s right %s for %dms",
				describeDrive(frame[2], frame[3]), describeDrive(frame[5], frame[6]),
				int(frame[7])*10)
		}
	case wire.ControlMoveTo:
		if len(frame) >= wire.MoveToFrameLen {
			le := binary.LittleEndian
			return fmt.Sprintf("motor: move to x=%d y=%d angle=%d",
				le.Uint16(frame[7:]), le.Uint16(frame[9:]), le.Uint16(frame[11:]))
		}
	}
	return fmt.Sprintf("%s: % x", kind, frame)
}

func describeDrive(dir, speed byte) string {
	if speed == 0 {
		return "stopped"
	}
	if dir == wire.DirBackward {
		return fmt.Sprintf("bwd@%d", speed)
	}
	return fmt.Sprintf("fwd@%d", speed)
}

// RunSimulator plays a virtual cube on the link: it publishes position and
// Euler notifications and logs the commands written to it.
func RunSimulator() error {
	log.Println("starting cube simulator")

	cfg := config.Get()

	link, err := openLink(cfg, cfg.MQTTClientIDSimulator)
	if err != nil {
		return err
	}
	defer link.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	key := cfg.SimDeviceKey
	if err := link.DeclareCapabilities(ctx, key, transport.AllCapabilities); err != nil {
		return fmt.Errorf("declare capabilities: %w", err)
	}

	go func() {
		err := link.ListenCommands(ctx, func(n transport.Notification) {
			if n.DeviceKey != key {
				return
			}
			log.Printf("simulator: %s", describeCommand(n.Kind, n.Payload))
		})
		if err != nil {
			log.Printf("simulator: command listener error: %v", err)
		}
	}()

	src := orientation.NewMockSource()

	ticker := time.NewTicker(millis(cfg.SimInterval))
	defer ticker.Stop()

	log.Printf("simulator: publishing as %s every %dms", key, cfg.SimInterval)
	for step := 0; ; step++ {
		select {
		case <-ctx.Done():
			log.Println("simulator: shutting down")
			return nil
		case <-ticker.C:
		}

		pos := transport.Notification{DeviceKey: key, Kind: transport.KindPosition, Payload: simFrame(step, cfg.SimLossEvery)}
		if err := link.Publish(ctx, pos); err != nil {
			log.Printf("simulator: publish position error: %v", err)
			continue
		}

		o, err := src.Next()
		if err != nil {
			log.Printf("simulator: orientation source error: %v", err)
			continue
		}
		eul := transport.Notification{DeviceKey: key, Kind: transport.KindEuler, Payload: wire.EncodeEulerFrame(o)}
		if err := link.Publish(ctx, eul); err != nil {
			log.Printf("simulator: publish euler error: %v", err)
		}
	}
}
