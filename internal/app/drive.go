// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/cube_tracker/internal/config"
	"github.com/relabs-tech/cube_tracker/internal/control"
	"github.com/relabs-tech/cube_tracker/internal/sample"
	"github.com/relabs-tech/cube_tracker/internal/store"
)

// DriveOptions is one command for RunDrive. The first set action wins, in
// the order preset, move-to, euler config, trace.
type DriveOptions struct {
	Device      string
	Preset      string
	Duration    time.Duration // with Preset: timed drive
	MoveTo      *MoveRequest
	EulerConfig bool
	Trace       bool
}

var errNoDriveAction = errors.New("no drive action given")

// RunDrive sends a single command (or a trace) to one cube and exits.
func RunDrive(opts DriveOptions) error {
	cfg := config.Get()

	if opts.Device == "" {
		return errors.New("a device is required")
	}

	link, err := openLink(cfg, cfg.MQTTClientIDDrive)
	if err != nil {
		return err
	}
	defer link.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	history := func() ([]sample.Sample, error) {
		backend, closeBackend, err := openBackend(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		defer closeBackend()
		return store.New(backend).History(opts.Device)
	}

	return drive(ctx, control.New(link, opts.Device), opts, history, millis(cfg.TraceInterval))
}

func drive(ctx context.Context, ctl *control.Controller, opts DriveOptions, history func() ([]sample.Sample, error), traceInterval time.Duration) error {
	switch {
	case opts.Preset != "" && opts.Duration > 0:
		left, right, ok := presetDrives(opts.Preset)
		if !ok {
			return fmt.Errorf("%w: %s", control.ErrUnknownPreset, opts.Preset)
		}
		if err := ctl.DriveFor(ctx, left, right, opts.Duration); err != nil {
			return err
		}
		log.Printf("drive: %s %s for %s", ctl.DeviceKey(), opts.Preset, opts.Duration)
	case opts.Preset != "":
		if err := ctl.Preset(ctx, opts.Preset); err != nil {
			return err
		}
		log.Printf("drive: %s %s", ctl.DeviceKey(), opts.Preset)
	case opts.MoveTo != nil:
		m := opts.MoveTo
		if err := ctl.MoveTo(ctx, m.X, m.Y, m.Angle); err != nil {
			return err
		}
		log.Printf("drive: %s move to x=%d y=%d angle=%d", ctl.DeviceKey(), m.X, m.Y, m.Angle)
	case opts.EulerConfig:
		if err := ctl.ConfigureEuler(ctx); err != nil {
			return err
		}
		log.Printf("drive: %s euler notifications enabled", ctl.DeviceKey())
	case opts.Trace:
		h, err := history()
		if err != nil {
			return err
		}
		if len(h) == 0 {
			return fmt.Errorf("no recorded history for %s", ctl.DeviceKey())
		}
		if _, err := ctl.Trace(ctx, h, traceInterval); err != nil {
			return err
		}
	default:
		return errNoDriveAction
	}
	return nil
}
