// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/cube_tracker/internal/config"
	"github.com/relabs-tech/cube_tracker/internal/telemetry"
	"github.com/relabs-tech/cube_tracker/internal/transport"
)

// printEvents writes one line per decoded telemetry event to w.
func printEvents(dec *telemetry.Decoder, w io.Writer) {
	dec.OnPositionUpdated(func(ev telemetry.PositionUpdated) {
		p := ev.Pose
		fmt.Fprintf(w,
			"[POS ]  %-10s x=%4d y=%4d angle=%3d  sensor x=%4d y=%4d angle=%3d\n",
			ev.DeviceKey, p.X, p.Y, p.Angle, p.SensorX, p.SensorY, p.SensorAngle,
		)
	})
	dec.OnOrientationUpdated(func(ev telemetry.OrientationUpdated) {
		o := ev.Orientation
		fmt.Fprintf(w,
			"[EULR]  %-10s ROLL=%4d  PITCH=%4d  YAW=%4d\n",
			ev.DeviceKey, o.Roll, o.Pitch, o.Yaw,
		)
	})
	dec.OnSignalLost(func(ev telemetry.SignalLost) {
		fmt.Fprintf(w, "[LOST]  %-10s off the mat at %s\n",
			ev.DeviceKey, ev.At.Format("15:04:05.000"))
	})
}

// RunConsole prints the telemetry of every cube on the link.
func RunConsole() error {
	cfg := config.Get()

	link, err := openLink(cfg, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	defer link.Close()
	log.Printf("console: connected via %s", cfg.Transport)

	registry := transport.NewRegistry()
	dec := telemetry.NewDecoder(discardSink{})
	printEvents(dec, os.Stdout)
	router := transport.NewRouter(dec, registry)

	// Wait for Ctrl+C
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := link.Listen(ctx, router.Handle, registry); err != nil {
		return err
	}

	st := dec.Stats()
	log.Printf("console: shutting down (positions=%d orientations=%d lost=%d dropped=%d)",
		st.Positions, st.Orientations, st.Lost, st.Dropped+router.Dropped())
	return nil
}
