// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/relabs-tech/cube_tracker/internal/app"
	"github.com/relabs-tech/cube_tracker/internal/config"
)

func main() {
	configPath := flag.String("config", "./cube_config.txt", "path to configuration file")
	device := flag.String("device", "", "cube to command")
	preset := flag.String("preset", "", "forward, backward, left, right or stop")
	duration := flag.Duration("for", 0, "with -preset: run the motors this long (max 2.55s)")
	moveTo := flag.String("moveto", "", "x,y,angle target on the mat")
	euler := flag.Bool("euler", false, "enable Euler angle notifications")
	trace := flag.Bool("trace", false, "retrace the cube's recorded history")
	flag.Parse()

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	opts := app.DriveOptions{
		Device:      *device,
		Preset:      *preset,
		Duration:    *duration,
		EulerConfig: *euler,
		Trace:       *trace,
	}
	if *moveTo != "" {
		m, err := parseMoveTo(*moveTo)
		if err != nil {
			log.Fatalf("invalid -moveto: %v", err)
		}
		opts.MoveTo = m
	}

	if err := app.RunDrive(opts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func parseMoveTo(s string) (*app.MoveRequest, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return nil, fmt.Errorf("want x,y,angle, got %q", s)
	}
	var v [3]uint16
	for i, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 16)
		if err != nil {
			return nil, err
		}
		v[i] = uint16(n)
	}
	return &app.MoveRequest{X: v[0], Y: v[1], Angle: v[2]}, nil
}
