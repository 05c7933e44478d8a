// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/cube_tracker/internal/app"
	"github.com/relabs-tech/cube_tracker/internal/config"
)

func main() {
	configPath := flag.String("config", "./cube_config.txt", "path to configuration file")
	device := flag.String("device", "", "cube whose history is scored")
	reference := flag.String("ref", "", "reference picture (PNG or JPEG)")
	overlay := flag.String("overlay", "", "write the scored drawing to this PNG")
	target := flag.String("target", "", "target color, default SCORE_TARGET_COLOR")
	tolerance := flag.Float64("tolerance", -1, "color distance tolerance, default SCORE_TOLERANCE")
	upTo := flag.Int("upto", -1, "score only samples up to this index")
	flag.Parse()

	if *device == "" || *reference == "" {
		log.Fatalf("usage: score -device NAME -ref FILE [-overlay FILE]")
	}

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	err := app.RunScore(app.ScoreOptions{
		Device:    *device,
		Reference: *reference,
		Overlay:   *overlay,
		Target:    *target,
		Tolerance: *tolerance,
		UpToIndex: *upTo,
	})
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
