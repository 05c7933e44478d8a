// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"log"
	"os"

	"github.com/relabs-tech/cube_tracker/internal/config"
	"github.com/relabs-tech/cube_tracker/internal/replay"
	"github.com/relabs-tech/cube_tracker/internal/sample"
	"github.com/relabs-tech/cube_tracker/internal/scoring"
	"github.com/relabs-tech/cube_tracker/internal/store"
)

// ScoreOptions selects what RunScore compares.
type ScoreOptions struct {
	Device    string
	Reference string  // PNG or JPEG file
	Overlay   string  // output PNG, empty to skip
	Target    string  // "#rrggbb", empty for SCORE_TARGET_COLOR
	Tolerance float64 // negative for SCORE_TOLERANCE
	UpToIndex int     // negative for the whole history
}

// RunScore scores a stored history against a reference picture and prints
// the result.
func RunScore(opts ScoreOptions) error {
	cfg := config.Get()

	target := cfg.ScoreTargetColor
	if opts.Target != "" {
		target = opts.Target
	}
	targetColor, err := scoring.ParseHexColor(target)
	if err != nil {
		return err
	}
	tolerance := cfg.ScoreTolerance
	if opts.Tolerance >= 0 {
		tolerance = opts.Tolerance
	}

	ref, err := loadImage(opts.Reference)
	if err != nil {
		return err
	}

	backend, closeBackend, err := openBackend(cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer closeBackend()

	history, err := store.New(backend).History(opts.Device)
	if err != nil {
		return err
	}
	if opts.UpToIndex >= 0 && opts.UpToIndex < len(history) {
		history = history[:opts.UpToIndex+1]
	}
	log.Printf("score: %d samples for %s", len(history), opts.Device)

	overlay, res, err := scoreHistory(newReplayEngine(cfg), history, ref, cfg.CanvasWidth, cfg.CanvasHeight, targetColor, tolerance)
	if err != nil {
		return err
	}

	fmt.Printf("[SCORE] device=%s score=%.2f%% matches=%d drawn=%d reference=%d\n",
		opts.Device, res.Percent, res.Matches, res.UserPixels, res.ReferencePixels)

	if opts.Overlay == "" {
		return nil
	}
	if err := savePNG(opts.Overlay, overlay); err != nil {
		return err
	}
	log.Printf("score: overlay written to %s", opts.Overlay)
	return nil
}

// scoreHistory draws history the way the replay view shows it and scores
// it against ref fitted onto the same surface.
func scoreHistory(engine *replay.Engine, history []sample.Sample, ref image.Image, width, height int, target color.NRGBA, tolerance float64) (*image.NRGBA, scoring.Result, error) {
	segs, err := engine.Render(history, len(history))
	if err != nil {
		return nil, scoring.Result{}, err
	}
	user := scoring.Rasterize(segs, width, height)
	fitted := scoring.FitReference(ref, width, height)
	res, err := scoring.Score(user, fitted, target, tolerance)
	if err != nil {
		return nil, scoring.Result{}, err
	}
	return user, res, nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}
