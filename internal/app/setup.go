// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"log"
	"time"

	"github.com/relabs-tech/cube_tracker/internal/config"
	"github.com/relabs-tech/cube_tracker/internal/replay"
	"github.com/relabs-tech/cube_tracker/internal/sample"
	"github.com/relabs-tech/cube_tracker/internal/store"
	"github.com/relabs-tech/cube_tracker/internal/store/sqlitestore"
)

// openBackend opens the durable store named by STORE_PATH, or an in-memory
// one when it is empty. The returned func closes it.
func openBackend(cfg *config.Config) (store.Backend, func(), error) {
	if cfg.StorePath == "" {
		log.Println("store: STORE_PATH empty, keeping samples in memory")
		return store.NewMemoryBackend(), func() {}, nil
	}
	db, err := sqlitestore.Open(cfg.StorePath)
	if err != nil {
		return nil, nil, err
	}
	return db, func() {
		if err := db.Close(); err != nil {
			log.Printf("store: close error: %v", err)
		}
	}, nil
}

func penFromConfig(cfg *config.Config) sample.Pen {
	return sample.Pen{Color: cfg.PenColor, Alpha: cfg.PenAlpha, LineWidth: cfg.PenLineWidth}
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// surfaceTransform maps mat coordinates onto the configured canvas.
func surfaceTransform(cfg *config.Config) replay.Transform {
	mat := replay.Rect{
		MinX: cfg.MatTopLeftX,
		MinY: cfg.MatTopLeftY,
		MaxX: cfg.MatBottomRightX,
		MaxY: cfg.MatBottomRightY,
	}
	return replay.MatTransform(mat, float64(cfg.CanvasWidth), float64(cfg.CanvasHeight)).
		WithOffset(cfg.MatOffsetX, cfg.MatOffsetY)
}

func newReplayEngine(cfg *config.Config) *replay.Engine {
	return replay.NewEngine(
		replay.WithTransform(surfaceTransform(cfg)),
		replay.WithTick(millis(cfg.ReplayTick)),
	)
}
