// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"time"

	"github.com/relabs-tech/cube_tracker/internal/orientation"
	"github.com/relabs-tech/cube_tracker/internal/position"
)

// SignalLost is published once per position-unavailable frame.
type SignalLost struct {
	DeviceKey string    `json:"deviceName"`
	At        time.Time `json:"at"`
}

// PositionUpdated is published for every decoded position frame.
type PositionUpdated struct {
	DeviceKey string        `json:"deviceName"`
	Pose      position.Pose `json:"pose"`
	At        time.Time     `json:"at"`
}

// OrientationUpdated is published for every decoded Euler frame.
type OrientationUpdated struct {
	DeviceKey   string                  `json:"deviceName"`
	Orientation orientation.Orientation `json:"orientation"`
	At          time.Time               `json:"at"`
}

// Stats counts frames seen by a Decoder since it was created.
type Stats struct {
	Positions    uint64 `json:"positions"`
	Orientations uint64 `json:"orientations"`
	Lost         uint64 `json:"lost"`
	Dropped      uint64 `json:"dropped"`
}
